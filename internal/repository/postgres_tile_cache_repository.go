package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/infrastructure/database"
)

const tileCacheSchema = `
CREATE TABLE IF NOT EXISTS tile_cache (
	cache_key    TEXT PRIMARY KEY,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	tile_radius  INTEGER NOT NULL,
	results_json JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tile_cache_expires_at ON tile_cache (expires_at);
`

const upsertTileCacheQuery = `
	INSERT INTO tile_cache (cache_key, latitude, longitude, tile_radius, results_json, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
	ON CONFLICT (cache_key) DO UPDATE SET
		latitude     = EXCLUDED.latitude,
		longitude    = EXCLUDED.longitude,
		tile_radius  = EXCLUDED.tile_radius,
		results_json = EXCLUDED.results_json,
		created_at   = EXCLUDED.created_at,
		expires_at   = EXCLUDED.expires_at
`

type PostgresTileCacheRepository struct {
	client *database.PostgreSQLClient
}

func NewPostgresTileCacheRepository(client *database.PostgreSQLClient) *PostgresTileCacheRepository {
	return &PostgresTileCacheRepository{
		client: client,
	}
}

var _ repository.TileCacheRepository = (*PostgresTileCacheRepository)(nil)

// EnsureSchema tile_cache テーブルとインデックスを作成する（存在する場合は何もしない）
func (r *PostgresTileCacheRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.client.DB.ExecContext(ctx, tileCacheSchema); err != nil {
		return fmt.Errorf("tile_cacheテーブルの作成失敗: %w", err)
	}
	return nil
}

func (r *PostgresTileCacheRepository) Get(ctx context.Context, key model.TileKey) (*model.TileCacheEntry, error) {
	query := `
		SELECT cache_key, latitude, longitude, tile_radius, results_json::text, created_at, expires_at
		FROM tile_cache
		WHERE cache_key = $1
	`

	var row TileCacheRow
	err := r.client.DB.QueryRowContext(ctx, query, key.String()).Scan(
		&row.CacheKey, &row.Latitude, &row.Longitude, &row.TileRadius,
		&row.ResultsJSON, &row.CreatedAt, &row.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("タイルキャッシュ %s の取得失敗: %w", key, err)
	}

	return row.ToEntry()
}

// Upsert 1トランザクション・1プリペアドステートメントでまとめて書き込む
func (r *PostgresTileCacheRepository) Upsert(ctx context.Context, entries []model.TileCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始失敗: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertTileCacheQuery)
	if err != nil {
		return fmt.Errorf("upsert文の準備失敗: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		row, err := ToTileCacheRow(entry)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			row.CacheKey, row.Latitude, row.Longitude, row.TileRadius,
			row.ResultsJSON, row.CreatedAt, row.ExpiresAt,
		); err != nil {
			return fmt.Errorf("タイルキャッシュ %s の書き込み失敗: %w", row.CacheKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミット失敗: %w", err)
	}
	return nil
}

func (r *PostgresTileCacheRepository) Delete(ctx context.Context, key model.TileKey) error {
	if _, err := r.client.DB.ExecContext(ctx, `DELETE FROM tile_cache WHERE cache_key = $1`, key.String()); err != nil {
		return fmt.Errorf("タイルキャッシュ %s の削除失敗: %w", key, err)
	}
	return nil
}

func (r *PostgresTileCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.client.DB.ExecContext(ctx, `DELETE FROM tile_cache WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("期限切れタイルキャッシュの削除失敗: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得失敗: %w", err)
	}
	return deleted, nil
}

func (r *PostgresTileCacheRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck()
}
