package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/infrastructure/database"
)

const supabaseTileCacheTable = "tile_cache"

// supabaseTileCacheRow PostgREST経由で読み書きする行（results_json は jsonb のまま扱う）
type supabaseTileCacheRow struct {
	CacheKey    string          `json:"cache_key"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	TileRadius  int             `json:"tile_radius"`
	ResultsJSON json.RawMessage `json:"results_json"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

type SupabaseTileCacheRepository struct {
	client *database.SupabaseClient
}

func NewSupabaseTileCacheRepository(client *database.SupabaseClient) *SupabaseTileCacheRepository {
	return &SupabaseTileCacheRepository{
		client: client,
	}
}

var _ repository.TileCacheRepository = (*SupabaseTileCacheRepository)(nil)

func (r *SupabaseTileCacheRepository) Get(ctx context.Context, key model.TileKey) (*model.TileCacheEntry, error) {
	var rows []supabaseTileCacheRow
	data, _, err := r.client.GetClient().From(supabaseTileCacheTable).Select("*", "", false).Eq("cache_key", key.String()).Execute()
	if err != nil {
		return nil, fmt.Errorf("タイルキャッシュ %s の取得失敗: %w", key, err)
	}

	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("タイルキャッシュのJSONアンマーシャル失敗: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	row := TileCacheRow{
		CacheKey:    rows[0].CacheKey,
		Latitude:    rows[0].Latitude,
		Longitude:   rows[0].Longitude,
		TileRadius:  rows[0].TileRadius,
		ResultsJSON: string(rows[0].ResultsJSON),
		CreatedAt:   rows[0].CreatedAt,
		ExpiresAt:   rows[0].ExpiresAt,
	}
	return row.ToEntry()
}

// Upsert cache_key の衝突時は上書き（1リクエストでまとめて送る）
func (r *SupabaseTileCacheRepository) Upsert(ctx context.Context, entries []model.TileCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	// 同じキーが複数あると1リクエスト内で衝突するため後勝ちで畳む
	deduped := lastWriteWins(entries)
	rows := make([]supabaseTileCacheRow, 0, len(deduped))
	for _, entry := range deduped {
		row, err := ToTileCacheRow(entry)
		if err != nil {
			return err
		}
		rows = append(rows, supabaseTileCacheRow{
			CacheKey:    row.CacheKey,
			Latitude:    row.Latitude,
			Longitude:   row.Longitude,
			TileRadius:  row.TileRadius,
			ResultsJSON: json.RawMessage(row.ResultsJSON),
			CreatedAt:   row.CreatedAt,
			ExpiresAt:   row.ExpiresAt,
		})
	}

	_, _, err := r.client.GetClient().From(supabaseTileCacheTable).Insert(rows, true, "cache_key", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("タイルキャッシュの書き込み失敗: %w", err)
	}
	return nil
}

func (r *SupabaseTileCacheRepository) Delete(ctx context.Context, key model.TileKey) error {
	_, _, err := r.client.GetClient().From(supabaseTileCacheTable).Delete("minimal", "").Eq("cache_key", key.String()).Execute()
	if err != nil {
		return fmt.Errorf("タイルキャッシュ %s の削除失敗: %w", key, err)
	}
	return nil
}

func (r *SupabaseTileCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	_, count, err := r.client.GetClient().From(supabaseTileCacheTable).
		Delete("minimal", "exact").
		Lte("expires_at", now.UTC().Format(time.RFC3339)).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("期限切れタイルキャッシュの削除失敗: %w", err)
	}
	return count, nil
}

func (r *SupabaseTileCacheRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck()
}
