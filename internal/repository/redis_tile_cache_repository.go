package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
)

const redisTileCacheKeyPrefix = "tile_cache:"

// RedisTileCacheRepository Redisを使用したタイルキャッシュリポジトリ
// 行はJSONで保存し、expires_at に合わせてキー自体にも有効期限を付ける
type RedisTileCacheRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisTileCacheRepository(client *redis.Client) *RedisTileCacheRepository {
	return &RedisTileCacheRepository{
		client: client,
		now:    time.Now,
	}
}

var _ repository.TileCacheRepository = (*RedisTileCacheRepository)(nil)

func redisTileCacheKey(key model.TileKey) string {
	return redisTileCacheKeyPrefix + key.String()
}

func (r *RedisTileCacheRepository) Get(ctx context.Context, key model.TileKey) (*model.TileCacheEntry, error) {
	data, err := r.client.Get(ctx, redisTileCacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("タイルキャッシュ %s の取得に失敗しました: %w", key, err)
	}

	var row TileCacheRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("タイルキャッシュ %s のデコードに失敗しました: %w", key, err)
	}
	return row.ToEntry()
}

// Upsert パイプラインでまとめてSETする
func (r *RedisTileCacheRepository) Upsert(ctx context.Context, entries []model.TileCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	now := r.now()
	pipe := r.client.Pipeline()
	queued := 0
	for _, entry := range entries {
		ttl := entry.ExpiresAt.Sub(now)
		if ttl <= 0 {
			// 既に期限切れの行は書かない
			continue
		}
		row, err := ToTileCacheRow(entry)
		if err != nil {
			return err
		}
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("タイルキャッシュ %s のエンコードに失敗しました: %w", row.CacheKey, err)
		}
		pipe.Set(ctx, redisTileCacheKeyPrefix+row.CacheKey, data, ttl)
		queued++
	}
	if queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("タイルキャッシュの一括書き込みに失敗しました: %w", err)
	}
	return nil
}

func (r *RedisTileCacheRepository) Delete(ctx context.Context, key model.TileKey) error {
	if err := r.client.Del(ctx, redisTileCacheKey(key)).Err(); err != nil {
		return fmt.Errorf("タイルキャッシュ %s の削除に失敗しました: %w", key, err)
	}
	return nil
}

// DeleteExpired Redis側のキー有効期限で消えるため何もしない
func (r *RedisTileCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (r *RedisTileCacheRepository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
