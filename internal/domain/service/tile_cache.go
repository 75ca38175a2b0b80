package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/metrics"
)

// TileCache 永続ストアの前に立つタイルキャッシュ
// 期限切れの行は参照時に削除し、決して返さない
type TileCache struct {
	repo repository.TileCacheRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewTileCache 新しいTileCacheを作成（ttl が0以下なら7日）
func NewTileCache(repo repository.TileCacheRepository, ttl time.Duration) *TileCache {
	if ttl <= 0 {
		ttl = model.DefaultTileCacheTTL
	}
	return &TileCache{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get 有効なエントリがあれば施設一覧を返す
// ストアのエラーはミス扱いにして検索を続行させる
func (c *TileCache) Get(ctx context.Context, key model.TileKey) ([]model.Venue, bool) {
	entry, err := c.repo.Get(ctx, key)
	if err != nil {
		log.Printf("⚠️  タイルキャッシュ参照失敗のためミス扱い (%s): %v", key, err)
		metrics.RecordCacheLookup("store", "error")
		return nil, false
	}
	if entry == nil {
		metrics.RecordCacheLookup("store", "miss")
		return nil, false
	}

	if entry.IsExpired(c.now()) {
		if err := c.repo.Delete(ctx, key); err != nil {
			log.Printf("⚠️  期限切れタイルキャッシュの削除失敗 (%s): %v", key, err)
		}
		metrics.RecordCacheLookup("store", "expired")
		return nil, false
	}

	metrics.RecordCacheLookup("store", "hit")
	if entry.Venues == nil {
		return []model.Venue{}, true
	}
	return entry.Venues, true
}

// NewEntry 現在時刻から ttl 後に失効するエントリを作る（ttl が0以下なら既定のTTL）
func (c *TileCache) NewEntry(tile model.Tile, venues []model.Venue, ttl time.Duration) model.TileCacheEntry {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	return model.TileCacheEntry{
		Key:       tile.Key(),
		Center:    tile.Center,
		Venues:    venues,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// PutBatch 検索中に溜めた書き込みをまとめてupsertする（同じキーは後勝ち）
func (c *TileCache) PutBatch(ctx context.Context, entries []model.TileCacheEntry) error {
	metrics.TileCacheBatchSize.Observe(float64(len(entries)))
	if len(entries) == 0 {
		return nil
	}
	if err := c.repo.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("タイルキャッシュの一括書き込みに失敗: %w", err)
	}
	return nil
}

// Purge 期限切れの行を一括削除する
func (c *TileCache) Purge(ctx context.Context) (int64, error) {
	deleted, err := c.repo.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("期限切れタイルキャッシュの削除に失敗: %w", err)
	}
	return deleted, nil
}

// HealthCheck ストアの疎通確認
func (c *TileCache) HealthCheck(ctx context.Context) error {
	return c.repo.HealthCheck(ctx)
}
