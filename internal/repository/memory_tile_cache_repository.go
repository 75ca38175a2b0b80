package repository

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
)

// MemoryTileCacheRepository プロセス内LRUによるタイルキャッシュ
// 永続ストアを持たない環境（ローカル開発・テスト）向け
type MemoryTileCacheRepository struct {
	cache *lru.Cache[string, model.TileCacheEntry]
}

// NewMemoryTileCacheRepository 新しいMemoryTileCacheRepositoryインスタンスを作成
func NewMemoryTileCacheRepository(size int) (*MemoryTileCacheRepository, error) {
	if size <= 0 {
		size = 10000
	}
	cache, err := lru.New[string, model.TileCacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("LRUキャッシュの初期化に失敗: %w", err)
	}
	return &MemoryTileCacheRepository{cache: cache}, nil
}

var _ repository.TileCacheRepository = (*MemoryTileCacheRepository)(nil)

func (r *MemoryTileCacheRepository) Get(ctx context.Context, key model.TileKey) (*model.TileCacheEntry, error) {
	entry, ok := r.cache.Get(key.String())
	if !ok {
		return nil, nil
	}
	return cloneEntry(entry), nil
}

func (r *MemoryTileCacheRepository) Upsert(ctx context.Context, entries []model.TileCacheEntry) error {
	for _, e := range entries {
		r.cache.Add(e.Key.String(), *cloneEntry(e))
	}
	return nil
}

func (r *MemoryTileCacheRepository) Delete(ctx context.Context, key model.TileKey) error {
	r.cache.Remove(key.String())
	return nil
}

func (r *MemoryTileCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	for _, k := range r.cache.Keys() {
		entry, ok := r.cache.Peek(k)
		if ok && entry.IsExpired(now) {
			r.cache.Remove(k)
			deleted++
		}
	}
	return deleted, nil
}

func (r *MemoryTileCacheRepository) HealthCheck(ctx context.Context) error {
	return nil
}

// Len 保持している件数
func (r *MemoryTileCacheRepository) Len() int {
	return r.cache.Len()
}

// cloneEntry 呼び出し側がスライスを書き換えてもキャッシュに影響しないようコピーする
func cloneEntry(e model.TileCacheEntry) *model.TileCacheEntry {
	venues := make([]model.Venue, len(e.Venues))
	copy(venues, e.Venues)
	e.Venues = venues
	return &e
}
