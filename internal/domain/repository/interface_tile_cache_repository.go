package repository

import (
	"context"
	"time"

	"GymSearch-App/internal/domain/model"
)

// TileCacheRepository タイルキャッシュの永続ストア
// キーは (cell, tile_radius) を "<cell>:<radius>" にした cache_key
type TileCacheRepository interface {
	// Get cache_key に一致する行を取得（存在しない場合は nil, nil）
	// 有効期限の判定は呼び出し側で行う
	Get(ctx context.Context, key model.TileKey) (*model.TileCacheEntry, error)
	// Upsert 複数行をまとめて書き込む（同じキーは後勝ち）
	Upsert(ctx context.Context, entries []model.TileCacheEntry) error
	// Delete 1行を削除
	Delete(ctx context.Context, key model.TileKey) error
	// DeleteExpired expires_at <= now の行を削除し、削除件数を返す
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// HealthCheck ストアへの疎通確認
	HealthCheck(ctx context.Context) error
}
