package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tile 検索作業の単位（中心点＋検索半径）
type Tile struct {
	Center       LatLng `json:"center"`
	RadiusMeters int    `json:"radius_meters"`
	Cell         string `json:"cell"`  // 中心と半径から決まるH3セル
	Depth        int    `json:"depth"` // 細分化の深さ（グリッド生成時は0）
}

// Key キャッシュキーを取得
func (t Tile) Key() TileKey {
	return TileKey{Cell: t.Cell, RadiusMeters: t.RadiusMeters}
}

// TileKey タイルキャッシュのキー (cell, radius)
type TileKey struct {
	Cell         string
	RadiusMeters int
}

// String cache_key 列の表現 "<cell>:<radius>"
func (k TileKey) String() string {
	return fmt.Sprintf("%s:%d", k.Cell, k.RadiusMeters)
}

// TileCacheEntry タイルキャッシュの1行
type TileCacheEntry struct {
	Key       TileKey
	Center    LatLng
	Venues    []Venue
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired now 時点で有効期限切れかどうか（now >= expires_at で無効）
func (e *TileCacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Job ワーカーが処理するジョブ（TileJob または PaginateJob）
type Job interface {
	JobTile() Tile
	isJob()
}

// TileJob タイル1件の検索ジョブ
type TileJob struct {
	Tile Tile
}

// PaginateJob 継続トークンによる次ページ取得ジョブ
type PaginateJob struct {
	Tile      Tile
	PageToken string
	Page      int // 取得するページ番号（2ページ目から）
}

func (j TileJob) JobTile() Tile     { return j.Tile }
func (j PaginateJob) JobTile() Tile { return j.Tile }

func (TileJob) isJob()     {}
func (PaginateJob) isJob() {}

// ParseTileKey "<cell>:<radius>" 形式の cache_key を分解
func ParseTileKey(s string) (TileKey, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return TileKey{}, fmt.Errorf("不正なcache_key: %q", s)
	}
	radius, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return TileKey{}, fmt.Errorf("不正なcache_key: %q: %w", s, err)
	}
	return TileKey{Cell: s[:i], RadiusMeters: radius}, nil
}
