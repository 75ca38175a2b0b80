package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"GymSearch-App/internal/domain/model"
)

// TileCacheRow tile_cache テーブルの1行
// (cache_key, latitude, longitude, tile_radius, results_json, created_at, expires_at)
type TileCacheRow struct {
	CacheKey    string    `json:"cache_key" firestore:"cache_key"`
	Latitude    float64   `json:"latitude" firestore:"latitude"`
	Longitude   float64   `json:"longitude" firestore:"longitude"`
	TileRadius  int       `json:"tile_radius" firestore:"tile_radius"`
	ResultsJSON string    `json:"results_json" firestore:"results_json"`
	CreatedAt   time.Time `json:"created_at" firestore:"created_at"`
	ExpiresAt   time.Time `json:"expires_at" firestore:"expires_at"`
}

// ToTileCacheRow model.TileCacheEntry を保存用の行に変換
func ToTileCacheRow(entry model.TileCacheEntry) (*TileCacheRow, error) {
	venues := entry.Venues
	if venues == nil {
		venues = []model.Venue{}
	}
	data, err := json.Marshal(venues)
	if err != nil {
		return nil, fmt.Errorf("results_json マーシャルエラー: %w", err)
	}
	return &TileCacheRow{
		CacheKey:    entry.Key.String(),
		Latitude:    entry.Center.Lat,
		Longitude:   entry.Center.Lng,
		TileRadius:  entry.Key.RadiusMeters,
		ResultsJSON: string(data),
		CreatedAt:   entry.CreatedAt.UTC(),
		ExpiresAt:   entry.ExpiresAt.UTC(),
	}, nil
}

// ToEntry 保存行を model.TileCacheEntry に変換
func (row *TileCacheRow) ToEntry() (*model.TileCacheEntry, error) {
	key, err := model.ParseTileKey(row.CacheKey)
	if err != nil {
		return nil, err
	}

	var venues []model.Venue
	if err := json.Unmarshal([]byte(row.ResultsJSON), &venues); err != nil {
		return nil, fmt.Errorf("results_json パースエラー (%s): %w", row.CacheKey, err)
	}

	return &model.TileCacheEntry{
		Key:       key,
		Center:    model.LatLng{Lat: row.Latitude, Lng: row.Longitude},
		Venues:    venues,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// lastWriteWins 同じキーのエントリを後勝ちで1件に畳む（出現順は最初の位置を保つ）
func lastWriteWins(entries []model.TileCacheEntry) []model.TileCacheEntry {
	index := make(map[model.TileKey]int, len(entries))
	result := make([]model.TileCacheEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.Key]; ok {
			result[i] = e
			continue
		}
		index[e.Key] = len(result)
		result = append(result, e)
	}
	return result
}
