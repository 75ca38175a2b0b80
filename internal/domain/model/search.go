package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var searchValidator = validator.New()

// SearchRequest 周辺施設検索のリクエスト
type SearchRequest struct {
	Latitude       float64 `json:"lat" form:"lat" validate:"min=-90,max=90"`
	Longitude      float64 `json:"lng" form:"lng" validate:"min=-180,max=180"`
	RadiusMeters   int     `json:"radius" form:"radius" validate:"required,min=1,max=50000"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty" form:"timeout_seconds" validate:"min=0,max=600"`
}

// Validate 座標・半径の範囲をチェック
func (r *SearchRequest) Validate() error {
	if err := searchValidator.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSearchRequest, err)
	}
	return nil
}

// Center 検索中心
func (r *SearchRequest) Center() LatLng {
	return LatLng{Lat: r.Latitude, Lng: r.Longitude}
}

// SearchStats 1回の検索の統計情報
type SearchStats struct {
	Resolution     int           `json:"resolution"`
	Rings          int           `json:"rings"`
	InitialTiles   int           `json:"initial_tiles"`
	TilesProcessed int           `json:"tiles_processed"`
	CacheHits      int           `json:"cache_hits"`
	CacheMisses    int           `json:"cache_misses"`
	ProviderCalls  int           `json:"provider_calls"`
	PagesFetched   int           `json:"pages_fetched"`
	Refinements    int           `json:"refinements"`
	FailedJobs     int           `json:"failed_jobs"`
	CacheWrites    int           `json:"cache_writes"`
	TimedOut       bool          `json:"timed_out"`
	Duration       time.Duration `json:"duration_ns"`
}

// SearchResult 検索結果（距離の昇順、provider_id で一意）
type SearchResult struct {
	RequestID string        `json:"request_id"`
	Venues    []VenueResult `json:"venues"`
	Stats     SearchStats   `json:"stats"`
}
