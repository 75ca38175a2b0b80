package service

import (
	"time"

	"GymSearch-App/internal/domain/model"
)

// SearchConfig 検索エンジンの調整値
type SearchConfig struct {
	Workers             int
	SaturationThreshold int
	MinTileRadiusMeters int
	MaxPages            int
	PageSize            int
	PageDelay           time.Duration
	Timeout             time.Duration
	CacheTTL            time.Duration
	MaxInitialCells     int
	CacheFlushTimeout   time.Duration
}

// DefaultSearchConfig 既定値
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Workers:             8,
		SaturationThreshold: model.SaturationThreshold,
		MinTileRadiusMeters: model.MinTileRadiusMeters,
		MaxPages:            model.MaxPages,
		PageSize:            model.ProviderPageSize,
		PageDelay:           model.PageTokenDelay,
		Timeout:             model.DefaultSearchTimeout,
		CacheTTL:            model.DefaultTileCacheTTL,
		MaxInitialCells:     model.MaxInitialCells,
		CacheFlushTimeout:   10 * time.Second,
	}
}

// withDefaults 0以下の項目を既定値で埋める
func (c SearchConfig) withDefaults() SearchConfig {
	d := DefaultSearchConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.SaturationThreshold <= 0 {
		c.SaturationThreshold = d.SaturationThreshold
	}
	if c.MinTileRadiusMeters <= 0 {
		c.MinTileRadiusMeters = d.MinTileRadiusMeters
	}
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.PageDelay <= 0 {
		c.PageDelay = d.PageDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.MaxInitialCells <= 0 {
		c.MaxInitialCells = d.MaxInitialCells
	}
	if c.CacheFlushTimeout <= 0 {
		c.CacheFlushTimeout = d.CacheFlushTimeout
	}
	return c
}
