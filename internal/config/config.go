package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"GymSearch-App/internal/domain/service"
)

// キャッシュストアの種類
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendSupabase  = "supabase"
	BackendFirestore = "firestore"
	BackendRedis     = "redis"
)

// Config 環境変数から読み込むアプリケーション設定
type Config struct {
	Port string `validate:"required,numeric"`

	PlacesAPIKey  string
	PlacesBaseURL string `validate:"required,url"`

	TileCacheBackend string `validate:"required,oneof=memory postgres supabase firestore redis"`
	DatabaseURL      string `validate:"required_if=TileCacheBackend postgres"`
	SupabaseURL      string `validate:"required_if=TileCacheBackend supabase"`
	SupabaseAnonKey  string `validate:"required_if=TileCacheBackend supabase"`
	SupabaseDBPass   string
	FirestoreProject string `validate:"required_if=TileCacheBackend firestore"`
	FirestoreCreds   string
	RedisAddr        string `validate:"required_if=TileCacheBackend redis"`
	RedisPassword    string
	MemoryCacheSize  int `validate:"min=1"`

	PlacesMaxConcurrency int           `validate:"min=1,max=100"`
	PlacesMinInterval    time.Duration
	PurgeInterval        time.Duration

	Search service.SearchConfig
}

// Load .env（あれば）と環境変数から設定を読み込み、検証する
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv getenv から設定を組み立てる
func FromEnv(getenv func(string) string) (*Config, error) {
	r := envReader{getenv: getenv}
	defaults := service.DefaultSearchConfig()

	cfg := &Config{
		Port:             r.str("PORT", "8080"),
		PlacesAPIKey:     r.str("GOOGLE_PLACES_API_KEY", ""),
		PlacesBaseURL:    r.str("GOOGLE_PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		TileCacheBackend: r.str("TILE_CACHE_BACKEND", BackendMemory),
		DatabaseURL:      r.str("DATABASE_URL", ""),
		SupabaseURL:      r.str("SUPABASE_URL", ""),
		SupabaseAnonKey:  r.str("SUPABASE_ANON_KEY", ""),
		SupabaseDBPass:   r.str("SUPABASE_DB_PASSWORD", ""),
		FirestoreProject: r.str("FIRESTORE_PROJECT_ID", ""),
		FirestoreCreds:   r.str("GOOGLE_APPLICATION_CREDENTIALS", ""),
		RedisAddr:        r.str("REDIS_ADDR", ""),
		RedisPassword:    r.str("REDIS_PASSWORD", ""),
		MemoryCacheSize:  r.integer("MEMORY_CACHE_SIZE", 10000),

		PlacesMaxConcurrency: r.integer("PLACES_MAX_CONCURRENCY", 4),
		PlacesMinInterval:    r.millis("PLACES_MIN_INTERVAL_MS", 100*time.Millisecond),
		PurgeInterval:        time.Duration(r.integer("TILE_CACHE_PURGE_INTERVAL_MINUTES", 60)) * time.Minute,

		Search: service.SearchConfig{
			Workers:             r.integer("SEARCH_WORKERS", defaults.Workers),
			SaturationThreshold: r.integer("SATURATION_THRESHOLD", defaults.SaturationThreshold),
			MinTileRadiusMeters: r.integer("MIN_TILE_RADIUS_METERS", defaults.MinTileRadiusMeters),
			MaxPages:            r.integer("MAX_PAGES", defaults.MaxPages),
			PageSize:            defaults.PageSize,
			PageDelay:           r.millis("PLACES_PAGE_DELAY_MS", defaults.PageDelay),
			Timeout:             time.Duration(r.integer("SEARCH_TIMEOUT_SECONDS", int(defaults.Timeout/time.Second))) * time.Second,
			CacheTTL:            time.Duration(r.integer("TILE_CACHE_TTL_HOURS", int(defaults.CacheTTL/time.Hour))) * time.Hour,
			MaxInitialCells:     defaults.MaxInitialCells,
			CacheFlushTimeout:   defaults.CacheFlushTimeout,
		},
	}
	if len(r.errs) > 0 {
		return nil, fmt.Errorf("環境変数の形式が正しくありません: %v", r.errs)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗しました: %w", err)
	}
	if err := validateSearch(cfg.Search); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateSearch(s service.SearchConfig) error {
	switch {
	case s.Workers < 1:
		return fmt.Errorf("SEARCH_WORKERS は1以上を指定してください: %d", s.Workers)
	case s.SaturationThreshold < 1:
		return fmt.Errorf("SATURATION_THRESHOLD は1以上を指定してください: %d", s.SaturationThreshold)
	case s.MinTileRadiusMeters < 1:
		return fmt.Errorf("MIN_TILE_RADIUS_METERS は1以上を指定してください: %d", s.MinTileRadiusMeters)
	case s.MaxPages < 1:
		return fmt.Errorf("MAX_PAGES は1以上を指定してください: %d", s.MaxPages)
	case s.Timeout <= 0:
		return fmt.Errorf("SEARCH_TIMEOUT_SECONDS は1以上を指定してください")
	case s.CacheTTL <= 0:
		return fmt.Errorf("TILE_CACHE_TTL_HOURS は1以上を指定してください")
	}
	return nil
}

type envReader struct {
	getenv func(string) string
	errs   []error
}

func (r *envReader) str(key, def string) string {
	if v := r.getenv(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, v, err))
		return def
	}
	return n
}

func (r *envReader) millis(key string, def time.Duration) time.Duration {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, v, err))
		return def
	}
	return time.Duration(n) * time.Millisecond
}
