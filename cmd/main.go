package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"GymSearch-App/internal/config"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/domain/service"
	"GymSearch-App/internal/domain/spatial"
	"GymSearch-App/internal/handler"
	"GymSearch-App/internal/infrastructure/database"
	"GymSearch-App/internal/infrastructure/firestore"
	"GymSearch-App/internal/infrastructure/places"
	"GymSearch-App/internal/infrastructure/redis"
	repoImpl "GymSearch-App/internal/repository"
	"GymSearch-App/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 設定の読み込みに失敗: %v", err)
	}
	if cfg.PlacesAPIKey == "" {
		fmt.Println("⚠️  GOOGLE_PLACES_API_KEY が設定されていません。検索APIはエラーを返します")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// タイルキャッシュのストアを初期化
	fmt.Printf("Initializing tile cache store (%s)...\n", cfg.TileCacheBackend)
	tileRepo, closeStore, err := newTileCacheRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ タイルキャッシュストアの初期化に失敗: %v", err)
	}
	defer closeStore()

	if err := tileRepo.HealthCheck(ctx); err != nil {
		log.Fatalf("❌ タイルキャッシュストアのヘルスチェック失敗: %v", err)
	}
	fmt.Println("✅ Tile cache store connection successful!")

	// プロバイダと検索エンジンを組み立てる
	rateLimitedClient := places.NewRateLimitedClient(nil, cfg.PlacesMinInterval, cfg.PlacesMaxConcurrency)
	provider := places.NewGooglePlacesProvider(cfg.PlacesAPIKey, cfg.PlacesBaseURL, rateLimitedClient)
	tileCache := service.NewTileCache(tileRepo, cfg.Search.CacheTTL)
	searchService := service.NewVenueSearchService(provider, tileCache, spatial.NewH3Index(), cfg.Search)
	searchUseCase := usecase.NewVenueSearchUseCase(searchService, provider, tileCache)

	go runPurgeLoop(ctx, searchUseCase, cfg.PurgeInterval)

	// HTTPハンドラーの設定
	r := gin.Default()
	handler.NewVenueSearchHandler(searchUseCase).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		fmt.Printf("GymSearch-App server starting on :%s...\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ サーバーの起動に失敗: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 シャットダウンしています...")

	// 検索のタイムアウト分は処理中のリクエストを待つ
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Search.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  シャットダウンに失敗: %v", err)
	}
}

// newTileCacheRepository 設定に応じたタイルキャッシュのストアを作成する
func newTileCacheRepository(ctx context.Context, cfg *config.Config) (repository.TileCacheRepository, func(), error) {
	noop := func() {}

	switch cfg.TileCacheBackend {
	case config.BackendPostgres, config.BackendSupabase:
		if cfg.TileCacheBackend == config.BackendSupabase && cfg.SupabaseDBPass == "" {
			// DBパスワードが無い場合はREST経由
			client, err := database.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
			if err != nil {
				return nil, noop, err
			}
			return repoImpl.NewSupabaseTileCacheRepository(client), noop, nil
		}

		dsn := cfg.DatabaseURL
		if cfg.TileCacheBackend == config.BackendSupabase {
			var err error
			if dsn, err = database.BuildSupabaseDSN(cfg.SupabaseURL, cfg.SupabaseDBPass); err != nil {
				return nil, noop, err
			}
		}
		client, err := database.NewPostgreSQLClientWithRetry(dsn, 3, 2*time.Second)
		if err != nil {
			return nil, noop, err
		}
		repo := repoImpl.NewPostgresTileCacheRepository(client)
		if err := repo.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, noop, err
		}
		return repo, func() { client.Close() }, nil

	case config.BackendFirestore:
		client, err := firestore.NewFirestoreClient(ctx, cfg.FirestoreProject, cfg.FirestoreCreds)
		if err != nil {
			return nil, noop, err
		}
		return repoImpl.NewFirestoreTileCacheRepository(client.GetClient()), func() { client.Close() }, nil

	case config.BackendRedis:
		client, err := redis.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, noop, err
		}
		return repoImpl.NewRedisTileCacheRepository(client.GetClient()), func() { client.Close() }, nil

	default:
		repo, err := repoImpl.NewMemoryTileCacheRepository(cfg.MemoryCacheSize)
		if err != nil {
			return nil, noop, err
		}
		return repo, noop, nil
	}
}

// runPurgeLoop 期限切れのタイルキャッシュを定期的に削除する（interval が0なら何もしない）
func runPurgeLoop(ctx context.Context, uc usecase.VenueSearchUseCase, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := uc.PurgeTileCache(ctx); err != nil {
				log.Printf("⚠️  定期削除に失敗: %v", err)
			}
		}
	}
}
