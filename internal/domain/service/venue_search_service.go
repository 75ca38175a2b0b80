package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"GymSearch-App/internal/domain/helper"
	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/domain/spatial"
	"GymSearch-App/internal/metrics"
)

// VenueSearchService タイル分割による並行検索のオーケストレータ
type VenueSearchService interface {
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error)
	PlanTiles(center model.LatLng, radiusMeters int) (*TilePlan, error)
}

// TilePlan 検索範囲を覆うタイルの計画
type TilePlan struct {
	Resolution int
	Rings      int
	Tiles      []model.Tile // 検索中心に近い順
}

type venueSearchServiceImpl struct {
	provider repository.PlacesProvider
	cache    *TileCache
	index    *spatial.H3Index
	cfg      SearchConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewVenueSearchService 新しい検索サービスを作成
func NewVenueSearchService(provider repository.PlacesProvider, cache *TileCache, index *spatial.H3Index, cfg SearchConfig) VenueSearchService {
	return &venueSearchServiceImpl{
		provider: provider,
		cache:    cache,
		index:    index,
		cfg:      cfg.withDefaults(),
		sleep:    sleepContext,
	}
}

// PlanTiles 検索半径から解像度を選び、円を覆うセル群をタイルに変換する
func (s *venueSearchServiceImpl) PlanTiles(center model.LatLng, radiusMeters int) (*TilePlan, error) {
	resolution := s.index.ResolutionFor(radiusMeters)
	cells, rings, err := s.coveringCells(center, radiusMeters, resolution)
	if err != nil {
		return nil, err
	}

	// セル数が多すぎる場合は1段粗くして作業量を抑える
	if len(cells) > s.cfg.MaxInitialCells {
		if coarser, ok := s.index.CoarserResolution(resolution); ok {
			log.Printf("⚠️  初期セル数 %d が上限 %d を超えたため解像度を %d → %d に下げます", len(cells), s.cfg.MaxInitialCells, resolution, coarser)
			resolution = coarser
			cells, rings, err = s.coveringCells(center, radiusMeters, resolution)
			if err != nil {
				return nil, err
			}
		}
	}

	tileRadius := s.index.TileRadiusFor(resolution)
	keyResolution := s.index.TileResolutionFor(tileRadius)
	tiles := make([]model.Tile, 0, len(cells))
	for _, cell := range cells {
		cellCenter, err := s.index.CellCenter(cell)
		if err != nil {
			return nil, err
		}
		// 検索円と交わらないタイルには円内の施設が無い
		if spatial.DistanceMeters(center, cellCenter)-float64(tileRadius) > float64(radiusMeters) {
			continue
		}
		tiles = append(tiles, model.Tile{
			Center:       cellCenter,
			RadiusMeters: tileRadius,
			Cell:         s.index.CellOf(cellCenter, keyResolution),
		})
	}
	if len(tiles) == 0 {
		return nil, model.ErrNoTiles
	}

	// 中心に近いタイルから処理する（タイムアウト時に近い結果が残るように）
	sort.SliceStable(tiles, func(i, j int) bool {
		return spatial.PlanarDistanceSquared(tiles[i].Center, center) < spatial.PlanarDistanceSquared(tiles[j].Center, center)
	})

	return &TilePlan{Resolution: resolution, Rings: rings, Tiles: tiles}, nil
}

func (s *venueSearchServiceImpl) coveringCells(center model.LatLng, radiusMeters, resolution int) ([]string, int, error) {
	rings := s.index.RingsNeeded(radiusMeters, resolution)
	cells, err := s.index.Disk(s.index.CellOf(center, resolution), rings)
	if err != nil {
		return nil, 0, fmt.Errorf("被覆セルの生成に失敗: %w", err)
	}
	return cells, rings, nil
}

// Search 周辺施設を検索する
// タイムアウトはエラーではなく、それまでに集まった結果を返す
func (s *venueSearchServiceImpl) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	// 認証情報が無い場合は何も返さずに即失敗させる
	if err := s.provider.CheckConfiguration(); err != nil {
		return nil, err
	}
	center := req.Center()
	if !spatial.ValidCoordinate(center) || req.RadiusMeters <= 0 {
		return nil, fmt.Errorf("%w: lat=%f lng=%f radius=%d", model.ErrInvalidSearchRequest, center.Lat, center.Lng, req.RadiusMeters)
	}

	requestID := uuid.NewString()
	start := time.Now()

	plan, err := s.PlanTiles(center, req.RadiusMeters)
	if err != nil {
		return nil, err
	}
	log.Printf("🚀 [%s] 施設検索開始: (%.5f, %.5f) 半径%dm 解像度%d リング%d タイル%d件",
		requestID, center.Lat, center.Lng, req.RadiusMeters, plan.Resolution, plan.Rings, len(plan.Tiles))

	timeout := s.cfg.Timeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session := newSearchSession(requestID)
	session.update(func(st *model.SearchStats) {
		st.Resolution = plan.Resolution
		st.Rings = plan.Rings
		st.InitialTiles = len(plan.Tiles)
	})

	queue := NewTileJobQueue()
	for _, tile := range plan.Tiles {
		queue.Push(model.TileJob{Tile: tile})
	}

	// ワーカーの結果はチャネル経由で集める
	results := make(chan tileOutcome, s.cfg.Workers*4)
	collected := make(chan []tileOutcome, 1)
	go func() {
		var outcomes []tileOutcome
		for o := range results {
			outcomes = append(outcomes, o)
		}
		collected <- outcomes
	}()

	pool := NewTileWorkerPool(s.provider, s.cache, s.index, s.cfg, queue, session, results)
	pool.sleep = s.sleep
	var g errgroup.Group
	pool.Start(searchCtx, &g)

	// drain バリア: ワーカーが追加するジョブも含めて全て終わるまで待つ
	timedOut := false
	if err := queue.Wait(searchCtx); err != nil {
		timedOut = true
		log.Printf("⏰ [%s] 検索がタイムアウトしました（残りジョブ%d件）。途中までの結果を返します", requestID, queue.Pending())
	}
	cancel()
	queue.Close()
	_ = g.Wait()
	close(results)
	outcomes := <-collected

	// キューに残ったままのページングは取得済みページで確定させる
	if partial := session.drainAggregates(); len(partial) > 0 {
		log.Printf("⚠️  [%s] ページング途中のタイル%d件を取得済みページで確定します", requestID, len(partial))
		outcomes = append(outcomes, partial...)
	}

	// キャッシュ書き込みは検索の成否に関わらずベストエフォートで1回にまとめる
	writes := session.takeWrites()
	s.flushCache(ctx, requestID, writes)

	venues := s.assemble(center, req.RadiusMeters, outcomes)

	stats := session.snapshot()
	stats.CacheWrites = len(writes)
	stats.TimedOut = timedOut
	stats.Duration = time.Since(start)
	metrics.RecordSearch(stats.Duration.Seconds(), len(venues), timedOut)

	log.Printf("✅ [%s] 施設検索完了: %d件 %v (キャッシュヒット:%d, API呼び出し:%d, 細分化:%d, 失敗:%d)",
		requestID, len(venues), stats.Duration, stats.CacheHits, stats.ProviderCalls, stats.Refinements, stats.FailedJobs)

	return &model.SearchResult{
		RequestID: requestID,
		Venues:    venues,
		Stats:     stats,
	}, nil
}

// flushCache 呼び出し元がキャンセルされていても書き込めるよう、独立したタイムアウトで実行する
func (s *venueSearchServiceImpl) flushCache(ctx context.Context, requestID string, writes []model.TileCacheEntry) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CacheFlushTimeout)
	defer cancel()

	if err := s.cache.PutBatch(flushCtx, writes); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Printf("⚠️  [%s] タイルキャッシュの書き込みがタイムアウトしました: %v", requestID, err)
			return
		}
		log.Printf("⚠️  [%s] タイルキャッシュの書き込みに失敗しました（検索結果には影響なし）: %v", requestID, err)
	}
}

// assemble 全タイルの結果を統合し、重複除去・円での切り取り・カテゴリ絞り込み・距離順ソートを行う
func (s *venueSearchServiceImpl) assemble(center model.LatLng, radiusMeters int, outcomes []tileOutcome) []model.VenueResult {
	var all []model.Venue
	for _, o := range outcomes {
		all = append(all, o.Venues...)
	}

	unique := helper.DedupByProviderID(all)
	inCircle := helper.TrimToCircle(center, radiusMeters, unique)
	venues := helper.FilterFitnessVenues(inCircle)
	helper.SortByDistance(venues)
	if venues == nil {
		venues = []model.VenueResult{}
	}
	return venues
}
