package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"GymSearch-App/internal/domain/helper"
	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/domain/spatial"
	"GymSearch-App/internal/metrics"
)

// tileOutcome 確定したタイル1件分の結果（ワーカーからオーケストレータへ渡す）
type tileOutcome struct {
	Tile   model.Tile
	Venues []model.Venue
}

// TileWorkerPool 固定数のワーカーでジョブキューを処理する
// 1回の検索ごとに作成し、結果は out チャネルで受け渡す
type TileWorkerPool struct {
	provider repository.PlacesProvider
	cache    *TileCache
	index    *spatial.H3Index
	cfg      SearchConfig
	sleep    func(ctx context.Context, d time.Duration) error

	queue   *TileJobQueue
	session *searchSession
	out     chan<- tileOutcome
}

// NewTileWorkerPool 検索1回分のワーカープールを作成
func NewTileWorkerPool(
	provider repository.PlacesProvider,
	cache *TileCache,
	index *spatial.H3Index,
	cfg SearchConfig,
	queue *TileJobQueue,
	session *searchSession,
	out chan<- tileOutcome,
) *TileWorkerPool {
	return &TileWorkerPool{
		provider: provider,
		cache:    cache,
		index:    index,
		cfg:      cfg.withDefaults(),
		sleep:    sleepContext,
		queue:    queue,
		session:  session,
		out:      out,
	}
}

// Start ワーカーを起動する。キューが Close されると各ワーカーは終了する
func (p *TileWorkerPool) Start(ctx context.Context, g *errgroup.Group) {
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
}

func (p *TileWorkerPool) work(ctx context.Context) {
	for {
		job, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.process(ctx, job)
		p.queue.Done()
	}
}

// process ジョブ1件を処理する。失敗はこのジョブの中に閉じ込める
func (p *TileWorkerPool) process(ctx context.Context, job model.Job) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(jobKind(job), job.JobTile(), fmt.Errorf("panic: %v", r))
		}
	}()

	switch j := job.(type) {
	case model.TileJob:
		p.processTile(ctx, j)
	case model.PaginateJob:
		p.processPage(ctx, j)
	default:
		p.fail("unknown", job.JobTile(), fmt.Errorf("未知のジョブ種別: %T", job))
	}
}

func (p *TileWorkerPool) processTile(ctx context.Context, job model.TileJob) {
	tile := job.Tile
	key := tile.Key()
	p.session.update(func(s *model.SearchStats) { s.TilesProcessed++ })

	// 1. この検索内で確定済みか、永続キャッシュにあればそれを使う
	if venues, ok := p.session.lookup(key); ok {
		metrics.RecordCacheLookup("overlay", "hit")
		p.session.update(func(s *model.SearchStats) { s.CacheHits++ })
		p.complete("tile", tile, venues)
		return
	}
	if venues, ok := p.cache.Get(ctx, key); ok {
		p.session.resolve(key, venues)
		p.session.update(func(s *model.SearchStats) { s.CacheHits++ })
		p.complete("tile", tile, venues)
		return
	}

	// 2. ミスならプロバイダに問い合わせる
	p.session.update(func(s *model.SearchStats) {
		s.CacheMisses++
		s.ProviderCalls++
	})
	resp, err := p.provider.NearbySearch(ctx, repository.NearbySearchRequest{
		Location:     tile.Center,
		RadiusMeters: tile.RadiusMeters,
	})
	if err != nil {
		p.fail("tile", tile, err)
		return
	}
	p.session.update(func(s *model.SearchStats) { s.PagesFetched++ })

	// 3. 満杯のページに継続トークンが付いていればページングへ
	if resp.NextPageToken != "" && len(resp.Venues) >= p.cfg.PageSize && p.cfg.MaxPages > 1 {
		p.session.startAggregate(tile, resp.Venues)
		if p.queue.Push(model.PaginateJob{Tile: tile, PageToken: resp.NextPageToken, Page: 2}) {
			metrics.RecordTileJob("tile", "paginating")
			return
		}
		// 打ち切り済み: 1ページ目だけで確定させる（不完全なのでキャッシュしない）
		p.complete("tile", tile, p.session.finishAggregate(key))
		return
	}

	venues := helper.DedupByProviderID(resp.Venues)
	p.store(tile, venues)
	p.complete("tile", tile, venues)
}

func (p *TileWorkerPool) processPage(ctx context.Context, job model.PaginateJob) {
	tile := job.Tile
	key := tile.Key()

	// 継続トークンは発行直後には有効にならない
	if err := p.sleep(ctx, p.cfg.PageDelay); err != nil {
		p.abortPagination(job, err)
		return
	}

	p.session.update(func(s *model.SearchStats) { s.ProviderCalls++ })
	resp, err := p.provider.NearbySearch(ctx, repository.NearbySearchRequest{
		Location:     tile.Center,
		RadiusMeters: tile.RadiusMeters,
		PageToken:    job.PageToken,
	})
	if err != nil {
		p.abortPagination(job, err)
		return
	}
	p.session.update(func(s *model.SearchStats) { s.PagesFetched++ })
	p.session.appendAggregate(key, resp.Venues)

	if resp.NextPageToken != "" && job.Page < p.cfg.MaxPages {
		next := model.PaginateJob{Tile: tile, PageToken: resp.NextPageToken, Page: job.Page + 1}
		if p.queue.Push(next) {
			metrics.RecordTileJob("paginate", "paginating")
			return
		}
	}

	venues := p.session.finishAggregate(key)
	p.store(tile, venues)
	p.complete("paginate", tile, venues)
}

// abortPagination 途中のページ取得に失敗した場合、取得済みのページで確定させる（キャッシュはしない）
func (p *TileWorkerPool) abortPagination(job model.PaginateJob, err error) {
	p.fail("paginate", job.Tile, fmt.Errorf("%dページ目: %w", job.Page, err))
	venues := p.session.finishAggregate(job.Tile.Key())
	p.complete("paginate", job.Tile, venues)
}

// store この検索内のオーバーレイに登録し、永続キャッシュへの書き込みを予約する
func (p *TileWorkerPool) store(tile model.Tile, venues []model.Venue) {
	p.session.resolve(tile.Key(), venues)
	p.session.queueWrite(p.cache.NewEntry(tile, venues, p.cfg.CacheTTL))
}

// complete 飽和判定を行い、細分化するか結果として送る
func (p *TileWorkerPool) complete(kind string, tile model.Tile, venues []model.Venue) {
	if len(venues) >= p.cfg.SaturationThreshold && tile.RadiusMeters > p.cfg.MinTileRadiusMeters {
		if p.refine(tile) {
			p.session.update(func(s *model.SearchStats) { s.Refinements++ })
			metrics.RecordTileJob(kind, "refined")
			return
		}
	}

	metrics.RecordTileJob(kind, "done")
	if len(venues) == 0 {
		return
	}
	p.out <- tileOutcome{Tile: tile, Venues: venues}
}

// refine タイルを4つの子タイルに分割してキューに積む
// キューが閉じていて積めなかった場合は false（親の結果をそのまま使う）
func (p *TileWorkerPool) refine(tile model.Tile) bool {
	for _, child := range p.ChildTiles(tile) {
		if !p.queue.Push(model.TileJob{Tile: child}) {
			return false
		}
	}
	return true
}

// ChildTiles 子タイル4つ。半径は親の半分（下限 MinTileRadiusMeters）、
// 中心は親の中心から対角方向に子の半径の RefineOffsetFactor 倍だけずらす
func (p *TileWorkerPool) ChildTiles(tile model.Tile) []model.Tile {
	childRadius := tile.RadiusMeters / 2
	if childRadius < p.cfg.MinTileRadiusMeters {
		childRadius = p.cfg.MinTileRadiusMeters
	}
	axis := model.RefineOffsetFactor * float64(childRadius) / math.Sqrt2
	keyResolution := p.index.TileResolutionFor(childRadius)

	signs := [4][2]float64{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
	children := make([]model.Tile, 0, len(signs))
	for _, s := range signs {
		center := spatial.OffsetMeters(tile.Center, s[0]*axis, s[1]*axis)
		children = append(children, model.Tile{
			Center:       center,
			RadiusMeters: childRadius,
			Cell:         p.index.CellOf(center, keyResolution),
			Depth:        tile.Depth + 1,
		})
	}
	return children
}

func (p *TileWorkerPool) fail(kind string, tile model.Tile, err error) {
	p.session.update(func(s *model.SearchStats) { s.FailedJobs++ })
	metrics.RecordTileJob(kind, "failed")
	log.Printf("⚠️  [%s] タイル %s の処理に失敗したため空の結果として扱います: %v", p.session.requestID, tile.Key(), err)
}

func jobKind(job model.Job) string {
	switch job.(type) {
	case model.TileJob:
		return "tile"
	case model.PaginateJob:
		return "paginate"
	}
	return "unknown"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
