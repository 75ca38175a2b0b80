package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/domain/spatial"
)

func newTestSearchService(provider repository.PlacesProvider, repo repository.TileCacheRepository, cfg SearchConfig) *venueSearchServiceImpl {
	svc := NewVenueSearchService(provider, NewTileCache(repo, time.Hour), spatial.NewH3Index(), cfg).(*venueSearchServiceImpl)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return svc
}

func staticProvider(venues []model.Venue) *fakePlacesProvider {
	return &fakePlacesProvider{
		handler: func(ctx context.Context, req repository.NearbySearchRequest) (*repository.NearbySearchResponse, error) {
			return &repository.NearbySearchResponse{Status: "OK", Venues: venues}, nil
		},
	}
}

func resultIDs(result *model.SearchResult) []string {
	ids := make([]string, len(result.Venues))
	for i, v := range result.Venues {
		ids[i] = v.ProviderID
	}
	return ids
}

func TestVenueSearchService_LosAngelesScenario(t *testing.T) {
	var venues []model.Venue
	for i := 1; i <= 10; i++ {
		loc := spatial.OffsetMeters(laCenter, float64(250*i), float64(-100*i))
		venues = append(venues, gymVenues(fmt.Sprintf("la%d", i), 0, 1, loc)...)
	}
	provider := staticProvider(venues)
	svc := newTestSearchService(provider, newFakeTileCacheRepository(), SearchConfig{})

	result, err := svc.Search(context.Background(), model.SearchRequest{Latitude: 34.0522, Longitude: -118.2437, RadiusMeters: 5000})
	require.NoError(t, err)

	require.Len(t, result.Venues, 10)
	assert.True(t, sort.SliceIsSorted(result.Venues, func(i, j int) bool {
		return result.Venues[i].DistanceMeters < result.Venues[j].DistanceMeters
	}))
	for _, v := range result.Venues {
		assert.LessOrEqual(t, v.DistanceMeters, 5000.0)
		assert.InDelta(t, spatial.DistanceMeters(laCenter, v.Location), v.DistanceMeters, 1e-6)
	}
	assert.Equal(t, "la1-0", result.Venues[0].ProviderID)
	assert.NotEmpty(t, result.RequestID)
	assert.False(t, result.Stats.TimedOut)
	assert.Equal(t, result.Stats.InitialTiles, provider.callCount())
}

func TestVenueSearchService_CircleTrim(t *testing.T) {
	inside := gymVenues("inside", 0, 1, spatial.OffsetMeters(laCenter, 0, 4990))
	outside := gymVenues("outside", 0, 1, spatial.OffsetMeters(laCenter, 0, 5001))
	require.Greater(t, spatial.DistanceMeters(laCenter, outside[0].Location), 5000.0)

	svc := newTestSearchService(staticProvider(append(inside, outside...)), newFakeTileCacheRepository(), SearchConfig{})

	result, err := svc.Search(context.Background(), model.SearchRequest{Latitude: laCenter.Lat, Longitude: laCenter.Lng, RadiusMeters: 5000})
	require.NoError(t, err)
	assert.Equal(t, []string{"inside-0"}, resultIDs(result))
}

func TestVenueSearchService_CategoryFilter(t *testing.T) {
	venues := []model.Venue{
		{ProviderID: "gym", Name: "Iron Works", Location: laCenter, CategoryTags: []string{"gym"}},
		{ProviderID: "pool", Name: "Westside Aquatic Center", Location: laCenter, CategoryTags: []string{"gym"}},
		{ProviderID: "clinic", Name: "Sports Rehab", Location: laCenter, CategoryTags: []string{"physiotherapist"}},
		{ProviderID: "yoga", Name: "Sunrise Yoga", Location: laCenter, CategoryTags: []string{"point_of_interest"}},
	}
	svc := newTestSearchService(staticProvider(venues), newFakeTileCacheRepository(), SearchConfig{})

	result, err := svc.Search(context.Background(), model.SearchRequest{Latitude: laCenter.Lat, Longitude: laCenter.Lng, RadiusMeters: 1000})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gym", "yoga"}, resultIDs(result))
}

func TestVenueSearchService_TransientErrorDoesNotFailSearch(t *testing.T) {
	repo := newFakeTileCacheRepository()
	probe := newTestSearchService(staticProvider(nil), repo, SearchConfig{})
	plan, err := probe.PlanTiles(laCenter, 3000)
	require.NoError(t, err)
	require.Greater(t, len(plan.Tiles), 1)
	failing := plan.Tiles[0].Center

	provider := &fakePlacesProvider{
		handler: func(ctx context.Context, req repository.NearbySearchRequest) (*repository.NearbySearchResponse, error) {
			if req.Location == failing {
				return nil, &model.TransientFetchError{Op: "Nearby Search", StatusCode: 503}
			}
			id := fmt.Sprintf("tile-%.6f-%.6f", req.Location.Lat, req.Location.Lng)
			return &repository.NearbySearchResponse{Status: "OK", Venues: gymVenues(id, 0, 1, laCenter)}, nil
		},
	}
	svc := newTestSearchService(provider, repo, SearchConfig{})

	result, err := svc.Search(context.Background(), model.SearchRequest{Latitude: laCenter.Lat, Longitude: laCenter.Lng, RadiusMeters: 3000})
	require.NoError(t, err)
	assert.Len(t, result.Venues, len(plan.Tiles)-1)
	assert.Equal(t, 1, result.Stats.FailedJobs)
	assert.Equal(t, len(plan.Tiles)-1, result.Stats.CacheWrites)
}

func TestVenueSearchService_DedupIsIdempotent(t *testing.T) {
	handler := func(ctx context.Context, req repository.NearbySearchRequest) (*repository.NearbySearchResponse, error) {
		// 全タイル共通の施設と、タイル固有の施設を混ぜる
		venues := gymVenues("shared", 0, 5, spatial.OffsetMeters(laCenter, 100, 100))
		id := fmt.Sprintf("own-%.6f-%.6f", req.Location.Lat, req.Location.Lng)
		venues = append(venues, gymVenues(id, 0, 1, laCenter)...)
		return &repository.NearbySearchResponse{Status: "OK", Venues: venues}, nil
	}

	var runs [][]string
	for _, workers := range []int{1, 8} {
		svc := newTestSearchService(&fakePlacesProvider{handler: handler}, newFakeTileCacheRepository(), SearchConfig{Workers: workers})
		result, err := svc.Search(context.Background(), model.SearchRequest{Latitude: laCenter.Lat, Longitude: laCenter.Lng, RadiusMeters: 3000})
		require.NoError(t, err)

		ids := resultIDs(result)
		seen := make(map[string]struct{})
		for _, id := range ids {
			_, dup := seen[id]
			assert.False(t, dup, "重複: %s", id)
			seen[id] = struct{}{}
		}
		sort.Strings(ids)
		runs = append(runs, ids)
	}
	assert.Equal(t, runs[0], runs[1])
}

func TestVenueSearchService_SecondSearchIsServedFromCache(t *testing.T) {
	repo := newFakeTileCacheRepository()
	provider := staticProvider(gymVenues("v", 0, 3, laCenter))
	svc := newTestSearchService(provider, repo, SearchConfig{})
	req := model.SearchRequest{Latitude: laCenter.Lat, Longitude: laCenter.Lng, RadiusMeters: 2000}

	first, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	calls := provider.callCount()
	assert.Equal(t, first.Stats.InitialTiles, first.Stats.CacheWrites)
	assert.Equal(t, 1, repo.upserts, "書き込みは検索ごとに1回にまとめる")

	second, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, calls, provider.callCount(), "2回目はプロバイダを呼ばない")
	assert.Equal(t, second.Stats.InitialTiles, second.Stats.CacheHits)
	assert.Equal(t, resultIDs(first), resultIDs(second))
}

func TestVenueSearchService_TimeoutReturnsPartialResult(t *testing.T) {
	probe := newTestSearchService(staticProvider(nil), newFakeTileCacheRepository(), SearchConfig{})
	plan, err := probe.PlanTiles(laCenter, 3000)
	require.NoError(t, err)
	fast := plan.Tiles[0].Center

	provider := &fakePlacesProvider{
		handler: func(ctx context.Context, req repository.NearbySearchRequest) (*repository.NearbySearchResponse, error) {
			if req.Location == fast {
				return &repository.NearbySearchResponse{Status: "OK", Venues: gymVenues("fast", 0, 1, laCenter)}, nil
			}
			<-ctx.Done()
			return nil, &model.TransientFetchError{Op: "Nearby Search", Err: ctx.Err()}
		},
	}
	svc := newTestSearchService(provider, newFakeTileCacheRepository(), SearchConfig{Workers: 1, Timeout: 200 * time.Millisecond})

	start := time.Now()
	result, err := svc.Search(context.Background(), model.SearchRequest{Latitude: laCenter.Lat, Longitude: laCenter.Lng, RadiusMeters: 3000})
	require.NoError(t, err, "タイムアウトはエラーではない")
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.True(t, result.Stats.TimedOut)
	assert.Equal(t, []string{"fast-0"}, resultIDs(result))
	assert.Equal(t, 1, result.Stats.CacheWrites, "完了したタイルはキャッシュされる")
}

func TestVenueSearchService_TimeoutKeepsQueuedPaginationPages(t *testing.T) {
	probe := newTestSearchService(staticProvider(nil), newFakeTileCacheRepository(), SearchConfig{})
	plan, err := probe.PlanTiles(laCenter, 3000)
	require.NoError(t, err)
	closest := plan.Tiles[0].Center

	// 最も近いタイルだけが満杯のページと継続トークンを返し、他は期限まで応答しない
	provider := &fakePlacesProvider{
		handler: func(ctx context.Context, req repository.NearbySearchRequest) (*repository.NearbySearchResponse, error) {
			if req.Location == closest && req.PageToken == "" {
				return &repository.NearbySearchResponse{
					Status:        "OK",
					Venues:        gymVenues("near", 0, 20, laCenter),
					NextPageToken: "page-2",
				}, nil
			}
			<-ctx.Done()
			return nil, &model.TransientFetchError{Op: "Nearby Search", Err: ctx.Err()}
		},
	}
	svc := newTestSearchService(provider, newFakeTileCacheRepository(), SearchConfig{Workers: 1, Timeout: 200 * time.Millisecond})

	result, err := svc.Search(context.Background(), model.SearchRequest{Latitude: laCenter.Lat, Longitude: laCenter.Lng, RadiusMeters: 3000})
	require.NoError(t, err)

	assert.True(t, result.Stats.TimedOut)
	assert.Len(t, result.Venues, 20, "取得済みの1ページ目は捨てない")
	assert.Equal(t, 1, result.Stats.PagesFetched)
	assert.Zero(t, result.Stats.CacheWrites, "ページング途中の結果はキャッシュしない")
}

func TestVenueSearchService_MissingAPIKeyFailsFast(t *testing.T) {
	provider := staticProvider(nil)
	provider.missingKey = true
	svc := newTestSearchService(provider, newFakeTileCacheRepository(), SearchConfig{})

	result, err := svc.Search(context.Background(), model.SearchRequest{Latitude: laCenter.Lat, Longitude: laCenter.Lng, RadiusMeters: 1000})
	assert.ErrorIs(t, err, model.ErrMissingAPIKey)
	assert.Nil(t, result)
	assert.Zero(t, provider.callCount())
}

func TestVenueSearchService_InvalidRequest(t *testing.T) {
	svc := newTestSearchService(staticProvider(nil), newFakeTileCacheRepository(), SearchConfig{})

	_, err := svc.Search(context.Background(), model.SearchRequest{Latitude: 91, Longitude: 0, RadiusMeters: 1000})
	assert.ErrorIs(t, err, model.ErrInvalidSearchRequest)

	_, err = svc.Search(context.Background(), model.SearchRequest{Latitude: 0, Longitude: 0, RadiusMeters: 0})
	assert.ErrorIs(t, err, model.ErrInvalidSearchRequest)
}

func TestVenueSearchService_CacheStoreDownStillSearches(t *testing.T) {
	repo := newFakeTileCacheRepository()
	repo.err = fmt.Errorf("connection refused")
	svc := newTestSearchService(staticProvider(gymVenues("v", 0, 2, laCenter)), repo, SearchConfig{})

	result, err := svc.Search(context.Background(), model.SearchRequest{Latitude: laCenter.Lat, Longitude: laCenter.Lng, RadiusMeters: 1000})
	require.NoError(t, err)
	assert.Len(t, result.Venues, 2)
}

func TestVenueSearchService_PlanTiles(t *testing.T) {
	svc := newTestSearchService(staticProvider(nil), newFakeTileCacheRepository(), SearchConfig{})

	t.Run("中心に近い順に並ぶ", func(t *testing.T) {
		plan, err := svc.PlanTiles(laCenter, 5000)
		require.NoError(t, err)
		require.NotEmpty(t, plan.Tiles)
		for i := 1; i < len(plan.Tiles); i++ {
			assert.LessOrEqual(t,
				spatial.PlanarDistanceSquared(plan.Tiles[i-1].Center, laCenter),
				spatial.PlanarDistanceSquared(plan.Tiles[i].Center, laCenter))
		}
		for _, tile := range plan.Tiles {
			assert.Equal(t, svc.index.TileRadiusFor(plan.Resolution), tile.RadiusMeters)
			assert.Zero(t, tile.Depth)
		}
	})

	t.Run("セル数が上限を超えると1段粗くする", func(t *testing.T) {
		limited := newTestSearchService(staticProvider(nil), newFakeTileCacheRepository(), SearchConfig{MaxInitialCells: 5})
		normal, err := svc.PlanTiles(laCenter, 5000)
		require.NoError(t, err)
		coarse, err := limited.PlanTiles(laCenter, 5000)
		require.NoError(t, err)
		assert.Equal(t, normal.Resolution-1, coarse.Resolution)
	})
}

// 検索円内の点は、枝刈り後のいずれかのタイルの半径内にある
func TestVenueSearchService_PlanTilesCoversSearchCircle(t *testing.T) {
	svc := newTestSearchService(staticProvider(nil), newFakeTileCacheRepository(), SearchConfig{})
	rng := rand.New(rand.NewSource(11))

	centers := []model.LatLng{
		laCenter,
		{Lat: 35.6812, Lng: 139.7671},
		{Lat: -16.5, Lng: 179.995},
		{Lat: 64.1466, Lng: -21.9426},
	}
	for _, center := range centers {
		for _, radius := range []int{800, 3000, 5000, 12000} {
			plan, err := svc.PlanTiles(center, radius)
			require.NoError(t, err)

			for i := 0; i < 300; i++ {
				d := float64(radius) * math.Sqrt(rng.Float64())
				theta := rng.Float64() * 2 * math.Pi
				p := spatial.OffsetMeters(center, d*math.Cos(theta), d*math.Sin(theta))

				covered := false
				for _, tile := range plan.Tiles {
					if spatial.DistanceMeters(tile.Center, p) <= float64(tile.RadiusMeters) {
						covered = true
						break
					}
				}
				require.True(t, covered, "center=%v radius=%d point=%v がどのタイルにも含まれません", center, radius, p)
			}
		}
	}
}

func TestVenueSearchService_PlanTilesAcrossAntimeridian(t *testing.T) {
	svc := newTestSearchService(staticProvider(nil), newFakeTileCacheRepository(), SearchConfig{})
	center := model.LatLng{Lat: -16.5, Lng: 179.995}

	plan, err := svc.PlanTiles(center, 3000)
	require.NoError(t, err)

	east, west := 0, 0
	for i, tile := range plan.Tiles {
		assert.True(t, spatial.ValidCoordinate(tile.Center), "tile=%v", tile.Center)
		if tile.Center.Lng < 0 {
			west++
		} else {
			east++
		}
		if i > 0 {
			// 並べ替えは近似距離なので数メートルの逆転は許容する
			assert.LessOrEqual(t,
				spatial.DistanceMeters(center, plan.Tiles[i-1].Center),
				spatial.DistanceMeters(center, tile.Center)+25, "index=%d", i)
		}
	}
	assert.Positive(t, east)
	assert.Positive(t, west, "日付変更線の向こう側のタイルも含まれる")
}
