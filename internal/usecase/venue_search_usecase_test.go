package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/domain/service"
	repoImpl "GymSearch-App/internal/repository"
)

type stubSearchService struct {
	called bool
	result *model.SearchResult
	err    error
}

func (s *stubSearchService) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	s.called = true
	return s.result, s.err
}

func (s *stubSearchService) PlanTiles(center model.LatLng, radiusMeters int) (*service.TilePlan, error) {
	return nil, nil
}

type stubProvider struct {
	missingKey bool
	details    *model.VenueDetails
	err        error
}

func (p *stubProvider) CheckConfiguration() error {
	if p.missingKey {
		return model.ErrMissingAPIKey
	}
	return nil
}

func (p *stubProvider) NearbySearch(ctx context.Context, req repository.NearbySearchRequest) (*repository.NearbySearchResponse, error) {
	return &repository.NearbySearchResponse{Status: "ZERO_RESULTS"}, nil
}

func (p *stubProvider) PlaceDetails(ctx context.Context, placeID string) (*model.VenueDetails, error) {
	return p.details, p.err
}

func newTestUseCase(t *testing.T, svc service.VenueSearchService, provider repository.PlacesProvider) VenueSearchUseCase {
	t.Helper()
	repo, err := repoImpl.NewMemoryTileCacheRepository(16)
	require.NoError(t, err)
	return NewVenueSearchUseCase(svc, provider, service.NewTileCache(repo, time.Hour))
}

func TestVenueSearchUseCase_Search(t *testing.T) {
	t.Run("不正なリクエストはサービスを呼ばない", func(t *testing.T) {
		svc := &stubSearchService{}
		uc := newTestUseCase(t, svc, &stubProvider{})

		_, err := uc.Search(context.Background(), &model.SearchRequest{Latitude: 120, Longitude: 0, RadiusMeters: 1000})
		assert.ErrorIs(t, err, model.ErrInvalidSearchRequest)

		_, err = uc.Search(context.Background(), &model.SearchRequest{Latitude: 35, Longitude: 139, RadiusMeters: 60000})
		assert.ErrorIs(t, err, model.ErrInvalidSearchRequest)
		assert.False(t, svc.called)
	})

	t.Run("サービスの結果をそのまま返す", func(t *testing.T) {
		svc := &stubSearchService{result: &model.SearchResult{RequestID: "req-1"}}
		uc := newTestUseCase(t, svc, &stubProvider{})

		result, err := uc.Search(context.Background(), &model.SearchRequest{Latitude: 35.68, Longitude: 139.76, RadiusMeters: 1000})
		require.NoError(t, err)
		assert.Equal(t, "req-1", result.RequestID)
	})

	t.Run("設定エラーは呼び出し元まで伝わる", func(t *testing.T) {
		svc := &stubSearchService{err: model.ErrMissingAPIKey}
		uc := newTestUseCase(t, svc, &stubProvider{})

		_, err := uc.Search(context.Background(), &model.SearchRequest{Latitude: 35.68, Longitude: 139.76, RadiusMeters: 1000})
		assert.ErrorIs(t, err, model.ErrMissingAPIKey)
	})
}

func TestVenueSearchUseCase_GetVenueDetails(t *testing.T) {
	t.Run("見つかった場合", func(t *testing.T) {
		uc := newTestUseCase(t, &stubSearchService{}, &stubProvider{details: &model.VenueDetails{ProviderID: "abc", Name: "Iron Gym"}})

		details, err := uc.GetVenueDetails(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, "Iron Gym", details.Name)
	})

	t.Run("見つからない場合", func(t *testing.T) {
		uc := newTestUseCase(t, &stubSearchService{}, &stubProvider{})

		_, err := uc.GetVenueDetails(context.Background(), "abc")
		assert.ErrorIs(t, err, model.ErrVenueNotFound)
	})

	t.Run("空のID", func(t *testing.T) {
		uc := newTestUseCase(t, &stubSearchService{}, &stubProvider{})

		_, err := uc.GetVenueDetails(context.Background(), "  ")
		assert.ErrorIs(t, err, model.ErrInvalidSearchRequest)
	})

	t.Run("APIキー未設定", func(t *testing.T) {
		uc := newTestUseCase(t, &stubSearchService{}, &stubProvider{missingKey: true})

		_, err := uc.GetVenueDetails(context.Background(), "abc")
		assert.ErrorIs(t, err, model.ErrMissingAPIKey)
	})

	t.Run("取得エラー", func(t *testing.T) {
		uc := newTestUseCase(t, &stubSearchService{}, &stubProvider{err: errors.New("boom")})

		_, err := uc.GetVenueDetails(context.Background(), "abc")
		assert.Error(t, err)
	})
}

func TestVenueSearchUseCase_PurgeTileCache(t *testing.T) {
	uc := newTestUseCase(t, &stubSearchService{}, &stubProvider{})

	deleted, err := uc.PurgeTileCache(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.NoError(t, uc.HealthCheck(context.Background()))
}
