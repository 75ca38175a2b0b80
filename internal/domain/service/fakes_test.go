package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
)

// fakePlacesProvider テスト用のプロバイダ。応答は handler で組み立てる
type fakePlacesProvider struct {
	mu         sync.Mutex
	missingKey bool
	handler    func(ctx context.Context, req repository.NearbySearchRequest) (*repository.NearbySearchResponse, error)
	calls      []repository.NearbySearchRequest
}

func (f *fakePlacesProvider) CheckConfiguration() error {
	if f.missingKey {
		return model.ErrMissingAPIKey
	}
	return nil
}

func (f *fakePlacesProvider) NearbySearch(ctx context.Context, req repository.NearbySearchRequest) (*repository.NearbySearchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.handler(ctx, req)
}

func (f *fakePlacesProvider) PlaceDetails(ctx context.Context, placeID string) (*model.VenueDetails, error) {
	return nil, nil
}

func (f *fakePlacesProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeTileCacheRepository マップで持つストア。err を設定すると全操作が失敗する
type fakeTileCacheRepository struct {
	mu      sync.Mutex
	entries map[model.TileKey]model.TileCacheEntry
	err     error
	upserts int
}

func newFakeTileCacheRepository() *fakeTileCacheRepository {
	return &fakeTileCacheRepository{entries: make(map[model.TileKey]model.TileCacheEntry)}
}

var _ repository.TileCacheRepository = (*fakeTileCacheRepository)(nil)

func (r *fakeTileCacheRepository) Get(ctx context.Context, key model.TileKey) (*model.TileCacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	e, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *fakeTileCacheRepository) Upsert(ctx context.Context, entries []model.TileCacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.upserts++
	for _, e := range entries {
		r.entries[e.Key] = e
	}
	return nil
}

func (r *fakeTileCacheRepository) Delete(ctx context.Context, key model.TileKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.entries, key)
	return nil
}

func (r *fakeTileCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var deleted int64
	for k, e := range r.entries {
		if e.IsExpired(now) {
			delete(r.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeTileCacheRepository) HealthCheck(ctx context.Context) error {
	return r.err
}

func (r *fakeTileCacheRepository) has(key model.TileKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// gymVenues prefix-from ～ prefix-(to-1) の施設を loc に並べる
func gymVenues(prefix string, from, to int, loc model.LatLng) []model.Venue {
	venues := make([]model.Venue, 0, to-from)
	for i := from; i < to; i++ {
		venues = append(venues, model.Venue{
			ProviderID:   fmt.Sprintf("%s-%d", prefix, i),
			Name:         fmt.Sprintf("Fitness Club %d", i),
			Location:     loc,
			CategoryTags: []string{"gym", "point_of_interest"},
		})
	}
	return venues
}
