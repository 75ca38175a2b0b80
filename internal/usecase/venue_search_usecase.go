package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/domain/service"
)

type VenueSearchUseCase interface {
	// Search はリクエストを検証し、周辺の施設を距離順で返す
	Search(ctx context.Context, req *model.SearchRequest) (*model.SearchResult, error)

	// GetVenueDetails は施設IDから詳細情報を取得する
	GetVenueDetails(ctx context.Context, placeID string) (*model.VenueDetails, error)

	// PurgeTileCache は期限切れのタイルキャッシュを削除し、削除件数を返す
	PurgeTileCache(ctx context.Context) (int64, error)

	// HealthCheck はキャッシュストアの疎通を確認する
	HealthCheck(ctx context.Context) error
}

// venueSearchUseCaseImpl はVenueSearchUseCaseの実装
type venueSearchUseCaseImpl struct {
	searchService service.VenueSearchService
	provider      repository.PlacesProvider
	tileCache     *service.TileCache
}

// NewVenueSearchUseCase は新しいVenueSearchUseCaseインスタンスを作成
func NewVenueSearchUseCase(
	searchService service.VenueSearchService,
	provider repository.PlacesProvider,
	tileCache *service.TileCache,
) VenueSearchUseCase {
	return &venueSearchUseCaseImpl{
		searchService: searchService,
		provider:      provider,
		tileCache:     tileCache,
	}
}

func (u *venueSearchUseCaseImpl) Search(ctx context.Context, req *model.SearchRequest) (*model.SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := u.searchService.Search(ctx, *req)
	if err != nil {
		return nil, fmt.Errorf("施設検索に失敗: %w", err)
	}
	return result, nil
}

func (u *venueSearchUseCaseImpl) GetVenueDetails(ctx context.Context, placeID string) (*model.VenueDetails, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, fmt.Errorf("%w: place_id が空です", model.ErrInvalidSearchRequest)
	}
	if err := u.provider.CheckConfiguration(); err != nil {
		return nil, err
	}

	details, err := u.provider.PlaceDetails(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("施設詳細の取得に失敗: %w", err)
	}
	if details == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrVenueNotFound, placeID)
	}
	return details, nil
}

func (u *venueSearchUseCaseImpl) PurgeTileCache(ctx context.Context) (int64, error) {
	deleted, err := u.tileCache.Purge(ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("🧹 期限切れタイルキャッシュを%d件削除しました", deleted)
	return deleted, nil
}

func (u *venueSearchUseCaseImpl) HealthCheck(ctx context.Context) error {
	return u.tileCache.HealthCheck(ctx)
}
