package repository

import (
	"context"

	"GymSearch-App/internal/domain/model"
)

// NearbySearchRequest 周辺検索の呼び出しパラメータ
type NearbySearchRequest struct {
	Location     model.LatLng
	RadiusMeters int
	Keyword      string
	PageToken    string
}

// NearbySearchResponse 周辺検索の1ページ分の結果
type NearbySearchResponse struct {
	Status        string
	Venues        []model.Venue
	NextPageToken string
}

// PlacesProvider 外部の施設検索プロバイダ
type PlacesProvider interface {
	// CheckConfiguration 認証情報などの設定が揃っているか確認する
	CheckConfiguration() error
	// NearbySearch 中心と半径で施設を検索（PageToken 指定時は続きのページ）
	NearbySearch(ctx context.Context, req NearbySearchRequest) (*NearbySearchResponse, error)
	// PlaceDetails 施設IDで詳細を取得（見つからない場合は nil, nil）
	PlaceDetails(ctx context.Context, placeID string) (*model.VenueDetails, error)
}
