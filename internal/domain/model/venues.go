package model

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
)

// LatLng 緯度経度を表す基本的な型
type LatLng struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

// ToPoint orb.Point（[lng, lat]）に変換
func (l LatLng) ToPoint() orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

// LatLngFromPoint orb.Point から LatLng を作成（経度は [-180, 180] に折り返す）
func LatLngFromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: NormalizeLng(p.Lon())}
}

// NormalizeLng 経度を [-180, 180] の範囲に折り返す
func NormalizeLng(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}

// Venue プロバイダから取得した施設（ジム等）のレコード
// 取得後は不変として扱い、キャッシュにはそのまま保存する
type Venue struct {
	ProviderID       string          `json:"provider_id"`                  // 重複排除キー（Google place_id）
	Name             string          `json:"name"`                         // 施設名
	Location         LatLng          `json:"location"`                     // 位置情報
	CategoryTags     []string        `json:"category_tags"`                // プロバイダのカテゴリ（types）
	Address          string          `json:"address,omitempty"`            // 住所（vicinity）
	Rating           *float64        `json:"rating,omitempty"`             // 評価値（NULLABLE）
	UserRatingsTotal *int            `json:"user_ratings_total,omitempty"` // 評価件数（NULLABLE）
	RawPayload       json.RawMessage `json:"raw_payload,omitempty"`        // プロバイダのレスポンスそのまま
}

// HasTag 指定カテゴリを持っているかチェック
func (v *Venue) HasTag(tag string) bool {
	for _, t := range v.CategoryTags {
		if t == tag {
			return true
		}
	}
	return false
}

// VenueResult 検索結果として返す施設（中心からの距離付き）
type VenueResult struct {
	Venue
	DistanceMeters float64 `json:"distance_meters"`
}

// VenueDetails 施設詳細（Place Details APIの結果）
type VenueDetails struct {
	ProviderID       string          `json:"provider_id"`
	Name             string          `json:"name"`
	FormattedAddress string          `json:"formatted_address"`
	Location         LatLng          `json:"location"`
	PhoneNumber      string          `json:"phone_number,omitempty"`
	Website          string          `json:"website,omitempty"`
	Rating           *float64        `json:"rating,omitempty"`
	UserRatingsTotal *int            `json:"user_ratings_total,omitempty"`
	PhotoReference   string          `json:"photo_reference,omitempty"`
	Types            []string        `json:"types"`
	OpeningHours     json.RawMessage `json:"opening_hours,omitempty"`
}
