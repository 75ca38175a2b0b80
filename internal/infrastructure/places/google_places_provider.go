package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
	"GymSearch-App/internal/metrics"
)

// DefaultBaseURL Google Places API (legacy) のベースURL
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// 詳細取得で要求するフィールド
var detailFields = []string{
	"place_id",
	"name",
	"formatted_address",
	"geometry",
	"rating",
	"user_ratings_total",
	"formatted_phone_number",
	"website",
	"opening_hours",
	"photos",
	"types",
}

// GooglePlacesProvider はGoogle Places APIを使用した施設検索の実装
type GooglePlacesProvider struct {
	apiKey     string
	baseURL    string
	searchType string
	client     *RateLimitedClient
}

// NewGooglePlacesProvider は新しいプロバイダを生成する
// baseURL が空なら DefaultBaseURL を使う
func NewGooglePlacesProvider(apiKey, baseURL string, client *RateLimitedClient) *GooglePlacesProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = NewRateLimitedClient(nil, 0, 1)
	}
	return &GooglePlacesProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		searchType: model.VenueSearchType,
		client:     client,
	}
}

var _ repository.PlacesProvider = (*GooglePlacesProvider)(nil)

// CheckConfiguration APIキーが設定されているか確認する
func (g *GooglePlacesProvider) CheckConfiguration() error {
	if g.apiKey == "" {
		return model.ErrMissingAPIKey
	}
	return nil
}

// NearbySearch はNearby Search APIを呼び出して1ページ分の施設を取得する
func (g *GooglePlacesProvider) NearbySearch(ctx context.Context, req repository.NearbySearchRequest) (*repository.NearbySearchResponse, error) {
	if err := g.CheckConfiguration(); err != nil {
		return nil, err
	}

	// 1. パラメータを構築
	params := url.Values{}
	if req.PageToken != "" {
		// 続きのページはトークンだけで指定する
		params.Set("pagetoken", req.PageToken)
	} else {
		params.Set("location", fmt.Sprintf("%f,%f", req.Location.Lat, req.Location.Lng))
		params.Set("radius", strconv.Itoa(req.RadiusMeters))
		params.Set("type", g.searchType)
		if req.Keyword != "" {
			params.Set("keyword", req.Keyword)
		}
	}
	params.Set("key", g.apiKey)

	// 2. レート制限付きで呼び出し
	start := time.Now()
	body, err := g.client.Fetch(ctx, g.baseURL+"/nearbysearch/json", params)
	if err != nil {
		metrics.RecordProviderCall("nearbysearch", "transport_error", time.Since(start).Seconds())
		return nil, err
	}

	// 3. JSONレスポンスをパース
	var apiResp nearbySearchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		metrics.RecordProviderCall("nearbysearch", "parse_error", time.Since(start).Seconds())
		return nil, fmt.Errorf("JSONのパースに失敗: %w", err)
	}
	metrics.RecordProviderCall("nearbysearch", apiResp.Status, time.Since(start).Seconds())

	result := &repository.NearbySearchResponse{Status: apiResp.Status}
	switch apiResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return result, nil
	case "OVER_QUERY_LIMIT":
		return nil, &model.TransientFetchError{
			Op:  "Nearby Search",
			Err: fmt.Errorf("レート制限に達しました: %s", apiResp.ErrorMessage),
		}
	default:
		// OK以外はその呼び出しを空の結果として扱う
		log.Printf("⚠️  Places APIステータス %s: %s", apiResp.Status, apiResp.ErrorMessage)
		return result, nil
	}

	// 4. ドメインモデルに変換して返す
	result.NextPageToken = apiResp.NextPageToken
	result.Venues = make([]model.Venue, 0, len(apiResp.Results))
	for _, raw := range apiResp.Results {
		var p placeResult
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Printf("⚠️  施設データのパースに失敗したためスキップ: %v", err)
			continue
		}
		if p.PlaceID == "" {
			continue
		}
		result.Venues = append(result.Venues, p.toVenue(raw))
	}

	return result, nil
}

// PlaceDetails はPlace Details APIを呼び出して施設詳細を取得する
func (g *GooglePlacesProvider) PlaceDetails(ctx context.Context, placeID string) (*model.VenueDetails, error) {
	if err := g.CheckConfiguration(); err != nil {
		return nil, err
	}
	if placeID == "" {
		return nil, fmt.Errorf("place_idが指定されていません")
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", strings.Join(detailFields, ","))
	params.Set("key", g.apiKey)

	start := time.Now()
	body, err := g.client.Fetch(ctx, g.baseURL+"/details/json", params)
	if err != nil {
		metrics.RecordProviderCall("details", "transport_error", time.Since(start).Seconds())
		return nil, err
	}

	var apiResp detailsResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		metrics.RecordProviderCall("details", "parse_error", time.Since(start).Seconds())
		return nil, fmt.Errorf("JSONのパースに失敗: %w", err)
	}
	metrics.RecordProviderCall("details", apiResp.Status, time.Since(start).Seconds())

	if apiResp.Status != "OK" {
		return nil, nil
	}

	d := apiResp.Result
	details := &model.VenueDetails{
		ProviderID:       d.PlaceID,
		Name:             d.Name,
		FormattedAddress: d.FormattedAddress,
		Location:         model.LatLng{Lat: d.Geometry.Location.Lat, Lng: d.Geometry.Location.Lng},
		PhoneNumber:      d.FormattedPhoneNumber,
		Website:          d.Website,
		Rating:           d.Rating,
		UserRatingsTotal: d.UserRatingsTotal,
		Types:            d.Types,
		OpeningHours:     d.OpeningHours,
	}
	if len(d.Photos) > 0 {
		details.PhotoReference = d.Photos[0].PhotoReference
	}
	return details, nil
}

// --- Google Places APIのレスポンスをパースするための構造体 ---

type nearbySearchResponse struct {
	Results       []json.RawMessage `json:"results"`
	NextPageToken string            `json:"next_page_token,omitempty"`
	Status        string            `json:"status"`
	ErrorMessage  string            `json:"error_message,omitempty"`
}

type placeResult struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Geometry         geometry `json:"geometry"`
	Types            []string `json:"types"`
	Vicinity         string   `json:"vicinity"`
	Rating           *float64 `json:"rating,omitempty"`
	UserRatingsTotal *int     `json:"user_ratings_total,omitempty"`
}

func (p placeResult) toVenue(raw json.RawMessage) model.Venue {
	return model.Venue{
		ProviderID:       p.PlaceID,
		Name:             p.Name,
		Location:         model.LatLng{Lat: p.Geometry.Location.Lat, Lng: p.Geometry.Location.Lng},
		CategoryTags:     p.Types,
		Address:          p.Vicinity,
		Rating:           p.Rating,
		UserRatingsTotal: p.UserRatingsTotal,
		RawPayload:       raw,
	}
}

type geometry struct {
	Location location `json:"location"`
}

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type detailsResponse struct {
	Result       detailsResult `json:"result"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

type detailsResult struct {
	PlaceID              string          `json:"place_id"`
	Name                 string          `json:"name"`
	FormattedAddress     string          `json:"formatted_address"`
	Geometry             geometry        `json:"geometry"`
	Rating               *float64        `json:"rating,omitempty"`
	UserRatingsTotal     *int            `json:"user_ratings_total,omitempty"`
	FormattedPhoneNumber string          `json:"formatted_phone_number"`
	Website              string          `json:"website"`
	OpeningHours         json.RawMessage `json:"opening_hours,omitempty"`
	Photos               []photo         `json:"photos"`
	Types                []string        `json:"types"`
}

type photo struct {
	PhotoReference string `json:"photo_reference"`
}
