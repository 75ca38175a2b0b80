package helper

import (
	"sort"
	"strings"
	"unicode"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/spatial"
)

// DedupByProviderID は provider_id で重複を除く（最初に現れたものを残す）
func DedupByProviderID(venues []model.Venue) []model.Venue {
	seen := make(map[string]struct{}, len(venues))
	result := make([]model.Venue, 0, len(venues))
	for _, v := range venues {
		if v.ProviderID == "" {
			continue
		}
		if _, ok := seen[v.ProviderID]; ok {
			continue
		}
		seen[v.ProviderID] = struct{}{}
		result = append(result, v)
	}
	return result
}

// MergeVenues は既存の集計に新しいページを追加する（provider_id で重複除去）
func MergeVenues(aggregate, page []model.Venue) []model.Venue {
	merged := make([]model.Venue, 0, len(aggregate)+len(page))
	merged = append(merged, aggregate...)
	merged = append(merged, page...)
	return DedupByProviderID(merged)
}

// TrimToCircle は中心からの大円距離が半径以内の施設だけを残し、距離を付与する
func TrimToCircle(center model.LatLng, radiusMeters int, venues []model.Venue) []model.VenueResult {
	results := make([]model.VenueResult, 0, len(venues))
	for _, v := range venues {
		d := spatial.DistanceMeters(center, v.Location)
		if d > float64(radiusMeters) {
			continue
		}
		results = append(results, model.VenueResult{Venue: v, DistanceMeters: d})
	}
	return results
}

// SortByDistance は距離の昇順に並べる（同距離は provider_id 順で安定させる）
func SortByDistance(results []model.VenueResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].DistanceMeters != results[j].DistanceMeters {
			return results[i].DistanceMeters < results[j].DistanceMeters
		}
		return results[i].ProviderID < results[j].ProviderID
	})
}

// FilterFitnessVenues はフィットネス施設と判定できるものだけを抽出する
func FilterFitnessVenues(venues []model.VenueResult) []model.VenueResult {
	var filtered []model.VenueResult
	for _, v := range venues {
		if IsFitnessVenue(&v.Venue) {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// IsFitnessVenue は除外リストに当たらず、対象タグまたは名前キーワードに当たるかを判定する
func IsFitnessVenue(v *model.Venue) bool {
	name := normalizeName(v.Name)

	for _, tag := range model.ExcludedCategoryTags {
		if v.HasTag(tag) {
			return false
		}
	}
	for _, kw := range model.ExcludedNameKeywords {
		if containsWord(name, kw) {
			return false
		}
	}

	for _, tag := range model.IncludedCategoryTags {
		if v.HasTag(tag) {
			return true
		}
	}
	for _, kw := range model.IncludedNameKeywords {
		if containsWord(name, kw) {
			return true
		}
	}
	return false
}

// normalizeName は小文字化して英数字以外を空白に置き換え、前後に空白を付ける
func normalizeName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, name)
	return " " + strings.Join(strings.Fields(mapped), " ") + " "
}

func containsWord(normalized, keyword string) bool {
	return strings.Contains(normalized, " "+keyword+" ")
}
