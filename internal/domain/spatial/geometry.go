package spatial

import (
	"math"

	"github.com/paulmach/orb/geo"

	"GymSearch-App/internal/domain/model"
)

// DistanceMeters 2点間の大円距離（ハーバサイン）
func DistanceMeters(a, b model.LatLng) float64 {
	return geo.DistanceHaversine(a.ToPoint(), b.ToPoint())
}

// OffsetMeters 東方向・北方向にメートル単位でずらした地点
func OffsetMeters(origin model.LatLng, eastMeters, northMeters float64) model.LatLng {
	p := origin.ToPoint()
	if eastMeters != 0 {
		bearing := 90.0
		if eastMeters < 0 {
			bearing = 270.0
		}
		p = geo.PointAtBearingAndDistance(p, bearing, math.Abs(eastMeters))
	}
	if northMeters != 0 {
		bearing := 0.0
		if northMeters < 0 {
			bearing = 180.0
		}
		p = geo.PointAtBearingAndDistance(p, bearing, math.Abs(northMeters))
	}
	return model.LatLngFromPoint(p)
}

// PlanarDistanceSquared 正距円筒図法上の距離の2乗（並べ替え用）
// 経度差は日付変更線をまたぐ短い方を使う
func PlanarDistanceSquared(a, b model.LatLng) float64 {
	dLat := a.Lat - b.Lat
	dLng := model.NormalizeLng(a.Lng-b.Lng) * math.Cos(b.Lat*math.Pi/180)
	return dLat*dLat + dLng*dLng
}

// ValidCoordinate 緯度経度が有効範囲内か
func ValidCoordinate(l model.LatLng) bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180 &&
		!math.IsNaN(l.Lat) && !math.IsNaN(l.Lng)
}
