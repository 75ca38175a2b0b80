package spatial

import (
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"

	"GymSearch-App/internal/domain/model"
)

// radiusTier 検索半径の上限と、その半径で使うグリッド解像度
type radiusTier struct {
	maxRadiusMeters int
	resolution      int
}

// 検索半径 → グリッド解像度（半径が大きいほど粗いセル）
// 各段で「半径 / 平均エッジ長」がおよそ3以下に収まるようにしてセル数を抑える
var searchTiers = []radiusTier{
	{maxRadiusMeters: 1500, resolution: 8},
	{maxRadiusMeters: 4000, resolution: 7},
	{maxRadiusMeters: 10000, resolution: 6},
	{maxRadiusMeters: 30000, resolution: 5},
	{maxRadiusMeters: math.MaxInt, resolution: 4},
}

// タイル半径 → キャッシュキー用の解像度
// 兄弟タイルの中心が同じセルに落ちないよう、グリッドより2段以上細かくする
var tileKeyTiers = []radiusTier{
	{maxRadiusMeters: 1499, resolution: 10},
	{maxRadiusMeters: 3999, resolution: 9},
	{maxRadiusMeters: 11999, resolution: 8},
	{maxRadiusMeters: math.MaxInt, resolution: 7},
}

// H3の解像度ごとの平均エッジ長（メートル）
var avgEdgeLengthMeters = map[int]float64{
	3:  68979.22,
	4:  26071.76,
	5:  9854.09,
	6:  3724.53,
	7:  1406.48,
	8:  531.41,
	9:  200.79,
	10: 75.86,
	11: 28.66,
}

// グリッド解像度 → タイルの検索半径（セルの外接円を余裕を持って覆う）
var tileRadiusMeters = map[int]int{
	3: 50000,
	4: 34000,
	5: 12800,
	6: 4900,
	7: 1850,
	8: 700,
}

const minGridResolution = 3

// H3Index H3六角形セルによる空間インデックス
// 状態を持たない純粋関数の集まりで、並行利用してよい
type H3Index struct{}

// NewH3Index 新しい空間インデックスを作成
func NewH3Index() *H3Index {
	return &H3Index{}
}

// ResolutionFor 検索半径に対応するグリッド解像度
func (x *H3Index) ResolutionFor(radiusMeters int) int {
	return pickTier(searchTiers, radiusMeters)
}

// TileResolutionFor タイル半径に対応するキャッシュキー用の解像度
func (x *H3Index) TileResolutionFor(tileRadiusMeters int) int {
	return pickTier(tileKeyTiers, tileRadiusMeters)
}

// TileRadiusFor グリッド解像度に対応するタイル半径
func (x *H3Index) TileRadiusFor(resolution int) int {
	if r, ok := tileRadiusMeters[resolution]; ok {
		return r
	}
	// テーブル外は平均エッジ長の1.3倍
	return int(math.Ceil(x.avgEdge(resolution) * 1.3))
}

// CoarserResolution 1段階粗い解像度（これ以上粗くできない場合は false）
func (x *H3Index) CoarserResolution(resolution int) (int, bool) {
	if resolution <= minGridResolution {
		return resolution, false
	}
	return resolution - 1, true
}

// CellOf 座標を含むセルのID
func (x *H3Index) CellOf(location model.LatLng, resolution int) string {
	cell := h3.LatLngToCell(h3.NewLatLng(location.Lat, location.Lng), resolution)
	return cell.String()
}

// CellCenter セルの中心座標
func (x *H3Index) CellCenter(cellID string) (model.LatLng, error) {
	cell, err := parseCell(cellID)
	if err != nil {
		return model.LatLng{}, err
	}
	center := h3.CellToLatLng(cell)
	return model.LatLng{Lat: center.Lat, Lng: center.Lng}, nil
}

// Disk 中心セルから rings ホップ以内の全セル
func (x *H3Index) Disk(centerCellID string, rings int) ([]string, error) {
	cell, err := parseCell(centerCellID)
	if err != nil {
		return nil, err
	}
	if rings < 0 {
		rings = 0
	}

	disk := h3.GridDisk(cell, rings)
	cells := make([]string, 0, len(disk))
	for _, c := range disk {
		if c.IsValid() {
			cells = append(cells, c.String())
		}
	}
	return cells, nil
}

// ApproxCellDiameterMeters セルの平均的な差し渡し（平行な辺の間隔 = √3 × エッジ長）
// 隣接セルの中心間距離と同じ値で、1リング増えるごとの被覆半径の伸びの下限になる
func (x *H3Index) ApproxCellDiameterMeters(resolution int) float64 {
	return math.Sqrt(3) * x.avgEdge(resolution)
}

// RingsNeeded 半径を覆うのに必要なリング数 ceil(radius / diameter) + 1
func (x *H3Index) RingsNeeded(radiusMeters int, resolution int) int {
	diameter := x.ApproxCellDiameterMeters(resolution)
	return int(math.Ceil(float64(radiusMeters)/diameter)) + 1
}

func (x *H3Index) avgEdge(resolution int) float64 {
	if e, ok := avgEdgeLengthMeters[resolution]; ok {
		return e
	}
	// 解像度が1段上がるとエッジ長はおよそ 1/√7
	if resolution < minGridResolution {
		return avgEdgeLengthMeters[minGridResolution] * math.Pow(math.Sqrt(7), float64(minGridResolution-resolution))
	}
	return avgEdgeLengthMeters[11] / math.Pow(math.Sqrt(7), float64(resolution-11))
}

func pickTier(tiers []radiusTier, radiusMeters int) int {
	for _, t := range tiers {
		if radiusMeters <= t.maxRadiusMeters {
			return t.resolution
		}
	}
	return tiers[len(tiers)-1].resolution
}

func parseCell(cellID string) (h3.Cell, error) {
	cell := h3.Cell(h3.IndexFromString(cellID))
	if !cell.IsValid() {
		return 0, fmt.Errorf("不正なセルID: %q", cellID)
	}
	return cell, nil
}
