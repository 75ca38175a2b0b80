package model

import "time"

// 検索エンジンの既定値
const (
	// SaturationThreshold この件数以上返ったタイルは取りこぼしありとみなして細分化する
	SaturationThreshold = 60
	// MinTileRadiusMeters これ以下の半径のタイルは細分化しない
	MinTileRadiusMeters = 500
	// MaxPages 1タイルあたりのページ取得上限
	MaxPages = 3
	// ProviderPageSize プロバイダの1ページ件数（これ未満なら最終ページ）
	ProviderPageSize = 20
	// PageTokenDelay 継続トークンが有効になるまでの待ち時間
	PageTokenDelay = 2 * time.Second
	// DefaultSearchTimeout 検索全体のタイムアウト
	DefaultSearchTimeout = 120 * time.Second
	// DefaultTileCacheTTL タイルキャッシュの有効期間（7日）
	DefaultTileCacheTTL = 7 * 24 * time.Hour
	// MaxInitialCells 初期セル数がこれを超えたら1段階粗い解像度で再計算
	MaxInitialCells = 1000
	// RefineOffsetFactor 子タイル中心のオフセット（子タイル半径に対する各軸の比率）
	RefineOffsetFactor = 0.8
)

// VenueSearchType プロバイダに渡す施設タイプ
const VenueSearchType = "gym"

// IncludedCategoryTags 対象とするプロバイダカテゴリ
var IncludedCategoryTags = []string{
	"gym",
}

// IncludedNameKeywords 名前に含まれていれば対象とするキーワード
var IncludedNameKeywords = []string{
	"gym",
	"fitness",
	"crossfit",
	"athletic club",
	"health club",
	"strength",
	"training",
	"boxing",
	"kickboxing",
	"martial arts",
	"mma",
	"jiu jitsu",
	"bootcamp",
	"barbell",
	"powerlifting",
	"weightlifting",
	"climbing",
	"bouldering",
	"cycling studio",
	"pilates",
	"yoga",
}

// ExcludedCategoryTags 除外するプロバイダカテゴリ（クリニック・スパ・学校など）
var ExcludedCategoryTags = []string{
	"physiotherapist",
	"doctor",
	"hospital",
	"dentist",
	"spa",
	"beauty_salon",
	"hair_care",
	"school",
	"primary_school",
	"secondary_school",
	"university",
	"store",
	"clothing_store",
	"shoe_store",
	"lodging",
	"church",
}

// ExcludedNameKeywords 名前に含まれていれば除外するキーワード
var ExcludedNameKeywords = []string{
	"pool",
	"swim",
	"swimming",
	"aquatic",
	"aquatics",
	"clinic",
	"physio",
	"physical therapy",
	"physiotherapy",
	"chiropractic",
	"chiropractor",
	"rehab",
	"massage",
	"spa",
	"tanning",
	"dance",
	"ballet",
	"nail",
	"salon",
	"apparel",
	"supplement",
	"supplements",
}
