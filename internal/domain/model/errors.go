package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey プロバイダの認証情報が設定されていない（検索開始時に即時失敗）
	ErrMissingAPIKey = errors.New("GOOGLE_PLACES_API_KEY環境変数が設定されていません")
	// ErrNoTiles 検索範囲からタイルを1つも生成できなかった
	ErrNoTiles = errors.New("検索範囲からタイルを生成できませんでした")
	// ErrInvalidSearchRequest リクエストの検証失敗
	ErrInvalidSearchRequest = errors.New("検索リクエストが不正です")
	// ErrVenueNotFound 施設詳細が見つからない
	ErrVenueNotFound = errors.New("施設が見つかりません")
)

// TransientFetchError ネットワークエラー・5xx・レート制限などの一時的な取得エラー
// 失敗したジョブ内に閉じ込められ、そのタイルは空の結果として扱われる
type TransientFetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: ステータス %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// IsTransientFetchError 一時的な取得エラーかどうか
func IsTransientFetchError(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}
