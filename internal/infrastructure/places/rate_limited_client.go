package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"GymSearch-App/internal/domain/model"
)

// RateLimitedClient プロバイダへのHTTP呼び出しを同時実行数と最小間隔で制限するクライアント
// 1つのインスタンスを全ワーカーで共有する。検索ごとに別の上限を持たせたい場合は別インスタンスを渡す
type RateLimitedClient struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	sem            *semaphore.Weighted
	maxConcurrency int64
}

// NewRateLimitedClient 新しいクライアントを作成
// minInterval が0以下なら間隔制限なし、maxConcurrency が0以下なら1とみなす
func NewRateLimitedClient(httpClient *http.Client, minInterval time.Duration, maxConcurrency int) *RateLimitedClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}

	return &RateLimitedClient{
		httpClient:     httpClient,
		limiter:        rate.NewLimiter(limit, 1),
		sem:            semaphore.NewWeighted(int64(maxConcurrency)),
		maxConcurrency: int64(maxConcurrency),
	}
}

// Fetch 同時実行枠を取得し、前回の呼び出しから最小間隔が経つのを待ってからGETを実行する
// ネットワークエラーと2xx以外のステータスは TransientFetchError として返す（リトライはしない）
func (c *RateLimitedClient) Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, &model.TransientFetchError{Op: "同時実行枠の取得", Err: err}
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &model.TransientFetchError{Op: "レート制限の待機", Err: err}
	}

	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.TransientFetchError{Op: "APIリクエスト", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &model.TransientFetchError{
			Op:         "APIリクエスト",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("APIからエラーステータスが返されました: %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.TransientFetchError{Op: "レスポンスの読み込み", Err: err}
	}
	return body, nil
}

// MaxConcurrency 同時実行数の上限
func (c *RateLimitedClient) MaxConcurrency() int {
	return int(c.maxConcurrency)
}
