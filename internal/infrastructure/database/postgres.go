package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgreSQLClient PostgreSQL直接接続クライアント
type PostgreSQLClient struct {
	DB *sql.DB
}

// BuildSupabaseDSN SupabaseのURLとDBパスワードから接続文字列を構築
// (https://xxx.supabase.co -> host=db.xxx.supabase.co port=6543)
func BuildSupabaseDSN(supabaseURL, password string) (string, error) {
	if supabaseURL == "" {
		return "", fmt.Errorf("SUPABASE_URL環境変数が設定されていません")
	}
	if password == "" {
		return "", fmt.Errorf("SUPABASE_DB_PASSWORD環境変数が設定されていません")
	}

	host := strings.TrimPrefix(strings.TrimPrefix(supabaseURL, "https://"), "http://")
	host = strings.TrimRight(host, "/")

	return fmt.Sprintf(
		"host=db.%s port=6543 user=postgres password=%s dbname=postgres sslmode=require",
		host, password,
	), nil
}

// NewPostgreSQLClient 新しいPostgreSQLクライアントを作成
func NewPostgreSQLClient(dsn string) (*PostgreSQLClient, error) {
	if dsn == "" {
		return nil, fmt.Errorf("PostgreSQLの接続文字列が設定されていません")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL接続の初期化に失敗: %w", err)
	}

	// ワーカーが並行して読み書きするため接続数に余裕を持たせる
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// 接続テスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("PostgreSQLへの接続に失敗: %w", err)
	}

	return &PostgreSQLClient{
		DB: db,
	}, nil
}

// NewPostgreSQLClientWithRetry 接続に失敗した場合に指定回数リトライする
func NewPostgreSQLClientWithRetry(dsn string, maxAttempts int, interval time.Duration) (*PostgreSQLClient, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := NewPostgreSQLClient(dsn)
		if err == nil {
			return client, nil
		}
		lastErr = err
		log.Printf("⚠️  PostgreSQL接続失敗 (%d/%d): %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			time.Sleep(interval)
		}
	}
	return nil, fmt.Errorf("PostgreSQLへの接続に%d回失敗: %w", maxAttempts, lastErr)
}

// Close データベース接続を閉じる
func (pc *PostgreSQLClient) Close() error {
	if pc.DB != nil {
		return pc.DB.Close()
	}
	return nil
}

// HealthCheck データベース接続のヘルスチェック
func (pc *PostgreSQLClient) HealthCheck() error {
	if pc.DB == nil {
		return fmt.Errorf("PostgreSQLクライアントが初期化されていません")
	}
	return pc.DB.Ping()
}
