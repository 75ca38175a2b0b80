package redis

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

// RedisClient タイルキャッシュ用のRedis接続
type RedisClient struct {
	client *goredis.Client
}

// NewRedisClient アドレス（host:port）または redis:// URL から接続を作成
func NewRedisClient(ctx context.Context, addr, password string) (*RedisClient, error) {
	if addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR環境変数が設定されていません")
	}

	var opts *goredis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := goredis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_ADDRの解析に失敗: %w", err)
		}
		opts = parsed
	} else {
		opts = &goredis.Options{Addr: addr}
	}
	if password != "" {
		opts.Password = password
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
	}

	return &RedisClient{client: client}, nil
}

func (rc *RedisClient) GetClient() *goredis.Client {
	return rc.client
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func (rc *RedisClient) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}
