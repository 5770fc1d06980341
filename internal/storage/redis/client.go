// Package redis хранит разделяемое состояние сборки заказов в Redis:
// снимок каталога, сессии операторов и блокировки оформления.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix   = "orderdesk:"
	defaultDialTimeout = 2 * time.Second
)

// Options задаёт подключение к Redis.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Open создаёт клиента и проверяет доступность сервера.
func Open(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: defaultDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

func prefixOrDefault(prefix string) string {
	if prefix == "" {
		return defaultKeyPrefix
	}
	return prefix
}
