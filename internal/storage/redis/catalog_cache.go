package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// CatalogCache хранит снимок каталога одним JSON-ключом с TTL.
type CatalogCache struct {
	client goredis.UniversalClient
	key    string
}

// NewCatalogCache создаёт кэш каталога поверх клиента Redis.
func NewCatalogCache(client goredis.UniversalClient, prefix string) *CatalogCache {
	return &CatalogCache{client: client, key: prefixOrDefault(prefix) + "catalog"}
}

func (c *CatalogCache) Get(ctx context.Context) ([]domain.Agency, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get catalog snapshot: %w", err)
	}

	var records []agencyRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false, fmt.Errorf("decode catalog snapshot: %w", err)
	}
	return fromAgencyRecords(records), true, nil
}

func (c *CatalogCache) Set(ctx context.Context, agencies []domain.Agency, ttl time.Duration) error {
	raw, err := json.Marshal(toAgencyRecords(agencies))
	if err != nil {
		return fmt.Errorf("encode catalog snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set catalog snapshot: %w", err)
	}
	return nil
}

func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate catalog snapshot: %w", err)
	}
	return nil
}

var _ domain.CatalogCache = (*CatalogCache)(nil)
