package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// releaseScript удаляет ключ, только если в нём лежит токен владельца.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SubmitGuard реализует блокировку оформления через SET NX с TTL.
type SubmitGuard struct {
	client goredis.UniversalClient
	prefix string
}

// NewSubmitGuard создаёт guard поверх клиента Redis.
func NewSubmitGuard(client goredis.UniversalClient, prefix string) *SubmitGuard {
	return &SubmitGuard{client: client, prefix: prefixOrDefault(prefix) + "submit:"}
}

func (g *SubmitGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire submit guard %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release не трогает ключ, если TTL истёк и блокировку уже взял другой владелец.
func (g *SubmitGuard) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.prefix + key}, token).Err(); err != nil {
		return fmt.Errorf("release submit guard %s: %w", key, err)
	}
	return nil
}

var _ domain.SubmitGuard = (*SubmitGuard)(nil)
