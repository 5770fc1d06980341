package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type guardLock struct {
	token     string
	expiresAt time.Time
}

// SubmitGuard — in-memory аналог SET NX с TTL.
type SubmitGuard struct {
	mu    sync.Mutex
	locks map[string]guardLock
	now   func() time.Time
}

// NewSubmitGuard создаёт in-memory guard от повторного оформления.
func NewSubmitGuard() *SubmitGuard {
	return &SubmitGuard{locks: make(map[string]guardLock), now: time.Now}
}

// Acquire занимает ключ, если он свободен или его TTL истёк.
func (g *SubmitGuard) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if lock, ok := g.locks[key]; ok && now.Before(lock.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	g.locks[key] = guardLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release снимает блокировку только владельца token.
func (g *SubmitGuard) Release(_ context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if lock, ok := g.locks[key]; ok && lock.token == token {
		delete(g.locks, key)
	}
	return nil
}

var _ domain.SubmitGuard = (*SubmitGuard)(nil)
