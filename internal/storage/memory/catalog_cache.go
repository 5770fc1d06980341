package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// CatalogCache хранит снимок каталога в памяти процесса.
type CatalogCache struct {
	mu        sync.RWMutex
	agencies  []domain.Agency
	expiresAt time.Time
	now       func() time.Time
}

// NewCatalogCache создаёт пустой in-memory кэш каталога.
func NewCatalogCache() *CatalogCache {
	return &CatalogCache{now: time.Now}
}

func (c *CatalogCache) Get(_ context.Context) ([]domain.Agency, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.agencies == nil || !c.now().Before(c.expiresAt) {
		return nil, false, nil
	}
	out := make([]domain.Agency, len(c.agencies))
	for i, agency := range c.agencies {
		out[i] = cloneAgency(agency)
	}
	return out, true, nil
}

func (c *CatalogCache) Set(_ context.Context, agencies []domain.Agency, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]domain.Agency, len(agencies))
	for i, agency := range agencies {
		snapshot[i] = cloneAgency(agency)
	}
	c.agencies = snapshot
	c.expiresAt = c.now().Add(ttl)
	return nil
}

func (c *CatalogCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.agencies = nil
	c.expiresAt = time.Time{}
	return nil
}

var _ domain.CatalogCache = (*CatalogCache)(nil)
