package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type shopRepositoryInMemory struct {
	s *Store
}

// FindByName ищет магазин по ShopNameKey. При нескольких совпадениях берётся самый ранний.
func (r *shopRepositoryInMemory) FindByName(_ context.Context, name string) (domain.Shop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	key := domain.ShopNameKey(name)
	var matches []domain.Shop
	for _, shop := range r.s.shops {
		if domain.ShopNameKey(shop.Name) == key {
			matches = append(matches, shop)
		}
	}
	if len(matches) == 0 {
		return domain.Shop{}, domain.ErrShopNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches[0], nil
}

func (r *shopRepositoryInMemory) Create(_ context.Context, shop domain.Shop) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.shops[shop.ID]; exists {
		return domain.ErrAlreadyExists
	}
	key := domain.ShopNameKey(shop.Name)
	for _, existing := range r.s.shops {
		if domain.ShopNameKey(existing.Name) == key {
			return domain.ErrAlreadyExists
		}
	}
	r.s.shops[shop.ID] = shop
	return nil
}

var _ domain.ShopRepository = (*shopRepositoryInMemory)(nil)
