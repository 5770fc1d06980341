package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type shopRepository struct {
	s *Store
}

// NewShopRepository создаёт SQL-реализацию ShopRepository.
func NewShopRepository(store *Store) domain.ShopRepository {
	return &shopRepository{s: store}
}

// FindByName ищет магазин по ShopNameKey; берётся самый ранний.
func (r *shopRepository) FindByName(ctx context.Context, name string) (domain.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var shop domain.Shop
	err := r.s.db.QueryRowContext(ctx, r.s.q(`
		SELECT id, name, created_at
		FROM shops
		WHERE name_key = ?
		ORDER BY created_at, id
		LIMIT 1
	`), domain.ShopNameKey(name)).Scan(&shop.ID, &shop.Name, &shop.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Shop{}, domain.ErrShopNotFound
		}
		return domain.Shop{}, fmt.Errorf("select shop by name: %w", err)
	}
	return shop, nil
}

func (r *shopRepository) Create(ctx context.Context, shop domain.Shop) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.s.db.ExecContext(ctx, r.s.q(`
		INSERT INTO shops (id, name, name_key, created_at) VALUES (?, ?, ?, ?)
	`), shop.ID, shop.Name, domain.ShopNameKey(shop.Name), shop.CreatedAt); err != nil {
		return r.s.writeErr("insert shop", err)
	}
	return nil
}

var _ domain.ShopRepository = (*shopRepository)(nil)
