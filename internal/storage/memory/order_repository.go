package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	s *Store
}

// Create сохраняет новый заказ, если ID ещё не занят и магазин существует.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[order.ID]; exists {
		return domain.ErrAlreadyExists
	}
	if _, ok := r.s.shops[order.ShopID]; !ok {
		return domain.ErrConstraintViolation
	}
	order.Lines = nil
	r.s.orders[order.ID] = order
	return nil
}

// CreateLines добавляет позиции заказа одной операцией: либо все, либо ни одной.
func (r *orderRepositoryInMemory) CreateLines(_ context.Context, orderID string, lines []domain.OrderLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[orderID]; !ok {
		return domain.ErrConstraintViolation
	}
	for _, line := range lines {
		if line.OrderID != orderID {
			return domain.ErrConstraintViolation
		}
		if _, ok := r.s.agencies[line.AgencyID]; !ok {
			return domain.ErrConstraintViolation
		}
		if line.AgencyProductID != "" && !r.s.productExistsLocked(line.AgencyProductID) {
			return domain.ErrConstraintViolation
		}
	}
	r.s.lines[orderID] = append(r.s.lines[orderID], cloneLines(lines)...)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	order, ok := r.s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.hydrateLocked(order), nil
}

// List возвращает заказы, новые первыми.
func (r *orderRepositoryInMemory) List(_ context.Context) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.s.orders))
	for _, order := range r.s.orders {
		result = append(result, r.hydrateLocked(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking). Позиции не трогает.
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	order.Version++
	order.Lines = nil
	order.CreatedAt = current.CreatedAt
	r.s.orders[order.ID] = order
	return nil
}

// Delete удаляет позиции и заказ.
func (r *orderRepositoryInMemory) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.s.lines, id)
	delete(r.s.orders, id)
	return nil
}

func (r *orderRepositoryInMemory) hydrateLocked(order domain.Order) domain.Order {
	if shop, ok := r.s.shops[order.ShopID]; ok {
		order.ShopName = shop.Name
	} else {
		order.ShopName = ""
	}
	order.Lines = cloneLines(r.s.lines[order.ID])
	for i := range order.Lines {
		if agency, ok := r.s.agencies[order.Lines[i].AgencyID]; ok {
			order.Lines[i].AgencyName = agency.Name
		}
	}
	return order
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
