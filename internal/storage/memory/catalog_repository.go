package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type catalogRepositoryInMemory struct {
	s *Store
}

// ListAgencies возвращает агентства, отсортированные по названию.
func (r *catalogRepositoryInMemory) ListAgencies(_ context.Context) ([]domain.Agency, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]domain.Agency, 0, len(r.s.agencies))
	for _, agency := range r.s.agencies {
		result = append(result, cloneAgency(agency))
	}
	sort.Slice(result, func(i, j int) bool {
		li, lj := strings.ToLower(result[i].Name), strings.ToLower(result[j].Name)
		if li != lj {
			return li < lj
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *catalogRepositoryInMemory) GetAgency(_ context.Context, id string) (domain.Agency, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	agency, ok := r.s.agencies[id]
	if !ok {
		return domain.Agency{}, domain.ErrAgencyNotFound
	}
	return cloneAgency(agency), nil
}

func (r *catalogRepositoryInMemory) CreateAgency(_ context.Context, agency domain.Agency) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.agencies[agency.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.s.agencies[agency.ID] = cloneAgency(agency)
	return nil
}

// UpdateAgency заменяет агентство и его товары. Товары с тем же ID сохраняются; позиции заказов
// на удалённые товары теряют ссылку на товар, как при ON DELETE SET NULL.
func (r *catalogRepositoryInMemory) UpdateAgency(_ context.Context, agency domain.Agency) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.agencies[agency.ID]
	if !ok {
		return domain.ErrAgencyNotFound
	}
	for _, p := range current.Products {
		if _, kept := agency.FindProduct(p.ID); !kept {
			r.detachProductLocked(p.ID)
		}
	}

	agency.CreatedAt = current.CreatedAt
	r.s.agencies[agency.ID] = cloneAgency(agency)
	return nil
}

// DeleteAgency удаляет агентство, если на него не ссылаются позиции заказов.
func (r *catalogRepositoryInMemory) DeleteAgency(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.agencies[id]; !ok {
		return domain.ErrAgencyNotFound
	}
	for _, lines := range r.s.lines {
		for _, line := range lines {
			if line.AgencyID == id {
				return domain.ErrConstraintViolation
			}
		}
	}
	delete(r.s.agencies, id)
	return nil
}

func (r *catalogRepositoryInMemory) detachProductLocked(productID string) {
	for orderID, lines := range r.s.lines {
		for i := range lines {
			if lines[i].AgencyProductID == productID {
				lines[i].AgencyProductID = ""
			}
		}
		r.s.lines[orderID] = lines
	}
}

var _ domain.CatalogRepository = (*catalogRepositoryInMemory)(nil)
