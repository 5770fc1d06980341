package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// Store — in-memory база с общими таблицами каталога, магазинов и заказов.
// Репозитории делят одно состояние, чтобы проверять ссылки между таблицами так же, как это делает SQL.
type Store struct {
	mu       sync.RWMutex
	agencies map[string]domain.Agency
	shops    map[string]domain.Shop
	orders   map[string]domain.Order
	lines    map[string][]domain.OrderLine
}

// NewStore создаёт пустое in-memory хранилище для локальной разработки и тестов.
func NewStore() *Store {
	return &Store{
		agencies: make(map[string]domain.Agency),
		shops:    make(map[string]domain.Shop),
		orders:   make(map[string]domain.Order),
		lines:    make(map[string][]domain.OrderLine),
	}
}

// Catalog возвращает репозиторий агентств.
func (s *Store) Catalog() domain.CatalogRepository { return &catalogRepositoryInMemory{s: s} }

// Shops возвращает репозиторий магазинов.
func (s *Store) Shops() domain.ShopRepository { return &shopRepositoryInMemory{s: s} }

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return &orderRepositoryInMemory{s: s} }

// productExistsLocked ищет товар во всех агентствах, как внешний ключ order_items.agency_product_id.
func (s *Store) productExistsLocked(productID string) bool {
	for _, agency := range s.agencies {
		if _, ok := agency.FindProduct(productID); ok {
			return true
		}
	}
	return false
}

func cloneAgency(a domain.Agency) domain.Agency {
	products := make([]domain.AgencyProduct, len(a.Products))
	copy(products, a.Products)
	a.Products = products
	return a
}

func cloneLines(lines []domain.OrderLine) []domain.OrderLine {
	out := make([]domain.OrderLine, len(lines))
	copy(out, lines)
	return out
}
