// Package dashboard показывает размещённые заказы и меняет их статус.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/blob"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

const (
	// UnknownShop подставляется, если магазин заказа не найден.
	UnknownShop = "Unknown Shop"
	// UnknownAgency подставляется, если у позиции нет агентства.
	UnknownAgency = "Unknown Agency"
)

// ErrExportDisabled — хранилище выгрузок не настроено.
var ErrExportDisabled = errors.New("dispatch export is disabled")

// LineItem — позиция заказа в карточке.
type LineItem struct {
	ProductName string
	Unit        string
	Quantity    int
}

// AgencyGroup — позиции заказа одного агентства.
type AgencyGroup struct {
	AgencyName string
	Items      []LineItem
}

// OrderCard — заказ в том виде, в каком его показывает дашборд.
type OrderCard struct {
	ID        string
	ShopID    string
	ShopName  string
	Status    domain.OrderStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Groups    []AgencyGroup
	ItemCount int
}

// Overview делит заказы на ожидающие и выполненные, новые первыми.
type Overview struct {
	Pending   []OrderCard
	Completed []OrderCard
}

// Option настраивает Service.
type Option func(*Service)

func WithLogger(logger *log.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.DashboardMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTimeline включает запись смены статуса и удаления в историю заказа.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(s *Service) { s.timeline = repo }
}

// WithOutbox включает события OrderStatusChanged и OrderDeleted.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Service) { s.outbox = repo }
}

// WithBlobStore включает выгрузку листов отгрузки.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) { s.blobs = store }
}

// Service — операции дашборда заказов.
type Service struct {
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	blobs    blob.Store
	logger   *log.Entry
	metrics  *metrics.DashboardMetrics
	now      func() time.Time
}

// NewService создаёт сервис дашборда.
func NewService(orders domain.OrderRepository, opts ...Option) *Service {
	s := &Service{
		orders: orders,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New().WithField("component", "dashboard-service")
	}
	return s
}

// Overview возвращает все заказы, разделённые по статусу.
// Сбой чтения возвращается как ErrOrdersUnavailable и не путается с пустым списком.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordOverviewError()
		}
		s.logger.WithError(err).Warn("orders fetch failed")
		return Overview{}, fmt.Errorf("%w: %w", domain.ErrOrdersUnavailable, err)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	overview := Overview{Pending: []OrderCard{}, Completed: []OrderCard{}}
	for _, order := range orders {
		card := NewOrderCard(order)
		if order.Status == domain.OrderStatusCompleted {
			overview.Completed = append(overview.Completed, card)
			continue
		}
		overview.Pending = append(overview.Pending, card)
	}
	return overview, nil
}

// GetOrder возвращает карточку заказа или ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, id string) (OrderCard, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return OrderCard{}, err
	}
	return NewOrderCard(order), nil
}

// SetStatus переводит заказ в status.
// expectedVersion == 0 отключает проверку версии; повтор текущего статуса ничего не меняет.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.OrderStatus, expectedVersion int64) (OrderCard, error) {
	if !status.Valid() {
		return OrderCard{}, domain.ErrInvalidStatus
	}

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return OrderCard{}, err
	}
	if expectedVersion > 0 && order.Version != expectedVersion {
		return OrderCard{}, domain.ErrOrderVersionConflict
	}
	if order.Status == status {
		return NewOrderCard(order), nil
	}

	previous := order.Status
	order.Status = status
	order.UpdatedAt = s.now()
	if err := s.orders.Save(ctx, order); err != nil {
		return OrderCard{}, fmt.Errorf("save order status: %w", err)
	}
	order.Version++

	entry := s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       status,
	})
	entry.Info("order status changed")
	if s.metrics != nil {
		s.metrics.RecordStatusChange(string(status))
	}

	s.appendTimeline(ctx, order.ID, domain.TimelineStatusChanged, fmt.Sprintf("%s -> %s", previous, status))
	s.enqueue(ctx, domain.EventOrderStatusChanged, domain.OrderEvent{
		OrderID:        order.ID,
		ShopID:         order.ShopID,
		ShopName:       order.ShopName,
		Status:         status,
		PreviousStatus: previous,
		Version:        order.Version,
		LineCount:      len(order.Lines),
		TotalQuantity:  domain.TotalQuantity(order.Lines),
		OccurredAt:     order.UpdatedAt,
	})

	return NewOrderCard(order), nil
}

// DeleteOrder удаляет позиции и сам заказ.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	s.logger.WithField("order_id", id).Info("order deleted")
	if s.metrics != nil {
		s.metrics.RecordOrderDeleted()
	}
	s.appendTimeline(ctx, id, domain.TimelineOrderDeleted, "")
	s.enqueue(ctx, domain.EventOrderDeleted, domain.OrderEvent{
		OrderID:        id,
		ShopID:         order.ShopID,
		ShopName:       order.ShopName,
		PreviousStatus: order.Status,
		Version:        order.Version,
		LineCount:      len(order.Lines),
		TotalQuantity:  domain.TotalQuantity(order.Lines),
		OccurredAt:     s.now(),
	})
	return nil
}

// Timeline возвращает историю заказа. Без подключённой истории — пустой список.
func (s *Service) Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error) {
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.timeline.List(ctx, id)
}

func (s *Service) appendTimeline(ctx context.Context, orderID, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	err := s.timeline.Append(ctx, domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: s.now(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("timeline append failed")
	}
}

func (s *Service) enqueue(ctx context.Context, eventType string, event domain.OrderEvent) {
	if s.outbox == nil {
		return
	}
	msg, err := domain.NewOrderEventMessage(eventType, event)
	if err == nil {
		_, err = s.outbox.Enqueue(ctx, msg)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": eventType,
		}).Error("outbox enqueue failed")
	}
}

// NewOrderCard группирует позиции заказа по названию агентства (по алфавиту).
// Внутри группы позиции идут в порядке оформления.
func NewOrderCard(order domain.Order) OrderCard {
	shopName := strings.TrimSpace(order.ShopName)
	if shopName == "" {
		shopName = UnknownShop
	}

	groups := make(map[string]*AgencyGroup)
	names := make([]string, 0)
	for _, line := range order.Lines {
		name := strings.TrimSpace(line.AgencyName)
		if name == "" {
			name = UnknownAgency
		}
		group, ok := groups[name]
		if !ok {
			group = &AgencyGroup{AgencyName: name}
			groups[name] = group
			names = append(names, name)
		}
		group.Items = append(group.Items, LineItem{
			ProductName: line.ProductName,
			Unit:        line.Unit,
			Quantity:    line.Quantity,
		})
	}
	sort.Strings(names)

	card := OrderCard{
		ID:        order.ID,
		ShopID:    order.ShopID,
		ShopName:  shopName,
		Status:    order.Status,
		Version:   order.Version,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
		Groups:    make([]AgencyGroup, 0, len(names)),
	}
	for _, name := range names {
		card.Groups = append(card.Groups, *groups[name])
		card.ItemCount += len(groups[name].Items)
	}
	return card
}
