// Package submission оформляет заказ из корзины: магазин, заказ, позиции, строго по очереди.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Receipt — результат успешного оформления.
type Receipt struct {
	Order       domain.Order
	Shop        domain.Shop
	ShopCreated bool
}

// SubmissionError сообщает, на каком шаге остановилось оформление
// и какие записи уже успели сохраниться (компенсации нет).
type SubmissionError struct {
	Step    domain.SubmissionStep
	ShopID  string
	OrderID string
	Err     error
}

func (e *SubmissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "submit order: step %s failed", e.Step)
	if e.ShopID != "" {
		fmt.Fprintf(&b, " (shop %s", e.ShopID)
		if e.OrderID != "" {
			fmt.Fprintf(&b, ", order %s", e.OrderID)
		}
		b.WriteString(" persisted)")
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// FailedStep возвращает шаг, на котором упало оформление, если err — SubmissionError.
func FailedStep(err error) (domain.SubmissionStep, bool) {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Step, true
	}
	return "", false
}

// Option настраивает Sequencer.
type Option func(*Sequencer)

func WithLogger(logger *log.Entry) Option {
	return func(s *Sequencer) { s.logger = logger }
}

func WithMetrics(m *metrics.SubmissionMetrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// WithOutbox включает событие OrderPlaced после успешного оформления.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Sequencer) { s.outbox = repo }
}

// WithTimeline включает запись шагов оформления в историю заказа.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(s *Sequencer) { s.timeline = repo }
}

// Sequencer выполняет шаги resolve_shop, create_order, create_lines, каждый после завершения предыдущего.
type Sequencer struct {
	shops    domain.ShopRepository
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.SubmissionMetrics
	now      func() time.Time
	newID    func() string
}

// NewSequencer создаёт Sequencer. Outbox и timeline подключаются опциями.
func NewSequencer(shops domain.ShopRepository, orders domain.OrderRepository, opts ...Option) *Sequencer {
	s := &Sequencer{
		shops:  shops,
		orders: orders,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New().WithField("component", "submission-sequencer")
	}
	return s
}

// Submit оформляет заказ магазина shopName из позиций cart.
// Корзину Submit не меняет: очистка после успеха остаётся за вызывающим.
func (s *Sequencer) Submit(ctx context.Context, shopName string, cart *domain.Cart) (Receipt, error) {
	if !domain.IsOrderSubmittable(shopName, cart) {
		return Receipt{}, domain.ErrOrderNotSubmittable
	}

	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordSubmissionStarted()
	}

	receipt, err := s.run(ctx, strings.TrimSpace(shopName), cart.Lines())

	if s.metrics != nil {
		step, _ := FailedStep(err)
		if err != nil && step == "" {
			step = "unknown"
		}
		s.metrics.RecordSubmissionFinished(string(step), time.Since(start))
	}
	return receipt, err
}

func (s *Sequencer) run(ctx context.Context, shopName string, cartLines []domain.CartLine) (Receipt, error) {
	entry := s.logger.WithField("shop_name", shopName)

	var (
		shop    domain.Shop
		created bool
	)
	err := s.step(ctx, domain.SubmissionStepResolveShop, func(ctx context.Context) error {
		var err error
		shop, created, err = s.resolveShop(ctx, shopName)
		return err
	})
	if err != nil {
		entry.WithError(err).Warn("order submission failed")
		return Receipt{}, &SubmissionError{Step: domain.SubmissionStepResolveShop, Err: err}
	}
	if created && s.metrics != nil {
		s.metrics.RecordShopCreated()
	}
	entry = entry.WithField("shop_id", shop.ID)

	now := s.now()
	order := domain.Order{
		ID:        s.newID(),
		ShopID:    shop.ID,
		ShopName:  shop.Name,
		Status:    domain.OrderStatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.step(ctx, domain.SubmissionStepCreateOrder, func(ctx context.Context) error {
		return s.orders.Create(ctx, order)
	})
	if err != nil {
		entry.WithError(err).Warn("order submission failed")
		return Receipt{}, &SubmissionError{Step: domain.SubmissionStepCreateOrder, ShopID: shop.ID, Err: err}
	}
	entry = entry.WithField("order_id", order.ID)
	s.appendTimeline(ctx, order.ID, domain.TimelineShopResolved, shopResolvedReason(shop, created))
	s.appendTimeline(ctx, order.ID, domain.TimelineOrderCreated, "")

	lines := domain.LinesFromCart(order.ID, cartLines, s.newID)
	err = s.step(ctx, domain.SubmissionStepCreateLines, func(ctx context.Context) error {
		return s.orders.CreateLines(ctx, order.ID, lines)
	})
	if err != nil {
		entry.WithError(err).Warn("order submission failed, shop and order are left without lines")
		s.appendTimeline(ctx, order.ID, domain.TimelineSubmitFailed, err.Error())
		return Receipt{}, &SubmissionError{
			Step:    domain.SubmissionStepCreateLines,
			ShopID:  shop.ID,
			OrderID: order.ID,
			Err:     err,
		}
	}
	order.Lines = lines
	s.appendTimeline(ctx, order.ID, domain.TimelineLinesCreated, fmt.Sprintf("%d lines", len(lines)))
	s.enqueuePlaced(ctx, order)

	entry.WithFields(log.Fields{
		"lines":        len(lines),
		"shop_created": created,
	}).Info("order submitted")

	return Receipt{Order: order, Shop: shop, ShopCreated: created}, nil
}

// resolveShop ищет магазин без учёта регистра и создаёт его, если не нашёл.
// Гонку двух одновременных созданий разрешает уникальный индекс: проигравший перечитывает запись.
func (s *Sequencer) resolveShop(ctx context.Context, name string) (domain.Shop, bool, error) {
	shop, err := s.shops.FindByName(ctx, name)
	if err == nil {
		return shop, false, nil
	}
	if !errors.Is(err, domain.ErrShopNotFound) {
		return domain.Shop{}, false, fmt.Errorf("find shop: %w", err)
	}

	shop = domain.Shop{ID: s.newID(), Name: name, CreatedAt: s.now()}
	if err := s.shops.Create(ctx, shop); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return domain.Shop{}, false, fmt.Errorf("create shop: %w", err)
		}
		existing, findErr := s.shops.FindByName(ctx, name)
		if findErr != nil {
			return domain.Shop{}, false, fmt.Errorf("find shop after concurrent create: %w", findErr)
		}
		return existing, false, nil
	}
	return shop, true, nil
}

func (s *Sequencer) step(ctx context.Context, step domain.SubmissionStep, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.RecordStepDuration(string(step), time.Since(start))
	}
	return err
}

func (s *Sequencer) appendTimeline(ctx context.Context, orderID, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{OrderID: orderID, Type: eventType, Reason: reason, Occurred: s.now()}
	if err := s.timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

func (s *Sequencer) enqueuePlaced(ctx context.Context, order domain.Order) {
	if s.outbox == nil {
		return
	}
	msg, err := domain.NewOrderEventMessage(domain.EventOrderPlaced, domain.OrderEvent{
		OrderID:       order.ID,
		ShopID:        order.ShopID,
		ShopName:      order.ShopName,
		Status:        order.Status,
		Version:       order.Version,
		LineCount:     len(order.Lines),
		TotalQuantity: domain.TotalQuantity(order.Lines),
		OccurredAt:    order.CreatedAt,
	})
	if err == nil {
		_, err = s.outbox.Enqueue(ctx, msg)
	}
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("enqueue OrderPlaced failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

func shopResolvedReason(shop domain.Shop, created bool) string {
	if created {
		return "created shop " + shop.Name
	}
	return "reused shop " + shop.Name
}
