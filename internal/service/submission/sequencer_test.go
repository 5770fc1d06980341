package submission

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

type failingLinesRepo struct {
	domain.OrderRepository
	err error
}

func (f failingLinesRepo) CreateLines(context.Context, string, []domain.OrderLine) error {
	return f.err
}

type failingOrdersRepo struct {
	domain.OrderRepository
}

func (failingOrdersRepo) Create(context.Context, domain.Order) error {
	return domain.ErrWriteFailed
}

// racingShopRepo имитирует конкурента, успевшего создать магазин между поиском и вставкой.
type racingShopRepo struct {
	domain.ShopRepository
	winner  domain.Shop
	lookups int
}

func (r *racingShopRepo) FindByName(ctx context.Context, name string) (domain.Shop, error) {
	r.lookups++
	if r.lookups == 1 {
		return domain.Shop{}, domain.ErrShopNotFound
	}
	return r.winner, nil
}

func (r *racingShopRepo) Create(context.Context, domain.Shop) error {
	return domain.ErrAlreadyExists
}

type SequencerSuite struct {
	suite.Suite

	ctx      context.Context
	store    *memory.Store
	outbox   *memory.OutboxRepository
	timeline domain.TimelineRepository
	registry *prometheus.Registry
	metrics  *metrics.SubmissionMetrics
	agency   domain.Agency
}

func TestSequencerSuite(t *testing.T) {
	suite.Run(t, new(SequencerSuite))
}

func (s *SequencerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.outbox = memory.NewOutboxRepository()
	s.timeline = memory.NewTimelineRepository()
	s.registry = prometheus.NewRegistry()
	s.metrics = metrics.NewSubmissionMetricsWithRegisterer(s.registry)

	s.agency = domain.Agency{
		ID:   "agency-a",
		Name: "Acme",
		Products: []domain.AgencyProduct{
			{ID: "soap-a", AgencyID: "agency-a", ProductName: "Soap", Unit: "box"},
			{ID: "gel-a", AgencyID: "agency-a", ProductName: "Gel", Unit: "pcs"},
		},
	}
	s.Require().NoError(s.store.Catalog().CreateAgency(s.ctx, s.agency))
	s.Require().NoError(s.store.Catalog().CreateAgency(s.ctx, domain.Agency{
		ID:       "agency-b",
		Name:     "Brite",
		Products: []domain.AgencyProduct{{ID: "soap-b", AgencyID: "agency-b", ProductName: "Soap", Unit: "box"}},
	}))
}

func (s *SequencerSuite) counter(name string) float64 {
	families, err := s.registry.Gather()
	s.Require().NoError(err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func (s *SequencerSuite) sequencer(orders domain.OrderRepository, shops domain.ShopRepository) *Sequencer {
	if orders == nil {
		orders = s.store.Orders()
	}
	if shops == nil {
		shops = s.store.Shops()
	}
	return NewSequencer(shops, orders,
		WithOutbox(s.outbox),
		WithTimeline(s.timeline),
		WithMetrics(s.metrics),
	)
}

func (s *SequencerSuite) cart() *domain.Cart {
	cart := domain.NewCart(nil)
	_, err := cart.SetQuantity("agency-a", "soap-a", "Soap", "box", "Acme", 3)
	s.Require().NoError(err)
	_, err = cart.SetQuantity("agency-b", "soap-b", "Soap", "box", "Brite", 2)
	s.Require().NoError(err)
	_, err = cart.SetQuantity("agency-a", "gel-a", "Gel", "pcs", "Acme", 1)
	s.Require().NoError(err)
	return cart
}

func (s *SequencerSuite) TestSubmit_CreatesShopOrderAndLinesInCartOrder() {
	cart := s.cart()

	receipt, err := s.sequencer(nil, nil).Submit(s.ctx, "  Corner Store ", cart)
	s.Require().NoError(err)
	s.True(receipt.ShopCreated)
	s.Equal("Corner Store", receipt.Shop.Name)
	s.Equal(domain.OrderStatusPending, receipt.Order.Status)
	s.Equal(int64(1), receipt.Order.Version)

	stored, err := s.store.Orders().Get(s.ctx, receipt.Order.ID)
	s.Require().NoError(err)
	s.Equal("Corner Store", stored.ShopName)
	s.Require().Len(stored.Lines, 3)
	s.Equal("agency-a", stored.Lines[0].AgencyID)
	s.Equal("agency-b", stored.Lines[1].AgencyID)
	s.Equal("Gel", stored.Lines[2].ProductName)
	s.Equal("soap-b", stored.Lines[1].AgencyProductID)

	s.Equal(3, cart.Len(), "sequencer must not clear the cart")

	pending := s.outbox.AllPending()
	s.Require().Len(pending, 1)
	s.Equal(domain.EventOrderPlaced, pending[0].EventType)
	var event domain.OrderEvent
	s.Require().NoError(json.Unmarshal(pending[0].Payload, &event))
	s.Equal(6, event.TotalQuantity)
	s.Equal(3, event.LineCount)

	events, err := s.timeline.List(s.ctx, receipt.Order.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(domain.TimelineShopResolved, events[0].Type)
	s.Equal(domain.TimelineLinesCreated, events[2].Type)

	s.Equal(1.0, s.counter("orderdesk_submissions_succeeded_total"))
	s.Equal(1.0, s.counter("orderdesk_shops_created_total"))
}

func (s *SequencerSuite) TestSubmit_ReusesShopCaseInsensitively() {
	existing := domain.Shop{ID: "shop-joe", Name: "Joe's Store", CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.store.Shops().Create(s.ctx, existing))

	receipt, err := s.sequencer(nil, nil).Submit(s.ctx, "joe's store", s.cart())
	s.Require().NoError(err)
	s.False(receipt.ShopCreated)
	s.Equal("shop-joe", receipt.Shop.ID)
	s.Equal("shop-joe", receipt.Order.ShopID)
}

func (s *SequencerSuite) TestSubmit_CreateLinesFailureLeavesOrphansAndCart() {
	cart := s.cart()
	before := cart.Lines()
	injected := errors.New("disk full")

	_, err := s.sequencer(failingLinesRepo{OrderRepository: s.store.Orders(), err: injected}, nil).
		Submit(s.ctx, "Corner Store", cart)

	var subErr *SubmissionError
	s.Require().ErrorAs(err, &subErr)
	s.Equal(domain.SubmissionStepCreateLines, subErr.Step)
	s.NotEmpty(subErr.ShopID)
	s.NotEmpty(subErr.OrderID)
	s.ErrorIs(err, injected)
	s.Contains(err.Error(), "create_lines")
	s.Equal(1.0, s.counter("orderdesk_submissions_failed_total"))

	s.Equal(before, cart.Lines(), "cart must be untouched after a failed submit")

	shop, err := s.store.Shops().FindByName(s.ctx, "corner store")
	s.Require().NoError(err)
	s.Equal(subErr.ShopID, shop.ID)

	orphan, err := s.store.Orders().Get(s.ctx, subErr.OrderID)
	s.Require().NoError(err)
	s.Empty(orphan.Lines)

	s.Empty(s.outbox.AllPending(), "no OrderPlaced for a failed submit")
	events, err := s.timeline.List(s.ctx, subErr.OrderID)
	s.Require().NoError(err)
	s.Equal(domain.TimelineSubmitFailed, events[len(events)-1].Type)
}

func (s *SequencerSuite) TestSubmit_CreateOrderFailureReportsShop() {
	_, err := s.sequencer(failingOrdersRepo{OrderRepository: s.store.Orders()}, nil).
		Submit(s.ctx, "Corner Store", s.cart())

	step, ok := FailedStep(err)
	s.Require().True(ok)
	s.Equal(domain.SubmissionStepCreateOrder, step)

	var subErr *SubmissionError
	s.Require().ErrorAs(err, &subErr)
	s.NotEmpty(subErr.ShopID)
	s.Empty(subErr.OrderID)
	s.ErrorIs(err, domain.ErrWriteFailed)
}

func (s *SequencerSuite) TestSubmit_ConcurrentShopCreationReusesWinner() {
	winner := domain.Shop{ID: "shop-winner", Name: "Corner Store"}
	s.Require().NoError(s.store.Shops().Create(s.ctx, winner))
	shops := &racingShopRepo{winner: winner}

	receipt, err := s.sequencer(nil, shops).Submit(s.ctx, "corner store", s.cart())
	s.Require().NoError(err)
	s.False(receipt.ShopCreated)
	s.Equal("shop-winner", receipt.Order.ShopID)
	s.Equal(2, shops.lookups)
}

func (s *SequencerSuite) TestSubmit_RejectsNonSubmittable() {
	seq := s.sequencer(nil, nil)

	_, err := seq.Submit(s.ctx, "   ", s.cart())
	s.ErrorIs(err, domain.ErrOrderNotSubmittable)

	_, err = seq.Submit(s.ctx, "Corner", domain.NewCart(nil))
	s.ErrorIs(err, domain.ErrOrderNotSubmittable)

	_, err = seq.Submit(s.ctx, "Corner", nil)
	s.ErrorIs(err, domain.ErrOrderNotSubmittable)

	_, err = s.store.Shops().FindByName(s.ctx, "Corner")
	s.ErrorIs(err, domain.ErrShopNotFound, "nothing is written for a rejected submit")
}

func (s *SequencerSuite) TestSubmit_CanceledContextStopsBeforeWrites() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.sequencer(nil, nil).Submit(ctx, "Corner", s.cart())
	step, ok := FailedStep(err)
	s.Require().True(ok)
	s.Equal(domain.SubmissionStepResolveShop, step)
	s.ErrorIs(err, context.Canceled)
}

func TestSubmissionError_Message(t *testing.T) {
	err := &SubmissionError{Step: domain.SubmissionStepCreateLines, ShopID: "s1", OrderID: "o1", Err: errors.New("boom")}
	require.Equal(t, "submit order: step create_lines failed (shop s1, order o1 persisted): boom", err.Error())

	err = &SubmissionError{Step: domain.SubmissionStepResolveShop, Err: errors.New("boom")}
	require.Equal(t, "submit order: step resolve_shop failed: boom", err.Error())
}
