// Package sqldbtest содержит общий набор проверок SQL-репозиториев для всех драйверов.
package sqldbtest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/sqldb"
)

// RepositorySuite прогоняет одинаковые сценарии на PostgreSQL, MySQL и SQLite.
type RepositorySuite struct {
	suite.Suite

	// Store должен быть открыт и смигрирован до запуска.
	Store *sqldb.Store

	ctx      context.Context
	catalog  domain.CatalogRepository
	shops    domain.ShopRepository
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.catalog = sqldb.NewCatalogRepository(s.Store)
	s.shops = sqldb.NewShopRepository(s.Store)
	s.orders = sqldb.NewOrderRepository(s.Store)
	s.outbox = sqldb.NewOutboxRepository(s.Store)
	s.timeline = sqldb.NewTimelineRepository(s.Store)

	for _, table := range []string{"order_items", "orders", "shops", "agency_products", "agencies", "outbox_messages", "timeline_events"} {
		_, err := s.Store.DB().ExecContext(s.ctx, "DELETE FROM "+table)
		s.Require().NoError(err, "cleanup %s", table)
	}
}

func (s *RepositorySuite) now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *RepositorySuite) createAgency(name string, products ...string) domain.Agency {
	id := uuid.NewString()
	agency := domain.Agency{ID: id, Name: name, ContactPerson: "Ann", Phone: "555", CreatedAt: s.now()}
	for _, p := range products {
		agency.Products = append(agency.Products, domain.AgencyProduct{ID: uuid.NewString(), AgencyID: id, ProductName: p, Unit: "Box"})
	}
	s.Require().NoError(s.catalog.CreateAgency(s.ctx, agency))
	return agency
}

func (s *RepositorySuite) createOrder(shopID string, agency domain.Agency, createdAt time.Time) domain.Order {
	order := domain.Order{
		ID:        uuid.NewString(),
		ShopID:    shopID,
		Status:    domain.OrderStatusPending,
		Version:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	s.Require().NoError(s.orders.Create(s.ctx, order))

	lines := make([]domain.OrderLine, 0, len(agency.Products))
	for i, p := range agency.Products {
		lines = append(lines, domain.OrderLine{
			ID:              uuid.NewString(),
			OrderID:         order.ID,
			AgencyProductID: p.ID,
			AgencyID:        agency.ID,
			AgencyName:      agency.Name,
			ProductName:     p.ProductName,
			Unit:            p.Unit,
			Quantity:        i + 1,
		})
	}
	s.Require().NoError(s.orders.CreateLines(s.ctx, order.ID, lines))
	return order
}

func (s *RepositorySuite) createShop(name string) domain.Shop {
	shop := domain.Shop{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	s.Require().NoError(s.shops.Create(s.ctx, shop))
	return shop
}

func (s *RepositorySuite) TestCatalog_EmptyIsNotAnError() {
	agencies, err := s.catalog.ListAgencies(s.ctx)
	s.Require().NoError(err)
	s.Require().Empty(agencies)
}

func (s *RepositorySuite) TestCatalog_CreateListUpdate() {
	globex := s.createAgency("globex", "Tea")
	acme := s.createAgency("Acme", "Soap", "Rice")

	agencies, err := s.catalog.ListAgencies(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(agencies, 2)
	s.Require().Equal(acme.ID, agencies[0].ID)
	s.Require().Equal([]string{"Soap", "Rice"}, []string{agencies[0].Products[0].ProductName, agencies[0].Products[1].ProductName})
	s.Require().Equal(globex.ID, agencies[1].ID)

	acme.Name = "Acme Ltd"
	acme.Products = []domain.AgencyProduct{{ID: uuid.NewString(), AgencyID: acme.ID, ProductName: "Salt", Unit: "kg"}}
	s.Require().NoError(s.catalog.UpdateAgency(s.ctx, acme))

	stored, err := s.catalog.GetAgency(s.ctx, acme.ID)
	s.Require().NoError(err)
	s.Require().Equal("Acme Ltd", stored.Name)
	s.Require().Len(stored.Products, 1)
	s.Require().Equal("Salt", stored.Products[0].ProductName)

	s.Require().ErrorIs(s.catalog.UpdateAgency(s.ctx, domain.Agency{ID: uuid.NewString(), Name: "x"}), domain.ErrAgencyNotFound)
	_, err = s.catalog.GetAgency(s.ctx, uuid.NewString())
	s.Require().ErrorIs(err, domain.ErrAgencyNotFound)
}

func (s *RepositorySuite) TestCatalog_DeleteBlockedByOrdersKeepsProducts() {
	acme := s.createAgency("Acme", "Soap")
	shop := s.createShop("Joe's Store")
	s.createOrder(shop.ID, acme, s.now())

	err := s.catalog.DeleteAgency(s.ctx, acme.ID)
	s.Require().True(domain.IsConstraintViolation(err), "got %v", err)

	stored, err := s.catalog.GetAgency(s.ctx, acme.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Products, 1)

	unused := s.createAgency("Unused", "Tea")
	s.Require().NoError(s.catalog.DeleteAgency(s.ctx, unused.ID))
	s.Require().ErrorIs(s.catalog.DeleteAgency(s.ctx, unused.ID), domain.ErrAgencyNotFound)
}

func (s *RepositorySuite) TestCatalog_UpdateKeepsOrderLines() {
	acme := s.createAgency("Acme", "Soap")
	shop := s.createShop("Joe's Store")
	order := s.createOrder(shop.ID, acme, s.now())

	acme.Products = []domain.AgencyProduct{{ID: uuid.NewString(), AgencyID: acme.ID, ProductName: "Tea", Unit: "kg"}}
	s.Require().NoError(s.catalog.UpdateAgency(s.ctx, acme))

	stored, err := s.orders.Get(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Lines, 1)
	s.Require().Empty(stored.Lines[0].AgencyProductID)
	s.Require().Equal("Soap", stored.Lines[0].ProductName)
}

func (s *RepositorySuite) TestCatalog_UpdateKeepsProductsWithSameID() {
	acme := s.createAgency("Acme", "Soap", "Rice")
	shop := s.createShop("Joe's Store")
	order := s.createOrder(shop.ID, acme, s.now())
	soap := acme.Products[0]

	acme.Phone = "555-0101"
	acme.Products = []domain.AgencyProduct{
		{ID: uuid.NewString(), AgencyID: acme.ID, ProductName: "Tea", Unit: "kg"},
		{ID: soap.ID, AgencyID: acme.ID, ProductName: "Soap", Unit: "Crate"},
	}
	s.Require().NoError(s.catalog.UpdateAgency(s.ctx, acme))

	stored, err := s.catalog.GetAgency(s.ctx, acme.ID)
	s.Require().NoError(err)
	s.Require().Equal("555-0101", stored.Phone)
	s.Require().Len(stored.Products, 2)
	s.Require().Equal("Tea", stored.Products[0].ProductName)
	s.Require().Equal(soap.ID, stored.Products[1].ID)
	s.Require().Equal("Crate", stored.Products[1].Unit)

	placed, err := s.orders.Get(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Len(placed.Lines, 2)
	s.Require().Equal(soap.ID, placed.Lines[0].AgencyProductID)
	s.Require().Empty(placed.Lines[1].AgencyProductID)
	s.Require().Equal("Rice", placed.Lines[1].ProductName)

	// Корзина, собранная до правки, всё ещё оформляется.
	next := s.createOrder(shop.ID, domain.Agency{ID: acme.ID, Name: acme.Name, Products: []domain.AgencyProduct{soap}}, s.now())
	reread, err := s.orders.Get(s.ctx, next.ID)
	s.Require().NoError(err)
	s.Require().Equal(soap.ID, reread.Lines[0].AgencyProductID)
}

func (s *RepositorySuite) TestOrders_CreateLinesRejectsUnknownProduct() {
	acme := s.createAgency("Acme", "Soap")
	shop := s.createShop("Joe's Store")
	order := domain.Order{
		ID: uuid.NewString(), ShopID: shop.ID, Status: domain.OrderStatusPending,
		Version: 1, CreatedAt: s.now(), UpdatedAt: s.now(),
	}
	s.Require().NoError(s.orders.Create(s.ctx, order))

	err := s.orders.CreateLines(s.ctx, order.ID, []domain.OrderLine{{
		ID: uuid.NewString(), OrderID: order.ID, AgencyID: acme.ID, AgencyProductID: uuid.NewString(),
		AgencyName: acme.Name, ProductName: "Soap", Unit: "Box", Quantity: 1,
	}})
	s.Require().True(domain.IsConstraintViolation(err), "got %v", err)

	stored, err := s.orders.Get(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Empty(stored.Lines)
}

func (s *RepositorySuite) TestShops_NonASCIINamesFoldInGo() {
	shop := s.createShop("École du Nord")

	found, err := s.shops.FindByName(s.ctx, "école du nord")
	s.Require().NoError(err)
	s.Require().Equal(shop.ID, found.ID)

	dup := domain.Shop{ID: uuid.NewString(), Name: "ÉCOLE DU NORD", CreatedAt: s.now()}
	s.Require().ErrorIs(s.shops.Create(s.ctx, dup), domain.ErrAlreadyExists)

	_, err = s.shops.FindByName(s.ctx, "ecole du nord")
	s.Require().ErrorIs(err, domain.ErrShopNotFound)
}

func (s *RepositorySuite) TestShops_FindByNameIgnoresCase() {
	shop := s.createShop("Joe's Store")

	found, err := s.shops.FindByName(s.ctx, "joe's store")
	s.Require().NoError(err)
	s.Require().Equal(shop.ID, found.ID)

	_, err = s.shops.FindByName(s.ctx, "Joe")
	s.Require().ErrorIs(err, domain.ErrShopNotFound)

	dup := domain.Shop{ID: uuid.NewString(), Name: "JOE'S STORE", CreatedAt: s.now()}
	s.Require().ErrorIs(s.shops.Create(s.ctx, dup), domain.ErrAlreadyExists)
}

func (s *RepositorySuite) TestOrders_CreateGetListNewestFirst() {
	acme := s.createAgency("Acme", "Soap", "Rice")
	shop := s.createShop("Joe's Store")
	base := s.now()
	older := s.createOrder(shop.ID, acme, base.Add(-time.Hour))
	newer := s.createOrder(shop.ID, acme, base)

	stored, err := s.orders.Get(s.ctx, older.ID)
	s.Require().NoError(err)
	s.Require().Equal("Joe's Store", stored.ShopName)
	s.Require().Equal(domain.OrderStatusPending, stored.Status)
	s.Require().Len(stored.Lines, 2)
	s.Require().Equal("Soap", stored.Lines[0].ProductName)
	s.Require().Equal(2, stored.Lines[1].Quantity)

	orders, err := s.orders.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(orders, 2)
	s.Require().Equal(newer.ID, orders[0].ID)
	s.Require().Equal(older.ID, orders[1].ID)
	s.Require().Len(orders[1].Lines, 2)

	_, err = s.orders.Get(s.ctx, uuid.NewString())
	s.Require().ErrorIs(err, domain.ErrOrderNotFound)
}

func (s *RepositorySuite) TestOrders_CreateRequiresExistingShop() {
	err := s.orders.Create(s.ctx, domain.Order{
		ID: uuid.NewString(), ShopID: uuid.NewString(), Status: domain.OrderStatusPending,
		Version: 1, CreatedAt: s.now(), UpdatedAt: s.now(),
	})
	s.Require().True(domain.IsConstraintViolation(err), "got %v", err)
}

func (s *RepositorySuite) TestOrders_CreateLinesIsAllOrNothing() {
	acme := s.createAgency("Acme", "Soap")
	shop := s.createShop("Joe's Store")
	order := domain.Order{ID: uuid.NewString(), ShopID: shop.ID, Status: domain.OrderStatusPending, Version: 1, CreatedAt: s.now(), UpdatedAt: s.now()}
	s.Require().NoError(s.orders.Create(s.ctx, order))

	lines := []domain.OrderLine{
		{ID: uuid.NewString(), OrderID: order.ID, AgencyID: acme.ID, ProductName: "Soap", Unit: "Box", Quantity: 1},
		{ID: uuid.NewString(), OrderID: order.ID, AgencyID: uuid.NewString(), ProductName: "Ghost", Unit: "Box", Quantity: 1},
	}
	err := s.orders.CreateLines(s.ctx, order.ID, lines)
	s.Require().Error(err)

	stored, err := s.orders.Get(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Empty(stored.Lines)
}

func (s *RepositorySuite) TestOrders_SaveVersionConflictAndDelete() {
	acme := s.createAgency("Acme", "Soap")
	shop := s.createShop("Joe's Store")
	order := s.createOrder(shop.ID, acme, s.now())

	order.Status = domain.OrderStatusCompleted
	order.UpdatedAt = s.now()
	s.Require().NoError(s.orders.Save(s.ctx, order))

	stored, err := s.orders.Get(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Equal(domain.OrderStatusCompleted, stored.Status)
	s.Require().EqualValues(2, stored.Version)

	s.Require().ErrorIs(s.orders.Save(s.ctx, order), domain.ErrOrderVersionConflict)
	missing := order
	missing.ID = uuid.NewString()
	s.Require().ErrorIs(s.orders.Save(s.ctx, missing), domain.ErrOrderNotFound)

	s.Require().NoError(s.orders.Delete(s.ctx, order.ID))
	s.Require().ErrorIs(s.orders.Delete(s.ctx, order.ID), domain.ErrOrderNotFound)
	s.Require().NoError(s.catalog.DeleteAgency(s.ctx, acme.ID))
}

func (s *RepositorySuite) TestOutbox_Lifecycle() {
	first, err := s.outbox.Enqueue(s.ctx, domain.OutboxMessage{AggregateType: "order", AggregateID: "o-1", EventType: "OrderPlaced", Payload: []byte(`{"a":1}`)})
	s.Require().NoError(err)
	s.Require().NotEmpty(first.ID)
	_, err = s.outbox.Enqueue(s.ctx, domain.OutboxMessage{AggregateType: "order", AggregateID: "o-2", EventType: "OrderPlaced", Payload: []byte(`{}`)})
	s.Require().NoError(err)

	stats, err := s.outbox.Stats(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(2, stats.PendingCount)
	s.Require().False(stats.OldestPendingAt.IsZero())

	pending, err := s.outbox.PullPending(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Require().JSONEq(`{"a":1}`, string(pending[0].Payload))

	s.Require().NoError(s.outbox.MarkSent(s.ctx, first.ID))
	s.Require().True(errors.Is(s.outbox.MarkFailed(s.ctx, "missing"), domain.ErrOutboxPublish))

	stats, err = s.outbox.Stats(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(1, stats.PendingCount)
}

func (s *RepositorySuite) TestTimeline_AppendList() {
	base := s.now()
	s.Require().NoError(s.timeline.Append(s.ctx, domain.TimelineEvent{OrderID: "o-1", Type: domain.TimelineStatusChanged, Reason: "Completed", Occurred: base.Add(time.Second)}))
	s.Require().NoError(s.timeline.Append(s.ctx, domain.TimelineEvent{OrderID: "o-1", Type: domain.TimelineOrderCreated, Reason: "Pending", Occurred: base}))

	events, err := s.timeline.List(s.ctx, "o-1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Require().Equal(domain.TimelineOrderCreated, events[0].Type)
	s.Require().Equal(domain.TimelineStatusChanged, events[1].Type)
}
