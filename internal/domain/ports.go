package domain

import (
	"context"
	"time"
)

// CatalogRepository хранит агентства вместе с их товарами.
type CatalogRepository interface {
	// ListAgencies возвращает все агентства с товарами, отсортированные по названию.
	ListAgencies(ctx context.Context) ([]Agency, error)
	// GetAgency возвращает агентство или ErrAgencyNotFound.
	GetAgency(ctx context.Context, id string) (Agency, error)
	// CreateAgency сохраняет агентство и его товары.
	CreateAgency(ctx context.Context, agency Agency) error
	// UpdateAgency обновляет агентство и полностью заменяет список товаров.
	UpdateAgency(ctx context.Context, agency Agency) error
	// DeleteAgency удаляет товары и агентство. ErrConstraintViolation, если товары есть в заказах.
	DeleteAgency(ctx context.Context, id string) error
}

// ShopRepository хранит магазины-покупатели.
type ShopRepository interface {
	// FindByName ищет магазин по точному названию без учёта регистра. ErrShopNotFound, если нет.
	FindByName(ctx context.Context, name string) (Shop, error)
	Create(ctx context.Context, shop Shop) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ без позиций.
	Create(ctx context.Context, order Order) error
	// CreateLines сохраняет все позиции заказа одной операцией.
	CreateLines(ctx context.Context, orderID string, lines []OrderLine) error
	// Get возвращает заказ с позициями и названием магазина или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает все заказы с позициями, новые первыми.
	List(ctx context.Context) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
	// Delete удаляет позиции заказа, затем сам заказ.
	Delete(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// SessionStore хранит сессии сборки заказа.
type SessionStore interface {
	Get(ctx context.Context, id string) (BuilderSession, error)
	Save(ctx context.Context, session BuilderSession) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired удаляет до limit сессий, истёкших до before. Возвращает число удалённых.
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// SubmitGuard не даёт оформить заказ из одной сессии дважды одновременно.
type SubmitGuard interface {
	// Acquire возвращает токен владельца или false, если ключ уже занят.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	// Release снимает блокировку, только если она всё ещё принадлежит token.
	Release(ctx context.Context, key, token string) error
}

// CatalogCache хранит снимок каталога между запросами.
type CatalogCache interface {
	// Get возвращает снимок и false, если его нет или он устарел.
	Get(ctx context.Context) ([]Agency, bool, error)
	Set(ctx context.Context, agencies []Agency, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// SubmissionStep задаёт константы шагов оформления для метрик/логов.
type SubmissionStep string

const (
	SubmissionStepResolveShop SubmissionStep = "resolve_shop"
	SubmissionStepCreateOrder SubmissionStep = "create_order"
	SubmissionStepCreateLines SubmissionStep = "create_lines"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
