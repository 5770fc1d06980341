// Package builder ведёт сессии сборки заказа: снимок каталога, корзина, название магазина и оформление.
package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/submission"
)

const (
	defaultSessionTTL    = 12 * time.Hour
	defaultSubmitLockTTL = 30 * time.Second
)

// CatalogLoader отдаёт снимок каталога.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]domain.Agency, error)
	Refresh(ctx context.Context) ([]domain.Agency, error)
}

// Submitter оформляет заказ из корзины.
type Submitter interface {
	Submit(ctx context.Context, shopName string, cart *domain.Cart) (submission.Receipt, error)
}

// ProductView — товар агентства вместе с количеством в корзине.
type ProductView struct {
	Product  domain.AgencyProduct
	Quantity int
}

// Summary — состояние корзины для панели заказа.
// AgencyBadges — число позиций корзины по каждому агентству («N in order»).
type Summary struct {
	SessionID    string
	ShopName     string
	Lines        []domain.CartLine
	LineCount    int
	AgencyBadges map[string]int
	Submittable  bool
}

// Option настраивает Service.
type Option func(*Service)

// WithSubmitGuard подключает внешнюю блокировку оформления (например, Redis).
func WithSubmitGuard(guard domain.SubmitGuard, ttl time.Duration) Option {
	return func(s *Service) {
		s.guard = guard
		if ttl > 0 {
			s.submitLockTTL = ttl
		}
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func WithLogger(logger *log.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service управляет сессиями сборки заказа.
// Операции одной сессии выполняются последовательно, сессия сохраняется после каждого изменения.
type Service struct {
	sessions  domain.SessionStore
	catalog   CatalogLoader
	submitter Submitter
	guard     domain.SubmitGuard
	locks     *keyedMutex
	logger    *log.Entry
	metrics   *metrics.SessionMetrics

	sessionTTL    time.Duration
	submitLockTTL time.Duration
	now           func() time.Time
}

// NewService создаёт сервис сессий.
func NewService(sessions domain.SessionStore, catalog CatalogLoader, submitter Submitter, opts ...Option) *Service {
	s := &Service{
		sessions:      sessions,
		catalog:       catalog,
		submitter:     submitter,
		locks:         newKeyedMutex(),
		sessionTTL:    defaultSessionTTL,
		submitLockTTL: defaultSubmitLockTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New().WithField("component", "builder-service")
	}
	return s
}

// Open создаёт сессию и загружает каталог.
// Если каталог не загрузился, сессия всё равно создаётся с пустым снимком, а ошибка возвращается рядом с ней.
func (s *Service) Open(ctx context.Context) (domain.BuilderSession, error) {
	now := s.now()
	session := domain.BuilderSession{
		ID:        uuid.NewString(),
		Catalog:   []domain.Agency{},
		Cart:      domain.NewCart(nil),
		CreatedAt: now,
	}

	agencies, loadErr := s.catalog.LoadCatalog(ctx)
	if loadErr == nil {
		applyCatalog(&session, agencies, now)
	}

	if err := s.save(ctx, &session); err != nil {
		return domain.BuilderSession{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordOpened()
	}

	entry := s.logger.WithField("session_id", session.ID)
	if loadErr != nil {
		entry.WithError(loadErr).Warn("builder session opened without catalog")
		return session, loadErr
	}
	entry.WithField("agencies", len(session.Catalog)).Info("builder session opened")
	return session, nil
}

// Get возвращает сессию или ErrSessionNotFound.
func (s *Service) Get(ctx context.Context, sessionID string) (domain.BuilderSession, error) {
	return s.sessions.Get(ctx, sessionID)
}

// Close удаляет сессию.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordClosed()
	}
	return nil
}

// RefreshCatalog перечитывает каталог. При ошибке прежний снимок сохраняется.
func (s *Service) RefreshCatalog(ctx context.Context, sessionID string) (domain.BuilderSession, error) {
	return s.mutate(ctx, sessionID, func(session *domain.BuilderSession) error {
		agencies, err := s.catalog.Refresh(ctx)
		if err != nil {
			return err
		}
		applyCatalog(session, agencies, s.now())
		return nil
	})
}

// SelectAgency переключает просматриваемое агентство.
func (s *Service) SelectAgency(ctx context.Context, sessionID, agencyID string) (domain.BuilderSession, error) {
	return s.mutate(ctx, sessionID, func(session *domain.BuilderSession) error {
		if _, ok := domain.FindAgency(session.Catalog, agencyID); !ok {
			return domain.ErrAgencyNotFound
		}
		session.CurrentAgencyID = agencyID
		return nil
	})
}

// Products возвращает товары агентства (по умолчанию текущего), отфильтрованные по search, с количествами из корзины.
func (s *Service) Products(ctx context.Context, sessionID, agencyID, search string) ([]ProductView, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if agencyID == "" {
		agencyID = session.CurrentAgencyID
	}
	agency, ok := domain.FindAgency(session.Catalog, agencyID)
	if !ok {
		return nil, domain.ErrAgencyNotFound
	}

	products := domain.FilterProducts(agency.Products, search)
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{
			Product:  p,
			Quantity: session.Cart.QuantityFor(agency.ID, p.ProductName),
		})
	}
	return views, nil
}

// SetQuantity выставляет количество товара из снимка каталога.
func (s *Service) SetQuantity(ctx context.Context, sessionID, agencyID, productID string, qty int) (domain.CartChange, domain.BuilderSession, error) {
	var change domain.CartChange
	session, err := s.mutate(ctx, sessionID, func(session *domain.BuilderSession) error {
		var err error
		change, err = s.setQuantity(session, agencyID, productID, func(int) int { return qty })
		return err
	})
	return change, session, err
}

// Adjust меняет количество на delta (кнопки +/-). Результат не опускается ниже нуля.
func (s *Service) Adjust(ctx context.Context, sessionID, agencyID, productID string, delta int) (domain.CartChange, domain.BuilderSession, error) {
	var change domain.CartChange
	session, err := s.mutate(ctx, sessionID, func(session *domain.BuilderSession) error {
		var err error
		change, err = s.setQuantity(session, agencyID, productID, func(current int) int {
			return max(current+delta, 0)
		})
		return err
	})
	return change, session, err
}

// RemoveLine удаляет позицию корзины. Неизвестный идентификатор игнорируется.
func (s *Service) RemoveLine(ctx context.Context, sessionID, lineID string) (domain.BuilderSession, error) {
	return s.mutate(ctx, sessionID, func(session *domain.BuilderSession) error {
		if session.Cart.RemoveLine(lineID) {
			s.recordMutation(domain.CartLineRemoved)
		}
		return nil
	})
}

// SetShopName запоминает введённое название магазина как есть; обрезка пробелов — при оформлении.
func (s *Service) SetShopName(ctx context.Context, sessionID, shopName string) (domain.BuilderSession, error) {
	return s.mutate(ctx, sessionID, func(session *domain.BuilderSession) error {
		session.ShopName = shopName
		return nil
	})
}

// Summary возвращает состояние корзины сессии.
func (s *Service) Summary(ctx context.Context, sessionID string) (Summary, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(session), nil
}

// PlaceOrder оформляет заказ из корзины сессии.
// При успехе корзина и название магазина очищаются; при ошибке сессия не меняется.
func (s *Service) PlaceOrder(ctx context.Context, sessionID string) (submission.Receipt, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	// Сессию читаем только под блокировкой: другая реплика могла уже оформить и очистить корзину.
	release, err := s.acquireSubmitLock(ctx, sessionID)
	if err != nil {
		return submission.Receipt{}, err
	}
	defer release()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return submission.Receipt{}, err
	}
	if !session.Submittable() {
		return submission.Receipt{}, domain.ErrOrderNotSubmittable
	}

	entry := s.logger.WithField("session_id", sessionID)
	receipt, err := s.submitter.Submit(ctx, session.ShopName, session.Cart)
	if err != nil {
		entry.WithError(err).Warn("place order failed, cart kept")
		return submission.Receipt{}, err
	}

	session.Cart.Clear()
	session.ShopName = ""
	if err := s.save(ctx, &session); err != nil {
		// Заказ уже оформлен; несохранённая очистка корзины не должна выглядеть как ошибка оформления.
		entry.WithError(err).Error("order placed but session reset was not saved")
	}

	entry.WithField("order_id", receipt.Order.ID).Info("order placed from builder session")
	return receipt, nil
}

func (s *Service) acquireSubmitLock(ctx context.Context, sessionID string) (func(), error) {
	if s.guard == nil {
		return func() {}, nil
	}
	key := "session:" + sessionID
	token, ok, err := s.guard.Acquire(ctx, key, s.submitLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire submit lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrSubmissionInProgress
	}
	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).Warn("release submit lock failed")
		}
	}, nil
}

func (s *Service) setQuantity(session *domain.BuilderSession, agencyID, productID string, next func(current int) int) (domain.CartChange, error) {
	agency, ok := domain.FindAgency(session.Catalog, agencyID)
	if !ok {
		return domain.CartUnchanged, domain.ErrAgencyNotFound
	}
	product, ok := agency.FindProduct(productID)
	if !ok {
		return domain.CartUnchanged, domain.ErrProductNotFound
	}

	qty := next(session.Cart.QuantityFor(agency.ID, product.ProductName))
	change, err := session.Cart.SetQuantity(agency.ID, product.ID, product.ProductName, product.Unit, agency.Name, qty)
	if err != nil {
		return change, err
	}
	s.recordMutation(change)
	return change, nil
}

// mutate применяет fn к сессии под её мьютексом и сохраняет результат. Ошибка fn отменяет изменения.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*domain.BuilderSession) error) (domain.BuilderSession, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.BuilderSession{}, err
	}
	if err := fn(&session); err != nil {
		return domain.BuilderSession{}, err
	}
	if err := s.save(ctx, &session); err != nil {
		return domain.BuilderSession{}, err
	}
	return session, nil
}

func (s *Service) save(ctx context.Context, session *domain.BuilderSession) error {
	now := s.now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.sessionTTL)
	if err := s.sessions.Save(ctx, *session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Service) recordMutation(change domain.CartChange) {
	if s.metrics != nil && change != domain.CartUnchanged {
		s.metrics.RecordCartMutation(string(change))
	}
}

// applyCatalog заменяет снимок и оставляет выбранным прежнее агентство, если оно ещё есть.
func applyCatalog(session *domain.BuilderSession, agencies []domain.Agency, loadedAt time.Time) {
	session.Catalog = agencies
	session.CatalogLoadedAt = loadedAt
	if _, ok := domain.FindAgency(agencies, session.CurrentAgencyID); ok {
		return
	}
	session.CurrentAgencyID = ""
	if len(agencies) > 0 {
		session.CurrentAgencyID = agencies[0].ID
	}
}

func summarize(session domain.BuilderSession) Summary {
	lines := session.Cart.Lines()
	badges := make(map[string]int)
	for _, l := range lines {
		badges[l.AgencyID]++
	}
	return Summary{
		SessionID:    session.ID,
		ShopName:     session.ShopName,
		Lines:        lines,
		LineCount:    len(lines),
		AgencyBadges: badges,
		Submittable:  domain.IsOrderSubmittable(session.ShopName, session.Cart),
	}
}
