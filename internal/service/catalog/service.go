// Package catalog управляет агентствами и их товарами и отдаёт снимок каталога сессиям сборки.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

const defaultCacheTTL = 30 * time.Second

// ProductInput — товар в форме создания или редактирования агентства.
type ProductInput struct {
	Name string
	Unit string
}

// AgencyInput — данные формы агентства.
type AgencyInput struct {
	Name          string
	ContactPerson string
	Phone         string
	Products      []ProductInput
}

// Option настраивает Service.
type Option func(*Service)

// WithCache ставит кэш снимка каталога перед репозиторием.
func WithCache(cache domain.CatalogCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithLogger(logger *log.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service объединяет загрузку каталога и его редактирование.
type Service struct {
	repo     domain.CatalogRepository
	cache    domain.CatalogCache
	cacheTTL time.Duration
	logger   *log.Entry
	metrics  *metrics.SessionMetrics
	now      func() time.Time
}

// NewService создаёт сервис каталога. Кэш опционален.
func NewService(repo domain.CatalogRepository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		cacheTTL: defaultCacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New().WithField("component", "catalog-service")
	}
	return s
}

// LoadCatalog возвращает все агентства с товарами.
// Ошибка чтения оборачивается в ErrCatalogUnavailable; пустой каталог — это пустой срез без ошибки.
func (s *Service) LoadCatalog(ctx context.Context) ([]domain.Agency, error) {
	if s.cache != nil {
		agencies, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("catalog cache read failed, falling back to repository")
		case ok:
			s.recordLoad(agencies, nil)
			return agencies, nil
		}
	}

	agencies, err := s.repo.ListAgencies(ctx)
	if err != nil {
		s.recordLoad(nil, err)
		s.logger.WithError(err).Warn("catalog load failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	if agencies == nil {
		agencies = []domain.Agency{}
	}
	s.recordLoad(agencies, nil)

	if s.cache != nil {
		if err := s.cache.Set(ctx, agencies, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("catalog cache write failed")
		}
	}
	return agencies, nil
}

// Refresh сбрасывает кэш и перечитывает каталог из репозитория.
func (s *Service) Refresh(ctx context.Context) ([]domain.Agency, error) {
	s.invalidate(ctx)
	return s.LoadCatalog(ctx)
}

// GetAgency возвращает агентство или ErrAgencyNotFound.
func (s *Service) GetAgency(ctx context.Context, id string) (domain.Agency, error) {
	return s.repo.GetAgency(ctx, id)
}

// CreateAgency сохраняет новое агентство. Товары без названия пропускаются.
func (s *Service) CreateAgency(ctx context.Context, in AgencyInput) (domain.Agency, error) {
	agency := buildAgency(uuid.NewString(), in, nil)
	agency.CreatedAt = s.now()
	if err := agency.Normalize(); err != nil {
		return domain.Agency{}, err
	}

	if err := s.repo.CreateAgency(ctx, agency); err != nil {
		return domain.Agency{}, fmt.Errorf("create agency: %w", err)
	}
	s.invalidate(ctx)

	s.logger.WithFields(log.Fields{
		"agency_id": agency.ID,
		"products":  len(agency.Products),
	}).Info("agency created")
	return agency, nil
}

// UpdateAgency перезаписывает агентство и заменяет список его товаров.
// Товар с прежним названием сохраняет идентификатор, поэтому открытые корзины остаются действительными.
func (s *Service) UpdateAgency(ctx context.Context, id string, in AgencyInput) (domain.Agency, error) {
	existing, err := s.repo.GetAgency(ctx, id)
	if err != nil {
		return domain.Agency{}, err
	}

	agency := buildAgency(id, in, existing.Products)
	agency.CreatedAt = existing.CreatedAt
	if err := agency.Normalize(); err != nil {
		return domain.Agency{}, err
	}

	if err := s.repo.UpdateAgency(ctx, agency); err != nil {
		return domain.Agency{}, fmt.Errorf("update agency: %w", err)
	}
	s.invalidate(ctx)

	s.logger.WithFields(log.Fields{
		"agency_id": agency.ID,
		"products":  len(agency.Products),
	}).Info("agency updated")
	return agency, nil
}

// DeleteAgency удаляет агентство вместе с товарами.
// Если товары агентства есть в заказах, возвращается ErrAgencyInUse поверх ErrConstraintViolation.
func (s *Service) DeleteAgency(ctx context.Context, id string) error {
	if err := s.repo.DeleteAgency(ctx, id); err != nil {
		if domain.IsConstraintViolation(err) {
			s.logger.WithField("agency_id", id).Info("agency delete blocked by existing orders")
			return fmt.Errorf("%w: %w", domain.ErrAgencyInUse, err)
		}
		return fmt.Errorf("delete agency: %w", err)
	}
	s.invalidate(ctx)

	s.logger.WithField("agency_id", id).Info("agency deleted")
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("catalog cache invalidation failed")
	}
}

func (s *Service) recordLoad(agencies []domain.Agency, err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err != nil:
		s.metrics.RecordCatalogLoad("error")
	case len(agencies) == 0:
		s.metrics.RecordCatalogLoad("empty")
	default:
		s.metrics.RecordCatalogLoad("ok")
	}
}

func buildAgency(id string, in AgencyInput, existing []domain.AgencyProduct) domain.Agency {
	agency := domain.Agency{
		ID:            id,
		Name:          in.Name,
		ContactPerson: in.ContactPerson,
		Phone:         in.Phone,
		Products:      make([]domain.AgencyProduct, 0, len(in.Products)),
	}
	known := make(map[string]string, len(existing))
	for _, p := range existing {
		known[p.ProductName] = p.ID
	}
	for _, p := range in.Products {
		productID, ok := known[strings.TrimSpace(p.Name)]
		if ok {
			// Повтор названия в форме получает новый идентификатор.
			delete(known, strings.TrimSpace(p.Name))
		} else {
			productID = uuid.NewString()
		}
		agency.Products = append(agency.Products, domain.AgencyProduct{
			ID:          productID,
			AgencyID:    id,
			ProductName: p.Name,
			Unit:        p.Unit,
		})
	}
	return agency
}

