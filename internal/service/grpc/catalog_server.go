// Package grpcsvc публикует каталог, сессии сборки и дашборд заказов как gRPC API.
package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/service/catalog"
)

// CatalogService реализует CatalogServer поверх catalog.Service.
type CatalogService struct {
	svc    *catalog.Service
	logger *log.Entry
}

func NewCatalogService(svc *catalog.Service, logger *log.Entry) *CatalogService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-catalog")
	}
	return &CatalogService{svc: svc, logger: logger}
}

func (s *CatalogService) ListAgencies(ctx context.Context, _ *Empty) (*ListAgenciesResponse, error) {
	agencies, err := s.svc.LoadCatalog(ctx)
	if err != nil {
		return nil, StatusFromError(s.logger, "ListAgencies", err)
	}
	return &ListAgenciesResponse{Agencies: toAgencies(agencies)}, nil
}

func (s *CatalogService) GetAgency(ctx context.Context, req *AgencyRequest) (*AgencyResponse, error) {
	if req.AgencyID == "" {
		return nil, status.Error(codes.InvalidArgument, "agency_id is required")
	}
	agency, err := s.svc.GetAgency(ctx, req.AgencyID)
	if err != nil {
		return nil, StatusFromError(s.logger, "GetAgency", err)
	}
	return &AgencyResponse{Agency: toAgency(agency)}, nil
}

func (s *CatalogService) CreateAgency(ctx context.Context, req *SaveAgencyRequest) (*AgencyResponse, error) {
	agency, err := s.svc.CreateAgency(ctx, agencyInput(req))
	if err != nil {
		return nil, StatusFromError(s.logger, "CreateAgency", err)
	}
	return &AgencyResponse{Agency: toAgency(agency)}, nil
}

func (s *CatalogService) UpdateAgency(ctx context.Context, req *SaveAgencyRequest) (*AgencyResponse, error) {
	if req.AgencyID == "" {
		return nil, status.Error(codes.InvalidArgument, "agency_id is required")
	}
	agency, err := s.svc.UpdateAgency(ctx, req.AgencyID, agencyInput(req))
	if err != nil {
		return nil, StatusFromError(s.logger, "UpdateAgency", err)
	}
	return &AgencyResponse{Agency: toAgency(agency)}, nil
}

func (s *CatalogService) DeleteAgency(ctx context.Context, req *AgencyRequest) (*Empty, error) {
	if req.AgencyID == "" {
		return nil, status.Error(codes.InvalidArgument, "agency_id is required")
	}
	if err := s.svc.DeleteAgency(ctx, req.AgencyID); err != nil {
		return nil, StatusFromError(s.logger, "DeleteAgency", err)
	}
	return &Empty{}, nil
}

func agencyInput(req *SaveAgencyRequest) catalog.AgencyInput {
	in := catalog.AgencyInput{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Products:      make([]catalog.ProductInput, 0, len(req.Products)),
	}
	for _, p := range req.Products {
		in.Products = append(in.Products, catalog.ProductInput{Name: p.Name, Unit: p.Unit})
	}
	return in
}

var _ CatalogServer = (*CatalogService)(nil)
