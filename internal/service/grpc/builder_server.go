package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/builder"
)

// BuilderService реализует BuilderServer поверх builder.Service.
type BuilderService struct {
	svc    *builder.Service
	logger *log.Entry
}

func NewBuilderService(svc *builder.Service, logger *log.Entry) *BuilderService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-builder")
	}
	return &BuilderService{svc: svc, logger: logger}
}

// OpenSession открывает сессию даже без каталога; причина отдаётся в CatalogError.
func (s *BuilderService) OpenSession(ctx context.Context, _ *Empty) (*SessionResponse, error) {
	session, err := s.svc.Open(ctx)
	if err != nil && session.ID == "" {
		return nil, StatusFromError(s.logger, "OpenSession", err)
	}
	resp := &SessionResponse{Session: toSession(session)}
	if err != nil {
		resp.CatalogError = err.Error()
	}
	return resp, nil
}

func (s *BuilderService) GetSession(ctx context.Context, req *SessionRequest) (*SessionResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	session, err := s.svc.Get(ctx, req.SessionID)
	if err != nil {
		return nil, StatusFromError(s.logger, "GetSession", err)
	}
	return &SessionResponse{Session: toSession(session)}, nil
}

func (s *BuilderService) CloseSession(ctx context.Context, req *SessionRequest) (*Empty, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	if err := s.svc.Close(ctx, req.SessionID); err != nil {
		return nil, StatusFromError(s.logger, "CloseSession", err)
	}
	return &Empty{}, nil
}

func (s *BuilderService) RefreshCatalog(ctx context.Context, req *SessionRequest) (*SessionResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return s.sessionResult("RefreshCatalog")(s.svc.RefreshCatalog(ctx, req.SessionID))
}

func (s *BuilderService) SelectAgency(ctx context.Context, req *SelectAgencyRequest) (*SessionResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return s.sessionResult("SelectAgency")(s.svc.SelectAgency(ctx, req.SessionID, req.AgencyID))
}

func (s *BuilderService) ListProducts(ctx context.Context, req *ListProductsRequest) (*ListProductsResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	views, err := s.svc.Products(ctx, req.SessionID, req.AgencyID, req.Search)
	if err != nil {
		return nil, StatusFromError(s.logger, "ListProducts", err)
	}
	resp := &ListProductsResponse{Products: make([]ProductQuantity, 0, len(views))}
	for _, v := range views {
		resp.Products = append(resp.Products, ProductQuantity{Product: toProduct(v.Product), Quantity: v.Quantity})
	}
	return resp, nil
}

func (s *BuilderService) SetQuantity(ctx context.Context, req *SetQuantityRequest) (*CartChangeResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	change, session, err := s.svc.SetQuantity(ctx, req.SessionID, req.AgencyID, req.ProductID, req.Quantity)
	return s.changeResult("SetQuantity", change, session, err)
}

func (s *BuilderService) AdjustQuantity(ctx context.Context, req *AdjustQuantityRequest) (*CartChangeResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	change, session, err := s.svc.Adjust(ctx, req.SessionID, req.AgencyID, req.ProductID, req.Delta)
	return s.changeResult("AdjustQuantity", change, session, err)
}

func (s *BuilderService) RemoveLine(ctx context.Context, req *RemoveLineRequest) (*SessionResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return s.sessionResult("RemoveLine")(s.svc.RemoveLine(ctx, req.SessionID, req.LineID))
}

func (s *BuilderService) SetShopName(ctx context.Context, req *SetShopNameRequest) (*SessionResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return s.sessionResult("SetShopName")(s.svc.SetShopName(ctx, req.SessionID, req.ShopName))
}

func (s *BuilderService) Summary(ctx context.Context, req *SessionRequest) (*SummaryResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	summary, err := s.svc.Summary(ctx, req.SessionID)
	if err != nil {
		return nil, StatusFromError(s.logger, "Summary", err)
	}
	return toSummary(summary), nil
}

func (s *BuilderService) PlaceOrder(ctx context.Context, req *SessionRequest) (*PlaceOrderResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}
	receipt, err := s.svc.PlaceOrder(ctx, req.SessionID)
	if err != nil {
		return nil, StatusFromError(s.logger, "PlaceOrder", err)
	}
	return toPlaceOrder(receipt), nil
}

func (s *BuilderService) sessionResult(operation string) func(domain.BuilderSession, error) (*SessionResponse, error) {
	return func(session domain.BuilderSession, err error) (*SessionResponse, error) {
		if err != nil {
			return nil, StatusFromError(s.logger, operation, err)
		}
		return &SessionResponse{Session: toSession(session)}, nil
	}
}

func (s *BuilderService) changeResult(operation string, change domain.CartChange, session domain.BuilderSession, err error) (*CartChangeResponse, error) {
	if err != nil {
		return nil, StatusFromError(s.logger, operation, err)
	}
	return &CartChangeResponse{Change: string(change), Session: toSession(session)}, nil
}

func requireSession(id string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "session_id is required")
	}
	return nil
}

var _ BuilderServer = (*BuilderService)(nil)
