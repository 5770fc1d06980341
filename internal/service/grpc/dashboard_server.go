package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/dashboard"
)

// DashboardService реализует DashboardServer поверх dashboard.Service.
type DashboardService struct {
	svc    *dashboard.Service
	logger *log.Entry
}

func NewDashboardService(svc *dashboard.Service, logger *log.Entry) *DashboardService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-dashboard")
	}
	return &DashboardService{svc: svc, logger: logger}
}

func (s *DashboardService) Overview(ctx context.Context, _ *Empty) (*OverviewResponse, error) {
	overview, err := s.svc.Overview(ctx)
	if err != nil {
		return nil, StatusFromError(s.logger, "Overview", err)
	}
	return &OverviewResponse{
		Pending:   toOrderCards(overview.Pending),
		Completed: toOrderCards(overview.Completed),
	}, nil
}

func (s *DashboardService) GetOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	if err := requireOrder(req.OrderID); err != nil {
		return nil, err
	}
	card, err := s.svc.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, StatusFromError(s.logger, "GetOrder", err)
	}
	return &OrderResponse{Order: toOrderCard(card)}, nil
}

func (s *DashboardService) SetStatus(ctx context.Context, req *SetStatusRequest) (*OrderResponse, error) {
	if err := requireOrder(req.OrderID); err != nil {
		return nil, err
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, StatusFromError(s.logger, "SetStatus", err)
	}
	card, err := s.svc.SetStatus(ctx, req.OrderID, next, req.ExpectedVersion)
	if err != nil {
		return nil, StatusFromError(s.logger, "SetStatus", err)
	}
	return &OrderResponse{Order: toOrderCard(card)}, nil
}

func (s *DashboardService) DeleteOrder(ctx context.Context, req *OrderRequest) (*Empty, error) {
	if err := requireOrder(req.OrderID); err != nil {
		return nil, err
	}
	if err := s.svc.DeleteOrder(ctx, req.OrderID); err != nil {
		return nil, StatusFromError(s.logger, "DeleteOrder", err)
	}
	return &Empty{}, nil
}

func (s *DashboardService) Timeline(ctx context.Context, req *OrderRequest) (*TimelineResponse, error) {
	if err := requireOrder(req.OrderID); err != nil {
		return nil, err
	}
	events, err := s.svc.Timeline(ctx, req.OrderID)
	if err != nil {
		return nil, StatusFromError(s.logger, "Timeline", err)
	}
	resp := &TimelineResponse{Events: make([]TimelineEvent, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, TimelineEvent{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	return resp, nil
}

func (s *DashboardService) ExportDispatchSheet(ctx context.Context, _ *Empty) (*ExportResponse, error) {
	info, err := s.svc.ExportDispatchSheet(ctx)
	if err != nil {
		return nil, StatusFromError(s.logger, "ExportDispatchSheet", err)
	}
	return &ExportResponse{Export: toExport(info)}, nil
}

func (s *DashboardService) ListExports(ctx context.Context, _ *Empty) (*ListExportsResponse, error) {
	infos, err := s.svc.ListExports(ctx)
	if err != nil {
		return nil, StatusFromError(s.logger, "ListExports", err)
	}
	resp := &ListExportsResponse{Exports: make([]Export, 0, len(infos))}
	for _, info := range infos {
		resp.Exports = append(resp.Exports, toExport(info))
	}
	return resp, nil
}

func requireOrder(id string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "order_id is required")
	}
	return nil
}

var _ DashboardServer = (*DashboardService)(nil)
