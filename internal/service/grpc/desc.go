package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	CatalogServiceName   = "orderdesk.v1.CatalogService"
	BuilderServiceName   = "orderdesk.v1.BuilderService"
	DashboardServiceName = "orderdesk.v1.DashboardService"
)

// unary строит обработчик метода так же, как это делает protoc-gen-go-grpc.
func unary[S, Req, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CatalogServer — управление агентствами и товарами.
type CatalogServer interface {
	ListAgencies(context.Context, *Empty) (*ListAgenciesResponse, error)
	GetAgency(context.Context, *AgencyRequest) (*AgencyResponse, error)
	CreateAgency(context.Context, *SaveAgencyRequest) (*AgencyResponse, error)
	UpdateAgency(context.Context, *SaveAgencyRequest) (*AgencyResponse, error)
	DeleteAgency(context.Context, *AgencyRequest) (*Empty, error)
}

var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(CatalogServiceName, "ListAgencies", CatalogServer.ListAgencies),
		unary(CatalogServiceName, "GetAgency", CatalogServer.GetAgency),
		unary(CatalogServiceName, "CreateAgency", CatalogServer.CreateAgency),
		unary(CatalogServiceName, "UpdateAgency", CatalogServer.UpdateAgency),
		unary(CatalogServiceName, "DeleteAgency", CatalogServer.DeleteAgency),
	},
	Metadata: "orderdesk/v1/catalog.json",
}

// BuilderServer — сессии сборки заказа.
type BuilderServer interface {
	OpenSession(context.Context, *Empty) (*SessionResponse, error)
	GetSession(context.Context, *SessionRequest) (*SessionResponse, error)
	CloseSession(context.Context, *SessionRequest) (*Empty, error)
	RefreshCatalog(context.Context, *SessionRequest) (*SessionResponse, error)
	SelectAgency(context.Context, *SelectAgencyRequest) (*SessionResponse, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	SetQuantity(context.Context, *SetQuantityRequest) (*CartChangeResponse, error)
	AdjustQuantity(context.Context, *AdjustQuantityRequest) (*CartChangeResponse, error)
	RemoveLine(context.Context, *RemoveLineRequest) (*SessionResponse, error)
	SetShopName(context.Context, *SetShopNameRequest) (*SessionResponse, error)
	Summary(context.Context, *SessionRequest) (*SummaryResponse, error)
	PlaceOrder(context.Context, *SessionRequest) (*PlaceOrderResponse, error)
}

var BuilderServiceDesc = grpc.ServiceDesc{
	ServiceName: BuilderServiceName,
	HandlerType: (*BuilderServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(BuilderServiceName, "OpenSession", BuilderServer.OpenSession),
		unary(BuilderServiceName, "GetSession", BuilderServer.GetSession),
		unary(BuilderServiceName, "CloseSession", BuilderServer.CloseSession),
		unary(BuilderServiceName, "RefreshCatalog", BuilderServer.RefreshCatalog),
		unary(BuilderServiceName, "SelectAgency", BuilderServer.SelectAgency),
		unary(BuilderServiceName, "ListProducts", BuilderServer.ListProducts),
		unary(BuilderServiceName, "SetQuantity", BuilderServer.SetQuantity),
		unary(BuilderServiceName, "AdjustQuantity", BuilderServer.AdjustQuantity),
		unary(BuilderServiceName, "RemoveLine", BuilderServer.RemoveLine),
		unary(BuilderServiceName, "SetShopName", BuilderServer.SetShopName),
		unary(BuilderServiceName, "Summary", BuilderServer.Summary),
		unary(BuilderServiceName, "PlaceOrder", BuilderServer.PlaceOrder),
	},
	Metadata: "orderdesk/v1/builder.json",
}

// DashboardServer — обзор и обработка размещённых заказов.
type DashboardServer interface {
	Overview(context.Context, *Empty) (*OverviewResponse, error)
	GetOrder(context.Context, *OrderRequest) (*OrderResponse, error)
	SetStatus(context.Context, *SetStatusRequest) (*OrderResponse, error)
	DeleteOrder(context.Context, *OrderRequest) (*Empty, error)
	Timeline(context.Context, *OrderRequest) (*TimelineResponse, error)
	ExportDispatchSheet(context.Context, *Empty) (*ExportResponse, error)
	ListExports(context.Context, *Empty) (*ListExportsResponse, error)
}

var DashboardServiceDesc = grpc.ServiceDesc{
	ServiceName: DashboardServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(DashboardServiceName, "Overview", DashboardServer.Overview),
		unary(DashboardServiceName, "GetOrder", DashboardServer.GetOrder),
		unary(DashboardServiceName, "SetStatus", DashboardServer.SetStatus),
		unary(DashboardServiceName, "DeleteOrder", DashboardServer.DeleteOrder),
		unary(DashboardServiceName, "Timeline", DashboardServer.Timeline),
		unary(DashboardServiceName, "ExportDispatchSheet", DashboardServer.ExportDispatchSheet),
		unary(DashboardServiceName, "ListExports", DashboardServer.ListExports),
	},
	Metadata: "orderdesk/v1/dashboard.json",
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

func RegisterBuilderServer(s grpc.ServiceRegistrar, srv BuilderServer) {
	s.RegisterService(&BuilderServiceDesc, srv)
}

func RegisterDashboardServer(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&DashboardServiceDesc, srv)
}
