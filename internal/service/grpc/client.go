package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

type invoker struct {
	cc      grpc.ClientConnInterface
	service string
}

func (i invoker) call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append(CallOptions(), opts...)
	return i.cc.Invoke(ctx, "/"+i.service+"/"+method, in, out, opts...)
}

func invoke[T any](ctx context.Context, inv invoker, method string, in any, opts ...grpc.CallOption) (*T, error) {
	out := new(T)
	if err := inv.call(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CatalogClient — клиент CatalogService.
type CatalogClient struct{ inv invoker }

func NewCatalogClient(cc grpc.ClientConnInterface) *CatalogClient {
	return &CatalogClient{inv: invoker{cc: cc, service: CatalogServiceName}}
}

func (c *CatalogClient) ListAgencies(ctx context.Context, opts ...grpc.CallOption) (*ListAgenciesResponse, error) {
	return invoke[ListAgenciesResponse](ctx, c.inv, "ListAgencies", &Empty{}, opts...)
}

func (c *CatalogClient) GetAgency(ctx context.Context, in *AgencyRequest, opts ...grpc.CallOption) (*AgencyResponse, error) {
	return invoke[AgencyResponse](ctx, c.inv, "GetAgency", in, opts...)
}

func (c *CatalogClient) CreateAgency(ctx context.Context, in *SaveAgencyRequest, opts ...grpc.CallOption) (*AgencyResponse, error) {
	return invoke[AgencyResponse](ctx, c.inv, "CreateAgency", in, opts...)
}

func (c *CatalogClient) UpdateAgency(ctx context.Context, in *SaveAgencyRequest, opts ...grpc.CallOption) (*AgencyResponse, error) {
	return invoke[AgencyResponse](ctx, c.inv, "UpdateAgency", in, opts...)
}

func (c *CatalogClient) DeleteAgency(ctx context.Context, in *AgencyRequest, opts ...grpc.CallOption) error {
	return c.inv.call(ctx, "DeleteAgency", in, &Empty{}, opts...)
}

// BuilderClient — клиент BuilderService.
type BuilderClient struct{ inv invoker }

func NewBuilderClient(cc grpc.ClientConnInterface) *BuilderClient {
	return &BuilderClient{inv: invoker{cc: cc, service: BuilderServiceName}}
}

func (c *BuilderClient) OpenSession(ctx context.Context, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.inv, "OpenSession", &Empty{}, opts...)
}

func (c *BuilderClient) GetSession(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.inv, "GetSession", in, opts...)
}

func (c *BuilderClient) CloseSession(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) error {
	return c.inv.call(ctx, "CloseSession", in, &Empty{}, opts...)
}

func (c *BuilderClient) RefreshCatalog(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.inv, "RefreshCatalog", in, opts...)
}

func (c *BuilderClient) SelectAgency(ctx context.Context, in *SelectAgencyRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.inv, "SelectAgency", in, opts...)
}

func (c *BuilderClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.inv, "ListProducts", in, opts...)
}

func (c *BuilderClient) SetQuantity(ctx context.Context, in *SetQuantityRequest, opts ...grpc.CallOption) (*CartChangeResponse, error) {
	return invoke[CartChangeResponse](ctx, c.inv, "SetQuantity", in, opts...)
}

func (c *BuilderClient) AdjustQuantity(ctx context.Context, in *AdjustQuantityRequest, opts ...grpc.CallOption) (*CartChangeResponse, error) {
	return invoke[CartChangeResponse](ctx, c.inv, "AdjustQuantity", in, opts...)
}

func (c *BuilderClient) RemoveLine(ctx context.Context, in *RemoveLineRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.inv, "RemoveLine", in, opts...)
}

func (c *BuilderClient) SetShopName(ctx context.Context, in *SetShopNameRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.inv, "SetShopName", in, opts...)
}

func (c *BuilderClient) Summary(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*SummaryResponse, error) {
	return invoke[SummaryResponse](ctx, c.inv, "Summary", in, opts...)
}

func (c *BuilderClient) PlaceOrder(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	return invoke[PlaceOrderResponse](ctx, c.inv, "PlaceOrder", in, opts...)
}

// DashboardClient — клиент DashboardService.
type DashboardClient struct{ inv invoker }

func NewDashboardClient(cc grpc.ClientConnInterface) *DashboardClient {
	return &DashboardClient{inv: invoker{cc: cc, service: DashboardServiceName}}
}

func (c *DashboardClient) Overview(ctx context.Context, opts ...grpc.CallOption) (*OverviewResponse, error) {
	return invoke[OverviewResponse](ctx, c.inv, "Overview", &Empty{}, opts...)
}

func (c *DashboardClient) GetOrder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.inv, "GetOrder", in, opts...)
}

func (c *DashboardClient) SetStatus(ctx context.Context, in *SetStatusRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.inv, "SetStatus", in, opts...)
}

func (c *DashboardClient) DeleteOrder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) error {
	return c.inv.call(ctx, "DeleteOrder", in, &Empty{}, opts...)
}

func (c *DashboardClient) Timeline(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*TimelineResponse, error) {
	return invoke[TimelineResponse](ctx, c.inv, "Timeline", in, opts...)
}

func (c *DashboardClient) ExportDispatchSheet(ctx context.Context, opts ...grpc.CallOption) (*ExportResponse, error) {
	return invoke[ExportResponse](ctx, c.inv, "ExportDispatchSheet", &Empty{}, opts...)
}

func (c *DashboardClient) ListExports(ctx context.Context, opts ...grpc.CallOption) (*ListExportsResponse, error) {
	return invoke[ListExportsResponse](ctx, c.inv, "ListExports", &Empty{}, opts...)
}
