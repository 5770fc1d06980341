package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/auth"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/builder"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/catalog"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/dashboard"
	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/submission"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

type fakeBuilderClient struct {
	openFn        func(context.Context) (*grpcsvc.SessionResponse, error)
	closeFn       func(context.Context, *grpcsvc.SessionRequest) error
	listFn        func(context.Context, *grpcsvc.ListProductsRequest) (*grpcsvc.ListProductsResponse, error)
	setQuantityFn func(context.Context, *grpcsvc.SetQuantityRequest) (*grpcsvc.CartChangeResponse, error)
	setShopFn     func(context.Context, *grpcsvc.SetShopNameRequest) (*grpcsvc.SessionResponse, error)
	summaryFn     func(context.Context, *grpcsvc.SessionRequest) (*grpcsvc.SummaryResponse, error)
	placeFn       func(context.Context, *grpcsvc.SessionRequest) (*grpcsvc.PlaceOrderResponse, error)
}

func (f *fakeBuilderClient) OpenSession(ctx context.Context, _ ...grpc.CallOption) (*grpcsvc.SessionResponse, error) {
	if f.openFn == nil {
		return nil, errors.New("unexpected OpenSession call")
	}
	return f.openFn(ctx)
}

func (f *fakeBuilderClient) CloseSession(ctx context.Context, in *grpcsvc.SessionRequest, _ ...grpc.CallOption) error {
	if f.closeFn == nil {
		return errors.New("unexpected CloseSession call")
	}
	return f.closeFn(ctx, in)
}

func (f *fakeBuilderClient) ListProducts(ctx context.Context, in *grpcsvc.ListProductsRequest, _ ...grpc.CallOption) (*grpcsvc.ListProductsResponse, error) {
	if f.listFn == nil {
		return nil, errors.New("unexpected ListProducts call")
	}
	return f.listFn(ctx, in)
}

func (f *fakeBuilderClient) SetQuantity(ctx context.Context, in *grpcsvc.SetQuantityRequest, _ ...grpc.CallOption) (*grpcsvc.CartChangeResponse, error) {
	if f.setQuantityFn == nil {
		return nil, errors.New("unexpected SetQuantity call")
	}
	return f.setQuantityFn(ctx, in)
}

func (f *fakeBuilderClient) SetShopName(ctx context.Context, in *grpcsvc.SetShopNameRequest, _ ...grpc.CallOption) (*grpcsvc.SessionResponse, error) {
	if f.setShopFn == nil {
		return nil, errors.New("unexpected SetShopName call")
	}
	return f.setShopFn(ctx, in)
}

func (f *fakeBuilderClient) Summary(ctx context.Context, in *grpcsvc.SessionRequest, _ ...grpc.CallOption) (*grpcsvc.SummaryResponse, error) {
	if f.summaryFn == nil {
		return nil, errors.New("unexpected Summary call")
	}
	return f.summaryFn(ctx, in)
}

func (f *fakeBuilderClient) PlaceOrder(ctx context.Context, in *grpcsvc.SessionRequest, _ ...grpc.CallOption) (*grpcsvc.PlaceOrderResponse, error) {
	if f.placeFn == nil {
		return nil, errors.New("unexpected PlaceOrder call")
	}
	return f.placeFn(ctx, in)
}

type fakeDashboardClient struct {
	setStatusFn func(context.Context, *grpcsvc.SetStatusRequest) (*grpcsvc.OrderResponse, error)
}

func (f *fakeDashboardClient) SetStatus(ctx context.Context, in *grpcsvc.SetStatusRequest, _ ...grpc.CallOption) (*grpcsvc.OrderResponse, error) {
	if f.setStatusFn == nil {
		return nil, errors.New("unexpected SetStatus call")
	}
	return f.setStatusFn(ctx, in)
}

type fakeCatalogClient struct {
	agencies []grpcsvc.Agency
	created  []*grpcsvc.SaveAgencyRequest
	listErr  error
}

func (f *fakeCatalogClient) ListAgencies(context.Context, ...grpc.CallOption) (*grpcsvc.ListAgenciesResponse, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &grpcsvc.ListAgenciesResponse{Agencies: f.agencies}, nil
}

func (f *fakeCatalogClient) CreateAgency(_ context.Context, in *grpcsvc.SaveAgencyRequest, _ ...grpc.CallOption) (*grpcsvc.AgencyResponse, error) {
	f.created = append(f.created, in)
	agency := grpcsvc.Agency{ID: "seeded", Name: in.Name}
	for i, p := range in.Products {
		agency.Products = append(agency.Products, grpcsvc.Product{ID: "p" + string(rune('a'+i)), AgencyID: "seeded", Name: p.Name, Unit: p.Unit})
	}
	return &grpcsvc.AgencyResponse{Agency: agency}, nil
}

func withCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"loadtest"}, args...)
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flag.CommandLine = fs

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    loadMode
		wantErr string
	}{
		{name: "browse", input: "browse", want: modeBrowse},
		{name: "place", input: "place", want: modePlace},
		{name: "place-complete", input: " place-complete ", want: modePlaceComplete},
		{name: "unsupported", input: "bad", wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMode(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected mode: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-addr=127.0.0.1:50051",
			"-mode=place-complete",
			"-total=12",
			"-concurrency=3",
			"-connections=2",
			"-timeout=2s",
			"-lines=4",
			"-quantity=5",
			"-shops=7",
			"-shop-tag=stage",
			"-token=abc",
			"-output=/tmp/out.json",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cfg.totalSet {
				t.Fatalf("expected totalSet=true")
			}
			if cfg.duration != 0 {
				t.Fatalf("expected zero duration, got %s", cfg.duration)
			}
			if cfg.mode != modePlaceComplete {
				t.Fatalf("unexpected mode: %s", cfg.mode)
			}
			if cfg.total != 12 || cfg.concurrency != 3 || cfg.connections != 2 {
				t.Fatalf("unexpected numeric config: %+v", cfg)
			}
			if cfg.lines != 4 || cfg.quantity != 5 || cfg.shops != 7 {
				t.Fatalf("unexpected cart config: %+v", cfg)
			}
			if cfg.timeout != 2*time.Second {
				t.Fatalf("unexpected timeout: %s", cfg.timeout)
			}
			if cfg.token != "abc" {
				t.Fatalf("unexpected token: %q", cfg.token)
			}
		})
	})

	t.Run("duration mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-duration=3s",
			"-concurrency=2",
			"-connections=1",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.duration != 3*time.Second {
				t.Fatalf("unexpected duration: %s", cfg.duration)
			}
			if cfg.totalSet {
				t.Fatalf("expected totalSet=false when -total was not provided")
			}
		})
	})

	t.Run("token issued from auth secret", func(t *testing.T) {
		t.Setenv("ORDERDESK_LOADTEST_TOKEN", "")
		t.Setenv("ORDERDESK_AUTH_SECRET", "loadtest-secret")
		withCLIArgs(t, nil, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			claims, err := auth.ValidateToken("loadtest-secret", cfg.token)
			if err != nil {
				t.Fatalf("issued token must validate: %v", err)
			}
			if claims.Role != auth.RoleOperator {
				t.Fatalf("unexpected role: %s", claims.Role)
			}
		})
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name    string
			args    []string
			wantErr string
		}{
			{name: "invalid duration", args: []string{"-duration=bad"}, wantErr: "parse duration"},
			{name: "negative duration", args: []string{"-duration=-1s"}, wantErr: "duration must be >= 0"},
			{name: "zero lines", args: []string{"-lines=0"}, wantErr: "lines must be > 0"},
			{name: "zero quantity", args: []string{"-quantity=0"}, wantErr: "quantity must be > 0"},
			{name: "zero shops", args: []string{"-shops=0"}, wantErr: "shops must be > 0"},
			{name: "empty shop tag", args: []string{"-shop-tag= "}, wantErr: "shop-tag is required"},
			{name: "empty total", args: []string{"-duration=0s", "-total=0"}, wantErr: "total must be > 0"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				withCLIArgs(t, tc.args, func() {
					_, err := parseConfig()
					if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
						t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
					}
				})
			})
		}
	})
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{total: 5})

		var got []int
		for v := range jobs {
			got = append(got, v)
		}
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Fatalf("unexpected jobs sequence: %v", got)
		}
	})

	t.Run("duration mode", func(t *testing.T) {
		jobs := make(chan int, 32)
		done := make(chan struct{})
		go func() {
			dispatchJobs(jobs, config{duration: 20 * time.Millisecond})
			close(done)
		}()

		count := 0
		for range jobs {
			count++
		}
		<-done
		if count == 0 {
			t.Fatalf("expected non-zero jobs for duration mode")
		}
	})

	t.Run("duration with explicit max total", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})
		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs, got %d", count)
		}
	})
}

func TestCollectorAndReport(t *testing.T) {
	c := newCollector()
	c.record("scenario", 10*time.Millisecond, codes.OK)
	c.record("scenario", 20*time.Millisecond, codes.Internal)
	c.record("PlaceOrder", 15*time.Millisecond, codes.OK)

	snap, ok := c.snapshot("scenario")
	if !ok {
		t.Fatalf("scenario snapshot missing")
	}
	if snap.Calls != 2 || snap.Success != 1 || snap.Failed != 1 {
		t.Fatalf("unexpected scenario snapshot: %+v", snap)
	}
	if snap.Codes[codes.OK.String()] != 1 || snap.Codes[codes.Internal.String()] != 1 {
		t.Fatalf("unexpected codes: %+v", snap.Codes)
	}

	r := c.buildReport(time.Now(), 2*time.Second)
	if r.TotalScenarios != 2 || r.FailedScenarios != 1 {
		t.Fatalf("unexpected report totals: %+v", r)
	}
	if r.RPS <= 0 {
		t.Fatalf("expected positive rps, got %f", r.RPS)
	}
	if _, ok := r.Methods["PlaceOrder"]; !ok {
		t.Fatalf("expected PlaceOrder stats in report")
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := grpcCode(nil); got != codes.OK {
		t.Fatalf("grpcCode(nil) = %s, want OK", got)
	}
	if got := grpcCode(status.Error(codes.Unavailable, "down")); got != codes.Unavailable {
		t.Fatalf("unexpected grpc code: %s", got)
	}

	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	values := []float64{10, 20, 30, 40}
	summary := buildLatencySummary(values)
	if summary.P50 <= 0 || summary.P95 <= 0 || summary.Max != 40 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}
	if p := percentile(values, 95); p <= 0 {
		t.Fatalf("unexpected percentile: %f", p)
	}

	if got := runTarget(config{total: 50}); got != "count:50" {
		t.Fatalf("unexpected run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second}); got != "duration:2s" {
		t.Fatalf("unexpected duration run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second, total: 10, totalSet: true}); got != "duration:2s,max-total:10" {
		t.Fatalf("unexpected capped duration run target: %s", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	sample := report{TotalScenarios: 2, SuccessScenarios: 2}
	if err := writeJSONReport(path, sample); err != nil {
		t.Fatalf("writeJSONReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.TotalScenarios != 2 || decoded.SuccessScenarios != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}
}

func TestPrepareCatalog(t *testing.T) {
	cfg := config{timeout: time.Second, seedProducts: 3}

	existing := &fakeCatalogClient{agencies: []grpcsvc.Agency{
		{ID: "a1", Products: []grpcsvc.Product{{ID: "p1"}, {ID: "p2"}}},
		{ID: "a2"},
	}}
	targets, err := prepareCatalog(existing, cfg)
	if err != nil {
		t.Fatalf("prepareCatalog failed: %v", err)
	}
	if len(targets) != 2 || len(existing.created) != 0 {
		t.Fatalf("expected existing products to be used, got %+v (created %d)", targets, len(existing.created))
	}

	empty := &fakeCatalogClient{}
	targets, err = prepareCatalog(empty, cfg)
	if err != nil {
		t.Fatalf("prepareCatalog failed: %v", err)
	}
	if len(empty.created) != 1 || len(empty.created[0].Products) != 3 {
		t.Fatalf("expected one seeded agency with 3 products, got %+v", empty.created)
	}
	if len(targets) != 3 || targets[0].agencyID != "seeded" {
		t.Fatalf("unexpected seeded targets: %+v", targets)
	}

	failing := &fakeCatalogClient{listErr: status.Error(codes.Unavailable, "catalog down")}
	if _, err := prepareCatalog(failing, cfg); status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("expected wrapped Unavailable error, got %v", err)
	}
}

func TestRunScenario(t *testing.T) {
	targets := []target{{agencyID: "a1", productID: "p1"}, {agencyID: "a1", productID: "p2"}}

	newClients := func(t *testing.T, placed *[]string, completed *[]string) clients {
		return clients{
			builder: &fakeBuilderClient{
				openFn: func(context.Context) (*grpcsvc.SessionResponse, error) {
					return &grpcsvc.SessionResponse{Session: grpcsvc.Session{ID: "s-1"}}, nil
				},
				setQuantityFn: func(_ context.Context, in *grpcsvc.SetQuantityRequest) (*grpcsvc.CartChangeResponse, error) {
					if in.SessionID != "s-1" || in.Quantity != 2 {
						t.Fatalf("unexpected SetQuantity request: %+v", in)
					}
					return &grpcsvc.CartChangeResponse{Change: "added"}, nil
				},
				setShopFn: func(_ context.Context, in *grpcsvc.SetShopNameRequest) (*grpcsvc.SessionResponse, error) {
					if in.ShopName != "load-shop-1" {
						t.Fatalf("unexpected shop name: %s", in.ShopName)
					}
					return &grpcsvc.SessionResponse{}, nil
				},
				placeFn: func(_ context.Context, in *grpcsvc.SessionRequest) (*grpcsvc.PlaceOrderResponse, error) {
					*placed = append(*placed, in.SessionID)
					return &grpcsvc.PlaceOrderResponse{OrderID: "o-1", LineCount: 2}, nil
				},
			},
			dashboard: &fakeDashboardClient{
				setStatusFn: func(_ context.Context, in *grpcsvc.SetStatusRequest) (*grpcsvc.OrderResponse, error) {
					*completed = append(*completed, in.OrderID+":"+in.Status)
					return &grpcsvc.OrderResponse{}, nil
				},
			},
		}
	}

	cfg := config{mode: modePlaceComplete, timeout: time.Second, lines: 2, quantity: 2, shops: 3, shopTag: "load"}
	var placed, completed []string
	c := newCollector()
	if err := runScenario(newClients(t, &placed, &completed), cfg, targets, 1, "run-1", c); err != nil {
		t.Fatalf("runScenario failed: %v", err)
	}
	if !slices.Equal(placed, []string{"s-1"}) || !slices.Equal(completed, []string{"o-1:completed"}) {
		t.Fatalf("unexpected calls: placed=%v completed=%v", placed, completed)
	}
	snap, ok := c.snapshot("SetQuantity")
	if !ok || snap.Calls != 2 {
		t.Fatalf("expected 2 SetQuantity calls, got %+v", snap)
	}

	cfg.mode = modePlace
	placed, completed = nil, nil
	if err := runScenario(newClients(t, &placed, &completed), cfg, targets, 4, "run-1", c); err != nil {
		t.Fatalf("runScenario failed: %v", err)
	}
	if len(completed) != 0 {
		t.Fatalf("place mode must not complete orders, got %v", completed)
	}

	failing := clients{builder: &fakeBuilderClient{
		openFn: func(context.Context) (*grpcsvc.SessionResponse, error) {
			return nil, status.Error(codes.Unavailable, "builder unavailable")
		},
	}}
	if err := runScenario(failing, cfg, targets, 2, "run-2", c); status.Code(err) != codes.Unavailable {
		t.Fatalf("expected Unavailable error, got %v", err)
	}

	emptySession := clients{builder: &fakeBuilderClient{
		openFn: func(context.Context) (*grpcsvc.SessionResponse, error) {
			return &grpcsvc.SessionResponse{}, nil
		},
	}}
	if err := runScenario(emptySession, cfg, targets, 3, "run-3", c); err == nil || !strings.Contains(err.Error(), "empty session id") {
		t.Fatalf("expected empty session id error, got %v", err)
	}

	if err := runScenario(emptySession, cfg, nil, 3, "run-3", c); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition without targets, got %v", err)
	}

	r := c.buildReport(time.Now(), time.Second)
	if r.TotalScenarios != 5 || r.FailedScenarios != 3 {
		t.Fatalf("unexpected scenario totals: %+v", r)
	}
}

func TestRunScenario_Browse(t *testing.T) {
	var closed bool
	cli := clients{builder: &fakeBuilderClient{
		openFn: func(context.Context) (*grpcsvc.SessionResponse, error) {
			return &grpcsvc.SessionResponse{Session: grpcsvc.Session{ID: "s-9"}}, nil
		},
		listFn: func(_ context.Context, in *grpcsvc.ListProductsRequest) (*grpcsvc.ListProductsResponse, error) {
			if in.AgencyID != "a1" {
				t.Fatalf("unexpected agency: %s", in.AgencyID)
			}
			return &grpcsvc.ListProductsResponse{}, nil
		},
		summaryFn: func(context.Context, *grpcsvc.SessionRequest) (*grpcsvc.SummaryResponse, error) {
			return &grpcsvc.SummaryResponse{}, nil
		},
		closeFn: func(context.Context, *grpcsvc.SessionRequest) error {
			closed = true
			return nil
		},
	}}

	cfg := config{mode: modeBrowse, timeout: time.Second, lines: 1, quantity: 1, shops: 1, shopTag: "load"}
	if err := runScenario(cli, cfg, []target{{agencyID: "a1", productID: "p1"}}, 0, "run", newCollector()); err != nil {
		t.Fatalf("browse scenario failed: %v", err)
	}
	if !closed {
		t.Fatal("browse scenario must close the session")
	}
}

func TestPrintReport(t *testing.T) {
	r := report{
		TotalScenarios:   2,
		SuccessScenarios: 2,
		Methods: map[string]methodReport{
			"scenario":   {Calls: 2, Success: 2},
			"PlaceOrder": {Calls: 2, Success: 2},
		},
	}

	out := captureStdout(t, func() {
		printReport(r, config{mode: modePlace, total: 2})
	})

	if !strings.Contains(out, "Load test summary") {
		t.Fatalf("expected summary header, got: %s", out)
	}
	if !strings.Contains(out, "PlaceOrder") {
		t.Fatalf("expected method section, got: %s", out)
	}
}

func startOrderdeskServer(t *testing.T) string {
	t.Helper()

	logger := log.New().WithField("component", "loadtest-server")
	store := memory.NewStore()
	catalogSvc := catalog.NewService(store.Catalog(), catalog.WithLogger(logger))
	seq := submission.NewSequencer(store.Shops(), store.Orders(),
		submission.WithLogger(logger),
		submission.WithMetrics(metrics.NewSubmissionMetricsWithRegisterer(prometheus.NewRegistry())),
	)
	builderSvc := builder.NewService(memory.NewSessionStore(), catalogSvc, seq,
		builder.WithLogger(logger),
		builder.WithSubmitGuard(memory.NewSubmitGuard(), time.Minute),
	)
	dashboardSvc := dashboard.NewService(store.Orders(), dashboard.WithLogger(logger))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := grpc.NewServer()
	grpcsvc.RegisterCatalogServer(srv, grpcsvc.NewCatalogService(catalogSvc, logger))
	grpcsvc.RegisterBuilderServer(srv, grpcsvc.NewBuilderService(builderSvc, logger))
	grpcsvc.RegisterDashboardServer(srv, grpcsvc.NewDashboardService(dashboardSvc, logger))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func TestMainSmoke(t *testing.T) {
	addr := startOrderdeskServer(t)

	dir := t.TempDir()
	outPath := filepath.Join(dir, "main-report.json")

	withCLIArgs(t, []string{
		"-addr=" + addr,
		"-mode=place-complete",
		"-total=6",
		"-concurrency=2",
		"-connections=1",
		"-timeout=2s",
		"-lines=2",
		"-shops=2",
		"-seed-products=3",
		"-output=" + outPath,
	}, func() {
		main()
	})

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected report file from main: %v", err)
	}
	var result report
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if result.TotalScenarios != 6 || result.FailedScenarios != 0 {
		t.Fatalf("unexpected report: %+v", result)
	}
	if result.Methods["PlaceOrder"].Calls != 6 || result.Methods["SetStatus"].Calls != 6 {
		t.Fatalf("unexpected method stats: %+v", result.Methods)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = oldStdout

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	_ = r.Close()

	return string(data)
}

func TestFakeClientsImplementInterfaces(t *testing.T) {
	var _ builderAPI = (*fakeBuilderClient)(nil)
	var _ dashboardAPI = (*fakeDashboardClient)(nil)
	var _ catalogAPI = (*fakeCatalogClient)(nil)
	var _ builderAPI = (*grpcsvc.BuilderClient)(nil)
	var _ dashboardAPI = (*grpcsvc.DashboardClient)(nil)
	var _ catalogAPI = (*grpcsvc.CatalogClient)(nil)
}
