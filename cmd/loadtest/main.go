package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/auth"
	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
)

const (
	seedAgencyName = "Load Test Agency"
	seedUnit       = "pcs"
)

type loadMode string

const (
	modeBrowse        loadMode = "browse"
	modePlace         loadMode = "place"
	modePlaceComplete loadMode = "place-complete"
)

type config struct {
	addr         string
	token        string
	total        int
	totalSet     bool
	duration     time.Duration
	concurrency  int
	connections  int
	timeout      time.Duration
	mode         loadMode
	lines        int
	quantity     int
	shops        int
	shopTag      string
	seedProducts int
	outputPath   string
}

// catalogAPI, builderAPI и dashboardAPI — подмножества клиентов, нужные сценарию.
type catalogAPI interface {
	ListAgencies(ctx context.Context, opts ...grpc.CallOption) (*grpcsvc.ListAgenciesResponse, error)
	CreateAgency(ctx context.Context, in *grpcsvc.SaveAgencyRequest, opts ...grpc.CallOption) (*grpcsvc.AgencyResponse, error)
}

type builderAPI interface {
	OpenSession(ctx context.Context, opts ...grpc.CallOption) (*grpcsvc.SessionResponse, error)
	CloseSession(ctx context.Context, in *grpcsvc.SessionRequest, opts ...grpc.CallOption) error
	ListProducts(ctx context.Context, in *grpcsvc.ListProductsRequest, opts ...grpc.CallOption) (*grpcsvc.ListProductsResponse, error)
	SetQuantity(ctx context.Context, in *grpcsvc.SetQuantityRequest, opts ...grpc.CallOption) (*grpcsvc.CartChangeResponse, error)
	SetShopName(ctx context.Context, in *grpcsvc.SetShopNameRequest, opts ...grpc.CallOption) (*grpcsvc.SessionResponse, error)
	Summary(ctx context.Context, in *grpcsvc.SessionRequest, opts ...grpc.CallOption) (*grpcsvc.SummaryResponse, error)
	PlaceOrder(ctx context.Context, in *grpcsvc.SessionRequest, opts ...grpc.CallOption) (*grpcsvc.PlaceOrderResponse, error)
}

type dashboardAPI interface {
	SetStatus(ctx context.Context, in *grpcsvc.SetStatusRequest, opts ...grpc.CallOption) (*grpcsvc.OrderResponse, error)
}

// clients — набор клиентов поверх одного соединения.
type clients struct {
	builder   builderAPI
	dashboard dashboardAPI
}

// target — товар, который сценарий кладёт в корзину.
type target struct {
	agencyID  string
	productID string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}

	codesCopy := make(map[string]int64, len(stats.codes))
	for code, count := range stats.codes {
		codesCopy[code] = count
	}

	return methodReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(stats.latencies),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.StringVar(&cfg.token, "token", "", "optional bearer token (fallback: ORDERDESK_LOADTEST_TOKEN, or issued from ORDERDESK_AUTH_SECRET)")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modePlace), "load mode: browse | place | place-complete")
	flag.IntVar(&cfg.lines, "lines", 3, "cart lines per order")
	flag.IntVar(&cfg.quantity, "quantity", 2, "quantity per cart line")
	flag.IntVar(&cfg.shops, "shops", 25, "number of distinct shop names to rotate through")
	flag.StringVar(&cfg.shopTag, "shop-tag", "load", "shop name prefix")
	flag.IntVar(&cfg.seedProducts, "seed-products", 10, "products to create when the catalog is empty")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	if strings.TrimSpace(cfg.token) == "" {
		cfg.token = strings.TrimSpace(os.Getenv("ORDERDESK_LOADTEST_TOKEN"))
	}
	if cfg.token == "" {
		// С общим секретом сервера токен оператора выпускается на месте.
		if secret := strings.TrimSpace(os.Getenv("ORDERDESK_AUTH_SECRET")); secret != "" {
			token, err := auth.GenerateToken(secret, "loadtest", auth.RoleOperator, 0)
			if err != nil {
				return cfg, fmt.Errorf("issue token: %w", err)
			}
			cfg.token = token
		}
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.connections <= 0 {
		return cfg, errors.New("connections must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.lines <= 0 {
		return cfg, errors.New("lines must be > 0")
	}
	if cfg.quantity <= 0 {
		return cfg, errors.New("quantity must be > 0")
	}
	if cfg.shops <= 0 {
		return cfg, errors.New("shops must be > 0")
	}
	if cfg.seedProducts <= 0 {
		return cfg, errors.New("seed-products must be > 0")
	}
	if strings.TrimSpace(cfg.shopTag) == "" {
		return cfg, errors.New("shop-tag is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeBrowse:
		return modeBrowse, nil
	case modePlace:
		return modePlace, nil
	case modePlaceComplete:
		return modePlaceComplete, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func dialOptions(cfg config) []grpc.DialOption {
	opts := append(grpcsvc.DialOptions(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if cfg.token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(auth.BearerCredentials{Token: cfg.token, Insecure: true}))
	}
	return opts
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	pool := make([]clients, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, dialOptions(cfg)...)
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		pool = append(pool, clients{
			builder:   grpcsvc.NewBuilderClient(conn),
			dashboard: grpcsvc.NewDashboardClient(conn),
		})
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	targets, err := prepareCatalog(grpcsvc.NewCatalogClient(conns[0]), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to prepare catalog: %v\n", err)
		os.Exit(1)
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		cli := pool[workerID%len(pool)]
		go func(cli clients) {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(cli, cfg, targets, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(cli)
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// prepareCatalog собирает товары каталога; пустой каталог заполняется тестовым агентством.
func prepareCatalog(client catalogAPI, cfg config) ([]target, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	resp, err := client.ListAgencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agencies: %w", err)
	}
	targets := collectTargets(resp.Agencies)
	if len(targets) > 0 {
		return targets, nil
	}

	products := make([]grpcsvc.Product, 0, cfg.seedProducts)
	for i := 0; i < cfg.seedProducts; i++ {
		products = append(products, grpcsvc.Product{Name: fmt.Sprintf("Load Product %02d", i+1), Unit: seedUnit})
	}
	created, err := client.CreateAgency(ctx, &grpcsvc.SaveAgencyRequest{Name: seedAgencyName, Products: products})
	if err != nil {
		return nil, fmt.Errorf("seed agency: %w", err)
	}
	targets = collectTargets([]grpcsvc.Agency{created.Agency})
	if len(targets) == 0 {
		return nil, errors.New("seeded agency has no products")
	}
	return targets, nil
}

func collectTargets(agencies []grpcsvc.Agency) []target {
	var out []target
	for _, agency := range agencies {
		for _, product := range agency.Products {
			out = append(out, target{agencyID: agency.ID, productID: product.ID})
		}
	}
	return out
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// timed выполняет один RPC с таймаутом и записывает его задержку и код.
func timed[T any](col *collector, method string, timeout time.Duration, call func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := call(ctx)
	col.record(method, time.Since(start), grpcCode(err))
	return resp, err
}

func runScenario(cli clients, cfg config, targets []target, index int, runID string, col *collector) (err error) {
	scenarioStart := time.Now()
	defer func() {
		col.record("scenario", time.Since(scenarioStart), grpcCode(err))
	}()

	if len(targets) == 0 {
		return status.Error(codes.FailedPrecondition, "catalog has no products")
	}

	opened, err := timed(col, "OpenSession", cfg.timeout, func(ctx context.Context) (*grpcsvc.SessionResponse, error) {
		return cli.builder.OpenSession(ctx)
	})
	if err != nil {
		return err
	}
	sessionID := opened.Session.ID
	if sessionID == "" {
		return status.Error(codes.Internal, "open session returned empty session id")
	}

	if cfg.mode == modeBrowse {
		return browse(cli, cfg, targets[index%len(targets)], sessionID, col)
	}

	for line := 0; line < cfg.lines; line++ {
		item := targets[(index+line)%len(targets)]
		if _, err := timed(col, "SetQuantity", cfg.timeout, func(ctx context.Context) (*grpcsvc.CartChangeResponse, error) {
			return cli.builder.SetQuantity(ctx, &grpcsvc.SetQuantityRequest{
				SessionID: sessionID,
				AgencyID:  item.agencyID,
				ProductID: item.productID,
				Quantity:  cfg.quantity,
			})
		}); err != nil {
			return err
		}
	}

	shopName := fmt.Sprintf("%s-shop-%d", cfg.shopTag, index%cfg.shops)
	if _, err := timed(col, "SetShopName", cfg.timeout, func(ctx context.Context) (*grpcsvc.SessionResponse, error) {
		return cli.builder.SetShopName(ctx, &grpcsvc.SetShopNameRequest{SessionID: sessionID, ShopName: shopName})
	}); err != nil {
		return err
	}

	placed, err := timed(col, "PlaceOrder", cfg.timeout, func(ctx context.Context) (*grpcsvc.PlaceOrderResponse, error) {
		return cli.builder.PlaceOrder(ctx, &grpcsvc.SessionRequest{SessionID: sessionID})
	})
	if err != nil {
		return err
	}
	if placed.OrderID == "" {
		return status.Errorf(codes.Internal, "place order returned empty order id (run %s)", runID)
	}

	if cfg.mode == modePlaceComplete {
		if _, err := timed(col, "SetStatus", cfg.timeout, func(ctx context.Context) (*grpcsvc.OrderResponse, error) {
			return cli.dashboard.SetStatus(ctx, &grpcsvc.SetStatusRequest{OrderID: placed.OrderID, Status: "completed"})
		}); err != nil {
			return err
		}
	}

	return nil
}

func browse(cli clients, cfg config, item target, sessionID string, col *collector) error {
	if _, err := timed(col, "ListProducts", cfg.timeout, func(ctx context.Context) (*grpcsvc.ListProductsResponse, error) {
		return cli.builder.ListProducts(ctx, &grpcsvc.ListProductsRequest{SessionID: sessionID, AgencyID: item.agencyID})
	}); err != nil {
		return err
	}
	if _, err := timed(col, "Summary", cfg.timeout, func(ctx context.Context) (*grpcsvc.SummaryResponse, error) {
		return cli.builder.Summary(ctx, &grpcsvc.SessionRequest{SessionID: sessionID})
	}); err != nil {
		return err
	}
	_, err := timed(col, "CloseSession", cfg.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, cli.builder.CloseSession(ctx, &grpcsvc.SessionRequest{SessionID: sessionID})
	})
	return err
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
