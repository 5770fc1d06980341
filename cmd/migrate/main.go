package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/storage/mysql"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/sqldb"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/sqlite"
)

const (
	defaultTimeout = 30 * time.Second
)

// options — разобранные флаги командной строки.
type options struct {
	driver    string
	dsn       string
	direction string
	steps     int
}

// dsnEnv — переменная окружения с DSN по умолчанию для каждого драйвера.
var dsnEnv = map[string]string{
	"postgres": "ORDERDESK_POSTGRES_DSN",
	"mysql":    "ORDERDESK_MYSQL_DSN",
	"sqlite":   "ORDERDESK_SQLITE_PATH",
}

func main() {
	var opts options

	flag.StringVar(&opts.driver, "driver", "postgres", "storage driver: postgres|mysql|sqlite")
	flag.StringVar(&opts.direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&opts.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&opts.dsn, "dsn", "", "DSN or sqlite file path (fallback: ORDERDESK_<DRIVER>_DSN, ORDERDESK_SQLITE_PATH)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, opts, os.Getenv, os.Stdout); err != nil {
		cancel()
		fail("%v", err)
	}
}

func run(ctx context.Context, opts options, getenv func(string) string, out io.Writer) error {
	driver := strings.ToLower(strings.TrimSpace(opts.driver))
	envKey, ok := dsnEnv[driver]
	if !ok {
		return fmt.Errorf("unsupported driver: %s (use postgres|mysql|sqlite)", opts.driver)
	}

	dsn := strings.TrimSpace(opts.dsn)
	if dsn == "" {
		dsn = strings.TrimSpace(getenv(envKey))
	}
	if dsn == "" {
		return fmt.Errorf("%s (or -dsn) is required", envKey)
	}

	store, err := openStore(ctx, driver, dsn)
	if err != nil {
		return fmt.Errorf("open %s store: %w", driver, err)
	}
	defer store.Close()

	direction := strings.ToLower(strings.TrimSpace(opts.direction))
	switch direction {
	case "up":
		if err := store.MigrateUp(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		steps := opts.steps
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	case "status":
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", opts.direction)
	}

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	if direction == "status" {
		_, _ = fmt.Fprintf(out, "migration status: driver=%s version=%d applied=%d\n", driver, version, count)
	} else {
		_, _ = fmt.Fprintf(out, "migrate %s ok: driver=%s version=%d applied=%d\n", direction, driver, version, count)
	}
	return nil
}

func openStore(ctx context.Context, driver, dsn string) (*sqldb.Store, error) {
	switch driver {
	case "mysql":
		return mysql.Open(ctx, dsn)
	case "sqlite":
		return sqlite.Open(ctx, dsn)
	default:
		return postgres.Open(ctx, dsn)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
