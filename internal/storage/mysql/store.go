// Package mysql подключает общий SQL-слой к MySQL 8.
package mysql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/vladislavdragonenkov/orderdesk/internal/storage/sqldb"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	migrationLockName    = "orderdesk_schema_migrations"
	migrationLockSeconds = 10

	errDuplicateEntry     = 1062
	errRowIsReferenced    = 1451
	errNoReferencedRow    = 1452
	errRowIsReferencedAlt = 1217
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    applied_at DATETIME(6) NOT NULL
) ENGINE=InnoDB
`

// Open открывает подключение к MySQL.
// В DSN всегда включаются parseTime, multiStatements и clientFoundRows.
func Open(ctx context.Context, dsn string) (*sqldb.Store, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.ClientFoundRows = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	connector, err := driver.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return sqldb.New(db, Dialect{}), nil
}

// Dialect описывает особенности MySQL для sqldb.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Rebind(query string) string { return sqldb.QuestionRebind(query) }

func (Dialect) IsUniqueViolation(err error) bool { return hasNumber(err, errDuplicateEntry) }

func (Dialect) IsForeignKeyViolation(err error) bool {
	return hasNumber(err, errRowIsReferenced, errNoReferencedRow, errRowIsReferencedAlt)
}

// LockMigrations использует именованную блокировку GET_LOCK.
func (Dialect) LockMigrations(ctx context.Context, conn *sql.Conn) (func(), error) {
	var acquired sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", migrationLockName, migrationLockSeconds).Scan(&acquired); err != nil {
		return nil, err
	}
	if !acquired.Valid || acquired.Int64 != 1 {
		return nil, fmt.Errorf("lock %q is held by another session", migrationLockName)
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT RELEASE_LOCK(?)", migrationLockName)
	}, nil
}

func (Dialect) Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(fmt.Sprintf("mysql migrations: %v", err))
	}
	return sub
}

func (Dialect) MigrationTableDDL() string { return migrationTableDDL }

func hasNumber(err error, numbers ...uint16) bool {
	var myErr *driver.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	for _, n := range numbers {
		if myErr.Number == n {
			return true
		}
	}
	return false
}

var _ sqldb.Dialect = Dialect{}
