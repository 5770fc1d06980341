// Package sqlite подключает общий SQL-слой к встроенной SQLite (modernc, без cgo).
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vladislavdragonenkov/orderdesk/internal/storage/sqldb"
)

const (
	defaultConnTimeout = 5 * time.Second
	defaultBusyTimeout = 5000
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL
);
`

// Open открывает файл базы (создавая каталоги) с включёнными внешними ключами.
// Пул ограничен одним соединением: SQLite сериализует запись.
func Open(ctx context.Context, path string) (*sqldb.Store, error) {
	if path == "" {
		path = "orderdesk.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return sqldb.New(db, Dialect{}), nil
}

func dsn(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_time_format=sqlite",
		path, defaultBusyTimeout,
	)
}

// Dialect описывает особенности SQLite для sqldb.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Rebind(query string) string { return sqldb.QuestionRebind(query) }

func (Dialect) IsUniqueViolation(err error) bool {
	return hasCode(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) ||
		containsMessage(err, "UNIQUE constraint failed")
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	return hasCode(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) ||
		containsMessage(err, "FOREIGN KEY constraint failed")
}

// LockMigrations не нужен: единственное соединение уже сериализует миграции.
func (Dialect) LockMigrations(context.Context, *sql.Conn) (func(), error) {
	return func() {}, nil
}

func (Dialect) Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(fmt.Sprintf("sqlite migrations: %v", err))
	}
	return sub
}

func (Dialect) MigrationTableDDL() string { return migrationTableDDL }

func hasCode(err error, codes ...int) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	for _, code := range codes {
		if liteErr.Code() == code {
			return true
		}
	}
	return false
}

func containsMessage(err error, fragment string) bool {
	return err != nil && strings.Contains(err.Error(), fragment)
}

var _ sqldb.Dialect = Dialect{}
