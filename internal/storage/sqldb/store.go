package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	defaultConnTimeout = 5 * time.Second
	opTimeout          = 5 * time.Second
)

// Store оборачивает SQL-подключение вместе с диалектом драйвера.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New связывает открытое подключение с диалектом.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect возвращает диалект драйвера.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sql store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

// writeErr переводит ошибку драйвера в доменную: FK, уникальность или общая ошибка записи.
func (s *Store) writeErr(op string, err error) error {
	switch {
	case s.dialect.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConstraintViolation, err)
	case s.dialect.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrAlreadyExists, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrWriteFailed, err)
	}
}

// withTx выполняет fn в транзакции и откатывает её при ошибке.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
