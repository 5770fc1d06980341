package sqldb

import (
	"context"
	"database/sql"
	"io/fs"
	"strconv"
	"strings"
)

// Dialect скрывает различия SQL-драйверов: плейсхолдеры, коды ошибок, блокировку миграций.
type Dialect interface {
	// Name — короткое имя драйвера для логов и ошибок.
	Name() string
	// Rebind переводит запрос с `?`-плейсхолдерами в синтаксис драйвера.
	Rebind(query string) string
	// IsUniqueViolation распознаёт нарушение уникального ключа.
	IsUniqueViolation(err error) bool
	// IsForeignKeyViolation распознаёт нарушение внешнего ключа.
	IsForeignKeyViolation(err error) bool
	// LockMigrations берёт эксклюзивную блокировку миграций на соединении.
	LockMigrations(ctx context.Context, conn *sql.Conn) (unlock func(), err error)
	// Migrations возвращает каталог с файлами NNNN_name.(up|down).sql.
	Migrations() fs.FS
	// MigrationTableDDL создаёт таблицу учёта применённых миграций.
	MigrationTableDDL() string
}

// QuestionRebind оставляет `?` как есть (MySQL, SQLite).
func QuestionRebind(query string) string { return query }

// DollarRebind заменяет `?` на `$1..$n` (PostgreSQL). Плейсхолдеры внутри строковых литералов не поддерживаются.
func DollarRebind(query string) string {
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
