package mysql

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/orderdesk/internal/storage/sqldb/sqldbtest"
)

func TestDialect_ErrorNumbers(t *testing.T) {
	d := Dialect{}

	dup := fmt.Errorf("insert shop: %w", &driver.MySQLError{Number: errDuplicateEntry})
	parent := fmt.Errorf("delete agency: %w", &driver.MySQLError{Number: errRowIsReferenced})
	child := fmt.Errorf("insert line: %w", &driver.MySQLError{Number: errNoReferencedRow})

	require.True(t, d.IsUniqueViolation(dup))
	require.False(t, d.IsForeignKeyViolation(dup))
	require.True(t, d.IsForeignKeyViolation(parent))
	require.True(t, d.IsForeignKeyViolation(child))
	require.False(t, d.IsUniqueViolation(errors.New("boom")))
}

func TestDialect_EmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(Dialect{}.Migrations(), "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 6)
	require.Equal(t, "SELECT ?", Dialect{}.Rebind("SELECT ?"))
}

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "::not a dsn::")
	require.Error(t, err)
}

func TestRepositories_MySQL(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("ORDERDESK_MYSQL_TEST_DSN"))
	if dsn == "" {
		t.Skip("ORDERDESK_MYSQL_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("mysql is not available for integration tests: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	require.NoError(t, store.MigrateUp(ctx, 0))

	suite.Run(t, &sqldbtest.RepositorySuite{Store: store})
}
