package testdb

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"academic-service/internal/db"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var sqliteSeq atomic.Int64

// NewSQLite opens a private in-memory database with the given schema.
// Unlike the postgres container it needs no Docker, so service and
// repository tests use it.
func NewSQLite(t *testing.T, models []any, indexes ...db.Index) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, sqliteSeq.Add(1))

	bdb, err := db.NewSQLite(dsn)
	require.NoError(t, err)
	bdb.SetMaxOpenConns(1)

	t.Cleanup(func() { bdb.Close() })

	require.NoError(t, db.RunMigrations(context.Background(), bdb, models, indexes...))
	return bdb
}

// ClearTables deletes every row. Works on both drivers.
func ClearTables(t *testing.T, bdb *bun.DB, tables ...string) {
	t.Helper()

	for _, table := range tables {
		_, err := bdb.ExecContext(context.Background(), "DELETE FROM "+table)
		require.NoError(t, err, "failed to clear table: %s", table)
	}
}
