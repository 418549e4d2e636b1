package db

import (
	"context"
	"testing"

	"academic-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Code   string `bun:"code,notnull"`
	Status int    `bun:"status,notnull"`
}

func TestRunMigrations_SQLite(t *testing.T) {
	ctx := context.Background()

	bdb, err := New(config.DatabaseConfig{
		Driver: DriverSQLite,
		Path:   "file:db_migrations?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	defer Close(bdb)

	indexes := []Index{{
		Model:   (*widget)(nil),
		Name:    "widgets_code",
		Columns: []string{"code"},
		Unique:  true,
		Where:   "status <> 9",
	}}

	require.NoError(t, RunMigrations(ctx, bdb, []any{(*widget)(nil)}, indexes...))
	// Second run is a no-op.
	require.NoError(t, RunMigrations(ctx, bdb, []any{(*widget)(nil)}, indexes...))

	t.Run("UniqueViolation", func(t *testing.T) {
		_, err := bdb.NewInsert().Model(&widget{Code: "A", Status: 1}).Exec(ctx)
		require.NoError(t, err)

		_, err = bdb.NewInsert().Model(&widget{Code: "A", Status: 1}).Exec(ctx)
		require.Error(t, err)

		v, ok := AsConstraintViolation(err)
		require.True(t, ok)
		assert.True(t, v.Unique)
		assert.True(t, v.Mentions("widgets_code", "widgets.code"))
		assert.False(t, v.Mentions("other", "widgets.status"))
	})

	t.Run("PartialIndexIgnoresExcludedRows", func(t *testing.T) {
		_, err := bdb.NewInsert().Model(&widget{Code: "B", Status: 9}).Exec(ctx)
		require.NoError(t, err)
		_, err = bdb.NewInsert().Model(&widget{Code: "B", Status: 9}).Exec(ctx)
		require.NoError(t, err)
	})
}

func TestAsConstraintViolation_OtherErrors(t *testing.T) {
	_, ok := AsConstraintViolation(nil)
	assert.False(t, ok)

	_, ok = AsConstraintViolation(assert.AnError)
	assert.False(t, ok)
}

func TestConstraintViolation_MentionsColumnBoundary(t *testing.T) {
	v := ConstraintViolation{Detail: "UNIQUE constraint failed: m_academic_year.short_name"}

	assert.True(t, v.Mentions("", "m_academic_year.short_name"))
	assert.False(t, v.Mentions("", "m_academic_year.short"))
	assert.False(t, v.Mentions("academic_year_name", "m_academic_year.name"))

	pg := ConstraintViolation{Constraint: "academic_year_name"}
	assert.True(t, pg.Mentions("academic_year_name", "m_academic_year.name"))
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}
