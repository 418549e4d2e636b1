package academic

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"academic-service/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	Create(ctx context.Context, ay *AcademicYear) error
	GetByID(ctx context.Context, id int64) (*AcademicYear, error)
	ListActive(ctx context.Context) ([]AcademicYear, error)
	Update(ctx context.Context, ay *AcademicYear) error
	// RunInTx runs fn with a repository bound to one transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) Create(ctx context.Context, ay *AcademicYear) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(ay).Returning("id").Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", tableName, time.Since(start), err)

	return err
}

func (r *repository) GetByID(ctx context.Context, id int64) (*AcademicYear, error) {
	start := time.Now()
	ay := new(AcademicYear)
	err := r.db.NewSelect().Model(ay).Where("ay.id = ?", id).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", tableName, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}
	return ay, nil
}

// ListActive returns every academic year that is not deleted, in storage order.
func (r *repository) ListActive(ctx context.Context) ([]AcademicYear, error) {
	start := time.Now()
	var years []AcademicYear
	err := r.db.NewSelect().
		Model(&years).
		Where("ay.status_enum <> ?", StatusDeleted.Code()).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", tableName, time.Since(start), err)

	return years, err
}

func (r *repository) Update(ctx context.Context, ay *AcademicYear) error {
	start := time.Now()
	result, err := r.db.NewUpdate().Model(ay).WherePK().Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "update", tableName, time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return &NotFoundError{ID: ay.ID}
	}
	return nil
}

func (r *repository) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &repository{db: tx, metrics: r.metrics})
	})
}
