package academic_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"academic-service/internal/academic"
	"academic-service/internal/auth"
	"academic-service/internal/commandlog"
	"academic-service/internal/logger"
	"academic-service/internal/metrics"
	"academic-service/testing/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var (
	admin = auth.Caller{UserID: 1, Username: "mifos", Permissions: []string{auth.PermissionAllFunctions}}
	clerk = auth.Caller{UserID: 2, Username: "clerk", Permissions: []string{academic.PermissionUpdate, academic.PermissionRead}}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []commandlog.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e commandlog.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	db        *bun.DB
	reads     academic.ReadService
	writes    academic.WriteService
	publisher *recordingPublisher
}

func newFixture(t *testing.T, policy academic.EndDatePolicy) *fixture {
	t.Helper()

	bdb := testdb.NewSQLite(t, []any{(*academic.AcademicYear)(nil)}, academic.Indexes()...)
	m := metrics.NewMock()
	repo := academic.NewRepository(bdb, m)
	pub := &recordingPublisher{}
	today := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	return &fixture{
		db:    bdb,
		reads: academic.NewReadService(repo),
		writes: academic.NewWriteService(repo, pub, m, logger.Discard(), academic.WriteOptions{
			EndDatePolicy: policy,
			Now:           func() time.Time { return today },
		}),
		publisher: pub,
	}
}

func (f *fixture) create(t *testing.T, body string) int64 {
	t.Helper()
	result, err := f.writes.Create(context.Background(), admin, []byte(body))
	require.NoError(t, err)
	return result.ResourceID
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.db.NewSelect().Model((*academic.AcademicYear)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

const fy2024 = `{"name":"FY2024","shortName":"FY24","startDate":"2024-01-01","endDate":"2024-12-31"}`

func TestWriteService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("StartsPending", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)

		result, err := f.writes.Create(ctx, admin, []byte(`{"name":"FY2024","shortName":"FY24","startDate":"2024-01-01","endDate":"2024-12-31","status":300,"active":true}`))
		require.NoError(t, err)
		assert.NotZero(t, result.ResourceID)
		assert.NotEmpty(t, result.CommandID)

		got, err := f.reads.GetOne(ctx, admin, result.ResourceID)
		require.NoError(t, err)
		assert.Equal(t, "academicYearStatusType.pending", got.Status.Code)
		assert.Equal(t, "2024-12-31", got.EndDate.Format("2006-01-02"))

		assert.Equal(t, []string{academic.ActionCreate}, f.publisher.actions())
		assert.Equal(t, "ACADEMICYEAR", f.publisher.events[0].Entity)
		assert.Equal(t, int64(1), f.publisher.events[0].MakerID)
	})

	t.Run("LegacyEndDate", func(t *testing.T) {
		f := newFixture(t, academic.EndDateFromStart)

		id := f.create(t, fy2024)
		got, err := f.reads.GetOne(ctx, admin, id)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01", got.StartDate.Format("2006-01-02"))
		assert.Equal(t, "2024-01-01", got.EndDate.Format("2006-01-02"))
	})

	t.Run("DateOrder", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)

		_, err := f.writes.Create(ctx, admin, []byte(`{"name":"FY2024","shortName":"FY24","startDate":"2024-01-01","endDate":"2023-12-31"}`))
		var dateErr *academic.DateOrderError
		require.ErrorAs(t, err, &dateErr)
		assert.Equal(t, "2024-01-01", dateErr.StartDate)
		assert.Equal(t, "2023-12-31", dateErr.EndDate)

		assert.Zero(t, f.count(t))
		assert.Empty(t, f.publisher.actions())
	})

	t.Run("DuplicateName", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		f.create(t, fy2024)

		_, err := f.writes.Create(ctx, admin, []byte(`{"name":"FY2024","shortName":"OTHER","startDate":"2024-01-01","endDate":"2024-12-31"}`))
		var dup *academic.DuplicateError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "name", dup.Parameter)
		assert.Equal(t, "FY2024", dup.Value)
		assert.Equal(t, 1, f.count(t))
	})

	t.Run("DuplicateShortName", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		f.create(t, fy2024)

		_, err := f.writes.Create(ctx, admin, []byte(`{"name":"Other","shortName":"FY24","startDate":"2024-01-01","endDate":"2024-12-31"}`))
		var dup *academic.DuplicateError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "shortName", dup.Parameter)
	})

	t.Run("NameReusableAfterDelete", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		id := f.create(t, fy2024)

		_, err := f.writes.Delete(ctx, admin, id)
		require.NoError(t, err)

		f.create(t, fy2024)
		assert.Equal(t, 2, f.count(t))
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)

		_, err := f.writes.Create(ctx, admin, []byte(`{"name":""}`))
		assert.ErrorIs(t, err, academic.ErrValidation)
		assert.Zero(t, f.count(t))
	})

	t.Run("Permissions", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)

		_, err := f.writes.Create(ctx, clerk, []byte(fy2024))
		assert.ErrorIs(t, err, auth.ErrForbidden)

		_, err = f.writes.Create(ctx, auth.Caller{}, []byte(fy2024))
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("PublishFailureKeepsCommand", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		f.publisher.err = errors.New("broker down")

		id := f.create(t, fy2024)
		_, err := f.reads.GetOne(ctx, admin, id)
		assert.NoError(t, err)
	})
}

func TestWriteService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("ChangesFields", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		id := f.create(t, fy2024)

		result, err := f.writes.Update(ctx, clerk, id, []byte(`{"name":"FY 2024","endDate":"30/06/2025","dateFormat":"dd/MM/yyyy","locale":"en"}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"name":       "FY 2024",
			"endDate":    "30/06/2025",
			"dateFormat": "dd/MM/yyyy",
			"locale":     "en",
		}, result.Changes)

		var stored academic.AcademicYear
		require.NoError(t, f.db.NewSelect().Model(&stored).Where("id = ?", id).Scan(ctx))
		assert.Equal(t, "FY 2024", stored.Name)
		require.NotNil(t, stored.ModifiedBy)
		assert.Equal(t, clerk.UserID, *stored.ModifiedBy)
		assert.Equal(t, []string{academic.ActionCreate, academic.ActionUpdate}, f.publisher.actions())
	})

	t.Run("NoChangeSkipsWrite", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		id := f.create(t, fy2024)

		result, err := f.writes.Update(ctx, clerk, id, []byte(`{"name":"FY2024","startDate":"2024-01-01"}`))
		require.NoError(t, err)
		assert.Empty(t, result.Changes)

		var stored academic.AcademicYear
		require.NoError(t, f.db.NewSelect().Model(&stored).Where("id = ?", id).Scan(ctx))
		assert.Nil(t, stored.ModifiedBy)
		assert.Nil(t, stored.ModifiedOn)
	})

	t.Run("DateOrderRechecked", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		id := f.create(t, fy2024)

		_, err := f.writes.Update(ctx, clerk, id, []byte(`{"startDate":"2025-01-01"}`))
		assert.ErrorIs(t, err, academic.ErrDateOrder)

		got, err := f.reads.GetOne(ctx, admin, id)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01", got.StartDate.Format("2006-01-02"))
	})

	t.Run("DuplicateName", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		f.create(t, fy2024)
		id := f.create(t, `{"name":"FY2025","shortName":"FY25","startDate":"2025-01-01","endDate":"2025-12-31"}`)

		_, err := f.writes.Update(ctx, clerk, id, []byte(`{"name":"FY2024"}`))
		var dup *academic.DuplicateError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "FY2024", dup.Value)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)

		_, err := f.writes.Update(ctx, clerk, 404, []byte(`{"name":"x"}`))
		var nf *academic.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, int64(404), nf.ID)
	})
}

func TestWriteService_Transitions(t *testing.T) {
	ctx := context.Background()

	t.Run("ActivateTwice", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		id := f.create(t, fy2024)

		_, err := f.writes.Activate(ctx, admin, id)
		require.NoError(t, err)

		_, err = f.writes.Activate(ctx, admin, id)
		assert.ErrorIs(t, err, academic.ErrValidation)
	})

	t.Run("CloseThenActivate", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		id := f.create(t, fy2024)

		_, err := f.writes.Close(ctx, admin, id)
		require.NoError(t, err)
		result, err := f.writes.Activate(ctx, admin, id)
		require.NoError(t, err)
		assert.Equal(t, id, result.ResourceID)

		got, err := f.reads.GetOne(ctx, admin, id)
		require.NoError(t, err)
		assert.Equal(t, int64(academic.StatusActive), got.Status.ID)
	})

	t.Run("DeleteTwice", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		id := f.create(t, fy2024)

		_, err := f.writes.Delete(ctx, admin, id)
		require.NoError(t, err)

		_, err = f.writes.Delete(ctx, admin, id)
		var ve *academic.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Errors[0].Code, "already.in.deleted.state")
	})

	t.Run("UnknownStoredStatus", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		ay := &academic.AcademicYear{
			Name:      "Legacy",
			ShortName: "LG",
			StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC),
			Status:    academic.Status(42),
		}
		_, err := f.db.NewInsert().Model(ay).Returning("id").Exec(ctx)
		require.NoError(t, err)

		got, err := f.reads.GetOne(ctx, admin, ay.ID)
		require.NoError(t, err)
		assert.Equal(t, "academicYearStatusType.invalid", got.Status.Code)

		_, err = f.writes.Activate(ctx, admin, ay.ID)
		assert.ErrorIs(t, err, academic.ErrValidation)
	})

	t.Run("MissingPermission", func(t *testing.T) {
		f := newFixture(t, academic.EndDateAsSupplied)
		id := f.create(t, fy2024)

		_, err := f.writes.Close(ctx, clerk, id)
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})
}

func TestReadService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, academic.EndDateAsSupplied)

	keep := f.create(t, fy2024)
	gone := f.create(t, `{"name":"FY2023","shortName":"FY23","startDate":"2023-01-01","endDate":"2023-12-31"}`)
	_, err := f.writes.Delete(ctx, admin, gone)
	require.NoError(t, err)

	t.Run("ListExcludesDeleted", func(t *testing.T) {
		years, err := f.reads.ListAll(ctx, clerk)
		require.NoError(t, err)
		require.Len(t, years, 1)
		assert.Equal(t, keep, years[0].ID)
	})

	t.Run("GetOneReturnsDeleted", func(t *testing.T) {
		got, err := f.reads.GetOne(ctx, clerk, gone)
		require.NoError(t, err)
		assert.Equal(t, "academicYearStatusType.deleted", got.Status.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := f.reads.GetOne(ctx, clerk, 9999)
		assert.ErrorIs(t, err, academic.ErrNotFound)
	})

	t.Run("ReadPermission", func(t *testing.T) {
		_, err := f.reads.ListAll(ctx, auth.Caller{UserID: 5, Permissions: []string{"CREATE_ACADEMICYEAR"}})
		assert.ErrorIs(t, err, auth.ErrForbidden)

		_, err = f.reads.ListAll(ctx, auth.Caller{UserID: 5, Permissions: []string{auth.PermissionAllFunctionsRead}})
		assert.NoError(t, err)
	})
}
