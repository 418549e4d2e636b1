package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Database  *DatabaseMetrics
	Messaging *MessagingMetrics
	Runtime   *RuntimeMetrics

	academicYearsCreated    metric.Int64Counter
	academicYearsUpdated    metric.Int64Counter
	academicYearsDeleted    metric.Int64Counter
	academicYearsActivated  metric.Int64Counter
	academicYearsClosed     metric.Int64Counter
	academicYearsViewed     metric.Int64Counter
	academicYearsListViewed metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	database, err := NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	messaging, err := NewMessagingMetrics(meter)
	if err != nil {
		return nil, err
	}

	rt, err := NewRuntimeMetrics(meter)
	if err != nil {
		return nil, err
	}

	m := &Metrics{Database: database, Messaging: messaging, Runtime: rt}

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
		unit   string
	}{
		{&m.academicYearsCreated, "academic_service.academic_years.created", "Total number of academic years created", "{academic_year}"},
		{&m.academicYearsUpdated, "academic_service.academic_years.updated", "Total number of academic year updates that changed at least one field", "{academic_year}"},
		{&m.academicYearsDeleted, "academic_service.academic_years.deleted", "Total number of academic years soft-deleted", "{academic_year}"},
		{&m.academicYearsActivated, "academic_service.academic_years.activated", "Total number of academic years activated", "{academic_year}"},
		{&m.academicYearsClosed, "academic_service.academic_years.closed", "Total number of academic years closed", "{academic_year}"},
		{&m.academicYearsViewed, "academic_service.academic_years.viewed", "Total number of single academic year reads", "{view}"},
		{&m.academicYearsListViewed, "academic_service.academic_years.list_viewed", "Total number of academic year list reads", "{view}"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	return m, nil
}

// RecordCommand counts a committed write. Unknown actions are ignored.
func (m *Metrics) RecordCommand(ctx context.Context, action string) {
	if m == nil {
		return
	}

	var counter metric.Int64Counter
	switch action {
	case "CREATE":
		counter = m.academicYearsCreated
	case "UPDATE":
		counter = m.academicYearsUpdated
	case "DELETE":
		counter = m.academicYearsDeleted
	case "ACTIVATE":
		counter = m.academicYearsActivated
	case "CLOSE":
		counter = m.academicYearsClosed
	}
	if counter != nil {
		counter.Add(ctx, 1)
	}
}

func (m *Metrics) RecordAcademicYearViewed(ctx context.Context) {
	if m != nil && m.academicYearsViewed != nil {
		m.academicYearsViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordAcademicYearsListViewed(ctx context.Context) {
	if m != nil && m.academicYearsListViewed != nil {
		m.academicYearsListViewed.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{Database: &DatabaseMetrics{}, Messaging: &MessagingMetrics{}}
}
