package commandlog

import (
	"context"
	"time"

	"academic-service/internal/metrics"
)

type instrumented struct {
	next        Publisher
	system      string
	destination string
	metrics     *metrics.MessagingMetrics
}

// Instrument records publish counts and latency for p.
func Instrument(p Publisher, system, destination string, m *metrics.MessagingMetrics) Publisher {
	if _, ok := p.(NopPublisher); ok {
		return p
	}
	return &instrumented{next: p, system: system, destination: destination, metrics: m}
}

func (p *instrumented) Publish(ctx context.Context, event Event) error {
	start := time.Now()
	err := p.next.Publish(ctx, event)
	p.metrics.RecordPublish(ctx, p.system, p.destination, time.Since(start), err)
	return err
}

func (p *instrumented) Close() error {
	return p.next.Close()
}
