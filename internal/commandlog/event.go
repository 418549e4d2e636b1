package commandlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"academic-service/internal/config"
)

const (
	SinkNone  = "none"
	SinkNATS  = "nats"
	SinkKafka = "kafka"
)

// Event records one committed write command.
type Event struct {
	CommandID  string         `json:"commandId"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	ResourceID int64          `json:"resourceId"`
	MakerID    int64          `json:"makerId"`
	Changes    map[string]any `json:"changes,omitempty"`
	MadeOn     time.Time      `json:"madeOn"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// New builds the publisher selected by cfg.Sink.
func New(cfg config.CommandLogConfig, logger *slog.Logger) (Publisher, error) {
	switch cfg.Sink {
	case "", SinkNone:
		logger.Info("command log disabled")
		return NopPublisher{}, nil
	case SinkNATS:
		return NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger)
	case SinkKafka:
		return NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	default:
		return nil, fmt.Errorf("unknown command log sink %q", cfg.Sink)
	}
}
