package commandlog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewNATSPublisher(url string, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("academic-service"))
	if err != nil {
		return nil, err
	}

	logger.Info("NATS command log initialized", "url", url, "subject", subject)

	return &NATSPublisher{
		conn:    nc,
		subject: subject,
		logger:  logger,
	}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal command event", "error", err)
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Command-Id", event.CommandID)
	msg.Header.Set("Action", event.Action)

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to send command event to NATS", "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "command event sent to NATS", "subject", p.subject, "command_id", event.CommandID)
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
