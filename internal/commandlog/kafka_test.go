package commandlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"academic-service/internal/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, ProducerConfig())
	publisher := NewKafkaPublisherWithProducer(producer, "academics.commands", logger.Discard())
	defer publisher.Close()

	event := Event{
		CommandID:  "3f0e6a1c-9a7e-4d40-9d2a-8c1c2b1e2f10",
		Action:     "ACTIVATE",
		Entity:     "ACADEMICYEAR",
		ResourceID: 12,
		MakerID:    1,
		MadeOn:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "academics.commands" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "12" {
			return errors.New("unexpected key " + string(key))
		}

		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var got Event
		if err := json.Unmarshal(raw, &got); err != nil {
			return err
		}
		if got.CommandID != event.CommandID || got.Action != "ACTIVATE" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	require.NoError(t, publisher.Publish(context.Background(), event))
}

func TestKafkaPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, ProducerConfig())
	publisher := NewKafkaPublisherWithProducer(producer, "academics.commands", logger.Discard())
	defer publisher.Close()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := publisher.Publish(context.Background(), Event{CommandID: "x", ResourceID: 1})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestNew_Sinks(t *testing.T) {
	p, err := New(configFor(SinkNone), logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), Event{}))

	_, err = New(configFor("carrier-pigeon"), logger.Discard())
	assert.ErrorContains(t, err, "unknown command log sink")
}
