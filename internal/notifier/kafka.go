package notifier

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/caredesk/scheduling/internal/config"
)

// KafkaNotifier publishes lifecycle events to a single topic, keyed by
// appointment id so per-appointment ordering survives partitioning.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaNotifier(cfg config.KafkaConfig, log *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequireOne,
		},
		log: log,
	}
}

func (n *KafkaNotifier) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AppointmentID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
