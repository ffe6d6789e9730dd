// Package messaging publishes payment status-change events for external
// listeners (view refresh, downstream bookkeeping). Publishing is
// fire-and-forget: the payment transition has already committed by the time
// an event goes out, and a lost event is a liveness issue, not a
// correctness one.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/vhgminh/bhxh-portal/modules/payment/domain/ports"
	"github.com/vhgminh/bhxh-portal/modules/payment/domain/types"
)

type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaNotifier{producer: producer, topic: topic}, nil
}

var _ ports.Notifier = (*KafkaNotifier)(nil)

func (n *KafkaNotifier) PaymentStatusChanged(_ context.Context, evt types.StatusChangedEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(evt.PaymentID),
		Value: sarama.ByteEncoder(data),
	})
	return err
}

func (n *KafkaNotifier) Close() error { return n.producer.Close() }

// LogNotifier is the default sink when no broker is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

var _ ports.Notifier = LogNotifier{}

func (n LogNotifier) PaymentStatusChanged(_ context.Context, evt types.StatusChangedEvent) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("payment status changed",
		"declaration_id", evt.DeclarationID,
		"payment_id", evt.PaymentID,
		"old_status", evt.OldStatus,
		"new_status", evt.NewStatus,
		"at", evt.At,
	)
	return nil
}
