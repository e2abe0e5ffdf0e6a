// Package events publishes upload transaction outcomes for downstream
// consumers (moderation, notifications). Publishing is best-effort.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// Outcome is the message emitted when an upload transaction reaches a
// terminal state.
type Outcome struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Category      models.Category `json:"category"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	RecordIDs     []string        `json:"record_ids,omitempty"`
	Errors        []string        `json:"errors,omitempty"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// Notifier receives terminal outcomes.
type Notifier interface {
	Notify(ctx context.Context, o Outcome) error
}

// Nop drops every outcome.
type Nop struct{}

func (Nop) Notify(context.Context, Outcome) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes outcomes as JSON, keyed by user id so one user's
// outcomes stay ordered within a partition.
type KafkaNotifier struct {
	writer messageWriter
	logger logging.Logger
}

// NewKafkaNotifier creates a writer for topic on brokers.
func NewKafkaNotifier(brokers []string, topic string, logger logging.Logger) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaNotifier(w, logger)
}

func newKafkaNotifier(w messageWriter, logger logging.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: w, logger: logger.With("module", "kafka_notifier")}
}

func (n *KafkaNotifier) Notify(ctx context.Context, o Outcome) error {
	value, err := json.Marshal(o)
	if err != nil {
		return err
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.UserID),
		Value: value,
		Time:  o.FinishedAt,
	})
	if err != nil {
		n.logger.Warn(ctx, "publish outcome failed", "tx_id", o.TransactionID, "error", err)
		return err
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

var _ Notifier = (*KafkaNotifier)(nil)
