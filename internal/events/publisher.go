package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/and161185/userservice/internal/model"
)

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits name lookup requests without waiting for an answer.
type Publisher struct {
	w   Writer
	log *zap.Logger
}

// NewPublisher wraps w.
func NewPublisher(w Writer, log *zap.Logger) *Publisher {
	return &Publisher{w: w, log: log}
}

// KafkaWriter returns an async writer for topic. Delivery failures are reported
// through the completion callback and logged.
func KafkaWriter(brokers []string, topic string, log *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("name lookup request not delivered", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
}

// RequestNameLookup emits a lookup request keyed by user id. It never fails the caller.
func (p *Publisher) RequestNameLookup(ctx context.Context, userID, businessUnitID string) {
	value, err := json.Marshal(model.NameLookupRequest{UserID: userID, BusinessUnitID: businessUnitID})
	if err != nil {
		p.log.Warn("encode name lookup request", zap.Error(err))
		return
	}
	msg := kafka.Message{Key: []byte(userID), Value: value}
	if err := p.w.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Warn("publish name lookup request",
			zap.String("user_id", userID), zap.String("business_unit_id", businessUnitID), zap.Error(err))
	}
}

// Close flushes pending messages.
func (p *Publisher) Close() error { return p.w.Close() }
