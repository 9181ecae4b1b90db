package events

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/metrics"
)

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc applies one message value.
type HandlerFunc func(ctx context.Context, value []byte) error

// Consumer drives one topic. Offsets are committed only after the handler succeeds.
// A failing message is not retried in-process: the reader is closed and reopened,
// which resumes from the last committed offset and redelivers it.
type Consumer struct {
	topic     string
	newReader func() Reader
	handle    HandlerFunc
	log       *zap.Logger
	metrics   *metrics.Metrics
	backoff   time.Duration
}

// NewConsumer builds a consumer. m may be nil.
func NewConsumer(topic string, newReader func() Reader, handle HandlerFunc, log *zap.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		topic:     topic,
		newReader: newReader,
		handle:    handle,
		log:       log.With(zap.String("topic", topic)),
		metrics:   m,
		backoff:   time.Second,
	}
}

// WithBackoff sets the pause before a reader is reopened after a failure.
func (c *Consumer) WithBackoff(d time.Duration) *Consumer {
	if d > 0 {
		c.backoff = d
	}
	return c
}

// KafkaReader returns a factory of group readers for topic.
func KafkaReader(brokers []string, group, topic string) func() Reader {
	return func() Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        group,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // synchronous commits
		})
	}
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		r := c.newReader()
		err := c.consume(ctx, r)
		if cerr := r.Close(); cerr != nil {
			c.log.Warn("close reader", zap.Error(cerr))
		}
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("consumer interrupted, redelivering from last commit",
			zap.Error(err), zap.Duration("backoff", c.backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.backoff):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, r Reader) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			return errs.Transient(err)
		}

		err = c.handle(ctx, msg.Value)
		switch {
		case err == nil:
			c.metrics.Event(c.topic, metrics.OutcomeApplied)
		case errors.Is(err, errs.ErrMalformed):
			// redelivery cannot fix an undecodable message
			c.log.Error("skipping malformed message",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
			c.metrics.Event(c.topic, metrics.OutcomeSkipped)
		default:
			c.metrics.Event(c.topic, metrics.OutcomeFailed)
			return err
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			return errs.Transient(err)
		}
	}
}
