package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/and161185/userservice/internal/model"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

var _ Writer = (*fakeWriter)(nil)
var _ Writer = (*kafka.Writer)(nil)

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublisher_RequestNameLookup(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := NewPublisher(w, zap.NewNop())
	p.RequestNameLookup(context.Background(), "user1", "u1")

	if len(w.msgs) != 1 {
		t.Fatalf("messages=%d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "user1" {
		t.Fatalf("key=%q", w.msgs[0].Key)
	}
	var req model.NameLookupRequest
	if err := json.Unmarshal(w.msgs[0].Value, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.UserID != "user1" || req.BusinessUnitID != "u1" {
		t.Fatalf("payload %+v", req)
	}
	if string(w.msgs[0].Value) != `{"userId":"user1","businessUnitId":"u1"}` {
		t.Fatalf("wire format %s", w.msgs[0].Value)
	}
}

func TestPublisher_FailureDoesNotReachCaller(t *testing.T) {
	t.Parallel()

	p := NewPublisher(&fakeWriter{err: errors.New("broker down")}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// returns nothing; must not panic or block on a cancelled request context
	p.RequestNameLookup(ctx, "user1", "u1")
}

func TestKafkaWriter_IsAsync(t *testing.T) {
	t.Parallel()

	w := KafkaWriter([]string{"localhost:9092"}, "business-unit-name-requests", zap.NewNop())
	if !w.Async || w.Topic != "business-unit-name-requests" || w.Completion == nil {
		t.Fatalf("writer misconfigured: %+v", w)
	}
}
