package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

func TestHeaderCarrier_RoundTrip(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var msg kafka.Message
	propagator := propagation.TraceContext{}
	propagator.Inject(ctx, headerCarrier{msg: &msg})

	if header(&msg, "traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	extracted := trace.SpanContextFromContext(propagator.Extract(context.Background(), headerCarrier{msg: &msg}))
	if extracted.TraceID() != traceID {
		t.Errorf("expected trace id %s, got %s", traceID, extracted.TraceID())
	}
}

func TestSetHeader_Replaces(t *testing.T) {
	var msg kafka.Message
	setHeader(&msg, headerEventType, "a")
	setHeader(&msg, headerEventType, "b")

	if len(msg.Headers) != 1 {
		t.Fatalf("expected 1 header, got %d", len(msg.Headers))
	}
	if got := header(&msg, headerEventType); got != "b" {
		t.Errorf("expected b, got %s", got)
	}
}

func TestEventType(t *testing.T) {
	if got := eventType(&domain.NeuerKundeEvent{}); got != "NeuerKundeEvent" {
		t.Errorf("expected NeuerKundeEvent, got %s", got)
	}
	if got := eventType(nil); got != "" {
		t.Errorf("expected empty type for nil, got %s", got)
	}
}

type fakeReader struct {
	messages  []kafka.Message
	committed []int64
	fetchErr  error
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		if r.fetchErr != nil {
			return kafka.Message{}, r.fetchErr
		}
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_Consume(t *testing.T) {
	t.Run("handles and commits until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		msg := kafka.Message{Offset: 7, Value: []byte(`{"kundeId":"1"}`)}
		setHeader(&msg, headerEventType, "NeuerKundeEvent")
		r := &fakeReader{messages: []kafka.Message{msg, {Offset: 8, Value: []byte(`{}`)}}, cancel: cancel}

		var payloads []string
		c := newConsumer(r, domain.TopicKundeCreated, "test")
		err := c.Consume(ctx, func(_ context.Context, payload []byte) error {
			payloads = append(payloads, string(payload))
			return nil
		})
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
		if len(payloads) != 2 || payloads[0] != `{"kundeId":"1"}` {
			t.Errorf("unexpected payloads %v", payloads)
		}
		if len(r.committed) != 2 || r.committed[1] != 8 {
			t.Errorf("expected offsets 7 and 8 committed, got %v", r.committed)
		}
	})

	t.Run("handler failure stops without commit", func(t *testing.T) {
		r := &fakeReader{messages: []kafka.Message{{Offset: 1}}}
		boom := errors.New("boom")

		err := newConsumer(r, domain.TopicKundeCreated, "test").Consume(context.Background(), func(context.Context, []byte) error {
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected handler error, got %v", err)
		}
		if len(r.committed) != 0 {
			t.Errorf("expected nothing committed, got %v", r.committed)
		}
	})

	t.Run("fetch failure is returned", func(t *testing.T) {
		r := &fakeReader{fetchErr: errors.New("broker gone")}

		err := newConsumer(r, domain.TopicKundeCreated, "test").Consume(context.Background(), func(context.Context, []byte) error {
			return nil
		})
		if err == nil {
			t.Fatal("expected an error")
		}
	})
}
