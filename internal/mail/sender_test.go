package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type capturingDialer struct {
	messages []*gomail.Message
	err      error
}

func (d *capturingDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.messages = append(d.messages, m...)
	return nil
}

func TestSender_SendWelcome(t *testing.T) {
	event := domain.NeuerKundeEvent{
		KundeID:   "000000000000000000000001",
		Nachname:  "Alpha",
		Email:     "alpha@example.com",
		Username:  "alpha",
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	t.Run("renders and sends", func(t *testing.T) {
		d := &capturingDialer{}
		s := newSender(d, "noreply@shopflow.local")

		if err := s.SendWelcome(context.Background(), event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(d.messages) != 1 {
			t.Fatalf("expected 1 message, got %d", len(d.messages))
		}

		m := d.messages[0]
		if got := m.GetHeader("To"); len(got) != 1 || got[0] != event.Email {
			t.Errorf("unexpected recipient %v", got)
		}
		if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != welcomeSubject {
			t.Errorf("unexpected subject %v", got)
		}

		var buf bytes.Buffer
		if _, err := m.WriteTo(&buf); err != nil {
			t.Fatalf("write message: %v", err)
		}
		raw := buf.String()
		for _, want := range []string{"text/plain", "text/html", event.KundeID} {
			if !strings.Contains(raw, want) {
				t.Errorf("expected message to contain %q", want)
			}
		}
	})

	t.Run("reports dial failures", func(t *testing.T) {
		d := &capturingDialer{err: errors.New("connection refused")}
		if err := newSender(d, "noreply@shopflow.local").SendWelcome(context.Background(), event); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := &capturingDialer{}
		if err := newSender(d, "x@y.z").SendWelcome(ctx, event); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(d.messages) != 0 {
			t.Error("expected nothing sent")
		}
	})
}
