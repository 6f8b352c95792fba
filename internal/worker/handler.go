// Package worker reacts to customer events consumed from Kafka.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/goware/emailx"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type Mailer interface {
	SendWelcome(ctx context.Context, event domain.NeuerKundeEvent) error
}

// WelcomeHandler mails every new customer. Failures are logged and
// swallowed so the consumer commits and moves on; a lost welcome mail is
// not worth blocking the topic.
type WelcomeHandler struct {
	mailer Mailer
	logger *slog.Logger
}

func NewWelcomeHandler(mailer Mailer, logger *slog.Logger) *WelcomeHandler {
	return &WelcomeHandler{mailer: mailer, logger: logger}
}

func (h *WelcomeHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.NeuerKundeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("skipping malformed kunde created event", "error", err)
		return nil
	}

	h.logger.Info("processing kunde created event", "kunde_id", event.KundeID, "username", event.Username)

	event.Email = emailx.Normalize(event.Email)
	if err := emailx.ValidateFast(event.Email); err != nil {
		h.logger.Warn("kunde has no deliverable email", "kunde_id", event.KundeID, "email", event.Email, "error", err)
		return nil
	}

	if err := h.mailer.SendWelcome(ctx, event); err != nil {
		h.logger.Error("mail fallback", "kunde_id", event.KundeID, "email", event.Email, "error", err)
		return nil
	}

	h.logger.Info("welcome mail sent", "kunde_id", event.KundeID, "email", event.Email)
	return nil
}
