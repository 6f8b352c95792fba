// Package mail renders and sends the customer notification mails.
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/matcornic/hermes/v2"
	"gopkg.in/gomail.v2"

	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/domain"
)

const welcomeSubject = "Neuer Kunde"

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender delivers mails through an SMTP relay.
type Sender struct {
	dialer  dialer
	from    string
	product hermes.Hermes
}

func NewSender(cfg config.Mail) *Sender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return newSender(d, cfg.From)
}

func newSender(d dialer, from string) *Sender {
	return &Sender{
		dialer: d,
		from:   from,
		product: hermes.Hermes{
			Product: hermes.Product{
				Name:      "Shopflow",
				Link:      "https://shopflow.local/",
				Copyright: fmt.Sprintf("Copyright © %d Shopflow", time.Now().Year()),
			},
		},
	}
}

// SendWelcome greets a newly registered customer. ctx only bounds the
// rendering; the SMTP exchange runs to completion.
func (s *Sender) SendWelcome(ctx context.Context, event domain.NeuerKundeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := hermes.Email{
		Body: hermes.Body{
			Name: event.Nachname,
			Intros: []string{
				"Willkommen bei Shopflow! Ihr Kundenkonto wurde angelegt.",
			},
			Dictionary: []hermes.Entry{
				{Key: "Kundennummer", Value: event.KundeID},
				{Key: "Benutzername", Value: event.Username},
				{Key: "Registriert am", Value: event.Timestamp.Format("02.01.2006 15:04")},
			},
			Outros: []string{
				"Bei Fragen antworten Sie einfach auf diese E-Mail.",
			},
			Signature: "Viele Grüße",
		},
	}

	html, err := s.product.GenerateHTML(body)
	if err != nil {
		return fmt.Errorf("render welcome html: %w", err)
	}
	text, err := s.product.GeneratePlainText(body)
	if err != nil {
		return fmt.Errorf("render welcome text: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", event.Email)
	m.SetHeader("Subject", welcomeSubject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send welcome mail to %s: %w", event.Email, err)
	}
	return nil
}
