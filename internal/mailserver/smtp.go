package mailserver

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"time"

	"github.com/emersion/go-smtp"
)

const maxMessageBytes = 10 << 20

// Backend accepts any sender and recipient without authentication.
type Backend struct {
	inbox  *Inbox
	logger *slog.Logger
	now    func() time.Time
}

func NewBackend(inbox *Inbox, logger *slog.Logger) *Backend {
	return &Backend{inbox: inbox, logger: logger, now: time.Now}
}

func (b *Backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

// NewSMTPServer builds the listener side of the sink.
func NewSMTPServer(addr, domain string, backend *Backend) *smtp.Server {
	s := smtp.NewServer(backend)
	s.Addr = addr
	s.Domain = domain
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second
	s.MaxMessageBytes = maxMessageBytes
	s.MaxRecipients = 50
	s.AllowInsecureAuth = true
	return s
}

type session struct {
	backend *Backend
	from    string
	to      []string
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	m := &Mail{
		From:     s.from,
		To:       append([]string(nil), s.to...),
		Subject:  subject(raw),
		Received: s.backend.now().UTC(),
		Size:     len(raw),
		Body:     string(raw),
	}

	logger := s.backend.logger
	logger.Info("MAIL BEGIN >>>", "from", m.From, "to", m.To, "subject", m.Subject)
	logger.Info(m.Body)
	logger.Info("<<< MAIL END", "size", m.Size)

	if err := s.backend.inbox.Store(m); err != nil {
		logger.Error("failed to store mail", "error", err)
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "mail could not be stored",
		}
	}
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

func subject(raw []byte) string {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return msg.Header.Get("Subject")
}
