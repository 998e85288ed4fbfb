package accounts

import (
	"context"

	"filemart/internal/logging"
)

//go:generate mockgen -destination=mock_mailer.go -package=accounts . Mailer

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes outgoing mail to the log instead of delivering it.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log.With("component", "MAIL")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info(ctx, "mail queued", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
