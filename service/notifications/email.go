package notifications

import (
	"context"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"gopkg.in/gomail.v2"
)

// EmailSink mails events to the recipient's address over SMTP.
type EmailSink struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailSink(host string, port int, user, pass string) *EmailSink {
	return &EmailSink{dialer: gomail.NewDialer(host, port, user, pass), from: user}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(_ context.Context, recipient *models.User, ev Event) error {
	if recipient.Email == "" {
		return nil
	}
	return s.dialer.DialAndSend(buildMessage(s.from, recipient, ev))
}

func buildMessage(from string, recipient *models.User, ev Event) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetAddressHeader("To", recipient.Email, recipient.FullName)
	m.SetHeader("Subject", ev.Title)
	m.SetBody("text/plain", ev.Message)
	return m
}
