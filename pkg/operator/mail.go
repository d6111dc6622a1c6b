package operator

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// MailNotifier is the fallback channel when no Telegram bot is configured:
// hand-off summaries land in the operator's inbox instead. Replies cannot be
// routed back through mail; the operator answers from the admin side.
type MailNotifier struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	toEmail     string
}

var _ Notifier = &MailNotifier{}

func NewMailNotifier(host string, port int, username, password, senderEmail, senderName, toEmail string) *MailNotifier {
	return &MailNotifier{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: senderEmail,
		senderName:  senderName,
		toEmail:     toEmail,
	}
}

func (m *MailNotifier) Notify(ctx context.Context, n Notification) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.senderEmail, m.senderName)
	msg.SetHeader("To", m.toEmail)
	msg.SetHeader("Subject", fmt.Sprintf("[support chat] %s - session %s", n.Kind, n.SessionId))
	msg.SetBody("text/plain", Format(n))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send notification mail: %w", err)
	}
	return nil
}
