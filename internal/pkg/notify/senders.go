package notify

import (
	"fmt"

	"github.com/CrewBill/CrewBill/internal/pkg/mail"
	"github.com/gofiber/fiber/v2/log"
)

// Sender delivers one notification over one channel. Implementations must be
// safe to call repeatedly for the same notification (delivery is keyed by the
// job's dedup key) and must report failure as an error, never a panic.
type Sender interface {
	Send(n Notification) error
}

// EmailSender delivers notifications over SMTP.
type EmailSender struct{}

func (EmailSender) Send(n Notification) error {
	subject := n.Vars["subject"]
	if subject == "" {
		subject = n.TemplateID
	}
	return mail.SendMail(n.Recipient, subject, renderTemplate(n))
}

// LogSender is the default transport for channels whose provider integration
// lives outside this service (SMS, WhatsApp). It records the send and
// succeeds, so the engine's retry and dedup behavior can be exercised without
// a provider account.
type LogSender struct {
	Channel Channel
}

func (s LogSender) Send(n Notification) error {
	log.Infof("[Notify] %s -> %s (template=%s)", s.Channel, n.Recipient, n.TemplateID)
	return nil
}

// renderTemplate produces a plain body from template id and vars. Real
// template rendering is owned by the platform's template service; the engine
// only guarantees the variables reach the transport.
func renderTemplate(n Notification) string {
	body := n.Vars["body"]
	if body == "" {
		body = fmt.Sprintf("Notification %s", n.TemplateID)
	}
	if link := n.Vars["link"]; link != "" {
		body += fmt.Sprintf("<br><a href=%q>%s</a>", link, link)
	}
	return body
}

// senderFor returns the sender registered for a channel.
func (q *Queue) senderFor(ch Channel) Sender {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s, ok := q.senders[ch]; ok {
		return s
	}
	return LogSender{Channel: ch}
}

// RegisterSender installs a transport for a channel, replacing the default.
func (q *Queue) RegisterSender(ch Channel, s Sender) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.senders[ch] = s
}
