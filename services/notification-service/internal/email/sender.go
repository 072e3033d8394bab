package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers a plain-text message to a single recipient.
type Sender interface {
	Send(to string, subject string, body string) error
}

// SMTPSender talks unauthenticated SMTP, matching the Mailpit relay used in
// local and staging environments.
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@klinikflow.local"
	}
	return &SMTPSender{
		addr: host + ":" + port,
		from: from,
	}
}

func (s *SMTPSender) Send(to string, subject string, body string) error {
	msg := message(s.from, to, subject, body)
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg))
}

// message builds a minimal RFC 5322 payload. Headers declare UTF-8 so Danish
// characters in clinic names survive the relay.
func message(from, to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}
