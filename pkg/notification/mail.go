package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/raykavin/martinrun/pkg/logger"
)

const defaultSubject = "martinrun batch report"

// Mail sends notifications by e-mail
type Mail struct {
	auth              smtp.Auth
	smtpServerPort    int
	smtpServerAddress string
	to                string
	from              string
	subject           string
	log               logger.Logger
	send              func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// MailParams contains all parameters needed to initialize a Mail instance
type MailParams struct {
	SMTPServerPort    int
	SMTPServerAddress string
	To                string
	From              string
	Password          string
	Subject           string
}

// NewMail creates a new Mail instance with the provided parameters
func NewMail(params MailParams, log logger.Logger) Mail {
	if log == nil {
		log = logger.Nop()
	}
	subject := params.Subject
	if subject == "" {
		subject = defaultSubject
	}

	return Mail{
		from:              params.From,
		to:                params.To,
		subject:           subject,
		smtpServerPort:    params.SMTPServerPort,
		smtpServerAddress: params.SMTPServerAddress,
		auth: smtp.PlainAuth(
			"",
			params.From,
			params.Password,
			params.SMTPServerAddress,
		),
		log:  log,
		send: smtp.SendMail,
	}
}

func (m Mail) message(text string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: <%s>\r\n", m.to)
	fmt.Fprintf(&b, "From: \"martinrun\" <%s>\r\n", m.from)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.subject)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(text, "\n", "\r\n"))
	return []byte(b.String())
}

// Notify sends text as the body of an e-mail. Failures are logged.
func (m Mail) Notify(text string) {
	serverAddress := fmt.Sprintf("%s:%d", m.smtpServerAddress, m.smtpServerPort)

	err := m.send(serverAddress, m.auth, m.from, []string{m.to}, m.message(text))
	if err != nil {
		m.log.WithError(err).Error("notification/mail: failed to send email")
	}
}
