// Package mailer sends report PDFs over SMTP.
package mailer

import (
	"fmt"
	"io"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"gopkg.in/gomail.v2"
)

// Sender abstracts the SMTP dial so tests can capture messages.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	sender Sender
	from   string
}

// New returns nil when SMTP is not configured.
func New(cfg *config.Config) *Mailer {
	if !cfg.SMTPEnabled() {
		return nil
	}
	return &Mailer{
		sender: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.SMTPFrom,
	}
}

func NewWithSender(sender Sender, from string) *Mailer {
	return &Mailer{sender: sender, from: from}
}

// SendPDF mails pdf as an attachment named filename.
func (m *Mailer) SendPDF(to, subject, body, filename string, pdf []byte) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	msg.Attach(filename,
		gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}),
	)

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
