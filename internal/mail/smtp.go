package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the relay settings for outbound mail.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay using gomail.
type SMTPMailer struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("mail: smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail: smtp from address is required")
	}

	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

func (m *SMTPMailer) SendVerificationLink(ctx context.Context, to, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Verify your email address")
	msg.SetBody("text/plain", verificationBody(link))
	msg.AddAlternative("text/html", verificationHTMLBody(link))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail: send verification link: %w", err)
	}
	return nil
}

func verificationBody(link string) string {
	return fmt.Sprintf(
		"Please confirm your email address by opening the link below.\n\n"+
			"%s\n\n"+
			"The link expires in 60 minutes. If you did not create an account, "+
			"you can ignore this message.\n",
		link,
	)
}

func verificationHTMLBody(link string) string {
	return fmt.Sprintf(
		`<p>Please confirm your email address by clicking the button below.</p>`+
			`<p><a href="%s">Verify Email Address</a></p>`+
			`<p>The link expires in 60 minutes. If you did not create an account, `+
			`you can ignore this message.</p>`,
		link,
	)
}
