package transport

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"gopkg.in/gomail.v2"

	"github.com/nhle/garden-reminders/internal/credential"
)

// SMTPConfig holds SMTP settings read from the environment.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

// LoadSMTPConfig parses SMTP settings from the environment. An empty
// SMTP_PASSWORD is looked up in the system keyring.
func LoadSMTPConfig() (SMTPConfig, error) {
	cfg, err := env.ParseAs[SMTPConfig]()
	if err != nil {
		return SMTPConfig{}, fmt.Errorf("parsing SMTP environment: %w", err)
	}

	if cfg.Password == "" && cfg.Username != "" {
		password, err := credential.Get(credential.SMTPPasswordKey)
		if err != nil {
			return SMTPConfig{}, fmt.Errorf("SMTP_PASSWORD unset and keyring lookup failed: %w", err)
		}
		cfg.Password = password
	}

	return cfg, cfg.validate()
}

// Configured reports whether enough settings exist to attempt delivery.
func (c SMTPConfig) Configured() bool {
	return c.Host != ""
}

func (c SMTPConfig) validate() error {
	if c.Host == "" {
		return nil
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP_PORT environment variable")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP_FROM environment variable")
	}
	return nil
}

// SMTPTransport delivers email messages through an SMTP relay.
type SMTPTransport struct {
	from   string
	sender func(*gomail.Message) error
}

// NewSMTPTransport creates an SMTPTransport dialing the relay in cfg for
// every message.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("missing SMTP_HOST environment variable")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPTransport{
		from: cfg.From,
		sender: func(m *gomail.Message) error {
			return dialer.DialAndSend(m)
		},
	}, nil
}

// NewSMTPTransportWithSender creates an SMTPTransport that hands messages
// to s instead of dialing.
func NewSMTPTransportWithSender(from string, s gomail.Sender) *SMTPTransport {
	return &SMTPTransport{
		from: from,
		sender: func(m *gomail.Message) error {
			return gomail.Send(s, m)
		},
	}
}

// Send builds a MIME message from msg and delivers it. gomail has no
// context support, so the delivery runs in a goroutine and Send returns
// ctx.Err() if the context ends first.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("no recipient specified")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTMLBody != "" {
		m.SetBody("text/html", msg.HTMLBody)
		if msg.Body != "" {
			m.AddAlternative("text/plain", msg.Body)
		}
	} else {
		m.SetBody("text/plain", msg.Body)
	}

	errc := make(chan error, 1)
	go func() { errc <- t.sender(m) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("sending email to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
