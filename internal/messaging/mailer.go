// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package messaging

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// MailerConfig holds the SMTP settings for the e-mail delivery channel.
type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Subject  string
	TLS      bool
}

// Mailer delivers outbox entries to guests reachable by e-mail instead of a
// messaging address. It satisfies the same sender contract as Session.
type Mailer struct {
	cfg MailerConfig
}

// NewMailer creates a mailer. Host and From are required.
func NewMailer(cfg MailerConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = "Thank you for attending"
	}
	return &Mailer{cfg: cfg}, nil
}

// Connected reports whether sends can proceed. SMTP needs no standing
// connection, so a configured mailer is always ready.
func (m *Mailer) Connected() bool {
	return true
}

// Send delivers a plain-text message to the given e-mail address.
func (m *Mailer) Send(ctx context.Context, address, text string) error {
	msg := mail.NewMsg()

	if m.cfg.FromName != "" {
		if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(m.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(address); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(m.cfg.Subject)
	msg.SetBodyString(mail.TypeTextPlain, text)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
	}

	if m.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if m.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
