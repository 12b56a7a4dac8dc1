// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Event    EventConfig
	Token    TokenConfig
	Webhook  WebhookConfig
	Gateway  GatewayConfig
	SMTP     SMTPConfig
	Worker   WorkerConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type TLSConfig struct {
	Mode     string // auto, acme, manual, off
	CertDir  string // Directory for auto-generated certificates
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type EventConfig struct {
	Timezone    string // IANA zone the event runs in; check-in days are computed here
	CountryCode string // Default phone country code for messenger addresses
}

type TokenConfig struct {
	Secret string // HMAC key for guest token signing
}

type WebhookConfig struct {
	Secret string // HMAC key for inbound webhook verification
}

type GatewayConfig struct {
	URL    string // Base URL of the messaging gateway; empty disables the channel
	APIKey string
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type WorkerConfig struct {
	PollInterval int // seconds between outbox polls
	BatchSize    int // entries leased per cycle per channel
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Event: EventConfig{
			Timezone:    cmd.String("event-timezone"),
			CountryCode: cmd.String("event-country-code"),
		},
		Token: TokenConfig{
			Secret: cmd.String("token-secret"),
		},
		Webhook: WebhookConfig{
			Secret: cmd.String("webhook-secret"),
		},
		Gateway: GatewayConfig{
			URL:    cmd.String("gateway-url"),
			APIKey: cmd.String("gateway-api-key"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Worker: WorkerConfig{
			PollInterval: int(cmd.Int("worker-poll-interval")),
			BatchSize:    int(cmd.Int("worker-batch-size")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	useTLS := shouldUseTLS(mode, host)

	scheme := "http"
	if useTLS {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/guestgate.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, manual, off)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_MODE"), toml.TOML("tls.mode", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for auto-generated certificates",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_DIR"), toml.TOML("tls.cert_dir", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_EMAIL"), toml.TOML("tls.email", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_FILE"), toml.TOML("tls.cert_file", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_KEY_FILE"), toml.TOML("tls.key_file", configFile)),
		},
		// Event flags
		&cli.StringFlag{
			Name:    "event-timezone",
			Value:   "Asia/Jakarta",
			Usage:   "IANA time zone the event runs in",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EVENT_TIMEZONE"), toml.TOML("event.timezone", configFile)),
		},
		&cli.StringFlag{
			Name:    "event-country-code",
			Value:   "62",
			Usage:   "Default phone country code for messenger addresses",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EVENT_COUNTRY_CODE"), toml.TOML("event.country_code", configFile)),
		},
		// Token flags
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "HMAC key for guest token signing (required)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_SECRET"), toml.TOML("token.secret", configFile)),
		},
		// Webhook flags
		&cli.StringFlag{
			Name:    "webhook-secret",
			Usage:   "HMAC key for inbound webhook verification",
			Sources: cli.NewValueSourceChain(cli.EnvVar("WEBHOOK_SECRET"), toml.TOML("webhook.secret", configFile)),
		},
		// Messaging gateway flags
		&cli.StringFlag{
			Name:    "gateway-url",
			Usage:   "Base URL of the messaging gateway (empty disables the channel)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GATEWAY_URL"), toml.TOML("gateway.url", configFile)),
		},
		&cli.StringFlag{
			Name:    "gateway-api-key",
			Usage:   "API key for the messaging gateway",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GATEWAY_API_KEY"), toml.TOML("gateway.api_key", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (empty disables the e-mail channel)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for thank-you e-mails",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Guest Gate",
			Usage:   "Sender display name for thank-you e-mails",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP delivery",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Worker flags
		&cli.IntFlag{
			Name:    "worker-poll-interval",
			Value:   10,
			Usage:   "Seconds between outbox polls",
			Sources: cli.NewValueSourceChain(cli.EnvVar("WORKER_POLL_INTERVAL"), toml.TOML("worker.poll_interval", configFile)),
		},
		&cli.IntFlag{
			Name:    "worker-batch-size",
			Value:   10,
			Usage:   "Outbox entries leased per cycle per channel",
			Sources: cli.NewValueSourceChain(cli.EnvVar("WORKER_BATCH_SIZE"), toml.TOML("worker.batch_size", configFile)),
		},
	}
}
