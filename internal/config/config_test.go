// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false}, // not a real localhost
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestShouldUseTLS(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		host     string
		expected bool
	}{
		{"off mode", "off", "example.com", false},
		{"acme mode", "acme", "localhost", true},
		{"manual mode", "manual", "localhost", true},
		{"auto mode with localhost", "auto", "localhost", false},
		{"auto mode with remote host", "auto", "example.com", true},
		{"empty mode with localhost", "", "localhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldUseTLS(tt.mode, tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{
			name: "localhost HTTP default port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 80},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost",
		},
		{
			name: "localhost HTTP custom port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost:8080",
		},
		{
			name: "remote host with auto TLS",
			cfg: &Config{
				Server: ServerConfig{Host: "example.com", Port: 443},
				TLS:    TLSConfig{Mode: "auto"},
			},
			expected: "https://example.com",
		},
		{
			name: "ACME mode forces port 443",
			cfg: &Config{
				Server: ServerConfig{Host: "example.com", Port: 8080},
				TLS:    TLSConfig{Mode: "acme"},
			},
			expected: "https://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildBaseURL(tt.cfg))
		})
	}
}

func TestFlags(t *testing.T) {
	flags := Flags()
	assert.NotEmpty(t, flags)

	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	assert.True(t, flagNames["host"], "should have host flag")
	assert.True(t, flagNames["port"], "should have port flag")
	assert.True(t, flagNames["database-dsn"], "should have database-dsn flag")
	assert.True(t, flagNames["event-timezone"], "should have event-timezone flag")
	assert.True(t, flagNames["token-secret"], "should have token-secret flag")
	assert.True(t, flagNames["webhook-secret"], "should have webhook-secret flag")
	assert.True(t, flagNames["gateway-url"], "should have gateway-url flag")
	assert.True(t, flagNames["smtp-host"], "should have smtp-host flag")
	assert.True(t, flagNames["worker-poll-interval"], "should have worker-poll-interval flag")
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.NotNil(t, cfg)
			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "Asia/Jakarta", cfg.Event.Timezone)
			assert.Equal(t, "62", cfg.Event.CountryCode)
			assert.Equal(t, 587, cfg.SMTP.Port)
			assert.Equal(t, 10, cfg.Worker.PollInterval)
			assert.Equal(t, 10, cfg.Worker.BatchSize)

			// BaseURL should be auto-generated
			assert.NotEmpty(t, cfg.Server.BaseURL)

			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, "secret-key", cfg.Token.Secret)
			assert.Equal(t, "https://gateway.example.com", cfg.Gateway.URL)
			assert.Equal(t, "Europe/Berlin", cfg.Event.Timezone)

			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--log-level", "debug",
		"--token-secret", "secret-key",
		"--gateway-url", "https://gateway.example.com",
		"--event-timezone", "Europe/Berlin",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
