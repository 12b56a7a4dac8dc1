// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"testing"

	"codeberg.org/oliverandrich/guestgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTLSMode(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.Config
		expected TLSMode
	}{
		{
			name: "explicit off",
			cfg: &config.Config{
				Server: config.ServerConfig{Host: "example.com"},
				TLS:    config.TLSConfig{Mode: "off"},
			},
			expected: TLSModeOff,
		},
		{
			name: "explicit acme",
			cfg: &config.Config{
				Server: config.ServerConfig{Host: "example.com"},
				TLS:    config.TLSConfig{Mode: "acme"},
			},
			expected: TLSModeACME,
		},
		{
			name: "auto on localhost",
			cfg: &config.Config{
				Server: config.ServerConfig{Host: "localhost"},
				TLS:    config.TLSConfig{Mode: "auto"},
			},
			expected: TLSModeOff,
		},
		{
			name: "auto with cert files",
			cfg: &config.Config{
				Server: config.ServerConfig{Host: "example.com"},
				TLS:    config.TLSConfig{Mode: "auto", CertFile: "c.pem", KeyFile: "k.pem"},
			},
			expected: TLSModeManual,
		},
		{
			name: "auto with ACME email",
			cfg: &config.Config{
				Server: config.ServerConfig{Host: "example.com"},
				TLS:    config.TLSConfig{Mode: "auto", Email: "admin@example.com"},
			},
			expected: TLSModeACME,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveTLSMode(tt.cfg))
		})
	}
}

func TestSetupTLS_Validation(t *testing.T) {
	_, err := SetupTLS(&config.Config{
		Server: config.ServerConfig{Host: "example.com"},
		TLS:    config.TLSConfig{Mode: "acme"},
	})
	require.Error(t, err, "ACME without email must fail")

	_, err = SetupTLS(&config.Config{
		Server: config.ServerConfig{Host: "localhost"},
		TLS:    config.TLSConfig{Mode: "acme", Email: "admin@example.com"},
	})
	require.Error(t, err, "ACME on localhost must fail")

	_, err = SetupTLS(&config.Config{
		Server: config.ServerConfig{Host: "example.com"},
		TLS:    config.TLSConfig{Mode: "manual"},
	})
	require.Error(t, err, "manual mode without cert files must fail")

	result, err := SetupTLS(&config.Config{
		Server: config.ServerConfig{Host: "localhost"},
		TLS:    config.TLSConfig{Mode: "off"},
	})
	require.NoError(t, err)
	assert.Equal(t, TLSModeOff, result.Mode)
	assert.Nil(t, result.TLSConfig)
}
