// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"codeberg.org/oliverandrich/guestgate/internal/config"
	"golang.org/x/crypto/acme/autocert"
)

// TLSMode represents the resolved TLS mode.
type TLSMode string

const (
	TLSModeOff    TLSMode = "off"
	TLSModeACME   TLSMode = "acme"
	TLSModeManual TLSMode = "manual"
)

// TLSResult contains the resolved TLS configuration.
type TLSResult struct {
	TLSConfig   *tls.Config
	HTTPHandler http.Handler // For HTTP→HTTPS redirect (ACME only)
	Mode        TLSMode
}

// SetupTLS configures TLS based on the configuration.
func SetupTLS(cfg *config.Config) (*TLSResult, error) {
	mode := resolveTLSMode(cfg)

	switch mode {
	case TLSModeOff:
		slog.Info("TLS mode: off")
		return &TLSResult{Mode: TLSModeOff}, nil

	case TLSModeACME:
		if cfg.TLS.Email == "" {
			return nil, errors.New("ACME mode requires tls-email")
		}
		if config.IsLocalhost(cfg.Server.Host) {
			return nil, errors.New("ACME mode requires a public hostname")
		}
		slog.Info("TLS mode: acme (Let's Encrypt)",
			"host", cfg.Server.Host, "email", cfg.TLS.Email)
		return setupACME(cfg)

	case TLSModeManual:
		slog.Info("TLS mode: manual",
			"cert", cfg.TLS.CertFile, "key", cfg.TLS.KeyFile)
		return setupManual(cfg)

	default:
		return nil, fmt.Errorf("unknown TLS mode: %s", mode)
	}
}

// resolveTLSMode determines the TLS mode from configuration and environment.
func resolveTLSMode(cfg *config.Config) TLSMode {
	switch strings.ToLower(cfg.TLS.Mode) {
	case "off":
		return TLSModeOff
	case "acme":
		return TLSModeACME
	case "manual":
		return TLSModeManual
	case "auto", "":
		// Fall through to auto-detection
	default:
		slog.Warn("unknown TLS mode, using auto", "mode", cfg.TLS.Mode)
	}

	if config.IsLocalhost(cfg.Server.Host) {
		return TLSModeOff
	}
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		return TLSModeManual
	}
	if cfg.TLS.Email != "" {
		return TLSModeACME
	}
	return TLSModeOff
}

func setupACME(cfg *config.Config) (*TLSResult, error) {
	if err := os.MkdirAll(cfg.TLS.CertDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cert dir: %w", err)
	}

	manager := &autocert.Manager{
		Cache:      autocert.DirCache(cfg.TLS.CertDir),
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Server.Host),
		Email:      cfg.TLS.Email,
	}

	return &TLSResult{
		Mode:        TLSModeACME,
		TLSConfig:   manager.TLSConfig(),
		HTTPHandler: manager.HTTPHandler(nil),
	}, nil
}

func setupManual(cfg *config.Config) (*TLSResult, error) {
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return nil, errors.New("manual TLS mode requires tls-cert-file and tls-key-file")
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}

	return &TLSResult{
		Mode: TLSModeManual,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}
