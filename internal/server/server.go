// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires configuration, storage, messaging, and the HTTP API
// together and runs the process.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/checkin"
	"codeberg.org/oliverandrich/guestgate/internal/config"
	"codeberg.org/oliverandrich/guestgate/internal/database"
	"codeberg.org/oliverandrich/guestgate/internal/handlers"
	"codeberg.org/oliverandrich/guestgate/internal/i18n"
	"codeberg.org/oliverandrich/guestgate/internal/messaging"
	"codeberg.org/oliverandrich/guestgate/internal/models"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"codeberg.org/oliverandrich/guestgate/internal/token"
	"codeberg.org/oliverandrich/guestgate/internal/worker"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	loc, err := time.LoadLocation(cfg.Event.Timezone)
	if err != nil {
		return fmt.Errorf("invalid event timezone %q: %w", cfg.Event.Timezone, err)
	}

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Repository and domain services
	repo := repository.New(db)

	codec, err := token.NewCodec(cfg.Token.Secret, repo)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	gate := checkin.NewGate(repo, codec, repo, loc)

	// Messaging session, only when a gateway is configured.
	var session *messaging.Session
	senders := map[string]worker.Sender{}
	if cfg.Gateway.URL != "" {
		transport := messaging.NewGatewayTransport(cfg.Gateway.URL, cfg.Gateway.APIKey)
		session = messaging.NewSession(transport, cfg.Event.CountryCode)
		senders[models.ChannelMessenger] = session
		if initErr := session.Initialize(ctx); initErr != nil {
			// The session reconnects on its own; a failed first dial is
			// reported but does not prevent startup.
			slog.Warn("messaging session did not initialize", "error", initErr)
		}
	} else {
		slog.Info("no messaging gateway configured, messenger channel disabled")
	}

	// E-mail channel, only when SMTP is configured.
	if cfg.SMTP.Host != "" {
		mailer, mailErr := messaging.NewMailer(messaging.MailerConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
			TLS:      cfg.SMTP.TLS,
		})
		if mailErr != nil {
			return fmt.Errorf("mailer: %w", mailErr)
		}
		senders[models.ChannelEmail] = mailer
	} else {
		slog.Info("no SMTP host configured, email channel disabled")
	}

	// Delivery worker
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	w := worker.New(repo, senders,
		worker.WithPollInterval(time.Duration(cfg.Worker.PollInterval)*time.Second),
		worker.WithBatchSize(cfg.Worker.BatchSize),
	)
	go w.Run(workerCtx)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, repo, codec, gate, session, cfg.Webhook.Secret)

	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(e *echo.Echo, repo *repository.Repository, codec *token.Codec, gate *checkin.Gate, session *messaging.Session, webhookSecret string) {
	h := handlers.New(repo, codec, gate, session, webhookSecret)

	e.GET("/health", h.Health)

	api := e.Group("/api")

	api.GET("/guests", h.ListGuests)
	api.POST("/guests", h.CreateGuest)
	api.GET("/guests/stats", h.GuestStats)
	api.GET("/guests/:id", h.GetGuest)
	api.PUT("/guests/:id", h.UpdateGuest)
	api.DELETE("/guests/:id", h.DeleteGuest)
	api.GET("/guests/:id/qr", h.GuestQR)
	api.POST("/guests/:id/qr", h.ReissueGuestQR)

	api.POST("/scan", h.Scan)
	api.POST("/webhook/checkin", h.Webhook)

	api.GET("/attendance", h.ListAttendance)
	api.GET("/attendance/summary", h.AttendanceSummary)
	api.POST("/attendance", h.CreateManualCheckIn)
	api.PATCH("/attendance/:id", h.CorrectAttendanceStatus)
	api.GET("/audit", h.ListAuditEntries)

	api.GET("/outbox", h.ListOutbox)
	api.GET("/outbox/stats", h.OutboxStats)
	api.POST("/outbox/:id/retry", h.RetryOutbox)

	api.GET("/templates", h.ListTemplates)
	api.POST("/templates", h.CreateTemplate)
	api.PUT("/templates/:id", h.UpdateTemplate)
	api.PATCH("/templates/:id", h.ToggleTemplate)
	api.DELETE("/templates/:id", h.DeleteTemplate)

	api.GET("/messaging/status", h.MessagingStatus)
	api.GET("/messaging/pairing-code", h.MessagingPairingCode)
	api.POST("/messaging/initialize", h.InitializeMessaging)
	api.POST("/messaging/logout", h.LogoutMessaging)
	api.POST("/messaging/send/:id", h.SendGuestMessage)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	errChan := make(chan error, 2)

	// HTTP redirect server for ACME mode
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP→HTTPS redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}
