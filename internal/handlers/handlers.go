// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the JSON API handlers.
package handlers

import (
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/guestgate/internal/checkin"
	"codeberg.org/oliverandrich/guestgate/internal/messaging"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"codeberg.org/oliverandrich/guestgate/internal/token"
	"github.com/labstack/echo/v4"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo          *repository.Repository
	codec         *token.Codec
	gate          *checkin.Gate
	session       *messaging.Session // nil when no gateway is configured
	webhookSecret string
}

// New creates a new Handlers instance. session may be nil; the messaging
// endpoints then report the channel as unconfigured.
func New(repo *repository.Repository, codec *token.Codec, gate *checkin.Gate, session *messaging.Session, webhookSecret string) *Handlers {
	return &Handlers{
		repo:          repo,
		codec:         codec,
		gate:          gate,
		session:       session,
		webhookSecret: webhookSecret,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func errorJSON(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]string{"error": message})
}

// auditCheckIn records a successful admission in the audit log. Audit
// failures are logged, never surfaced; the check-in already happened.
func (h *Handlers) auditCheckIn(c echo.Context, result *checkin.Result) {
	err := h.repo.CreateAuditEntry(c.Request().Context(), "attendance",
		result.Attendance.ID, "create",
		map[string]any{
			"guest_id": result.Guest.ID,
			"status":   result.Attendance.Status,
			"source":   result.Attendance.Source,
		},
		c.Request().UserAgent(), c.RealIP())
	if err != nil {
		slog.Error("failed to write audit entry",
			"attendance_id", result.Attendance.ID, "error", err)
	}
}
