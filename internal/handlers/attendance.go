// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"codeberg.org/oliverandrich/guestgate/internal/checkin"
	"codeberg.org/oliverandrich/guestgate/internal/models"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"github.com/labstack/echo/v4"
)

// ListAttendance returns attendance records with guest details, optionally
// filtered by status or guest.
func (h *Handlers) ListAttendance(c echo.Context) error {
	var guestID int64
	if raw := c.QueryParam("guest_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid guest_id")
		}
		guestID = id
	}

	records, err := h.repo.ListAttendance(c.Request().Context(), c.QueryParam("status"), guestID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to list attendance")
	}
	return c.JSON(http.StatusOK, records)
}

// AttendanceSummary returns aggregate check-in counts.
func (h *Handlers) AttendanceSummary(c echo.Context) error {
	summary, err := h.repo.AttendanceSummary(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to load summary")
	}
	return c.JSON(http.StatusOK, summary)
}

type manualCheckInRequest struct {
	GuestID int64  `json:"guest_id"`
	Source  string `json:"source"`
	Notes   string `json:"notes"`
}

// CreateManualCheckIn records a staff-initiated check-in without a token.
func (h *Handlers) CreateManualCheckIn(c echo.Context) error {
	var req manualCheckInRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.GuestID == 0 {
		return errorJSON(c, http.StatusBadRequest, "guest_id is required")
	}
	if req.Source == "" {
		req.Source = "Manual"
	}

	result, err := h.gate.AdmitManual(c.Request().Context(), req.GuestID, req.Source, req.Notes)
	if err != nil {
		var dup *checkin.DuplicateError
		switch {
		case errors.As(err, &dup):
			return errorJSON(c, http.StatusConflict, dup.Error())
		case errors.Is(err, checkin.ErrGuestNotFound):
			return errorJSON(c, http.StatusNotFound, "guest not found")
		default:
			return errorJSON(c, http.StatusInternalServerError, "check-in failed")
		}
	}

	h.auditCheckIn(c, result)
	return c.JSON(http.StatusCreated, result)
}

type statusCorrectionRequest struct {
	Status string `json:"status"`
}

// CorrectAttendanceStatus flips an attendance record between present and
// not present. Corrections are recorded in the audit log.
func (h *Handlers) CorrectAttendanceStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid attendance id")
	}

	var req statusCorrectionRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Status != models.StatusPresent && req.Status != models.StatusNotPresent {
		return errorJSON(c, http.StatusBadRequest, "status must be present or not_present")
	}

	ctx := c.Request().Context()
	updated, err := h.repo.UpdateAttendanceStatus(ctx, id, req.Status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "attendance record not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to update status")
	}

	if auditErr := h.repo.CreateAuditEntry(ctx, "attendance", updated.ID, "status_correction",
		map[string]string{"status": req.Status}, c.Request().UserAgent(), c.RealIP()); auditErr != nil {
		slog.Error("failed to write audit entry", "attendance_id", updated.ID, "error", auditErr)
	}

	return c.JSON(http.StatusOK, updated)
}

// ListAuditEntries returns recent audit log entries.
func (h *Handlers) ListAuditEntries(c echo.Context) error {
	entries, err := h.repo.ListAuditEntries(c.Request().Context(),
		c.QueryParam("entity_type"), c.QueryParam("action"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to list audit entries")
	}
	return c.JSON(http.StatusOK, entries)
}
