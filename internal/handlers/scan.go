// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/checkin"
	"codeberg.org/oliverandrich/guestgate/internal/i18n"
	"codeberg.org/oliverandrich/guestgate/internal/token"
	"github.com/labstack/echo/v4"
)

type scanRequest struct {
	QRData string `json:"qr_data"`
	Source string `json:"source"`
}

type scanResponse struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	Result          *checkin.Result `json:"result,omitempty"`
	PreviousCheckIn *time.Time      `json:"previous_check_in,omitempty"`
}

// Scan verifies a scanned QR payload and records the check-in. Messages are
// localized via the Accept-Language header; the scanner UI shows them
// verbatim.
func (h *Handlers) Scan(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Source == "" {
		req.Source = "QR Code Scanner"
	}

	ctx := c.Request().Context()
	result, err := h.gate.AdmitScan(ctx, req.QRData, req.Source)
	if err != nil {
		var dup *checkin.DuplicateError
		switch {
		case errors.As(err, &dup):
			return c.JSON(http.StatusConflict, scanResponse{
				Message:         i18n.T(ctx, "checkin_duplicate"),
				PreviousCheckIn: &dup.PreviousCheckIn,
			})
		case errors.Is(err, token.ErrUnknownGuest):
			slog.Warn("scan rejected", "reason", err, "ip", c.RealIP())
			return c.JSON(http.StatusNotFound, scanResponse{
				Message: i18n.T(ctx, "checkin_guest_not_found"),
			})
		case errors.Is(err, token.ErrMalformedToken),
			errors.Is(err, token.ErrInvalidSignature),
			errors.Is(err, token.ErrStaleToken):
			slog.Warn("scan rejected", "reason", err, "ip", c.RealIP())
			return c.JSON(http.StatusBadRequest, scanResponse{
				Message: i18n.T(ctx, "checkin_invalid_token"),
			})
		default:
			return errorJSON(c, http.StatusInternalServerError, "check-in failed")
		}
	}

	h.auditCheckIn(c, result)

	return c.JSON(http.StatusOK, scanResponse{
		Success: true,
		Message: i18n.TData(ctx, "checkin_success", map[string]any{"Name": result.Guest.Name}),
		Result:  result,
	})
}

type webhookRequest struct {
	Phone  string `json:"phone"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Webhook records a check-in reported by an external guestbook. The request
// body is authenticated with a keyed hash over the raw bytes, carried in the
// X-Webhook-Signature header as hex.
func (h *Handlers) Webhook(c echo.Context) error {
	if h.webhookSecret == "" {
		return errorJSON(c, http.StatusServiceUnavailable, "webhook is not configured")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to read request body")
	}

	if !verifySignature(body, c.Request().Header.Get("X-Webhook-Signature"), h.webhookSecret) {
		slog.Warn("webhook signature mismatch", "ip", c.RealIP())
		return errorJSON(c, http.StatusUnauthorized, "invalid webhook signature")
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Phone == "" {
		return errorJSON(c, http.StatusBadRequest, "phone is required")
	}
	if req.Source == "" {
		req.Source = "Digital Guestbook"
	}

	ctx := c.Request().Context()
	result, err := h.gate.AdmitByPhone(ctx, req.Phone, req.Name, req.Source)
	if err != nil {
		var dup *checkin.DuplicateError
		switch {
		case errors.As(err, &dup):
			return c.JSON(http.StatusConflict, scanResponse{
				Message:         i18n.T(ctx, "checkin_duplicate"),
				PreviousCheckIn: &dup.PreviousCheckIn,
			})
		case errors.Is(err, checkin.ErrGuestNotFound):
			return c.JSON(http.StatusNotFound, scanResponse{
				Message: i18n.T(ctx, "checkin_guest_not_found"),
			})
		default:
			return errorJSON(c, http.StatusInternalServerError, "check-in failed")
		}
	}

	h.auditCheckIn(c, result)

	return c.JSON(http.StatusOK, scanResponse{
		Success: true,
		Message: i18n.TData(ctx, "checkin_success", map[string]any{"Name": result.Guest.Name}),
		Result:  result,
	})
}

func verifySignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
