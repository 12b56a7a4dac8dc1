// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/guestgate/internal/messaging"
	"codeberg.org/oliverandrich/guestgate/internal/models"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"github.com/labstack/echo/v4"
)

type messagingStatus struct {
	Configured  bool                   `json:"configured"`
	State       messaging.State        `json:"state,omitempty"`
	PairingCode string                 `json:"pairing_code,omitempty"`
	Transitions []messaging.Transition `json:"transitions,omitempty"`
}

// MessagingStatus reports the session lifecycle state, the pairing code
// while pairing, and the recent transition history.
func (h *Handlers) MessagingStatus(c echo.Context) error {
	if h.session == nil {
		return c.JSON(http.StatusOK, messagingStatus{})
	}

	status := messagingStatus{
		Configured:  true,
		State:       h.session.State(),
		Transitions: h.session.Transitions(),
	}
	if code, ok := h.session.PairingCode(); ok {
		status.PairingCode = code
	}
	return c.JSON(http.StatusOK, status)
}

// MessagingPairingCode returns the pairing code while the session is
// pairing and 404 otherwise; the code is never served in any other state.
func (h *Handlers) MessagingPairingCode(c echo.Context) error {
	if h.session == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "messaging is not configured")
	}
	code, ok := h.session.PairingCode()
	if !ok {
		return errorJSON(c, http.StatusNotFound, "no pairing code available")
	}
	return c.JSON(http.StatusOK, map[string]string{"pairing_code": code})
}

// InitializeMessaging starts (or restarts) the messaging session. The call
// returns as soon as dialing has begun; pairing progress is observed via
// MessagingStatus.
func (h *Handlers) InitializeMessaging(c echo.Context) error {
	if h.session == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "messaging is not configured")
	}
	if err := h.session.Initialize(c.Request().Context()); err != nil {
		return errorJSON(c, http.StatusBadGateway, "failed to initialize messaging session")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"state": string(h.session.State())})
}

// LogoutMessaging tears the session down permanently. No reconnect happens
// until InitializeMessaging is called again.
func (h *Handlers) LogoutMessaging(c echo.Context) error {
	if h.session == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "messaging is not configured")
	}
	if err := h.session.Logout(c.Request().Context()); err != nil {
		return errorJSON(c, http.StatusBadGateway, "logout failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"state": string(h.session.State())})
}

type directMessageRequest struct {
	Message string `json:"message"`
}

// SendGuestMessage queues an ad-hoc message to a guest. Delivery goes
// through the outbox like every other notification, so a disconnected
// channel defers rather than drops it.
func (h *Handlers) SendGuestMessage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid guest id")
	}

	var req directMessageRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return errorJSON(c, http.StatusBadRequest, "message is required")
	}

	ctx := c.Request().Context()
	guest, err := h.repo.GetGuestByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "guest not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to load guest")
	}

	channel, address := models.ChannelMessenger, guest.Phone
	if address == "" {
		channel, address = models.ChannelEmail, guest.Email
	}
	if address == "" {
		return errorJSON(c, http.StatusUnprocessableEntity, "guest has no reachable address")
	}

	msg, err := h.repo.EnqueueOutbox(ctx, &models.OutboxMessage{
		GuestID: guest.ID,
		Channel: channel,
		Address: address,
		Message: req.Message,
	})
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to queue message")
	}
	return c.JSON(http.StatusAccepted, msg)
}
