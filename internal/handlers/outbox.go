// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"github.com/labstack/echo/v4"
)

// ListOutbox returns outbox entries, optionally filtered by status or guest.
func (h *Handlers) ListOutbox(c echo.Context) error {
	var guestID int64
	if raw := c.QueryParam("guest_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid guest_id")
		}
		guestID = id
	}

	messages, err := h.repo.ListOutbox(c.Request().Context(), c.QueryParam("status"), guestID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to list outbox")
	}
	return c.JSON(http.StatusOK, messages)
}

// OutboxStats returns outbox counts by status.
func (h *Handlers) OutboxStats(c echo.Context) error {
	stats, err := h.repo.OutboxStats(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to load outbox stats")
	}
	return c.JSON(http.StatusOK, stats)
}

// RetryOutbox requeues a failed entry for delivery. Only failed entries can
// be requeued; the worker never retries on its own.
func (h *Handlers) RetryOutbox(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid outbox id")
	}

	msg, err := h.repo.RequeueOutbox(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "no failed outbox entry with this id")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to requeue entry")
	}
	return c.JSON(http.StatusOK, msg)
}
