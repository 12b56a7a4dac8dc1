// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"codeberg.org/oliverandrich/guestgate/internal/models"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"codeberg.org/oliverandrich/guestgate/internal/token"
	"github.com/labstack/echo/v4"
)

type guestRequest struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Category       string `json:"category"`
	InvitationLink string `json:"invitation_link"`
}

func (r *guestRequest) validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	switch r.Category {
	case "", models.CategoryVVIP, models.CategoryVIP, models.CategoryRegular:
		return nil
	}
	return errors.New("unknown category")
}

// ListGuests returns guests, optionally filtered by category or a name and
// phone search term.
func (h *Handlers) ListGuests(c echo.Context) error {
	guests, err := h.repo.ListGuests(c.Request().Context(),
		c.QueryParam("category"), c.QueryParam("search"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to list guests")
	}
	return c.JSON(http.StatusOK, guests)
}

// CreateGuest registers a new guest.
func (h *Handlers) CreateGuest(c echo.Context) error {
	var req guestRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if req.Category == "" {
		req.Category = models.CategoryRegular
	}

	guest, err := h.repo.CreateGuest(c.Request().Context(), &models.Guest{
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Category:       req.Category,
		InvitationLink: req.InvitationLink,
	})
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to create guest")
	}
	return c.JSON(http.StatusCreated, guest)
}

// GetGuest returns a single guest by ID.
func (h *Handlers) GetGuest(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid guest id")
	}

	guest, err := h.repo.GetGuestByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "guest not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to load guest")
	}
	return c.JSON(http.StatusOK, guest)
}

// UpdateGuest updates a guest's contact data and category.
func (h *Handlers) UpdateGuest(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid guest id")
	}

	var req guestRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	guest, err := h.repo.GetGuestByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "guest not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to load guest")
	}

	guest.Name = req.Name
	guest.Phone = req.Phone
	guest.Email = req.Email
	if req.Category != "" {
		guest.Category = req.Category
	}
	guest.InvitationLink = req.InvitationLink

	updated, err := h.repo.UpdateGuest(c.Request().Context(), guest)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to update guest")
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteGuest removes a guest and their history.
func (h *Handlers) DeleteGuest(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid guest id")
	}
	if err := h.repo.DeleteGuest(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "guest not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to delete guest")
	}
	return c.NoContent(http.StatusNoContent)
}

// GuestStats returns guest counts by category.
func (h *Handlers) GuestStats(c echo.Context) error {
	stats, err := h.repo.GuestStats(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to load guest stats")
	}
	return c.JSON(http.StatusOK, stats)
}

// GuestQR returns the guest's current QR payload, issuing a first token on
// demand. The payload is what the invitation renderer encodes into the QR
// image.
func (h *Handlers) GuestQR(c echo.Context) error {
	return h.guestQR(c, false)
}

// ReissueGuestQR forces a fresh token, invalidating every previously issued
// QR code for the guest.
func (h *Handlers) ReissueGuestQR(c echo.Context) error {
	return h.guestQR(c, true)
}

func (h *Handlers) guestQR(c echo.Context, force bool) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid guest id")
	}

	guest, err := h.repo.GetGuestByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "guest not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to load guest")
	}

	var payload *token.Payload
	if !force {
		payload, err = h.codec.PayloadFor(guest)
	}
	if force || errors.Is(err, token.ErrStaleToken) {
		payload, err = h.codec.Issue(c.Request().Context(), guest)
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to issue token")
	}

	return c.JSON(http.StatusOK, payload)
}

func pathID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
