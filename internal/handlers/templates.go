// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/guestgate/internal/models"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"github.com/labstack/echo/v4"
)

type templateRequest struct {
	Name      string `json:"name"`
	Body      string `json:"body"`
	IsEnabled bool   `json:"is_enabled"`
}

// ListTemplates returns all message templates.
func (h *Handlers) ListTemplates(c echo.Context) error {
	templates, err := h.repo.ListTemplates(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to list templates")
	}
	return c.JSON(http.StatusOK, templates)
}

// CreateTemplate adds a message template. Placeholders use {key} syntax;
// check-in notifications substitute {nama} and {waktu_checkin}.
func (h *Handlers) CreateTemplate(c echo.Context) error {
	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Body == "" {
		return errorJSON(c, http.StatusBadRequest, "name and body are required")
	}

	tmpl, err := h.repo.CreateTemplate(c.Request().Context(), &models.MessageTemplate{
		Name:      req.Name,
		Body:      req.Body,
		IsEnabled: req.IsEnabled,
	})
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to create template")
	}
	return c.JSON(http.StatusCreated, tmpl)
}

// UpdateTemplate updates a template's name, body, and enablement.
func (h *Handlers) UpdateTemplate(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid template id")
	}

	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Body == "" {
		return errorJSON(c, http.StatusBadRequest, "name and body are required")
	}

	tmpl, err := h.repo.UpdateTemplate(c.Request().Context(), &models.MessageTemplate{
		ID:        id,
		Name:      req.Name,
		Body:      req.Body,
		IsEnabled: req.IsEnabled,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "template not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to update template")
	}
	return c.JSON(http.StatusOK, tmpl)
}

type templateToggleRequest struct {
	IsEnabled bool `json:"is_enabled"`
}

// ToggleTemplate enables or disables a template without touching its body.
func (h *Handlers) ToggleTemplate(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid template id")
	}

	var req templateToggleRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	tmpl, err := h.repo.SetTemplateEnabled(c.Request().Context(), id, req.IsEnabled)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "template not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to toggle template")
	}
	return c.JSON(http.StatusOK, tmpl)
}

// DeleteTemplate removes a template.
func (h *Handlers) DeleteTemplate(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid template id")
	}
	if err := h.repo.DeleteTemplate(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "template not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "failed to delete template")
	}
	return c.NoContent(http.StatusNoContent)
}
