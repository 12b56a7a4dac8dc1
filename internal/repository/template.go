// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/models"
)

// CreateTemplate inserts a new message template.
func (r *Repository) CreateTemplate(ctx context.Context, tmpl *models.MessageTemplate) (*models.MessageTemplate, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO message_templates (name, body, is_enabled) VALUES (?, ?, ?)`,
		tmpl.Name, tmpl.Body, tmpl.IsEnabled)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetTemplateByID(ctx, id)
}

// GetTemplateByID retrieves a template by ID.
func (r *Repository) GetTemplateByID(ctx context.Context, id int64) (*models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	if err := r.db.GetContext(ctx, &tmpl, `SELECT * FROM message_templates WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &tmpl, nil
}

// ListTemplates returns all templates, newest first.
func (r *Repository) ListTemplates(ctx context.Context) ([]models.MessageTemplate, error) {
	tmpls := []models.MessageTemplate{}
	err := r.db.SelectContext(ctx, &tmpls,
		`SELECT * FROM message_templates ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return tmpls, nil
}

// EnabledTemplate returns the newest enabled template, or ErrNotFound when
// no template is enabled.
func (r *Repository) EnabledTemplate(ctx context.Context) (*models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	err := r.db.GetContext(ctx, &tmpl,
		`SELECT * FROM message_templates WHERE is_enabled = 1 ORDER BY created_at DESC, id DESC LIMIT 1`)
	if err != nil {
		return nil, wrapError(err)
	}
	return &tmpl, nil
}

// UpdateTemplate updates a template's name, body and enabled flag.
func (r *Repository) UpdateTemplate(ctx context.Context, tmpl *models.MessageTemplate) (*models.MessageTemplate, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE message_templates SET name = ?, body = ?, is_enabled = ?, updated_at = ? WHERE id = ?`,
		tmpl.Name, tmpl.Body, tmpl.IsEnabled, time.Now().UTC(), tmpl.ID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return r.GetTemplateByID(ctx, tmpl.ID)
}

// SetTemplateEnabled toggles a template.
func (r *Repository) SetTemplateEnabled(ctx context.Context, id int64, enabled bool) (*models.MessageTemplate, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE message_templates SET is_enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return r.GetTemplateByID(ctx, id)
}

// DeleteTemplate deletes a template by ID.
func (r *Repository) DeleteTemplate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM message_templates WHERE id = ?`, id)
	return err
}
