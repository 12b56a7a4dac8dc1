// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"encoding/json"

	"codeberg.org/oliverandrich/guestgate/internal/models"
)

// CreateAuditEntry records an audit trail entry. newValues is serialized to
// JSON; a nil value leaves the snapshot empty.
func (r *Repository) CreateAuditEntry(ctx context.Context, entityType string, entityID int64, action string, newValues any, userInfo, ipAddress string) error {
	snapshot := ""
	if newValues != nil {
		data, err := json.Marshal(newValues)
		if err != nil {
			return err
		}
		snapshot = string(data)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (entity_type, entity_id, action, new_values, user_info, ip_address)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entityType, entityID, action, snapshot, userInfo, ipAddress)
	return err
}

// ListAuditEntries returns recent audit entries, optionally filtered by
// entity type and action, newest first (capped at 100).
func (r *Repository) ListAuditEntries(ctx context.Context, entityType, action string) ([]models.AuditEntry, error) {
	query := `SELECT * FROM audit_log WHERE 1=1`
	args := []any{}

	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	if action != "" {
		query += ` AND action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 100`

	entries := []models.AuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}
