// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// AuditEntry records who changed what. NewValues holds a JSON snapshot of
// the entity after the change.
type AuditEntry struct { //nolint:govet // fieldalignment: readability over optimization
	ID         int64     `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   int64     `db:"entity_id" json:"entity_id"`
	Action     string    `db:"action" json:"action"`
	NewValues  string    `db:"new_values" json:"new_values,omitempty"`
	UserInfo   string    `db:"user_info" json:"user_info,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
