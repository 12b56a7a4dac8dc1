// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// MessageTemplate is a thank-you message with {key} placeholders.
type MessageTemplate struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Body      string    `db:"body" json:"body"`
	IsEnabled bool      `db:"is_enabled" json:"is_enabled"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
