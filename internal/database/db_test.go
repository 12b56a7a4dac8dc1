// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/guestgate/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	// Migrations must have created the core tables.
	for _, table := range []string{"guests", "attendance", "outbox", "message_templates", "audit_log"} {
		var name string
		err := db.GetContext(context.Background(), &name,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestOpenSeedsDefaultTemplate(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.GetContext(context.Background(), &count,
		`SELECT COUNT(*) FROM message_templates WHERE is_enabled = 1`)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}
