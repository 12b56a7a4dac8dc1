// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package notify_test

import (
	"testing"

	"codeberg.org/oliverandrich/guestgate/internal/notify"
	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	out := notify.Render("Terima kasih {nama}, check-in {waktu_checkin}", map[string]string{
		"nama":          "Alice",
		"waktu_checkin": "09:00",
	})

	assert.Equal(t, "Terima kasih Alice, check-in 09:00", out)
}

func TestRender_UnknownKeysStayLiteral(t *testing.T) {
	out := notify.Render("Hello {nama}, table {meja}", map[string]string{"nama": "Bob"})

	assert.Equal(t, "Hello Bob, table {meja}", out)
}

func TestRender_RepeatedPlaceholder(t *testing.T) {
	out := notify.Render("{nama} {nama}", map[string]string{"nama": "x"})

	assert.Equal(t, "x x", out)
}

func TestRender_EmptyData(t *testing.T) {
	assert.Equal(t, "plain text", notify.Render("plain text", nil))
}
