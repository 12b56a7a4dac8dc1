// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/guestgate/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInitAndTranslate(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)
	assert.Equal(t, "Guest not found", i18n.T(ctx, "checkin_guest_not_found"))

	ctx = i18n.WithLocale(context.Background(), language.Indonesian)
	assert.Equal(t, "Tamu tidak ditemukan", i18n.T(ctx, "checkin_guest_not_found"))
}

func TestTData(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)
	msg := i18n.TData(ctx, "checkin_success", map[string]any{"Name": "Alice"})

	assert.Equal(t, "Successfully checked in: Alice", msg)
}

func TestMatchLanguage(t *testing.T) {
	require.NoError(t, i18n.Init())

	assert.Equal(t, "id", i18n.MatchLanguage("id-ID,id;q=0.9").String()[:2])
	assert.Equal(t, "en", i18n.MatchLanguage("fr-FR").String()[:2])
}
