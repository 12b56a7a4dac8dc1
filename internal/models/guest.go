// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Guest categories used for seating and messaging priority.
const (
	CategoryVVIP    = "VVIP"
	CategoryVIP     = "VIP"
	CategoryRegular = "Regular"
)

// Guest is an invited attendee. TokenNonce holds the nonce of the guest's
// currently valid identity token; issuing a new token overwrites it and
// invalidates every previously issued token for this guest.
type Guest struct { //nolint:govet // fieldalignment: readability over optimization
	ID             int64      `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Phone          string     `db:"phone" json:"phone"`
	Email          string     `db:"email" json:"email,omitempty"`
	Category       string     `db:"category" json:"category"`
	InvitationLink string     `db:"invitation_link" json:"invitation_link,omitempty"`
	TokenNonce     string     `db:"token_nonce" json:"-"`
	TokenIssuedAt  *time.Time `db:"token_issued_at" json:"token_issued_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// GuestStats summarizes the guest list by category.
type GuestStats struct {
	Total        int64 `db:"total" json:"total"`
	VVIPCount    int64 `db:"vvip_count" json:"vvip_count"`
	VIPCount     int64 `db:"vip_count" json:"vip_count"`
	RegularCount int64 `db:"regular_count" json:"regular_count"`
}
