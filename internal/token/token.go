// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies the signed identity tokens embedded in
// guest QR codes.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/models"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"github.com/google/uuid"
)

// Verification errors. None of these are retryable.
var (
	ErrMalformedToken   = errors.New("malformed token payload")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrUnknownGuest     = errors.New("token references unknown guest")
	ErrStaleToken       = errors.New("token superseded by a newer issuance")
)

// Payload is the structured content of a guest QR code. Name and Category
// are display metadata for the external QR renderer and are not covered by
// the signature; GuestID and Nonce are.
type Payload struct {
	GuestID   int64  `json:"guest_id"`
	Nonce     string `json:"token"`
	Signature string `json:"signature"`
	Name      string `json:"name,omitempty"`
	Category  string `json:"category,omitempty"`
}

// GuestStore is the persistence the codec needs: nonce storage on issue,
// read-only guest lookup on verify.
type GuestStore interface {
	GetGuestByID(ctx context.Context, id int64) (*models.Guest, error)
	SetGuestTokenNonce(ctx context.Context, id int64, nonce string, issuedAt time.Time) error
}

// Codec signs and verifies identity tokens with a keyed hash. Verification
// additionally checks the token's nonce against the guest's current stored
// nonce, so every reissue invalidates all earlier tokens for that guest.
type Codec struct {
	secret []byte
	guests GuestStore
}

// NewCodec creates a codec. The secret must not be empty.
func NewCodec(secret string, guests GuestStore) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &Codec{secret: []byte(secret), guests: guests}, nil
}

// Issue generates a fresh token for the guest, persisting the new nonce and
// thereby invalidating any previously issued token.
func (c *Codec) Issue(ctx context.Context, guest *models.Guest) (*Payload, error) {
	nonce := uuid.NewString()
	if err := c.guests.SetGuestTokenNonce(ctx, guest.ID, nonce, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("storing token nonce: %w", err)
	}

	return &Payload{
		GuestID:   guest.ID,
		Nonce:     nonce,
		Signature: c.sign(guest.ID, nonce),
		Name:      guest.Name,
		Category:  guest.Category,
	}, nil
}

// PayloadFor rebuilds the payload for a guest's currently stored nonce
// without issuing a new one. Returns ErrStaleToken when the guest has no
// token yet.
func (c *Codec) PayloadFor(guest *models.Guest) (*Payload, error) {
	if guest.TokenNonce == "" {
		return nil, ErrStaleToken
	}
	return &Payload{
		GuestID:   guest.ID,
		Nonce:     guest.TokenNonce,
		Signature: c.sign(guest.ID, guest.TokenNonce),
		Name:      guest.Name,
		Category:  guest.Category,
	}, nil
}

// Verify checks a scanned payload and returns the guest it identifies.
//
// The signature comparison is constant time. After the signature check the
// guest is looked up and the token's nonce compared against the guest's
// current nonce; a mismatch means a newer token was issued since.
func (c *Codec) Verify(ctx context.Context, payload *Payload) (*models.Guest, error) {
	if payload == nil || payload.GuestID == 0 || payload.Nonce == "" || payload.Signature == "" {
		return nil, ErrMalformedToken
	}

	expected := c.sign(payload.GuestID, payload.Nonce)
	if !hmac.Equal([]byte(expected), []byte(payload.Signature)) {
		return nil, ErrInvalidSignature
	}

	guest, err := c.guests.GetGuestByID(ctx, payload.GuestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownGuest
		}
		return nil, fmt.Errorf("looking up guest: %w", err)
	}

	if guest.TokenNonce == "" || guest.TokenNonce != payload.Nonce {
		return nil, ErrStaleToken
	}

	return guest, nil
}

// ParsePayload decodes the serialized payload scanned from a QR code.
func ParsePayload(data []byte) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, ErrMalformedToken
	}
	return &payload, nil
}

// sign computes the keyed hash over the identifying fields.
func (c *Codec) sign(guestID int64, nonce string) string {
	mac := hmac.New(sha256.New, c.secret)
	fmt.Fprintf(mac, "%d.%s", guestID, nonce)
	return hex.EncodeToString(mac.Sum(nil))
}
