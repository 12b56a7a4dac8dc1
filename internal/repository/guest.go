// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/models"
)

// CreateGuest inserts a new guest and returns it with its assigned ID.
func (r *Repository) CreateGuest(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO guests (name, phone, email, category, invitation_link) VALUES (?, ?, ?, ?, ?)`,
		guest.Name, guest.Phone, guest.Email, guest.Category, guest.InvitationLink)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetGuestByID(ctx, id)
}

// GetGuestByID retrieves a guest by ID.
func (r *Repository) GetGuestByID(ctx context.Context, id int64) (*models.Guest, error) {
	var guest models.Guest
	if err := r.db.GetContext(ctx, &guest, `SELECT * FROM guests WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &guest, nil
}

// GetGuestByPhone retrieves a guest by phone number.
func (r *Repository) GetGuestByPhone(ctx context.Context, phone string) (*models.Guest, error) {
	var guest models.Guest
	if err := r.db.GetContext(ctx, &guest, `SELECT * FROM guests WHERE phone = ?`, phone); err != nil {
		return nil, wrapError(err)
	}
	return &guest, nil
}

// ListGuests returns guests, optionally filtered by category or a name/phone
// substring search, newest first.
func (r *Repository) ListGuests(ctx context.Context, category, search string) ([]models.Guest, error) {
	query := `SELECT * FROM guests WHERE 1=1`
	args := []any{}

	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if search != "" {
		query += ` AND (name LIKE ? OR phone LIKE ?)`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	guests := []models.Guest{}
	if err := r.db.SelectContext(ctx, &guests, query, args...); err != nil {
		return nil, err
	}
	return guests, nil
}

// UpdateGuest updates a guest's editable fields.
func (r *Repository) UpdateGuest(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE guests SET name = ?, phone = ?, email = ?, category = ?, invitation_link = ?, updated_at = ?
		 WHERE id = ?`,
		guest.Name, guest.Phone, guest.Email, guest.Category, guest.InvitationLink, time.Now().UTC(), guest.ID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return r.GetGuestByID(ctx, guest.ID)
}

// DeleteGuest deletes a guest by ID.
func (r *Repository) DeleteGuest(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetGuestTokenNonce stores the guest's currently valid token nonce,
// invalidating all previously issued tokens for this guest.
func (r *Repository) SetGuestTokenNonce(ctx context.Context, id int64, nonce string, issuedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE guests SET token_nonce = ?, token_issued_at = ?, updated_at = ? WHERE id = ?`,
		nonce, issuedAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GuestStats returns guest counts per category.
func (r *Repository) GuestStats(ctx context.Context) (*models.GuestStats, error) {
	var stats models.GuestStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE category = 'VVIP') AS vvip_count,
			COUNT(*) FILTER (WHERE category = 'VIP') AS vip_count,
			COUNT(*) FILTER (WHERE category = 'Regular') AS regular_count
		FROM guests`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
