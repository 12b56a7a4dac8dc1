// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/models"
)

// EnqueueOutbox inserts a pending outbox entry.
func (r *Repository) EnqueueOutbox(ctx context.Context, msg *models.OutboxMessage) (*models.OutboxMessage, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO outbox (guest_id, template_id, channel, address, message) VALUES (?, ?, ?, ?, ?)`,
		msg.GuestID, msg.TemplateID, msg.Channel, msg.Address, msg.Message)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetOutboxByID(ctx, id)
}

// GetOutboxByID retrieves an outbox entry by ID.
func (r *Repository) GetOutboxByID(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	var msg models.OutboxMessage
	if err := r.db.GetContext(ctx, &msg, `SELECT * FROM outbox WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &msg, nil
}

// LeasePendingOutbox returns up to max pending entries for the given channel,
// oldest first. Status is not changed here; the delivery worker records the
// outcome after the send attempt, which yields at-least-once delivery.
func (r *Repository) LeasePendingOutbox(ctx context.Context, channel string, max int) ([]models.OutboxMessage, error) {
	msgs := []models.OutboxMessage{}
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT * FROM outbox WHERE status = 'pending' AND channel = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		channel, max)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkOutboxSent transitions a pending entry to sent. The status guard makes
// the update a no-op if another writer already resolved the entry.
func (r *Repository) MarkOutboxSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'sent', sent_at = ?, error_message = NULL WHERE id = ? AND status = 'pending'`,
		time.Now().UTC(), id)
	return err
}

// MarkOutboxFailed transitions a pending entry to failed, recording the error
// and incrementing the retry count. Failed entries are never picked up again
// without an explicit RequeueOutbox.
func (r *Repository) MarkOutboxFailed(ctx context.Context, id int64, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'failed', error_message = ?, retry_count = retry_count + 1
		 WHERE id = ? AND status = 'pending'`,
		errorMessage, id)
	return err
}

// RequeueOutbox resets a failed entry to pending. This is an explicit
// operator action, never done automatically.
func (r *Repository) RequeueOutbox(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'pending', error_message = NULL WHERE id = ? AND status = 'failed'`, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return r.GetOutboxByID(ctx, id)
}

// ListOutbox returns outbox entries, optionally filtered by status or guest,
// newest first.
func (r *Repository) ListOutbox(ctx context.Context, status string, guestID int64) ([]models.OutboxMessage, error) {
	query := `SELECT * FROM outbox WHERE 1=1`
	args := []any{}

	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if guestID != 0 {
		query += ` AND guest_id = ?`
		args = append(args, guestID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	msgs := []models.OutboxMessage{}
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	return msgs, nil
}

// OutboxStats counts entries per status.
func (r *Repository) OutboxStats(ctx context.Context) (*models.OutboxStats, error) {
	var stats models.OutboxStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent_count,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_count,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed_count
		FROM outbox`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
