// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/models"
)

// CreateCheckIn records a check-in for the given guest and calendar day.
//
// The insert and the same-day duplicate check are a single statement: the
// UNIQUE(guest_id, check_in_day) constraint plus a conditional upsert make
// the operation atomic under concurrent scans. The latest status governs
// deduplication — a record corrected to not_present is flipped back to
// present and counts as a fresh check-in.
//
// Returns the attendance row and whether a new check-in was recorded. When
// created is false the returned row is the existing present record.
func (r *Repository) CreateCheckIn(ctx context.Context, guestID int64, day string, at time.Time, source, notes string) (*models.Attendance, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (guest_id, status, source, notes, check_in_day, check_in_time)
		VALUES (?, 'present', ?, ?, ?, ?)
		ON CONFLICT (guest_id, check_in_day) DO UPDATE
		SET status = 'present', source = excluded.source, notes = excluded.notes,
		    check_in_time = excluded.check_in_time
		WHERE attendance.status != 'present'
		RETURNING id`,
		guestID, source, notes, day, at).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict with an existing present record: duplicate check-in.
		existing, getErr := r.GetCheckInForDay(ctx, guestID, day)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	created, err := r.GetAttendanceByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// GetAttendanceByID retrieves an attendance record by ID.
func (r *Repository) GetAttendanceByID(ctx context.Context, id int64) (*models.Attendance, error) {
	var att models.Attendance
	if err := r.db.GetContext(ctx, &att, `SELECT * FROM attendance WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &att, nil
}

// GetCheckInForDay returns the guest's attendance record for the given
// calendar day, if any.
func (r *Repository) GetCheckInForDay(ctx context.Context, guestID int64, day string) (*models.Attendance, error) {
	var att models.Attendance
	err := r.db.GetContext(ctx, &att,
		`SELECT * FROM attendance WHERE guest_id = ? AND check_in_day = ?`, guestID, day)
	if err != nil {
		return nil, wrapError(err)
	}
	return &att, nil
}

// ListAttendance returns attendance records joined with their guests, newest
// first, optionally filtered by status or guest.
func (r *Repository) ListAttendance(ctx context.Context, status string, guestID int64) ([]models.AttendanceDetail, error) {
	query := `
		SELECT a.*, g.name AS guest_name, g.phone AS guest_phone, g.category AS category
		FROM attendance a
		JOIN guests g ON g.id = a.guest_id
		WHERE 1=1`
	args := []any{}

	if status != "" {
		query += ` AND a.status = ?`
		args = append(args, status)
	}
	if guestID != 0 {
		query += ` AND a.guest_id = ?`
		args = append(args, guestID)
	}
	query += ` ORDER BY a.check_in_time DESC, a.id DESC`

	records := []models.AttendanceDetail{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateAttendanceStatus applies an administrative status correction.
func (r *Repository) UpdateAttendanceStatus(ctx context.Context, id int64, status string) (*models.Attendance, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE attendance SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return r.GetAttendanceByID(ctx, id)
}

// AttendanceSummary aggregates check-in counts.
func (r *Repository) AttendanceSummary(ctx context.Context) (*models.AttendanceSummary, error) {
	var summary models.AttendanceSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT
			COUNT(*) AS total_check_ins,
			COUNT(*) FILTER (WHERE status = 'present') AS present_count,
			COUNT(*) FILTER (WHERE status = 'not_present') AS not_present_count
		FROM attendance`)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
