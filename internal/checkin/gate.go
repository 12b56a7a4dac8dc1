// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package checkin admits guests from verified scans and queues their
// thank-you notifications.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/models"
	"codeberg.org/oliverandrich/guestgate/internal/notify"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"codeberg.org/oliverandrich/guestgate/internal/token"
)

// ErrGuestNotFound is returned when a check-in references no known guest.
var ErrGuestNotFound = errors.New("guest not found")

// DuplicateError reports a same-day duplicate check-in. It carries the
// prior check-in time for user-facing messaging; the caller must not retry.
type DuplicateError struct {
	GuestName       string
	PreviousCheckIn time.Time
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("guest %s already checked in at %s", e.GuestName, e.PreviousCheckIn.Format(time.RFC3339))
}

// Store is the persistence the gate needs.
type Store interface {
	GetGuestByID(ctx context.Context, id int64) (*models.Guest, error)
	GetGuestByPhone(ctx context.Context, phone string) (*models.Guest, error)
	CreateGuest(ctx context.Context, guest *models.Guest) (*models.Guest, error)
	CreateCheckIn(ctx context.Context, guestID int64, day string, at time.Time, source, notes string) (*models.Attendance, bool, error)
	EnqueueOutbox(ctx context.Context, msg *models.OutboxMessage) (*models.OutboxMessage, error)
}

// TemplateProvider supplies the currently enabled notification template.
type TemplateProvider interface {
	EnabledTemplate(ctx context.Context) (*models.MessageTemplate, error)
}

// Verifier checks scanned token payloads.
type Verifier interface {
	Verify(ctx context.Context, payload *token.Payload) (*models.Guest, error)
}

// Result is a successful admission.
type Result struct {
	Guest      *models.Guest      `json:"guest"`
	Attendance *models.Attendance `json:"attendance"`
}

// Gate admits guests. All collaborators are injected; the template provider
// in particular is a constructor parameter rather than a runtime lookup.
type Gate struct {
	store     Store
	verifier  Verifier
	templates TemplateProvider
	loc       *time.Location
	now       func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock overrides the gate's clock.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a gate. loc is the event's time zone; calendar days for
// deduplication are computed in it.
func NewGate(store Store, verifier Verifier, templates TemplateProvider, loc *time.Location, opts ...GateOption) *Gate {
	g := &Gate{
		store:     store,
		verifier:  verifier,
		templates: templates,
		loc:       loc,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AdmitScan verifies a scanned QR payload and records the check-in.
//
// Token errors pass through unchanged (malformed, invalid signature, stale,
// unknown guest). A same-day duplicate returns *DuplicateError with the
// prior check-in time. Notification enqueue failures are logged but never
// fail the check-in; delivery reliability is the outbox worker's job.
func (g *Gate) AdmitScan(ctx context.Context, qrData string, source string) (*Result, error) {
	payload, err := token.ParsePayload([]byte(qrData))
	if err != nil {
		return nil, err
	}

	guest, err := g.verifier.Verify(ctx, payload)
	if err != nil {
		return nil, err
	}

	return g.admit(ctx, guest, source, "Checked in via QR code scan")
}

// AdmitManual records a staff-initiated check-in without a token.
func (g *Gate) AdmitManual(ctx context.Context, guestID int64, source, notes string) (*Result, error) {
	guest, err := g.store.GetGuestByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuestNotFound
		}
		return nil, err
	}
	return g.admit(ctx, guest, source, notes)
}

// AdmitByPhone records a check-in reported by an external guestbook webhook.
// When the phone is unknown and a name is supplied, a walk-in guest is
// created on the fly.
func (g *Gate) AdmitByPhone(ctx context.Context, phone, name, source string) (*Result, error) {
	guest, err := g.store.GetGuestByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) && name != "" {
		guest, err = g.store.CreateGuest(ctx, &models.Guest{
			Name:     name,
			Phone:    phone,
			Category: models.CategoryRegular,
		})
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuestNotFound
		}
		return nil, err
	}
	return g.admit(ctx, guest, source, "")
}

func (g *Gate) admit(ctx context.Context, guest *models.Guest, source, notes string) (*Result, error) {
	now := g.now().In(g.loc)
	day := now.Format("2006-01-02")

	attendance, created, err := g.store.CreateCheckIn(ctx, guest.ID, day, now, source, notes)
	if err != nil {
		return nil, fmt.Errorf("recording check-in: %w", err)
	}
	if !created {
		return nil, &DuplicateError{GuestName: guest.Name, PreviousCheckIn: attendance.CheckInTime}
	}

	slog.Info("guest checked in",
		"guest_id", guest.ID,
		"name", guest.Name,
		"source", source,
	)

	// Check-in success is the primary contract; the notification is
	// best-effort here and made reliable by the outbox worker.
	if err := g.queueNotification(ctx, guest, attendance); err != nil {
		slog.Error("failed to queue thank-you notification",
			"guest_id", guest.ID, "error", err)
	}

	return &Result{Guest: guest, Attendance: attendance}, nil
}

// queueNotification renders the enabled template and enqueues it on the
// channel the guest is reachable on.
func (g *Gate) queueNotification(ctx context.Context, guest *models.Guest, attendance *models.Attendance) error {
	tmpl, err := g.templates.EnabledTemplate(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("no enabled notification template, skipping thank-you message",
				"guest_id", guest.ID)
			return nil
		}
		return err
	}

	channel, address := models.ChannelMessenger, guest.Phone
	if address == "" {
		channel, address = models.ChannelEmail, guest.Email
	}
	if address == "" {
		slog.Info("guest has no reachable address, skipping thank-you message",
			"guest_id", guest.ID)
		return nil
	}

	message := notify.Render(tmpl.Body, map[string]string{
		"nama":          guest.Name,
		"waktu_checkin": attendance.CheckInTime.In(g.loc).Format("Monday, 2 January 2006 15:04"),
	})

	_, err = g.store.EnqueueOutbox(ctx, &models.OutboxMessage{
		GuestID:    guest.ID,
		TemplateID: &tmpl.ID,
		Channel:    channel,
		Address:    address,
		Message:    message,
	})
	return err
}
