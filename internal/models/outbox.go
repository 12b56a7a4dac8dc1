// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Outbox statuses. Entries are created pending, moved to sent or failed by
// the delivery worker, and only return to pending through an explicit
// operator requeue.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// Delivery channels.
const (
	ChannelMessenger = "messenger"
	ChannelEmail     = "email"
)

// OutboxMessage is a durable notification awaiting delivery. Address is the
// destination in the channel's own format (phone number or e-mail address).
type OutboxMessage struct { //nolint:govet // fieldalignment: readability over optimization
	ID           int64      `db:"id" json:"id"`
	GuestID      int64      `db:"guest_id" json:"guest_id"`
	TemplateID   *int64     `db:"template_id" json:"template_id,omitempty"`
	Channel      string     `db:"channel" json:"channel"`
	Address      string     `db:"address" json:"address"`
	Message      string     `db:"message" json:"message"`
	Status       string     `db:"status" json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int64      `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
}

// OutboxStats counts entries per status.
type OutboxStats struct {
	Total        int64 `db:"total" json:"total"`
	SentCount    int64 `db:"sent_count" json:"sent_count"`
	PendingCount int64 `db:"pending_count" json:"pending_count"`
	FailedCount  int64 `db:"failed_count" json:"failed_count"`
}
