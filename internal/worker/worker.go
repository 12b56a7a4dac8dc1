// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package worker drains the notification outbox.
package worker

import (
	"context"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/models"
)

// Default polling parameters, matching the reference deployment.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultBatchSize    = 10
	DefaultSendTimeout  = 10 * time.Second
)

// Queue is the outbox persistence the worker drives.
type Queue interface {
	LeasePendingOutbox(ctx context.Context, channel string, max int) ([]models.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, errorMessage string) error
}

// Sender delivers one message on a channel. Connected gates whether a
// delivery cycle for that channel runs at all.
type Sender interface {
	Connected() bool
	Send(ctx context.Context, address, text string) error
}

// Worker polls the outbox and hands pending entries to the channel senders.
//
// Failure policy: a failed send marks the entry failed and increments its
// retry count, but the worker never retries it on its own — an operator
// must requeue it. This bounds load on a channel that may be rate limited
// or impaired. A disconnected channel defers its entries instead: they stay
// pending and never burn retries.
type Worker struct {
	queue        Queue
	senders      map[string]Sender
	pollInterval time.Duration
	batchSize    int
	sendTimeout  time.Duration
}

// Option configures a Worker.
type Option func(*Worker)

// WithPollInterval overrides the poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.pollInterval = d }
}

// WithBatchSize overrides the per-cycle lease size.
func WithBatchSize(n int) Option {
	return func(w *Worker) { w.batchSize = n }
}

// WithSendTimeout overrides the per-send timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(w *Worker) { w.sendTimeout = d }
}

// New creates a worker delivering via the given senders, keyed by channel.
func New(queue Queue, senders map[string]Sender, opts ...Option) *Worker {
	w := &Worker{
		queue:        queue,
		senders:      senders,
		pollInterval: DefaultPollInterval,
		batchSize:    DefaultBatchSize,
		sendTimeout:  DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Shutdown is cooperative: the in-flight
// cycle completes before Run returns.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("delivery worker started",
		"poll_interval", w.pollInterval, "batch_size", w.batchSize)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("delivery worker stopped")
			return
		case <-ticker.C:
			w.Cycle(ctx)
		}
	}
}

// Cycle runs one delivery pass over every channel. Storage errors are
// logged and the cycle moves on; they are recoverable by the next poll.
func (w *Worker) Cycle(ctx context.Context) {
	for channel, sender := range w.senders {
		if !sender.Connected() {
			// Entries stay pending; a disconnected channel is not a
			// delivery failure.
			slog.Debug("channel not connected, deferring delivery", "channel", channel)
			continue
		}

		batch, err := w.queue.LeasePendingOutbox(ctx, channel, w.batchSize)
		if err != nil {
			slog.Error("failed to lease pending outbox entries",
				"channel", channel, "error", err)
			continue
		}
		if len(batch) == 0 {
			continue
		}

		slog.Info("processing pending notifications",
			"channel", channel, "count", len(batch))

		for _, msg := range batch {
			w.deliver(ctx, sender, msg)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, sender Sender, msg models.OutboxMessage) {
	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	if err := sender.Send(sendCtx, msg.Address, msg.Message); err != nil {
		slog.Warn("notification delivery failed",
			"outbox_id", msg.ID, "address", msg.Address, "error", err)
		if markErr := w.queue.MarkOutboxFailed(ctx, msg.ID, err.Error()); markErr != nil {
			slog.Error("failed to mark outbox entry failed",
				"outbox_id", msg.ID, "error", markErr)
		}
		return
	}

	if err := w.queue.MarkOutboxSent(ctx, msg.ID); err != nil {
		slog.Error("failed to mark outbox entry sent",
			"outbox_id", msg.ID, "error", err)
		return
	}
	slog.Info("notification sent", "outbox_id", msg.ID, "address", msg.Address)
}
