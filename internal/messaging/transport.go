// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package messaging manages the long-lived connection to the chat-messaging
// network and the delivery channels built on top of it.
package messaging

import "context"

// EventKind identifies a connection event reported by the transport.
type EventKind int

const (
	// EventPairingCode carries a fresh pairing code to present to the
	// operator while the channel is not yet linked.
	EventPairingCode EventKind = iota
	// EventConnected signals a completed handshake.
	EventConnected
	// EventDisconnected signals a channel drop. LoggedOut distinguishes an
	// explicit logout from a transient fault.
	EventDisconnected
)

// Event is a connection state notification from the transport.
type Event struct {
	Kind        EventKind
	PairingCode string
	Reason      string
	LoggedOut   bool
}

// Conn is one open channel to the messaging network.
type Conn interface {
	// Events streams connection updates. The channel is closed when the
	// connection is torn down.
	Events() <-chan Event
	SendText(ctx context.Context, address, text string) error
	SendImage(ctx context.Context, address, caption string, image []byte) error
	Logout(ctx context.Context) error
	Close() error
}

// Transport opens connections to the messaging network. It is the seam to
// the external channel library.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}
