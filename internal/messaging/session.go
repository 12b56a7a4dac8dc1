// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the session lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StatePairing      State = "pairing"
	StateConnected    State = "connected"
	StateLoggedOut    State = "logged_out"
)

// ErrNotConnected is returned by send operations while the session is not
// connected. The session never queues messages; durability is the outbox's
// job.
var ErrNotConnected = errors.New("messaging session is not connected")

// DefaultReconnectDelay is the pause before re-dialing after a drop.
const DefaultReconnectDelay = 3 * time.Second

// transitionLogSize bounds the in-memory transition changelog.
const transitionLogSize = 64

// Transition is one recorded state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Session is the process-wide messaging connection. Transport events and
// API calls race against each other, so all state lives behind one mutex.
//
// Lifecycle: Disconnected → Pairing → Connected, back to Disconnected on a
// channel drop. Any drop that is not an explicit logout schedules a
// reconnect after a fixed delay; a logout is terminal until Initialize is
// called again.
type Session struct {
	transport      Transport
	countryCode    string
	reconnectDelay time.Duration

	mu          sync.Mutex
	state       State
	pairingCode string
	conn        Conn
	dialing     bool
	reconnect   *time.Timer
	transitions []Transition
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithReconnectDelay overrides the reconnect delay.
func WithReconnectDelay(d time.Duration) SessionOption {
	return func(s *Session) { s.reconnectDelay = d }
}

// NewSession creates a disconnected session. countryCode is used to
// normalize destination phone numbers.
func NewSession(transport Transport, countryCode string, opts ...SessionOption) *Session {
	s := &Session{
		transport:      transport,
		countryCode:    countryCode,
		reconnectDelay: DefaultReconnectDelay,
		state:          StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize opens the channel. It is a no-op while the session is already
// pairing or connected, or while a dial is in flight.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.dialing || s.state == StatePairing || s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	if s.state == StateLoggedOut {
		// An explicit re-initialize leaves the terminal state. Anything
		// that flips it back to logged out below happened during the dial.
		s.setStateLocked(StateDisconnected, "reinitialized after logout")
	}
	s.dialing = true
	s.mu.Unlock()

	conn, err := s.transport.Dial(ctx)

	s.mu.Lock()
	s.dialing = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state == StateLoggedOut {
		// A logout arrived while the dial was in flight. Logout is
		// terminal: discard the fresh connection instead of adopting it.
		s.mu.Unlock()
		return conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	go s.consumeEvents(conn)
	return nil
}

// consumeEvents applies transport events to the session state. It runs on
// its own goroutine per connection and exits when the event channel closes.
func (s *Session) consumeEvents(conn Conn) {
	for ev := range conn.Events() {
		switch ev.Kind {
		case EventPairingCode:
			s.mu.Lock()
			s.pairingCode = ev.PairingCode
			s.setStateLocked(StatePairing, "pairing code received")
			s.mu.Unlock()
			slog.Info("messaging pairing code updated")

		case EventConnected:
			s.mu.Lock()
			s.pairingCode = ""
			s.setStateLocked(StateConnected, "handshake complete")
			s.mu.Unlock()
			slog.Info("messaging channel connected")

		case EventDisconnected:
			s.handleDrop(conn, ev.Reason, ev.LoggedOut)
		}
	}

	// Event channel closed without an explicit disconnect: treat as a drop.
	s.mu.Lock()
	stillActive := s.conn == conn && (s.state == StateConnected || s.state == StatePairing)
	s.mu.Unlock()
	if stillActive {
		s.handleDrop(conn, "event stream closed", false)
	}
}

func (s *Session) handleDrop(conn Conn, reason string, loggedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != conn {
		// A newer connection already replaced this one.
		return
	}
	s.conn = nil
	s.pairingCode = ""

	if loggedOut || s.state == StateLoggedOut {
		s.setStateLocked(StateLoggedOut, reason)
		slog.Info("messaging channel logged out", "reason", reason)
		return
	}

	s.setStateLocked(StateDisconnected, reason)
	slog.Warn("messaging channel dropped, scheduling reconnect",
		"reason", reason, "delay", s.reconnectDelay)

	// Transient faults self-heal without operator intervention.
	s.reconnect = time.AfterFunc(s.reconnectDelay, func() {
		if err := s.Initialize(context.Background()); err != nil {
			slog.Error("messaging reconnect failed", "error", err)
		}
	})
}

// Send delivers a text message. Fails fast with ErrNotConnected unless the
// session is connected.
func (s *Session) Send(ctx context.Context, address, text string) error {
	conn, err := s.activeConn()
	if err != nil {
		return err
	}
	return conn.SendText(ctx, FormatAddress(address, s.countryCode), text)
}

// SendImage delivers an image with a caption.
func (s *Session) SendImage(ctx context.Context, address, caption string, image []byte) error {
	conn, err := s.activeConn()
	if err != nil {
		return err
	}
	return conn.SendImage(ctx, FormatAddress(address, s.countryCode), caption, image)
}

func (s *Session) activeConn() (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.conn == nil {
		return nil, ErrNotConnected
	}
	return s.conn, nil
}

// Logout tears the session down permanently. No reconnect is scheduled; a
// later Initialize starts from scratch.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.pairingCode = ""
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	s.setStateLocked(StateLoggedOut, "explicit logout")
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Logout(ctx); err != nil {
		return err
	}
	return conn.Close()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether sends can proceed.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// PairingCode returns the current pairing code. It is only present while
// the session is pairing.
func (s *Session) PairingCode() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePairing || s.pairingCode == "" {
		return "", false
	}
	return s.pairingCode, true
}

// Transitions returns a copy of the recorded state changelog, oldest first.
func (s *Session) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// setStateLocked records a state change. Callers hold s.mu.
func (s *Session) setStateLocked(to State, reason string) {
	if s.state == to {
		return
	}
	s.transitions = append(s.transitions, Transition{
		From:   s.state,
		To:     to,
		Reason: reason,
		At:     time.Now().UTC(),
	})
	if len(s.transitions) > transitionLogSize {
		s.transitions = s.transitions[len(s.transitions)-transitionLogSize:]
	}
	s.state = to
}
