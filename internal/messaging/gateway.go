// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GatewayTransport talks to an external messaging gateway over HTTP. The
// gateway owns the socket to the messaging network; this transport mirrors
// its session state by polling and forwards sends with a bounded timeout.
type GatewayTransport struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
}

// GatewayOption configures a GatewayTransport.
type GatewayOption func(*GatewayTransport)

// WithPollInterval overrides the status poll interval.
func WithPollInterval(d time.Duration) GatewayOption {
	return func(t *GatewayTransport) { t.pollInterval = d }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(t *GatewayTransport) { t.client = c }
}

// NewGatewayTransport creates a transport for the gateway at baseURL,
// authenticating with the given bearer key.
func NewGatewayTransport(baseURL, apiKey string, opts ...GatewayOption) *GatewayTransport {
	t := &GatewayTransport{
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: 10 * time.Second},
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dial starts the gateway session and returns a connection that polls the
// gateway's status endpoint, emitting events on every state change.
func (t *GatewayTransport) Dial(ctx context.Context) (Conn, error) {
	if err := t.post(ctx, "/session/start", nil); err != nil {
		return nil, fmt.Errorf("starting gateway session: %w", err)
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	conn := &gatewayConn{
		transport: t,
		events:    make(chan Event, 8),
		cancel:    cancel,
	}
	go conn.poll(pollCtx)
	return conn, nil
}

type gatewayStatus struct {
	Status      string `json:"status"`
	PairingCode string `json:"pairing_code"`
	Reason      string `json:"reason"`
}

type gatewayConn struct {
	transport *GatewayTransport
	events    chan Event
	cancel    context.CancelFunc
}

func (c *gatewayConn) Events() <-chan Event { return c.events }

// poll tracks the gateway session state. Consecutive poll failures are
// treated as a channel drop.
func (c *gatewayConn) poll(ctx context.Context) {
	defer close(c.events)

	const maxFailures = 3
	var (
		lastStatus string
		lastCode   string
		failures   int
	)

	ticker := time.NewTicker(c.transport.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := c.transport.status(ctx)
		if err != nil {
			failures++
			if failures >= maxFailures {
				c.events <- Event{Kind: EventDisconnected, Reason: "gateway unreachable: " + err.Error()}
				return
			}
			continue
		}
		failures = 0

		switch status.Status {
		case "pairing":
			if status.PairingCode != lastCode {
				lastCode = status.PairingCode
				c.events <- Event{Kind: EventPairingCode, PairingCode: status.PairingCode}
			}
		case "connected":
			if lastStatus != "connected" {
				c.events <- Event{Kind: EventConnected}
			}
		case "logged_out":
			c.events <- Event{Kind: EventDisconnected, Reason: status.Reason, LoggedOut: true}
			return
		case "disconnected":
			// Also reachable before any pairing or connected poll: a
			// gateway with no session is a drop either way, and the
			// consumer relies on the event channel closing.
			c.events <- Event{Kind: EventDisconnected, Reason: status.Reason}
			return
		}
		lastStatus = status.Status
	}
}

func (c *gatewayConn) SendText(ctx context.Context, address, text string) error {
	return c.transport.post(ctx, "/messages", map[string]any{
		"address": address,
		"text":    text,
	})
}

func (c *gatewayConn) SendImage(ctx context.Context, address, caption string, image []byte) error {
	return c.transport.post(ctx, "/messages", map[string]any{
		"address": address,
		"text":    caption,
		"image":   image, // base64-encoded by encoding/json
	})
}

func (c *gatewayConn) Logout(ctx context.Context) error {
	return c.transport.post(ctx, "/session/logout", nil)
}

func (c *gatewayConn) Close() error {
	c.cancel()
	return nil
}

func (t *GatewayTransport) status(ctx context.Context) (*gatewayStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/session/status", nil)
	if err != nil {
		return nil, err
	}
	t.authorize(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var status gatewayStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (t *GatewayTransport) post(ctx context.Context, path string, body any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	t.authorize(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *GatewayTransport) authorize(req *http.Request) {
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
}
