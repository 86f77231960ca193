package client

import (
	"context"
	"sync"

	"github.com/thingset-go/thingset-go/pkg/connection"
	"github.com/thingset-go/thingset-go/pkg/transport/ip"
)

// ReconnectingIPTransport wraps a single IP Conn with the automatic
// exponential-backoff reconnection connection.Manager provides,
// letting a long-lived Client survive a server restart or a dropped
// TCP connection without the caller managing dial retries itself.
type ReconnectingIPTransport struct {
	addr string
	mgr  *connection.Manager

	mu   sync.RWMutex
	conn *ip.Conn
}

// NewReconnectingIPTransport creates a transport that dials addr lazily,
// on the first Start call, and again on every connection loss.
func NewReconnectingIPTransport(addr string) *ReconnectingIPTransport {
	t := &ReconnectingIPTransport{addr: addr}
	t.mgr = connection.NewManager(t.dial)
	return t
}

func (t *ReconnectingIPTransport) dial(ctx context.Context) error {
	conn, err := ip.Dial(ctx, t.addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

// Start performs the initial connection and begins the background
// reconnect loop used for any subsequent connection loss.
func (t *ReconnectingIPTransport) Start(ctx context.Context) error {
	if err := t.mgr.Connect(ctx); err != nil {
		return err
	}
	t.mgr.StartReconnectLoop()
	return nil
}

// State reports the transport's current connection.State.
func (t *ReconnectingIPTransport) State() connection.State { return t.mgr.State() }

// RoundTrip sends req over the current connection, if any. A failed
// round trip marks the connection lost and lets the background loop
// redial with backoff; the failing call itself still returns the
// error rather than retrying inline.
func (t *ReconnectingIPTransport) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil || !t.mgr.IsConnected() {
		return nil, connection.ErrNotConnected
	}
	resp, err := conn.RequestContext(ctx, req)
	if err != nil {
		t.mgr.NotifyConnectionLost()
		return nil, err
	}
	return resp, nil
}

// Close stops the reconnect loop and closes the underlying connection,
// if any.
func (t *ReconnectingIPTransport) Close() error {
	t.mgr.Close()
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
