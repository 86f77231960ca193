package ip

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Conn is a single TCP request/response connection to a Server.
// It is not safe for concurrent use: a read is assumed to carry
// exactly one request's response, which only holds when requests are
// sent one at a time.
type Conn struct {
	conn net.Conn
	buf  []byte
}

// Dial connects to a request/response server at addr (typically
// "host:9001").
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ip: dial %s: %w", addr, err)
	}
	return &Conn{conn: c, buf: make([]byte, readBufferSize)}, nil
}

// Request writes req and returns the single response read back.
func (c *Conn) Request(req []byte) ([]byte, error) {
	if _, err := c.conn.Write(req); err != nil {
		return nil, fmt.Errorf("ip: write request: %w", err)
	}
	n, err := c.conn.Read(c.buf)
	if err != nil {
		return nil, fmt.Errorf("ip: read response: %w", err)
	}
	resp := make([]byte, n)
	copy(resp, c.buf[:n])
	return resp, nil
}

// RequestContext behaves like Request but honours ctx's deadline, if
// any, for both the write and the response read.
func (c *Conn) RequestContext(ctx context.Context, req []byte) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("ip: set deadline: %w", err)
		}
		defer c.conn.SetDeadline(time.Time{})
	}
	return c.Request(req)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
