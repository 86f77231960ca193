package client

import (
	"context"

	"github.com/thingset-go/thingset-go/pkg/transport/ip"
)

// IPTransport adapts a pkg/transport/ip.Conn to the client's Transport
// interface.
type IPTransport struct {
	conn *ip.Conn
}

// NewIPTransport wraps conn for use by a Client.
func NewIPTransport(conn *ip.Conn) *IPTransport {
	return &IPTransport{conn: conn}
}

// RoundTrip writes req and returns the single response read back,
// honouring ctx's deadline.
func (t *IPTransport) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	return t.conn.RequestContext(ctx, req)
}

// Close closes the underlying connection.
func (t *IPTransport) Close() error {
	return t.conn.Close()
}

// IPReportSource adapts a pkg/transport/ip.Subscriber to the client's
// ReportSource interface; the sender string it passes through is
// already the UDP "host:port" form ip.Subscriber reports.
type IPReportSource struct {
	sub *ip.Subscriber
}

// NewIPReportSource wraps sub for use by Client.Subscribe.
func NewIPReportSource(sub *ip.Subscriber) *IPReportSource {
	return &IPReportSource{sub: sub}
}

// Serve delegates to the underlying Subscriber, converting its
// ip.ReportHandler signature to the client's ReportHandler type.
func (s *IPReportSource) Serve(ctx context.Context, handler ReportHandler) error {
	return s.sub.Serve(ctx, ip.ReportHandler(handler))
}
