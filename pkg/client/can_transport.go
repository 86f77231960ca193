package client

import (
	"context"
	"fmt"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/transport/can"
)

// canMaxPDU bounds a single ISO-TP response this transport will read.
const canMaxPDU = 4096

// CANTransport adapts a bound can.IsoTPEndpoint to the client's
// Transport interface. Unlike the IP transport, the underlying
// endpoint has no deadline support, so RoundTrip runs the blocking
// write/read pair on a goroutine and races it against ctx.
type CANTransport struct {
	ep can.IsoTPEndpoint
}

// NewCANTransport wraps an ISO-TP endpoint already bound to a target
// node's request/response CAN ID pair (see can.NewRequestResponseChannel
// for the ID convention a node's server side binds).
func NewCANTransport(ep can.IsoTPEndpoint) *CANTransport {
	return &CANTransport{ep: ep}
}

type canRoundTripResult struct {
	resp []byte
	err  error
}

// RoundTrip writes req and returns the next PDU read back. If ctx is
// cancelled before the response arrives, RoundTrip returns ctx.Err()
// but the read goroutine continues until the endpoint yields or
// closes, since IsoTPEndpoint has no way to abort an in-flight read.
func (t *CANTransport) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	resultc := make(chan canRoundTripResult, 1)
	go func() {
		if err := t.ep.Write(req); err != nil {
			resultc <- canRoundTripResult{err: fmt.Errorf("can: write request: %w", err)}
			return
		}
		buf := make([]byte, canMaxPDU)
		n, err := t.ep.Read(buf)
		if err != nil {
			resultc <- canRoundTripResult{err: fmt.Errorf("can: read response: %w", err)}
			return
		}
		resp := make([]byte, n)
		copy(resp, buf[:n])
		resultc <- canRoundTripResult{resp: resp}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultc:
		return result.resp, result.err
	}
}

// CANReportSource adapts a can.ReportSubscriber to the client's
// ReportSource interface, rendering the CAN source address as a
// two-digit hex string.
type CANReportSource struct {
	sub *can.ReportSubscriber
}

// NewCANReportSource wraps sub for use by Client.Subscribe.
func NewCANReportSource(sub *can.ReportSubscriber) *CANReportSource {
	return &CANReportSource{sub: sub}
}

// Serve delegates to the underlying ReportSubscriber, converting each
// report's numeric CAN source address to a two-digit hex string.
func (s *CANReportSource) Serve(ctx context.Context, handler ReportHandler) error {
	return s.sub.Serve(ctx, func(source uint8, dec codec.Decoder) {
		handler(fmt.Sprintf("%02x", source), dec)
	})
}
