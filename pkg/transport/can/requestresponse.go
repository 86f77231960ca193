package can

import (
	"context"
	"fmt"
	"sync"

	"github.com/thingset-go/thingset-go/pkg/wire"
)

// RequestResponseChannel binds an ISO-TP endpoint at a CAN ID of
// {target: self, priority: channel, message_type: request_response}
// and demultiplexes inbound PDUs to handler, writing the result back
// over the same context with source and target swapped.
type RequestResponseChannel struct {
	ep      IsoTPEndpoint
	handler func([]byte) []byte

	// mu serialises writes to the endpoint's shared response buffer
	// against concurrent senders.
	mu sync.Mutex
}

// NewRequestResponseChannel binds ep at selfAddress and returns a
// channel that dispatches every inbound PDU to handler.
func NewRequestResponseChannel(ep IsoTPEndpoint, selfAddress uint8, handler func([]byte) []byte) (*RequestResponseChannel, error) {
	rx := wire.NewCanID().
		WithMessageType(wire.MessageTypeRequestResponse).
		WithPriority(wire.PriorityChannel).
		WithTarget(selfAddress)
	tx := rx.ReplyID()

	if err := ep.Bind(rx, tx); err != nil {
		return nil, fmt.Errorf("can: bind request/response endpoint: %w", err)
	}
	return &RequestResponseChannel{ep: ep, handler: handler}, nil
}

// Serve reads PDUs until ctx is cancelled or the endpoint closes,
// dispatching each to handler and writing back the response.
func (ch *RequestResponseChannel) Serve(ctx context.Context) error {
	buf := make([]byte, maxPDU)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := ch.ep.Read(buf)
		if err != nil {
			return fmt.Errorf("can: read request: %w", err)
		}

		req := make([]byte, n)
		copy(req, buf[:n])
		resp := ch.handler(req)

		ch.mu.Lock()
		err = ch.ep.Write(resp)
		ch.mu.Unlock()
		if err != nil {
			return fmt.Errorf("can: write response: %w", err)
		}
	}
}
