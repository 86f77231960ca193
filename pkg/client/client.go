// Package client implements a typed request-issuing façade over any
// ThingSet transport: Get, Update, Exec, and a report Subscribe,
// validating response status and decoding the protocol's response
// preamble. The binary wire format carries no message correlation ID,
// so a single in-flight request is serialised by a mutex rather than
// matched against a pending-request map.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

// Client errors.
var (
	ErrRequestTimeout = errors.New("client: request timed out")
	ErrClientClosed   = errors.New("client: closed")
)

// Transport is the minimal request/response operation a Client needs
// from an underlying connection: write req, return the single response
// buffer. Implementations: IPTransport (pkg/transport/ip.Conn) and
// CANTransport (a pkg/transport/can.IsoTPEndpoint pair).
type Transport interface {
	RoundTrip(ctx context.Context, req []byte) ([]byte, error)
}

// StatusError is returned when a request completes but the response
// status is not a success code.
type StatusError struct {
	Status wire.Status
}

func (e *StatusError) Error() string { return fmt.Sprintf("client: %s", e.Status) }

// Client issues typed GET/UPDATE/EXEC requests over a Transport and
// dispatches inbound reports from a ReportSource to a subscriber
// callback.
type Client struct {
	transport Transport
	timeout   time.Duration

	// mu serialises requests: the wire protocol carries no correlation
	// ID, so only one request may be in flight at a time per transport.
	mu     sync.Mutex
	closed bool
}

// New creates a Client issuing requests over transport with the given
// per-request timeout. A zero timeout means no timeout.
func New(transport Transport, timeout time.Duration) *Client {
	return &Client{transport: transport, timeout: timeout}
}

// Close marks the client closed; further calls return ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.transport.RoundTrip(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrRequestTimeout
		}
		return nil, err
	}
	return resp, nil
}

// encodePathRequest builds a binary request buffer: verb byte,
// CBOR text-string path, then whatever payload writePayload encodes.
func encodePathRequest(verb wire.Verb, path string, writePayload func(enc codec.Encoder) error) ([]byte, error) {
	enc := codec.NewBinaryEncoder()
	if err := enc.EncodeString(path); err != nil {
		return nil, fmt.Errorf("client: encode path: %w", err)
	}
	if writePayload != nil {
		if err := writePayload(enc); err != nil {
			return nil, fmt.Errorf("client: encode payload: %w", err)
		}
	} else if err := enc.EncodeNull(); err != nil {
		return nil, fmt.Errorf("client: encode payload: %w", err)
	}
	return append([]byte{byte(verb)}, enc.Bytes()...), nil
}

// decodeResponse splits a response buffer into its status and a
// decoder over the payload bytes that follow.
func decodeResponse(resp []byte) (wire.Status, codec.Decoder, error) {
	if len(resp) == 0 {
		return 0, nil, fmt.Errorf("client: %w", codec.ErrTruncated)
	}
	return wire.Status(resp[0]), codec.NewBinaryDecoder(resp[1:]), nil
}

// Get issues a GET request for path and returns a decoder positioned
// after the protocol's null preamble, ready to decode the returned
// value (a scalar for a property, or a map of child ID/value pairs for
// a group).
func (c *Client) Get(ctx context.Context, path string) (codec.Decoder, error) {
	req, err := encodePathRequest(wire.VerbGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	status, dec, err := decodeResponse(resp)
	if err != nil {
		return nil, err
	}
	if !status.IsSuccess() {
		return nil, &StatusError{Status: status}
	}
	if err := dec.DecodeNull(); err != nil {
		return nil, fmt.Errorf("client: decode preamble: %w", err)
	}
	return dec, nil
}

// Update writes a map of child values to the group at path. encodeMap
// is called with an encoder positioned to write the map payload
// (typically EncodeMapStart/pairs/EncodeMapEnd).
func (c *Client) Update(ctx context.Context, path string, encodeMap func(enc codec.Encoder) error) error {
	req, err := encodePathRequest(wire.VerbUpdate, path, encodeMap)
	if err != nil {
		return err
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	status, _, err := decodeResponse(resp)
	if err != nil {
		return err
	}
	if !status.IsSuccess() {
		return &StatusError{Status: status}
	}
	return nil
}

// Exec invokes the function node at path with an argument list written
// by encodeArgs, returning a decoder positioned after the preamble over
// the function's return value.
func (c *Client) Exec(ctx context.Context, path string, encodeArgs func(enc codec.Encoder) error) (codec.Decoder, error) {
	req, err := encodePathRequest(wire.VerbExec, path, encodeArgs)
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	status, dec, err := decodeResponse(resp)
	if err != nil {
		return nil, err
	}
	if !status.IsSuccess() {
		return nil, &StatusError{Status: status}
	}
	if err := dec.DecodeNull(); err != nil {
		return nil, fmt.Errorf("client: decode preamble: %w", err)
	}
	return dec, nil
}

// ReportHandler receives one reassembled report: the originating
// sender (a UUID-free hex CAN address or an IP address:port, depending
// on the underlying ReportSource) and a decoder over its CBOR payload.
type ReportHandler func(sender string, dec codec.Decoder)

// ReportSource is anything a Client can subscribe to for pushed
// reports: the IP transport's UDP Subscriber and the CAN transport's
// ReportSubscriber both implement this shape via the adapters in this
// package (ip_transport.go, can_transport.go).
type ReportSource interface {
	Serve(ctx context.Context, handler ReportHandler) error
}

// Subscribe blocks, dispatching every report source delivers to
// handler, until ctx is cancelled or the source closes.
func (c *Client) Subscribe(ctx context.Context, source ReportSource, handler ReportHandler) error {
	return source.Serve(ctx, handler)
}
