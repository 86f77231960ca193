package can

import (
	"fmt"
	"sync"

	"github.com/thingset-go/thingset-go/pkg/wire"
)

// IsoTPEndpoint is the binding point to an ISO 15765-2 (ISO-TP)
// segmented transport. ISO-TP's own segmentation and flow control are
// assumed to be handled below this interface; this transport only
// needs a bound byte-stream endpoint per CAN ID pair.
// A real deployment binds this to a SocketCAN ISO-TP socket; tests use
// LoopbackIsoTP.
type IsoTPEndpoint interface {
	// Bind associates the endpoint with a receive CAN ID (inbound
	// requests) and a transmit CAN ID (outbound responses).
	Bind(rx, tx wire.CanID) error

	// Read blocks for one complete reassembled PDU.
	Read(buf []byte) (int, error)

	// Write sends one complete PDU, to be segmented by the ISO-TP layer.
	Write(data []byte) error

	// Close releases the endpoint.
	Close() error
}

// maxPDU bounds a single ISO-TP PDU this transport will read.
const maxPDU = 4096

// LoopbackIsoTP is an in-memory IsoTPEndpoint for tests, pairing with
// another LoopbackIsoTP that shares the same channel pair.
type LoopbackIsoTP struct {
	in  chan []byte
	out chan []byte

	mu     sync.Mutex
	closed bool
}

// NewLoopbackIsoTPPair creates two endpoints wired to each other: data
// written to a arrives readable from b, and vice versa.
func NewLoopbackIsoTPPair() (a, b *LoopbackIsoTP) {
	c1 := make(chan []byte, 16)
	c2 := make(chan []byte, 16)
	a = &LoopbackIsoTP{in: c1, out: c2}
	b = &LoopbackIsoTP{in: c2, out: c1}
	return a, b
}

// Bind is a no-op for the loopback endpoint: pairing happens at
// construction, not by CAN ID.
func (l *LoopbackIsoTP) Bind(rx, tx wire.CanID) error { return nil }

// Read returns the next PDU written by the paired endpoint.
func (l *LoopbackIsoTP) Read(buf []byte) (int, error) {
	data, ok := <-l.in
	if !ok {
		return 0, fmt.Errorf("can: %w", ErrBusClosed)
	}
	n := copy(buf, data)
	return n, nil
}

// Write sends data to the paired endpoint.
func (l *LoopbackIsoTP) Write(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrBusClosed
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	l.out <- cp
	return nil
}

// Close closes the endpoint's outbound channel.
func (l *LoopbackIsoTP) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.out)
	return nil
}
