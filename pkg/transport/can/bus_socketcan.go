package can

import (
	"fmt"
	"sync"

	brutellacan "github.com/brutella/can"
)

// SocketCANBus is the production FrameBus, backed by a real SocketCAN
// interface via github.com/brutella/can.
type SocketCANBus struct {
	bus    *brutellacan.Bus
	frames chan Frame

	mu     sync.Mutex
	closed bool
}

// NewSocketCANBus opens ifaceName (e.g. "can0") and begins relaying
// frames into the returned bus's Frames channel.
func NewSocketCANBus(ifaceName string) (*SocketCANBus, error) {
	bus, err := brutellacan.NewBusForInterfaceWithName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("can: open %s: %w", ifaceName, err)
	}

	b := &SocketCANBus{bus: bus, frames: make(chan Frame, 64)}
	bus.SubscribeFunc(func(frm brutellacan.Frame) {
		data := make([]byte, frm.Length)
		copy(data, frm.Data[:frm.Length])
		b.frames <- Frame{ID: frm.ID, Data: data}
	})

	go func() {
		_ = bus.ConnectAndPublish()
	}()

	return b, nil
}

// Send transmits frm on the bus.
func (b *SocketCANBus) Send(frm Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	var out brutellacan.Frame
	out.ID = frm.ID
	out.Length = uint8(len(frm.Data))
	copy(out.Data[:], frm.Data)
	return b.bus.Publish(out)
}

// Frames returns the inbound frame channel.
func (b *SocketCANBus) Frames() <-chan Frame { return b.frames }

// Close disconnects from the SocketCAN interface.
func (b *SocketCANBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.frames)
	return b.bus.Disconnect()
}
