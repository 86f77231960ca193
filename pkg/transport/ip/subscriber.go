package ip

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/stream"
)

// ReportHandler receives a fully reassembled report as a pull decoder
// over its CBOR bytes, along with the string form of the sender's
// address.
type ReportHandler func(sender string, dec codec.Decoder)

// Subscriber listens for broadcast reports on UDP port 9002. It binds
// with SO_REUSEADDR so multiple subscribers can share the port
// concurrently, and reassembles fragmented reports via pkg/stream
// before handing them to a ReportHandler.
type Subscriber struct {
	pc    *ipv4.PacketConn
	raw   *net.UDPConn
	reasm *stream.Reassembler[string]
}

// NewSubscriber binds addr (typically ":9002").
func NewSubscriber(addr string) (*Subscriber, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var setErr error
			if cerr := c.Control(func(fd uintptr) {
				setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); cerr != nil {
				return cerr
			}
			return setErr
		},
	}

	pconn, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("ip: listen udp %s: %w", addr, err)
	}
	udpConn := pconn.(*net.UDPConn)

	pc := ipv4.NewPacketConn(udpConn)
	// Best effort: surfacing the destination address in the control
	// message helps a multi-homed subscriber tell which interface a
	// report arrived on. Not all platforms support it.
	_ = pc.SetControlMessage(ipv4.FlagDst, true)

	return &Subscriber{
		pc:  pc,
		raw: udpConn,
		reasm: stream.NewReassembler[string](func(raw []byte) codec.Decoder {
			return codec.NewBinaryDecoder(raw)
		}),
	}, nil
}

// Serve reads datagrams until ctx is cancelled or the socket fails,
// reassembling fragmented reports and invoking handler once each
// completes. A sequence gap silently abandons the in-progress message
// rather than surfacing an error; Serve waits for the next fresh start
// frame instead.
func (s *Subscriber) Serve(ctx context.Context, handler ReportHandler) error {
	go func() {
		<-ctx.Done()
		s.raw.Close()
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, _, src, err := s.pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("ip: read udp: %w", err)
			}
		}
		if n < 2 {
			continue
		}

		kind, seq, _ := stream.DecodeUDPHeader([2]byte{buf[0], buf[1]})
		payload := make([]byte, n-2)
		copy(payload, buf[2:n])

		sender := src.String()
		dec, ferr := s.reasm.Feed(sender, kind, seq, payload)
		if ferr != nil {
			continue
		}
		if dec != nil {
			handler(sender, dec)
		}
	}
}

// Close closes the underlying socket.
func (s *Subscriber) Close() error {
	return s.raw.Close()
}
