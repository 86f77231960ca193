package ip

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/thingset-go/thingset-go/pkg/stream"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

// Publisher sends reports as broadcast UDP datagrams on port 9002,
// splitting each report into stream.Fragmenter-sized datagrams.
type Publisher struct {
	conn       *net.UDPConn
	broadcast  *net.UDPAddr
	fragmenter *stream.Fragmenter
}

// NewPublisher binds an ephemeral UDP source port on iface (the local
// interface address to bind, e.g. "0.0.0.0") and prepares to broadcast
// reports to broadcastAddr on port 9002 (e.g. "255.255.255.255").
// chunkSize bounds the payload of each outbound datagram; pass 0 for
// the streaming codec's default.
func NewPublisher(iface, broadcastAddr string, chunkSize int) (*Publisher, error) {
	localAddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(iface, "0"))
	if err != nil {
		return nil, fmt.Errorf("ip: resolve local addr: %w", err)
	}
	conn, err := net.ListenUDP("udp4", localAddr)
	if err != nil {
		return nil, fmt.Errorf("ip: listen udp: %w", err)
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ip: enable broadcast: %w", err)
	}

	bcast, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", broadcastAddr, DefaultUDPPort))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ip: resolve broadcast addr: %w", err)
	}

	return &Publisher{
		conn:       conn,
		broadcast:  bcast,
		fragmenter: stream.NewFragmenter(chunkSize),
	}, nil
}

// enableBroadcast sets SO_BROADCAST, required on Linux before a socket
// may send to a broadcast destination address.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	if cerr := raw.Control(func(fd uintptr) {
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); cerr != nil {
		return cerr
	}
	return setErr
}

// Publish fragments raw and broadcasts each fragment as one UDP
// datagram, each prefixed with the frame-kind/sequence/verb header.
func (p *Publisher) Publish(raw []byte) error {
	return p.fragmenter.Send(raw, func(kind stream.FrameKind, seq uint8, payload []byte) error {
		hdr := stream.EncodeUDPHeader(kind, seq, wire.VerbReport)
		datagram := make([]byte, 0, 2+len(payload))
		datagram = append(datagram, hdr[:]...)
		datagram = append(datagram, payload...)
		_, err := p.conn.WriteToUDP(datagram, p.broadcast)
		return err
	})
}

// Close closes the underlying socket.
func (p *Publisher) Close() error {
	return p.conn.Close()
}
