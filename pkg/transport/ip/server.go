package ip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/thingset-go/thingset-go/pkg/log"
)

// RequestHandler processes one raw request buffer and returns the
// raw response to write back. It matches engine.Engine.HandleBinary's
// signature so a Server can be wired directly to an Engine.
type RequestHandler func(request []byte) []byte

// readBufferSize bounds a single TCP read. One read is assumed to
// carry exactly one request; this transport does not reassemble
// requests across reads.
const readBufferSize = 4096

// Server accepts TCP connections on port 9001 and serves each with a
// read-dispatch-write loop: one goroutine per connection, looping
// until the peer closes or a read error occurs.
type Server struct {
	handler RequestHandler
	logger  log.Logger
}

// NewServer creates a request/response server that dispatches every
// request to handler.
func NewServer(handler RequestHandler, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Server{handler: handler, logger: logger}
}

// Listen accepts connections on addr (host:port, typically
// ":9001") until ctx is cancelled or the listener fails. It blocks
// until the accept loop exits.
func (s *Server) Listen(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("ip: listen %s: %w", addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("ip: accept: %w", err)
			}
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	remote := conn.RemoteAddr().String()

	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   remote,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			NewState: "OPEN",
		},
	})

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			resp := s.handler(buf[:n])
			if _, werr := conn.Write(resp); werr != nil {
				s.logError(connID, remote, "write response", werr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Log(log.Event{
					Timestamp:    time.Now(),
					ConnectionID: connID,
					Direction:    log.DirectionIn,
					Layer:        log.LayerTransport,
					Category:     log.CategoryState,
					RemoteAddr:   remote,
					StateChange: &log.StateChangeEvent{
						Entity:   log.StateEntityConnection,
						OldState: "OPEN",
						NewState: "CLOSED",
						Reason:   err.Error(),
					},
				})
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Server) logError(connID, remote, context string, err error) {
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   remote,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: context,
		},
	})
}
