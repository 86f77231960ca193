// Package server wires a registered engine to a wire transport's
// accept loop and to a scheduled report-publishing pipeline: a request
// handler that decodes and dispatches incoming frames through the
// engine, and a coalescing/heartbeat manager that broadcasts subset
// reports to whatever is listening.
package server

import (
	"fmt"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/engine"
	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/registry"
)

// RequestHandler matches engine.Engine.HandleBinary's signature, so a
// Server's engine can be handed directly to either wire transport's
// accept loop (pkg/transport/ip.NewServer, pkg/transport/can.Transport.Bind)
// with no adapter.
type RequestHandler func(request []byte) []byte

// ReportSink is anything a Server can push one encoded report to.
// pkg/transport/ip.Publisher already satisfies this; CANSink adapts
// pkg/transport/can.Transport's differently-named PublishReport method.
type ReportSink interface {
	Publish(raw []byte) error
}

// Server binds a registry and engine to request serving and to
// scheduled report publishing.
type Server struct {
	eng *engine.Engine
	reg *registry.Registry
}

// New creates a Server dispatching requests through eng against reg.
func New(eng *engine.Engine, reg *registry.Registry) *Server {
	return &Server{eng: eng, reg: reg}
}

// Handler returns the request handler to hand to a transport's accept
// loop.
func (s *Server) Handler() RequestHandler { return s.eng.HandleBinary }

// PublishNodes immediately encodes the current value of each named
// node into one report map and publishes it via sink, regardless of
// dirty state. Unknown IDs and nodes with no value are silently
// skipped, matching the engine's own best-effort UPDATE semantics for
// unresolvable children.
func (s *Server) PublishNodes(sink ReportSink, ids ...uint16) error {
	var pairs []node.Node
	for _, id := range ids {
		n, ok := s.reg.FindByID(id)
		if !ok {
			continue
		}
		if _, ok := n.Encodable(); ok {
			pairs = append(pairs, n)
		}
	}
	raw, err := encodeReport(pairs)
	if err != nil {
		return fmt.Errorf("server: publish nodes: %w", err)
	}
	return sink.Publish(raw)
}

// encodeReport writes nodes as a single binary map of id -> value. The
// binary encoder is fixed-size (not forward-only), so the map's
// element count must exactly match the number of pairs written.
func encodeReport(nodes []node.Node) ([]byte, error) {
	enc := codec.NewBinaryEncoder()
	if err := enc.EncodeMapStart(len(nodes)); err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if err := enc.EncodeUint(uint64(n.ID())); err != nil {
			return nil, err
		}
		encodable, _ := n.Encodable()
		if err := encodable.EncodeTo(enc); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeMapEnd(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
