// Package gateway implements the optional forward-verb rewrite
// contract: peel a 16-character node-ID off a forward request, rebuild
// a standalone request for the residual verb and payload, dispatch it
// to whichever transport reaches that node, and relay the remote
// response back as this request's own. Routing between transports
// (deciding which bus a node-ID lives on) is a caller concern — the
// spec explicitly places multi-segment and CAN↔IP routing out of
// scope, leaving only the path-rewrite contract itself.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

// RoundTripper sends a complete binary request and returns the
// complete binary response (status byte followed by payload), exactly
// pkg/client.Transport's shape. pkg/client's CANTransport, IPTransport,
// and ReconnectingIPTransport all already satisfy this.
type RoundTripper interface {
	RoundTrip(ctx context.Context, req []byte) ([]byte, error)
}

// Router resolves a peeled node-ID to the RoundTripper that reaches it.
// A Router typically wraps a CAN address-claim table or a static
// node-ID-to-transport map.
type Router interface {
	Route(targetID string) (RoundTripper, bool)
}

// Gateway installs as an engine.Forwarder via engine.Engine.SetForwarder.
// Its Forward method matches that signature exactly (no context
// parameter), so a forwarded round trip runs under the fixed timeout
// configured at construction rather than per-request caller
// cancellation, matching the engine's own synchronous handler shape.
type Gateway struct {
	router  Router
	timeout time.Duration
}

// New creates a Gateway resolving forward targets through router. Each
// forwarded round trip is bounded by timeout; a non-positive timeout
// means no deadline.
func New(router Router, timeout time.Duration) *Gateway {
	return &Gateway{router: router, timeout: timeout}
}

// Forward has engine.Forwarder's signature. residual is positioned
// immediately after the peeled node-ID and verb byte, at the
// endpoint+payload the original request addressed to the target node.
func (g *Gateway) Forward(targetID string, verb wire.Verb, residual codec.Decoder, enc codec.Encoder) wire.Status {
	rt, ok := g.router.Route(targetID)
	if !ok {
		return wire.StatusGatewayTimeout
	}

	rest, ok := residual.(interface{ Remaining() []byte })
	if !ok {
		return wire.StatusInternalServerError
	}
	req := append([]byte{byte(verb)}, rest.Remaining()...)

	ctx := context.Background()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := rt.RoundTrip(ctx, req)
	if err != nil || len(resp) == 0 {
		return wire.StatusGatewayTimeout
	}

	status := wire.Status(resp[0])
	if len(resp) > 1 {
		be, ok := enc.(interface{ AppendRaw([]byte) })
		if !ok {
			return wire.StatusInternalServerError
		}
		be.AppendRaw(resp[1:])
	}
	return status
}

// StaticRouter is a fixed node-ID-to-RoundTripper map, useful when the
// set of reachable nodes is configured rather than discovered (e.g. a
// gateway fronting a small, known CAN segment).
type StaticRouter map[string]RoundTripper

// Route implements Router.
func (r StaticRouter) Route(targetID string) (RoundTripper, bool) {
	rt, ok := r[targetID]
	return rt, ok
}

// ErrUnreachable names the failure StaticRouter.Route's false return
// corresponds to, for callers that want a typed error rather than a
// bare status code.
var ErrUnreachable = fmt.Errorf("gateway: target node unreachable")
