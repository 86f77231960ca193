// Package engine dispatches decoded requests against a registry: verb
// interpretation, endpoint resolution by ID or path, access checks, and
// the default per-kind behaviour used when a node has no custom request
// handler of its own.
package engine

import (
	"fmt"
	"strings"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/registry"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

// Listener observes writes the engine performs on behalf of an UPDATE
// request, mirroring the will_write/did_write hook pair.
type Listener interface {
	WillWrite(n node.Node)
	DidWrite(n node.Node)
}

// Forwarder rewrites and re-dispatches a forward-verb request to
// another transport once the target node-ID prefix has been peeled off.
// It is nil unless the gateway is enabled.
type Forwarder func(targetID string, verb wire.Verb, residual codec.Decoder, enc codec.Encoder) wire.Status

// Engine binds a registry to request dispatch. One Engine instance is
// shared by every connection a server accepts; it holds no per-request
// state itself.
type Engine struct {
	reg      *registry.Registry
	roles    node.RoleSet
	listener Listener
	forward  Forwarder
}

// New builds an engine over reg, evaluating access checks under roles.
func New(reg *registry.Registry, roles node.RoleSet) *Engine {
	return &Engine{reg: reg, roles: roles}
}

// SetListener installs the will_write/did_write observer.
func (e *Engine) SetListener(l Listener) { e.listener = l }

// SetForwarder enables the forward verb, delegating to fn once the
// target node-ID prefix is peeled off.
func (e *Engine) SetForwarder(fn Forwarder) { e.forward = fn }

// requestCtx adapts one in-flight dispatch to node.RequestContext, the
// view a CustomRequestHandler receives.
type requestCtx struct {
	verb   wire.Verb
	idx    int
	hasIdx bool
	dec    codec.Decoder
	enc    codec.Encoder
	status wire.Status
}

func (c *requestCtx) Verb() wire.Verb        { return c.verb }
func (c *requestCtx) Index() (int, bool)     { return c.idx, c.hasIdx }
func (c *requestCtx) Decoder() codec.Decoder { return c.dec }
func (c *requestCtx) Encoder() codec.Encoder { return c.enc }
func (c *requestCtx) SetStatus(s wire.Status) { c.status = s }

// HandleBinary processes one binary-mode request buffer and returns a
// complete response buffer (status byte followed by payload).
func (e *Engine) HandleBinary(req []byte) []byte {
	if len(req) == 0 {
		return []byte{byte(wire.StatusBadRequest)}
	}
	verb := wire.Verb(req[0])
	dec := codec.NewBinaryDecoder(req[1:])
	enc := codec.NewBinaryEncoder()

	// Forward addresses its target through the payload, not the usual
	// endpoint field; the engine skips endpoint resolution entirely.
	if verb == wire.VerbForward {
		status := e.handleForward(dec, enc)
		return append([]byte{byte(status)}, enc.Bytes()...)
	}

	target, idx, hasIdx, status := e.resolveBinaryEndpoint(dec)
	if status != 0 {
		return append([]byte{byte(status)}, enc.Bytes()...)
	}

	status = e.dispatch(verb, target, idx, hasIdx, dec, enc)
	return append([]byte{byte(status)}, enc.Bytes()...)
}

// resolveBinaryEndpoint decodes the CBOR endpoint (unsigned int ID or
// text-string path) that follows the verb byte.
func (e *Engine) resolveBinaryEndpoint(dec codec.Decoder) (node.Node, int, bool, wire.Status) {
	if dec.PeekIsTextString() {
		path, err := dec.DecodeString()
		if err != nil {
			return nil, 0, false, wire.StatusBadRequest
		}
		target, idx, ok := e.reg.FindByPath(path)
		if !ok {
			return nil, 0, false, wire.StatusNotFound
		}
		return target, idx, idx >= 0, 0
	}

	id, err := dec.DecodeUint()
	if err != nil {
		return nil, 0, false, wire.StatusBadRequest
	}
	target, ok := e.reg.FindByID(uint16(id))
	if !ok {
		return nil, 0, false, wire.StatusNotFound
	}
	return target, 0, false, 0
}

// HandleText processes one text-mode request line and returns a
// complete text-mode response line.
func (e *Engine) HandleText(req string) string {
	req = strings.TrimSpace(req)
	if req == "" {
		return formatText(wire.StatusBadRequest, "")
	}

	verb, err := wire.VerbFromText(req[0])
	if err != nil {
		return formatText(wire.StatusBadRequest, "")
	}

	rest := strings.TrimSpace(req[1:])
	path, payload := rest, "null"
	if sp := strings.IndexByte(rest, ' '); sp >= 0 {
		path = rest[:sp]
		if p := strings.TrimSpace(rest[sp+1:]); p != "" {
			payload = p
		}
	}

	target, idx, ok := e.reg.FindByPath(path)
	if !ok {
		return formatText(wire.StatusNotFound, "")
	}

	dec := codec.NewTextDecoder([]byte(payload))
	enc := codec.NewTextEncoder()
	status := e.dispatch(verb, target, idx, idx >= 0, dec, enc)
	return formatText(status, string(enc.Bytes()))
}

func formatText(status wire.Status, payload string) string {
	return fmt.Sprintf(":%02X %s", uint8(status), payload)
}

// dispatch applies the custom-request-handler short-circuit, then falls
// through to the default per-verb behaviour for the target's kind.
func (e *Engine) dispatch(verb wire.Verb, target node.Node, idx int, hasIdx bool, dec codec.Decoder, enc codec.Encoder) wire.Status {
	if h, ok := target.CustomHandler(); ok {
		ctx := &requestCtx{verb: verb, idx: idx, hasIdx: hasIdx, dec: dec, enc: enc, status: wire.StatusInternalServerError}
		if err := h.HandleRequest(ctx); err != nil {
			return wire.StatusInternalServerError
		}
		return ctx.status
	}

	switch verb {
	case wire.VerbGet:
		return e.handleGet(target, enc)
	case wire.VerbFetch:
		return e.handleFetch(target, dec, enc)
	case wire.VerbUpdate:
		return e.handleUpdate(target, dec)
	case wire.VerbDesire:
		// One-way update: same semantics as UPDATE, no response payload
		// is expected by the caller, but the engine still answers since
		// the binary/text framing requires a status byte either way.
		return e.handleUpdate(target, dec)
	case wire.VerbExec:
		return e.handleExec(target, dec, enc)
	case wire.VerbDelete, wire.VerbCreate:
		// Only reachable here when the node has no custom handler.
		return wire.StatusMethodNotAllowed
	default:
		return wire.StatusMethodNotAllowed
	}
}

func (e *Engine) handleGet(target node.Node, enc codec.Encoder) wire.Status {
	if enc2, ok := target.Encodable(); ok {
		if !target.Access().CanRead(e.roles) {
			return wire.StatusForbidden
		}
		if err := enc.EncodePreamble(); err != nil {
			return wire.StatusInternalServerError
		}
		if err := enc2.EncodeTo(enc); err != nil {
			return wire.StatusInternalServerError
		}
		return wire.StatusContent
	}

	if parent, ok := target.AsParent(); ok {
		if err := enc.EncodePreamble(); err != nil {
			return wire.StatusInternalServerError
		}
		children := parent.Children()
		readable := make([]node.Node, 0, len(children))
		for _, c := range children {
			if _, ok := c.Encodable(); ok && c.Access().CanRead(e.roles) {
				readable = append(readable, c)
			}
		}
		if err := enc.EncodeMapStart(len(readable)); err != nil {
			return wire.StatusInternalServerError
		}
		for _, c := range readable {
			if err := enc.EncodeUint(uint64(c.ID())); err != nil {
				return wire.StatusInternalServerError
			}
			childEnc, _ := c.Encodable()
			if err := childEnc.EncodeTo(enc); err != nil {
				return wire.StatusInternalServerError
			}
		}
		if err := enc.EncodeMapEnd(); err != nil {
			return wire.StatusInternalServerError
		}
		return wire.StatusContent
	}

	return wire.StatusUnsupportedFormat
}

func (e *Engine) handleFetch(target node.Node, dec codec.Decoder, enc codec.Encoder) wire.Status {
	parent, ok := target.AsParent()
	if !ok {
		return wire.StatusMethodNotAllowed
	}

	if err := enc.EncodePreamble(); err != nil {
		return wire.StatusInternalServerError
	}

	isMetadata := target.ID() == e.reg.Metadata().ID()

	if dec.PeekNull() {
		_ = dec.DecodeNull()
		children := parent.Children()
		if err := enc.EncodeListStart(len(children)); err != nil {
			return wire.StatusInternalServerError
		}
		for _, c := range children {
			if err := enc.EncodeUint(uint64(c.ID())); err != nil {
				return wire.StatusInternalServerError
			}
		}
		return statusOrInternal(enc.EncodeListEnd())
	}

	var resolved []node.Node
	decErr := dec.DecodeList(func() (bool, error) {
		var child node.Node
		var found bool
		if dec.PeekIsTextString() {
			name, err := dec.DecodeString()
			if err != nil {
				return false, err
			}
			child, found = parent.FindChild(name)
		} else {
			id, err := dec.DecodeUint()
			if err != nil {
				return false, err
			}
			child, found = e.reg.FindByID(uint16(id))
		}
		if !found {
			resolved = append(resolved, nil)
		} else {
			resolved = append(resolved, child)
		}
		return true, nil
	})
	if decErr != nil {
		return wire.StatusBadRequest
	}

	if err := enc.EncodeListStart(len(resolved)); err != nil {
		return wire.StatusInternalServerError
	}
	for _, c := range resolved {
		if c == nil {
			if err := enc.EncodeNull(); err != nil {
				return wire.StatusInternalServerError
			}
			continue
		}
		if isMetadata {
			if err := encodeMetadataEntry(enc, c); err != nil {
				return wire.StatusInternalServerError
			}
			continue
		}
		childEnc, ok := c.Encodable()
		if !ok {
			if err := enc.EncodeNull(); err != nil {
				return wire.StatusInternalServerError
			}
			continue
		}
		if err := childEnc.EncodeTo(enc); err != nil {
			return wire.StatusInternalServerError
		}
	}
	return statusOrInternal(enc.EncodeListEnd())
}

func encodeMetadataEntry(enc codec.Encoder, n node.Node) error {
	if err := enc.EncodeMapStart(3); err != nil {
		return err
	}
	if err := enc.EncodeUint(1); err != nil {
		return err
	}
	if err := enc.EncodeString(n.Name()); err != nil {
		return err
	}
	if err := enc.EncodeUint(2); err != nil {
		return err
	}
	if err := enc.EncodeString(n.Kind().String()); err != nil {
		return err
	}
	if err := enc.EncodeUint(3); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(n.Access())); err != nil {
		return err
	}
	return enc.EncodeMapEnd()
}

func statusOrInternal(err error) wire.Status {
	if err != nil {
		return wire.StatusInternalServerError
	}
	return wire.StatusContent
}

func (e *Engine) handleUpdate(target node.Node, dec codec.Decoder) wire.Status {
	parent, ok := target.AsParent()
	if !ok {
		return wire.StatusMethodNotAllowed
	}

	var failed wire.Status
	err := dec.DecodeMap(func(key codec.Key) (bool, error) {
		var child node.Node
		var found bool
		if key.IsString {
			child, found = parent.FindChild(key.Str)
		} else {
			child, found = e.reg.FindByID(uint16(key.Int))
		}
		if !found {
			failed = wire.StatusNotFound
			return false, nil
		}

		decodable, ok := child.Decodable()
		if !ok || !child.Access().CanWrite(e.roles) {
			failed = wire.StatusForbidden
			return false, nil
		}

		if e.listener != nil {
			e.listener.WillWrite(child)
		}
		if err := decodable.DecodeFrom(dec); err != nil {
			failed = wire.StatusBadRequest
			return false, nil
		}
		if e.listener != nil {
			e.listener.DidWrite(child)
		}
		return true, nil
	})
	if err != nil {
		return wire.StatusBadRequest
	}
	if failed != 0 {
		return failed
	}
	return wire.StatusChanged
}

func (e *Engine) handleExec(target node.Node, dec codec.Decoder, enc codec.Encoder) wire.Status {
	invoker, ok := target.Invocable()
	if !ok {
		return wire.StatusMethodNotAllowed
	}
	if !target.Access().CanWrite(e.roles) {
		return wire.StatusForbidden
	}
	if err := enc.EncodePreamble(); err != nil {
		return wire.StatusInternalServerError
	}
	if err := invoker.Invoke(dec, enc); err != nil {
		return wire.StatusBadRequest
	}
	return wire.StatusChanged
}

func (e *Engine) handleForward(dec codec.Decoder, enc codec.Encoder) wire.Status {
	if e.forward == nil {
		return wire.StatusNotAGateway
	}
	targetID, err := dec.DecodeString()
	if err != nil {
		return wire.StatusBadRequest
	}
	if len(targetID) != 16 {
		return wire.StatusBadRequest
	}
	verbByte, err := dec.DecodeUint()
	if err != nil {
		return wire.StatusBadRequest
	}
	return e.forward(targetID, wire.Verb(verbByte), dec, enc)
}
