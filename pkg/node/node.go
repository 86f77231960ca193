package node

import (
	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

// Kind is the tag distinguishing the five node taxonomies.
type Kind uint8

const (
	KindProperty Kind = iota
	KindGroup
	KindFunction
	KindRecordArray
	KindRecordMember
)

// String returns the kind's wire-facing type name.
func (k Kind) String() string {
	switch k {
	case KindProperty:
		return "property"
	case KindGroup:
		return "group"
	case KindFunction:
		return "function"
	case KindRecordArray:
		return "record-array"
	case KindRecordMember:
		return "record-member"
	default:
		return "unknown"
	}
}

// Encodable is implemented by nodes that can serialize their current
// value to a wire encoder.
type Encodable interface {
	EncodeTo(enc codec.Encoder) error
}

// Decodable is implemented by nodes that can accept a new value from a
// wire decoder.
type Decodable interface {
	DecodeFrom(dec codec.Decoder) error
}

// Parent is implemented by nodes that expose children: groups,
// functions (their parameter list), record arrays, and record members
// holding nested members.
type Parent interface {
	Children() []Node
	FindChild(name string) (Node, bool)
}

// Invoker is implemented by function nodes.
type Invoker interface {
	Invoke(dec codec.Decoder, enc codec.Encoder) error
}

// Dirtyable is implemented by nodes that track whether their value
// changed since the last report cycle. Only Property currently does;
// a report publisher type-asserts for it rather than every Node
// carrying the capability, since groups and functions have no value of
// their own to mark dirty.
type Dirtyable interface {
	IsDirty() bool
	ClearDirty()
}

// RequestContext is the view of an in-flight request a CustomRequestHandler
// needs: which verb is being served, the record index parsed from the
// endpoint (if any), and access to the request's decoder/encoder.
type RequestContext interface {
	Verb() wire.Verb
	Index() (int, bool)
	Decoder() codec.Decoder
	Encoder() codec.Encoder
	SetStatus(wire.Status)
}

// CustomRequestHandler lets a node intercept verb dispatch entirely,
// bypassing the engine's default per-verb behaviour. Record arrays use
// this to implement index-addressed element access.
type CustomRequestHandler interface {
	HandleRequest(ctx RequestContext) error
}

// Node is the common interface every registry entry satisfies.
// Capabilities are queried by method rather than by type assertion so a
// caller never needs to know the concrete kind.
type Node interface {
	ID() uint16
	ParentID() uint16
	Name() string
	Kind() Kind
	Access() Access
	Subset() Subset

	Encodable() (Encodable, bool)
	Decodable() (Decodable, bool)
	AsParent() (Parent, bool)
	Invocable() (Invoker, bool)
	CustomHandler() (CustomRequestHandler, bool)

	// Next and SetNext thread the intrusive singly-linked list the
	// registry uses within each bucket. Application code has no reason
	// to call these directly.
	Next() Node
	SetNext(n Node)
}

// Base holds the fields every concrete node kind shares and supplies the
// default (non-capable) answer to every capability query, so each kind
// only overrides the methods it actually supports.
type Base struct {
	id       uint16
	parentID uint16
	name     string
	access   Access
	subset   Subset

	next Node // registry intrusive linked-list pointer, bucket-local
}

// NewBase constructs the shared fields for a concrete node kind.
func NewBase(id, parentID uint16, name string, access Access, subset Subset) Base {
	return Base{id: id, parentID: parentID, name: name, access: access, subset: subset}
}

func (b *Base) ID() uint16       { return b.id }
func (b *Base) ParentID() uint16 { return b.parentID }
func (b *Base) Name() string     { return b.name }
func (b *Base) Access() Access   { return b.access }
func (b *Base) Subset() Subset   { return b.subset }

func (b *Base) Encodable() (Encodable, bool)                { return nil, false }
func (b *Base) Decodable() (Decodable, bool)                { return nil, false }
func (b *Base) AsParent() (Parent, bool)                    { return nil, false }
func (b *Base) Invocable() (Invoker, bool)                  { return nil, false }
func (b *Base) CustomHandler() (CustomRequestHandler, bool) { return nil, false }

func (b *Base) Next() Node      { return b.next }
func (b *Base) SetNext(n Node)  { b.next = n }
