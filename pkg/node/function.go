package node

import "github.com/thingset-go/thingset-go/pkg/codec"

// Handler is the body of a Function node: it reads its arguments from
// dec (one call per declared parameter, in order) and writes its result
// (or EncodeNull for a void function) to enc.
type Handler func(dec codec.Decoder, enc codec.Encoder) error

// Function is an invocable node. It exposes its declared parameters as
// child nodes purely for introspection (FETCH on the function lists
// them); argument decoding at call time is done directly by Handler
// against the request decoder; no byte consumed during FETCH-driven
// introspection and the EXEC argument position are related by the
// caller providing both from the same parameter list.
type Function struct {
	Base

	params  []Node
	handler Handler
}

// NewFunction registers a function node with its handler and parameter
// list (for introspection only).
func NewFunction(id, parentID uint16, name string, access Access, handler Handler, params ...Node) *Function {
	return &Function{Base: NewBase(id, parentID, name, access, 0), params: params, handler: handler}
}

func (f *Function) Kind() Kind { return KindFunction }

func (f *Function) AsParent() (Parent, bool) { return f, true }

func (f *Function) Children() []Node { return f.params }

func (f *Function) FindChild(name string) (Node, bool) {
	for _, p := range f.params {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (f *Function) Invocable() (Invoker, bool) { return f, true }

func (f *Function) Invoke(dec codec.Decoder, enc codec.Encoder) error {
	return f.handler(dec, enc)
}

// Parameter is a function argument node, exposed only so FETCH can
// enumerate a function's signature; it carries no live value.
type Parameter struct {
	Base
	typeName string
}

// NewParameter declares one argument of a Function's signature.
func NewParameter(id, parentID uint16, name, typeName string) *Parameter {
	return &Parameter{Base: NewBase(id, parentID, name, AccessAnyReadWrite, 0), typeName: typeName}
}

func (p *Parameter) Kind() Kind { return KindProperty }

// TypeName returns the declared argument type, for introspection tools.
func (p *Parameter) TypeName() string { return p.typeName }
