package node

import "github.com/thingset-go/thingset-go/pkg/codec"

// RecordMember is a single field of a record, addressable as its own
// node when a record type is exposed outside a RecordArray's custom
// handler (e.g. a single fixed record, not an array of them). Unlike
// Property, its value lives in caller-owned storage reached through
// Get/Set closures rather than an owned field.
type RecordMember struct {
	Base

	get func() any
	set func(codec.Decoder) error // nil if read-only

	children []Node
}

// NewRecordMember declares a record field backed by get/set closures.
// set may be nil for a read-only field.
func NewRecordMember(id, parentID uint16, name string, access Access, get func() any, set func(codec.Decoder) error) *RecordMember {
	return &RecordMember{Base: NewBase(id, parentID, name, access, 0), get: get, set: set}
}

func (m *RecordMember) Kind() Kind { return KindRecordMember }

func (m *RecordMember) Encodable() (Encodable, bool) { return m, true }

func (m *RecordMember) EncodeTo(enc codec.Encoder) error {
	return encodeValue(enc, m.get())
}

func (m *RecordMember) Decodable() (Decodable, bool) {
	if m.set == nil || m.Access()&AccessAnyWrite == 0 {
		return nil, false
	}
	return m, true
}

func (m *RecordMember) DecodeFrom(dec codec.Decoder) error {
	if m.set == nil {
		return ErrNotWritable
	}
	return m.set(dec)
}

// AddNestedMember attaches a nested record member (for a record field
// that is itself a struct), exposed through AsParent.
func (m *RecordMember) AddNestedMember(n *RecordMember) {
	m.children = append(m.children, n)
}

func (m *RecordMember) AsParent() (Parent, bool) {
	if len(m.children) == 0 {
		return nil, false
	}
	return m, true
}

func (m *RecordMember) Children() []Node { return m.children }

func (m *RecordMember) FindChild(name string) (Node, bool) {
	for _, c := range m.children {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}
