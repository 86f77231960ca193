package node

import (
	"testing"

	"github.com/thingset-go/thingset-go/pkg/codec"
)

func TestRecordMemberEncodeDecode(t *testing.T) {
	var stored int32 = 3
	m := NewRecordMember(1, 0, "dValue", AccessAnyReadWrite,
		func() any { return stored },
		func(dec codec.Decoder) error {
			v, err := dec.DecodeInt()
			if err != nil {
				return err
			}
			stored = int32(v)
			return nil
		})

	enc := codec.NewBinaryEncoder()
	if err := m.EncodeTo(enc); err != nil {
		t.Fatalf("EncodeTo: %v", err)
	}

	dec := codec.NewBinaryDecoder(enc.Bytes())
	if err := m.DecodeFrom(dec); err != nil {
		t.Fatalf("DecodeFrom: %v", err)
	}
	if stored != 3 {
		t.Fatalf("expected round-tripped value 3, got %d", stored)
	}
}

func TestRecordMemberReadOnlyIsNotDecodable(t *testing.T) {
	m := NewRecordMember(1, 0, "dValue", AccessAnyRead, func() any { return int32(1) }, nil)
	if _, ok := m.Decodable(); ok {
		t.Fatal("expected read-only record member to not be decodable")
	}
}

func TestRecordMemberNestedMembers(t *testing.T) {
	parent := NewRecordMember(1, 0, "dOuter", AccessAnyRead, func() any { return nil }, nil)
	if _, ok := parent.AsParent(); ok {
		t.Fatal("expected member with no nested children to not expose AsParent")
	}

	child := NewRecordMember(2, 1, "dInner", AccessAnyRead, func() any { return int32(5) }, nil)
	parent.AddNestedMember(child)

	p, ok := parent.AsParent()
	if !ok {
		t.Fatal("expected member with nested children to expose AsParent")
	}
	found, ok := p.FindChild("dInner")
	if !ok || found.ID() != 2 {
		t.Fatal("expected to find nested member by name")
	}
}
