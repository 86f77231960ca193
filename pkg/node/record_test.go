package node

import (
	"testing"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

type reading struct {
	Voltage float32
	Current float32
}

func readingFields() []RecordField[reading] {
	return []RecordField[reading]{
		{
			ID:   1,
			Name: "dVoltage",
			Encode: func(enc codec.Encoder, r *reading) error {
				return enc.EncodeFloat32(r.Voltage)
			},
			Decode: func(dec codec.Decoder, r *reading) error {
				v, err := dec.DecodeFloat32()
				if err != nil {
					return err
				}
				r.Voltage = v
				return nil
			},
		},
		{
			ID:   2,
			Name: "dCurrent",
			Encode: func(enc codec.Encoder, r *reading) error {
				return enc.EncodeFloat32(r.Current)
			},
			// read-only: no Decode
		},
	}
}

type testRequestContext struct {
	verb   wire.Verb
	idx    int
	hasIdx bool
	dec    codec.Decoder
	enc    codec.Encoder
	status wire.Status
}

func (c *testRequestContext) Verb() wire.Verb            { return c.verb }
func (c *testRequestContext) Index() (int, bool)         { return c.idx, c.hasIdx }
func (c *testRequestContext) Decoder() codec.Decoder     { return c.dec }
func (c *testRequestContext) Encoder() codec.Encoder     { return c.enc }
func (c *testRequestContext) SetStatus(s wire.Status)    { c.status = s }

func TestRecordArrayLenAndAt(t *testing.T) {
	ra := NewRecordArray(1, 0, "dReadings", AccessAnyRead, 0, readingFields(), []reading{{Voltage: 1, Current: 2}})
	if ra.Len() != 1 {
		t.Fatalf("expected len 1, got %d", ra.Len())
	}
	v, ok := ra.At(0)
	if !ok || v.Voltage != 1 {
		t.Fatalf("expected reading at index 0, got %v %v", v, ok)
	}
	if _, ok := ra.At(5); ok {
		t.Fatal("expected out-of-range At to fail")
	}
}

func TestRecordArrayAppend(t *testing.T) {
	ra := NewRecordArray(1, 0, "dReadings", AccessAnyRead, 0, readingFields(), nil)
	idx := ra.Append(reading{Voltage: 3})
	if idx != 0 {
		t.Fatalf("expected first appended index 0, got %d", idx)
	}
	if ra.Len() != 1 {
		t.Fatalf("expected len 1 after append, got %d", ra.Len())
	}
}

func TestRecordArrayHandleRequestNoIndexReturnsCount(t *testing.T) {
	ra := NewRecordArray(1, 0, "dReadings", AccessAnyRead, 0, readingFields(), []reading{{}, {}})

	enc := codec.NewBinaryEncoder()
	ctx := &testRequestContext{verb: wire.VerbFetch, enc: enc, dec: codec.NewBinaryDecoder(nil)}

	if err := ra.HandleRequest(ctx); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if ctx.status != wire.StatusContent {
		t.Fatalf("expected StatusContent, got %v", ctx.status)
	}
}

func TestRecordArrayHandleRequestWithIndexEncodesRecord(t *testing.T) {
	ra := NewRecordArray(1, 0, "dReadings", AccessAnyRead, 0, readingFields(), []reading{{Voltage: 1.5, Current: 0.5}})

	enc := codec.NewBinaryEncoder()
	ctx := &testRequestContext{verb: wire.VerbGet, idx: 0, hasIdx: true, enc: enc, dec: codec.NewBinaryDecoder(nil)}

	if err := ra.HandleRequest(ctx); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if ctx.status != wire.StatusContent {
		t.Fatalf("expected StatusContent, got %v", ctx.status)
	}
}

func TestRecordArrayHandleRequestIndexOutOfRange(t *testing.T) {
	ra := NewRecordArray(1, 0, "dReadings", AccessAnyRead, 0, readingFields(), []reading{{}})

	enc := codec.NewBinaryEncoder()
	ctx := &testRequestContext{verb: wire.VerbGet, idx: 9, hasIdx: true, enc: enc, dec: codec.NewBinaryDecoder(nil)}

	if err := ra.HandleRequest(ctx); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if ctx.status != wire.StatusNotFound {
		t.Fatalf("expected StatusNotFound, got %v", ctx.status)
	}
}

func TestRecordArrayHandleRequestUpdateWithoutIndexIsBadRequest(t *testing.T) {
	ra := NewRecordArray(1, 0, "dReadings", AccessAnyReadWrite, 0, readingFields(), []reading{{}})

	enc := codec.NewBinaryEncoder()
	ctx := &testRequestContext{verb: wire.VerbUpdate, enc: enc, dec: codec.NewBinaryDecoder(nil)}

	if err := ra.HandleRequest(ctx); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if ctx.status != wire.StatusBadRequest {
		t.Fatalf("expected StatusBadRequest, got %v", ctx.status)
	}
}

func TestRecordArrayHandleRequestUpdateWritesField(t *testing.T) {
	ra := NewRecordArray(1, 0, "dReadings", AccessAnyReadWrite, 0, readingFields(), []reading{{Voltage: 1, Current: 1}})

	body := codec.NewBinaryEncoder()
	_ = body.EncodeMapStart(1)
	_ = body.EncodeUint(1) // dVoltage field id
	_ = body.EncodeFloat32(9.5)
	_ = body.EncodeMapEnd()

	enc := codec.NewBinaryEncoder()
	ctx := &testRequestContext{verb: wire.VerbUpdate, idx: 0, hasIdx: true, enc: enc, dec: codec.NewBinaryDecoder(body.Bytes())}

	if err := ra.HandleRequest(ctx); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if ctx.status != wire.StatusChanged {
		t.Fatalf("expected StatusChanged, got %v", ctx.status)
	}
	got, _ := ra.At(0)
	if got.Voltage != 9.5 {
		t.Fatalf("expected voltage updated to 9.5, got %v", got.Voltage)
	}
}

func TestRecordArrayHandleRequestUnsupportedVerb(t *testing.T) {
	ra := NewRecordArray(1, 0, "dReadings", AccessAnyRead, 0, readingFields(), []reading{{}})

	enc := codec.NewBinaryEncoder()
	ctx := &testRequestContext{verb: wire.VerbDelete, enc: enc, dec: codec.NewBinaryDecoder(nil)}

	if err := ra.HandleRequest(ctx); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if ctx.status != wire.StatusMethodNotAllowed {
		t.Fatalf("expected StatusMethodNotAllowed, got %v", ctx.status)
	}
}

func TestRecordArrayChildrenExposesFieldSchema(t *testing.T) {
	ra := NewRecordArray(1, 0, "dReadings", AccessAnyRead, 0, readingFields(), nil)
	parent, ok := ra.AsParent()
	if !ok {
		t.Fatal("expected record array to expose AsParent")
	}
	if got := parent.Children(); len(got) != 2 {
		t.Fatalf("expected 2 field children, got %d", len(got))
	}
	child, ok := parent.FindChild("dCurrent")
	if !ok || child.ID() != 2 {
		t.Fatal("expected to find dCurrent field by name")
	}
}
