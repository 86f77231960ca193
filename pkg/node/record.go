package node

import (
	"sync"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

// RecordField describes one addressable field of a record element.
// Encode/Decode are supplied by the caller rather than a generic value
// accessor so each field can use its own scalar type without reflection
// or an untyped decode probe.
type RecordField[T any] struct {
	ID     uint16
	Name   string
	Access Access
	Encode func(enc codec.Encoder, rec *T) error
	Decode func(dec codec.Decoder, rec *T) error // nil if the field is read-only
}

// RecordArray is an array of structured records, addressed by a
// decimal index segment in the request path (e.g. "/dRecords/2"). GET
// or FETCH with no index returns the element count; with an index it
// returns that record as a field-id-keyed map. UPDATE requires an
// index and writes the supplied fields into that record.
type RecordArray[T any] struct {
	Base

	mu      sync.RWMutex
	records []T
	fields  []RecordField[T]
}

// NewRecordArray registers a record-array node over an initial slice of
// elements, described by fields.
func NewRecordArray[T any](id, parentID uint16, name string, access Access, subset Subset, fields []RecordField[T], records []T) *RecordArray[T] {
	return &RecordArray[T]{Base: NewBase(id, parentID, name, access, subset), fields: fields, records: records}
}

func (r *RecordArray[T]) Kind() Kind { return KindRecordArray }

// Len returns the current element count.
func (r *RecordArray[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// At returns a copy of the element at index i.
func (r *RecordArray[T]) At(i int) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	if i < 0 || i >= len(r.records) {
		return zero, false
	}
	return r.records[i], true
}

// Append adds a new element, returning its index.
func (r *RecordArray[T]) Append(v T) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, v)
	return len(r.records) - 1
}

func (r *RecordArray[T]) Encodable() (Encodable, bool) { return r, true }

// EncodeTo encodes the full array as a list of field-id-keyed maps, used
// when a record array is itself a value inside a larger structure.
func (r *RecordArray[T]) EncodeTo(enc codec.Encoder) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := enc.EncodeListStart(len(r.records)); err != nil {
		return err
	}
	for i := range r.records {
		if err := r.encodeRecordLocked(enc, i); err != nil {
			return err
		}
	}
	return enc.EncodeListEnd()
}

func (r *RecordArray[T]) encodeRecordLocked(enc codec.Encoder, idx int) error {
	rec := &r.records[idx]
	if err := enc.EncodeMapStart(len(r.fields)); err != nil {
		return err
	}
	for _, f := range r.fields {
		if err := enc.EncodeUint(uint64(f.ID)); err != nil {
			return err
		}
		if err := f.Encode(enc, rec); err != nil {
			return err
		}
	}
	return enc.EncodeMapEnd()
}

func (r *RecordArray[T]) AsParent() (Parent, bool) { return r, true }

// Children exposes the field schema (not record instances) for
// introspection; FETCH without an index lists these.
func (r *RecordArray[T]) Children() []Node {
	out := make([]Node, len(r.fields))
	for i, f := range r.fields {
		out[i] = NewParameter(f.ID, r.ID(), f.Name, "")
	}
	return out
}

func (r *RecordArray[T]) FindChild(name string) (Node, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return NewParameter(f.ID, r.ID(), f.Name, ""), true
		}
	}
	return nil, false
}

func (r *RecordArray[T]) CustomHandler() (CustomRequestHandler, bool) { return r, true }

// HandleRequest implements the index-in-endpoint record-array contract:
// no index reports the element count, an index selects one record for
// GET/FETCH/UPDATE.
func (r *RecordArray[T]) HandleRequest(ctx RequestContext) error {
	idx, hasIdx := ctx.Index()

	switch ctx.Verb() {
	case wire.VerbGet, wire.VerbFetch:
		r.mu.RLock()
		defer r.mu.RUnlock()
		if err := ctx.Encoder().EncodePreamble(); err != nil {
			return err
		}
		if !hasIdx {
			ctx.SetStatus(wire.StatusContent)
			return ctx.Encoder().EncodeUint(uint64(len(r.records)))
		}
		if idx < 0 || idx >= len(r.records) {
			ctx.SetStatus(wire.StatusNotFound)
			return ctx.Encoder().EncodeNull()
		}
		ctx.SetStatus(wire.StatusContent)
		return r.encodeRecordLocked(ctx.Encoder(), idx)

	case wire.VerbUpdate:
		if err := ctx.Encoder().EncodePreamble(); err != nil {
			return err
		}
		if !hasIdx {
			ctx.SetStatus(wire.StatusBadRequest)
			return ctx.Encoder().EncodeNull()
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if idx < 0 || idx >= len(r.records) {
			ctx.SetStatus(wire.StatusNotFound)
			return ctx.Encoder().EncodeNull()
		}
		rec := &r.records[idx]
		byID := make(map[uint64]RecordField[T], len(r.fields))
		byName := make(map[string]RecordField[T], len(r.fields))
		for _, f := range r.fields {
			byID[uint64(f.ID)] = f
			byName[f.Name] = f
		}
		decErr := ctx.Decoder().DecodeMap(func(key codec.Key) (bool, error) {
			var f RecordField[T]
			var ok bool
			if key.IsString {
				f, ok = byName[key.Str]
			} else {
				f, ok = byID[key.Int]
			}
			if !ok || f.Decode == nil {
				return true, ctx.Decoder().Skip()
			}
			return true, f.Decode(ctx.Decoder(), rec)
		})
		if decErr != nil {
			ctx.SetStatus(wire.StatusBadRequest)
			return ctx.Encoder().EncodeNull()
		}
		ctx.SetStatus(wire.StatusChanged)
		return ctx.Encoder().EncodeNull()

	default:
		ctx.SetStatus(wire.StatusMethodNotAllowed)
		return ctx.Encoder().EncodeNull()
	}
}
