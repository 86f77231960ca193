package node

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/thingset-go/thingset-go/pkg/codec"
)

// Property errors.
var (
	ErrNotWritable  = fmt.Errorf("property is not writable")
	ErrTypeMismatch = fmt.Errorf("value type does not match property type")
)

// Property is a scalar, array, string, or byte-string leaf value. It is
// encodable unconditionally and decodable only when Access grants a
// write bit to some role.
type Property[T any] struct {
	Base

	mu    sync.RWMutex
	value T
	dirty bool

	// onWrite, if set, is invoked after a successful decode with the new
	// value, before the dirty flag is cleared by a caller's report.
	onWrite func(T)
}

// NewProperty registers a property node with an initial value.
func NewProperty[T any](id, parentID uint16, name string, access Access, subset Subset, value T) *Property[T] {
	return &Property[T]{Base: NewBase(id, parentID, name, access, subset), value: value}
}

// OnWrite installs a callback invoked every time DecodeFrom accepts a
// new value, e.g. to propagate the change into application state.
func (p *Property[T]) OnWrite(fn func(T)) { p.onWrite = fn }

func (p *Property[T]) Kind() Kind { return KindProperty }

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set assigns a new value regardless of Access, for use by the owning
// application (as opposed to a remote UPDATE request, which goes
// through DecodeFrom and is access-checked by the engine).
func (p *Property[T]) Set(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.dirty = true
}

// IsDirty reports whether Set or DecodeFrom changed the value since the
// last ClearDirty.
func (p *Property[T]) IsDirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

// ClearDirty resets the dirty flag, typically after a report cycle.
func (p *Property[T]) ClearDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = false
}

func (p *Property[T]) Encodable() (Encodable, bool) { return p, true }

func (p *Property[T]) Decodable() (Decodable, bool) {
	if p.Access()&AccessAnyWrite == 0 {
		return nil, false
	}
	return p, true
}

// EncodeTo writes the current value using the generic scalar/array
// encoder, shared with record members and function results.
func (p *Property[T]) EncodeTo(enc codec.Encoder) error {
	p.mu.RLock()
	v := p.value
	p.mu.RUnlock()
	return encodeValue(enc, v)
}

// DecodeFrom reads a new value and, if accepted, marks the property
// dirty and invokes onWrite.
func (p *Property[T]) DecodeFrom(dec codec.Decoder) error {
	if p.Access()&AccessAnyWrite == 0 {
		return ErrNotWritable
	}
	var v T
	if err := decodeValue(dec, &v); err != nil {
		return err
	}
	p.mu.Lock()
	p.value = v
	p.dirty = true
	p.mu.Unlock()
	if p.onWrite != nil {
		p.onWrite(v)
	}
	return nil
}

// encodeValue dispatches on the dynamic type of v, covering every scalar
// the codec supports plus slices of those scalars (encoded as a list)
// and byte slices (encoded as a byte string).
func encodeValue(enc codec.Encoder, v any) error {
	switch x := v.(type) {
	case nil:
		return enc.EncodeNull()
	case bool:
		return enc.EncodeBool(x)
	case int8:
		return enc.EncodeInt(int64(x))
	case int16:
		return enc.EncodeInt(int64(x))
	case int32:
		return enc.EncodeInt(int64(x))
	case int64:
		return enc.EncodeInt(x)
	case int:
		return enc.EncodeInt(int64(x))
	case uint8:
		return enc.EncodeUint(uint64(x))
	case uint16:
		return enc.EncodeUint(uint64(x))
	case uint32:
		return enc.EncodeUint(uint64(x))
	case uint64:
		return enc.EncodeUint(x)
	case uint:
		return enc.EncodeUint(uint64(x))
	case float32:
		return enc.EncodeFloat32(x)
	case float64:
		return enc.EncodeFloat64(x)
	case string:
		return enc.EncodeString(x)
	case []byte:
		return enc.EncodeBytes(x)
	default:
		return encodeReflected(enc, reflect.ValueOf(v))
	}
}

func encodeReflected(enc codec.Encoder, rv reflect.Value) error {
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("%w: unsupported property type %s", ErrTypeMismatch, rv.Type())
	}
	n := rv.Len()
	if err := enc.EncodeListStart(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := encodeValue(enc, rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return enc.EncodeListEnd()
}

// decodeValue is the mirror of encodeValue: it decodes into *T by
// dispatching on T's dynamic type through a pointer type switch, falling
// back to reflection for slice types.
func decodeValue(dec codec.Decoder, dst any) error {
	switch p := dst.(type) {
	case *bool:
		v, err := dec.DecodeBool()
		if err != nil {
			return err
		}
		*p = v
	case *int8:
		v, err := dec.DecodeInt()
		if err != nil {
			return err
		}
		*p = int8(v)
	case *int16:
		v, err := dec.DecodeInt()
		if err != nil {
			return err
		}
		*p = int16(v)
	case *int32:
		v, err := dec.DecodeInt()
		if err != nil {
			return err
		}
		*p = int32(v)
	case *int64:
		v, err := dec.DecodeInt()
		if err != nil {
			return err
		}
		*p = v
	case *int:
		v, err := dec.DecodeInt()
		if err != nil {
			return err
		}
		*p = int(v)
	case *uint8:
		v, err := dec.DecodeUint()
		if err != nil {
			return err
		}
		*p = uint8(v)
	case *uint16:
		v, err := dec.DecodeUint()
		if err != nil {
			return err
		}
		*p = uint16(v)
	case *uint32:
		v, err := dec.DecodeUint()
		if err != nil {
			return err
		}
		*p = uint32(v)
	case *uint64:
		v, err := dec.DecodeUint()
		if err != nil {
			return err
		}
		*p = v
	case *uint:
		v, err := dec.DecodeUint()
		if err != nil {
			return err
		}
		*p = uint(v)
	case *float32:
		v, err := dec.DecodeFloat32()
		if err != nil {
			return err
		}
		*p = v
	case *float64:
		v, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		*p = v
	case *string:
		v, err := dec.DecodeString()
		if err != nil {
			return err
		}
		*p = v
	case *[]byte:
		v, err := dec.DecodeBytes()
		if err != nil {
			return err
		}
		*p = v
	default:
		return decodeReflected(dec, reflect.ValueOf(dst))
	}
	return nil
}

func decodeReflected(dec codec.Decoder, rv reflect.Value) error {
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%w: unsupported property type %s", ErrTypeMismatch, rv.Type())
	}
	elem := rv.Elem()
	elemType := elem.Type().Elem()
	out := reflect.MakeSlice(elem.Type(), 0, 0)
	err := dec.DecodeList(func() (bool, error) {
		v := reflect.New(elemType)
		if err := decodeValue(dec, v.Interface()); err != nil {
			return false, err
		}
		out = reflect.Append(out, v.Elem())
		return true, nil
	})
	if err != nil {
		return err
	}
	elem.Set(out)
	return nil
}
