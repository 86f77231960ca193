// Package codec implements the binary (CBOR) and text (JSON-ish) wire
// encodings shared by every ThingSet transport: encoding and decoding
// of primitive scalars, strings, byte strings, lists, and maps, in
// both fixed-size and forward-only (streaming) modes.
package codec

import "errors"

// Codec-level errors. The engine converts decode failures to
// bad_request and encode failures to unsupported_format at the
// request/response boundary.
var (
	ErrUnexpectedType    = errors.New("codec: unexpected type")
	ErrTruncated         = errors.New("codec: truncated input")
	ErrInvalidUTF8       = errors.New("codec: invalid utf-8")
	ErrOverflow          = errors.New("codec: numeric overflow")
	ErrArraySizeMismatch = errors.New("codec: array size mismatch")
	ErrNotSupported      = errors.New("codec: operation not supported in this mode")
)

// Encoder is the common write-side operation set shared by the binary
// and text codecs, in both fixed-size and forward-only modes.
type Encoder interface {
	EncodeNull() error
	EncodeBool(v bool) error
	EncodeUint(v uint64) error
	EncodeInt(v int64) error
	EncodeFloat32(v float32) error
	EncodeFloat64(v float64) error
	EncodeString(v string) error
	EncodeBytes(v []byte) error

	// EncodeListStart begins a list. n is the element count in fixed-size
	// mode; it is ignored (the list is emitted as indefinite-length) when
	// the encoder is forward-only.
	EncodeListStart(n int) error
	EncodeListEnd() error

	// EncodeMapStart begins a map of n key/value pairs (ignored in
	// forward-only mode, same as EncodeListStart).
	EncodeMapStart(n int) error
	EncodeMapEnd() error

	// EncodePreamble emits the protocol-invariant `null` that separates
	// the response status byte from user payload.
	EncodePreamble() error

	// ForwardOnly reports whether the encoder operates in streaming,
	// forward-only mode (indefinite-length containers, no rewind).
	ForwardOnly() bool

	// Bytes returns the encoded buffer so far (fixed-size mode only).
	Bytes() []byte
}

// Decoder is the common read-side operation set. Fail conditions
// (insufficient bytes, wrong major type, overflow, bad UTF-8, array
// size mismatch) return one of the sentinel errors above rather than
// panicking.
type Decoder interface {
	DecodeNull() error
	DecodeBool() (bool, error)
	DecodeUint() (uint64, error)
	DecodeInt() (int64, error)
	DecodeFloat32() (float32, error)
	DecodeFloat64() (float64, error)
	DecodeString() (string, error)
	DecodeBytes() ([]byte, error)

	// DecodeListStart returns the element count and whether the list is
	// indefinite-length (forward-only streaming producer).
	DecodeListStart() (n int, indefinite bool, err error)
	DecodeListEnd() error

	DecodeMapStart() (n int, indefinite bool, err error)
	DecodeMapEnd() error

	// PeekNull reports whether the next element is a CBOR/JSON null
	// without consuming it.
	PeekNull() bool

	// PeekIsTextString reports whether the next element is a text
	// string rather than a number, without consuming it. Used to
	// distinguish a path-addressed endpoint from an ID-addressed one.
	PeekIsTextString() bool

	// Skip consumes and discards the next complete value (scalar,
	// string, or full list/map), used when a key or array is rejected.
	Skip() error

	// DecodeList invokes fn once per element until the list ends or fn
	// returns false.
	DecodeList(fn func() (cont bool, err error)) error

	// DecodeMap invokes fn once per key; fn is responsible for decoding
	// (or skipping) the corresponding value.
	DecodeMap(fn func(key Key) (cont bool, err error)) error

	// ForwardOnly reports whether the decoder operates in streaming mode.
	ForwardOnly() bool

	// SetAllowUndersizedArrays records an array-size policy flag on the
	// decoder. No decode path in this module reads the flag: property
	// decoding fills a slice to whatever length the source list has,
	// and fixed-size array destinations are not decoded at all.
	SetAllowUndersizedArrays(allow bool)
}

// Key represents a decoded map key, which may be an unsigned integer ID
// or a string name.
type Key struct {
	IsString bool
	Int      uint64
	Str      string
}

// KeyNames reports the ThingSet codec flag controlling whether
// structured encode emits integer IDs or string names for keys. The
// default is IDs.
type KeyNames uint8

const (
	KeyNamesIDs KeyNames = iota
	KeyNamesStrings
)
