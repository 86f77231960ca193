package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Binary-on-the-wire is CBOR. BinaryEncoder and BinaryDecoder
// implement the wire codec directly against CBOR major types rather
// than through a high-level struct-marshalling library: the protocol
// needs byte-exact control over integer width (RFC 7049 minimal-length
// encoding), explicit float width (half/single/double chosen by the
// node, not "shortest representation"), and a forward-only streaming
// mode that flushes mid-container with a later indefinite-length
// "break" rather than a length prefix. github.com/fxamacker/cbor/v2
// is used only for protocol log events (pkg/log), which don't need
// that level of control; persistence snapshots are written with this
// codec.

const (
	majorUint    = 0
	majorNegInt  = 1
	majorBytes   = 2
	majorText    = 3
	majorArray   = 4
	majorMap     = 5
	majorTag     = 6
	majorSpecial = 7
)

const (
	simpleFalse = 20
	simpleTrue  = 21
	simpleNull  = 22
	simpleFloat16 = 25
	simpleFloat32 = 26
	simpleFloat64 = 27
	indefiniteBreak = 31
)

// BinaryEncoder writes CBOR-encoded ThingSet values.
//
// In fixed-size mode, EncodeListStart/EncodeMapStart emit a definite
// length header immediately. In forward-only (streaming) mode, they
// emit an indefinite-length header (additional info 31) and
// EncodeListEnd/EncodeMapEnd emit the CBOR "break" byte 0xFF — this is
// the distinguishing difference from fixed-size mode: forward-only mode
// never rewinds the payload pointer to backfill a length.
type BinaryEncoder struct {
	buf         bytes.Buffer
	forwardOnly bool
}

// NewBinaryEncoder returns a fixed-size binary encoder.
func NewBinaryEncoder() *BinaryEncoder {
	return &BinaryEncoder{}
}

// NewForwardOnlyBinaryEncoder returns a streaming binary encoder that
// emits indefinite-length containers (used beneath the streaming
// fragmenter).
func NewForwardOnlyBinaryEncoder() *BinaryEncoder {
	return &BinaryEncoder{forwardOnly: true}
}

func (e *BinaryEncoder) ForwardOnly() bool { return e.forwardOnly }
func (e *BinaryEncoder) Bytes() []byte     { return e.buf.Bytes() }

// Reset clears the internal buffer so the encoder can be reused, which
// the streaming encoder relies on after each chunk flush.
func (e *BinaryEncoder) Reset() { e.buf.Reset() }

// AppendRaw copies already-CBOR-encoded bytes straight into the
// buffer, bypassing the Encode* type methods. pkg/gateway uses this to
// relay a forwarded request's already-decoded-nowhere response payload
// verbatim instead of structurally decoding and re-encoding a value of
// unknown shape, which no generic "copy any value" primitive in this
// package supports.
func (e *BinaryEncoder) AppendRaw(b []byte) { e.buf.Write(b) }

// Drain removes and returns the first n buffered bytes, shifting the
// remainder to the front.
func (e *BinaryEncoder) Drain(n int) []byte { return e.buf.Next(n) }

// Len reports the number of buffered, unflushed bytes.
func (e *BinaryEncoder) Len() int { return e.buf.Len() }

func (e *BinaryEncoder) writeHeader(major byte, v uint64) {
	m := major << 5
	switch {
	case v < 24:
		e.buf.WriteByte(m | byte(v))
	case v <= math.MaxUint8:
		e.buf.WriteByte(m | 24)
		e.buf.WriteByte(byte(v))
	case v <= math.MaxUint16:
		e.buf.WriteByte(m | 25)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v))
		e.buf.Write(b[:])
	case v <= math.MaxUint32:
		e.buf.WriteByte(m | 26)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		e.buf.Write(b[:])
	default:
		e.buf.WriteByte(m | 27)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)
		e.buf.Write(b[:])
	}
}

func (e *BinaryEncoder) EncodeNull() error {
	e.buf.WriteByte(majorSpecial<<5 | simpleNull)
	return nil
}

// EncodePreamble emits the protocol-invariant null.
func (e *BinaryEncoder) EncodePreamble() error { return e.EncodeNull() }

func (e *BinaryEncoder) EncodeBool(v bool) error {
	if v {
		e.buf.WriteByte(majorSpecial<<5 | simpleTrue)
	} else {
		e.buf.WriteByte(majorSpecial<<5 | simpleFalse)
	}
	return nil
}

func (e *BinaryEncoder) EncodeUint(v uint64) error {
	e.writeHeader(majorUint, v)
	return nil
}

func (e *BinaryEncoder) EncodeInt(v int64) error {
	if v >= 0 {
		e.writeHeader(majorUint, uint64(v))
		return nil
	}
	e.writeHeader(majorNegInt, uint64(-1-v))
	return nil
}

func (e *BinaryEncoder) EncodeFloat32(v float32) error {
	e.buf.WriteByte(majorSpecial<<5 | simpleFloat32)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
	e.buf.Write(b[:])
	return nil
}

func (e *BinaryEncoder) EncodeFloat64(v float64) error {
	e.buf.WriteByte(majorSpecial<<5 | simpleFloat64)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf.Write(b[:])
	return nil
}

func (e *BinaryEncoder) EncodeString(v string) error {
	e.writeHeader(majorText, uint64(len(v)))
	e.buf.WriteString(v)
	return nil
}

func (e *BinaryEncoder) EncodeBytes(v []byte) error {
	e.writeHeader(majorBytes, uint64(len(v)))
	e.buf.Write(v)
	return nil
}

func (e *BinaryEncoder) EncodeListStart(n int) error {
	if e.forwardOnly {
		e.buf.WriteByte(majorArray<<5 | 31)
		return nil
	}
	e.writeHeader(majorArray, uint64(n))
	return nil
}

func (e *BinaryEncoder) EncodeListEnd() error {
	if e.forwardOnly {
		e.buf.WriteByte(0xFF)
	}
	return nil
}

func (e *BinaryEncoder) EncodeMapStart(n int) error {
	if e.forwardOnly {
		e.buf.WriteByte(majorMap<<5 | 31)
		return nil
	}
	e.writeHeader(majorMap, uint64(n))
	return nil
}

func (e *BinaryEncoder) EncodeMapEnd() error {
	if e.forwardOnly {
		e.buf.WriteByte(0xFF)
	}
	return nil
}

// BinaryDecoder reads CBOR-encoded ThingSet values from a fixed byte
// slice (the forward-only streaming decoder in streaming.go layers a
// lookahead buffer on top of this same type).
type BinaryDecoder struct {
	data        []byte
	pos         int
	forwardOnly bool
	allowUndersized bool
}

// NewBinaryDecoder returns a decoder over data.
func NewBinaryDecoder(data []byte) *BinaryDecoder {
	return &BinaryDecoder{data: data}
}

// NewForwardOnlyBinaryDecoder returns a decoder in forward-only mode:
// array/map rejections are terminal rather than rewindable.
func NewForwardOnlyBinaryDecoder(data []byte) *BinaryDecoder {
	return &BinaryDecoder{data: data, forwardOnly: true}
}

func (d *BinaryDecoder) ForwardOnly() bool { return d.forwardOnly }
func (d *BinaryDecoder) SetAllowUndersizedArrays(allow bool) { d.allowUndersized = allow }

// Pos returns the current read offset, useful for tests and for a
// custom-request-handler that needs to know how much of the endpoint
// CBOR item it consumed.
func (d *BinaryDecoder) Pos() int { return d.pos }

// Remaining returns the unconsumed tail of the input.
func (d *BinaryDecoder) Remaining() []byte { return d.data[d.pos:] }

func (d *BinaryDecoder) byteAt(i int) (byte, error) {
	if i >= len(d.data) {
		return 0, ErrTruncated
	}
	return d.data[i], nil
}

// peekHeader reads the major type and raw additional-info byte without
// consuming anything.
func (d *BinaryDecoder) peekHeader() (major byte, info byte, err error) {
	b, err := d.byteAt(d.pos)
	if err != nil {
		return 0, 0, err
	}
	return b >> 5, b & 0x1F, nil
}

// readLength consumes the header byte (already known to be at d.pos)
// and its following length-extension bytes, returning the decoded
// count/value and whether the additional info signaled "indefinite"
// (31).
func (d *BinaryDecoder) readLength() (value uint64, indefinite bool, err error) {
	b, err := d.byteAt(d.pos)
	if err != nil {
		return 0, false, err
	}
	info := b & 0x1F
	d.pos++

	switch {
	case info < 24:
		return uint64(info), false, nil
	case info == 24:
		v, err := d.byteAt(d.pos)
		if err != nil {
			return 0, false, err
		}
		d.pos++
		return uint64(v), false, nil
	case info == 25:
		if d.pos+2 > len(d.data) {
			return 0, false, ErrTruncated
		}
		v := binary.BigEndian.Uint16(d.data[d.pos:])
		d.pos += 2
		return uint64(v), false, nil
	case info == 26:
		if d.pos+4 > len(d.data) {
			return 0, false, ErrTruncated
		}
		v := binary.BigEndian.Uint32(d.data[d.pos:])
		d.pos += 4
		return uint64(v), false, nil
	case info == 27:
		if d.pos+8 > len(d.data) {
			return 0, false, ErrTruncated
		}
		v := binary.BigEndian.Uint64(d.data[d.pos:])
		d.pos += 8
		return uint64(v), false, nil
	case info == 31:
		return 0, true, nil
	default:
		return 0, false, fmt.Errorf("%w: reserved additional info %d", ErrUnexpectedType, info)
	}
}

func (d *BinaryDecoder) DecodeNull() error {
	major, info, err := d.peekHeader()
	if err != nil {
		return err
	}
	if major != majorSpecial || (info != simpleNull && info != 23 /*undefined-ish*/) {
		if !(major == majorSpecial && info == simpleNull) {
			return fmt.Errorf("%w: expected null", ErrUnexpectedType)
		}
	}
	d.pos++
	return nil
}

// PeekNull reports whether the next item is CBOR null, without
// consuming it.
func (d *BinaryDecoder) PeekNull() bool {
	major, info, err := d.peekHeader()
	return err == nil && major == majorSpecial && info == simpleNull
}

// PeekIsTextString reports whether the next item is a CBOR text string,
// without consuming it.
func (d *BinaryDecoder) PeekIsTextString() bool {
	major, _, err := d.peekHeader()
	return err == nil && major == majorText
}

func (d *BinaryDecoder) DecodeBool() (bool, error) {
	major, info, err := d.peekHeader()
	if err != nil {
		return false, err
	}
	if major != majorSpecial || (info != simpleTrue && info != simpleFalse) {
		return false, fmt.Errorf("%w: expected bool", ErrUnexpectedType)
	}
	d.pos++
	return info == simpleTrue, nil
}

func (d *BinaryDecoder) DecodeUint() (uint64, error) {
	major, _, err := d.peekHeader()
	if err != nil {
		return 0, err
	}
	if major != majorUint {
		return 0, fmt.Errorf("%w: expected unsigned int, major=%d", ErrUnexpectedType, major)
	}
	v, _, err := d.readLength()
	return v, err
}

func (d *BinaryDecoder) DecodeInt() (int64, error) {
	major, _, err := d.peekHeader()
	if err != nil {
		return 0, err
	}
	switch major {
	case majorUint:
		v, _, err := d.readLength()
		if err != nil {
			return 0, err
		}
		if v > math.MaxInt64 {
			return 0, ErrOverflow
		}
		return int64(v), nil
	case majorNegInt:
		v, _, err := d.readLength()
		if err != nil {
			return 0, err
		}
		if v > math.MaxInt64 {
			return 0, ErrOverflow
		}
		return -1 - int64(v), nil
	default:
		return 0, fmt.Errorf("%w: expected integer, major=%d", ErrUnexpectedType, major)
	}
}

// DecodeUintSized decodes an unsigned integer and checks it fits a
// bits-wide range (8/16/32/64), e.g. rejecting a 24-bit CBOR value
// when the destination is declared as a 16-bit int.
func (d *BinaryDecoder) DecodeUintSized(bits int) (uint64, error) {
	v, err := d.DecodeUint()
	if err != nil {
		return 0, err
	}
	if bits < 64 && v >= (uint64(1)<<uint(bits)) {
		return 0, ErrOverflow
	}
	return v, nil
}

// DecodeIntSized decodes a signed integer and checks it fits a
// bits-wide two's complement range.
func (d *BinaryDecoder) DecodeIntSized(bits int) (int64, error) {
	v, err := d.DecodeInt()
	if err != nil {
		return 0, err
	}
	if bits < 64 {
		max := int64(1)<<(uint(bits)-1) - 1
		min := -(int64(1) << (uint(bits) - 1))
		if v > max || v < min {
			return 0, ErrOverflow
		}
	}
	return v, nil
}

func (d *BinaryDecoder) DecodeFloat32() (float32, error) {
	major, info, err := d.peekHeader()
	if err != nil {
		return 0, err
	}
	if major != majorSpecial {
		return 0, fmt.Errorf("%w: expected float", ErrUnexpectedType)
	}
	switch info {
	case simpleFloat32:
		d.pos++
		if d.pos+4 > len(d.data) {
			return 0, ErrTruncated
		}
		v := math.Float32frombits(binary.BigEndian.Uint32(d.data[d.pos:]))
		d.pos += 4
		return v, nil
	case simpleFloat64:
		v, err := d.DecodeFloat64()
		return float32(v), err
	case simpleFloat16:
		d.pos++
		if d.pos+2 > len(d.data) {
			return 0, ErrTruncated
		}
		v := float16ToFloat32(binary.BigEndian.Uint16(d.data[d.pos:]))
		d.pos += 2
		return v, nil
	default:
		return 0, fmt.Errorf("%w: expected float", ErrUnexpectedType)
	}
}

func (d *BinaryDecoder) DecodeFloat64() (float64, error) {
	major, info, err := d.peekHeader()
	if err != nil {
		return 0, err
	}
	if major != majorSpecial {
		return 0, fmt.Errorf("%w: expected float", ErrUnexpectedType)
	}
	switch info {
	case simpleFloat64:
		d.pos++
		if d.pos+8 > len(d.data) {
			return 0, ErrTruncated
		}
		v := math.Float64frombits(binary.BigEndian.Uint64(d.data[d.pos:]))
		d.pos += 8
		return v, nil
	case simpleFloat32:
		v, err := d.DecodeFloat32()
		return float64(v), err
	case simpleFloat16:
		v, err := d.DecodeFloat32()
		return float64(v), err
	default:
		return 0, fmt.Errorf("%w: expected float", ErrUnexpectedType)
	}
}

func (d *BinaryDecoder) DecodeString() (string, error) {
	major, _, err := d.peekHeader()
	if err != nil {
		return "", err
	}
	if major != majorText {
		return "", fmt.Errorf("%w: expected text string", ErrUnexpectedType)
	}
	n, indefinite, err := d.readLength()
	if err != nil {
		return "", err
	}
	if indefinite {
		return "", fmt.Errorf("%w: indefinite text strings not supported", ErrNotSupported)
	}
	if d.pos+int(n) > len(d.data) {
		return "", ErrTruncated
	}
	s := d.data[d.pos : d.pos+int(n)]
	d.pos += int(n)
	if !utf8.Valid(s) {
		return "", ErrInvalidUTF8
	}
	return string(s), nil
}

func (d *BinaryDecoder) DecodeBytes() ([]byte, error) {
	major, _, err := d.peekHeader()
	if err != nil {
		return nil, err
	}
	if major != majorBytes {
		return nil, fmt.Errorf("%w: expected byte string", ErrUnexpectedType)
	}
	n, indefinite, err := d.readLength()
	if err != nil {
		return nil, err
	}
	if indefinite {
		return nil, fmt.Errorf("%w: indefinite byte strings not supported", ErrNotSupported)
	}
	if d.pos+int(n) > len(d.data) {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, d.data[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return out, nil
}

func (d *BinaryDecoder) DecodeListStart() (int, bool, error) {
	startPos := d.pos
	major, _, err := d.peekHeader()
	if err != nil {
		return 0, false, err
	}
	if major != majorArray {
		return 0, false, fmt.Errorf("%w: expected array, major=%d", ErrUnexpectedType, major)
	}
	n, indefinite, err := d.readLength()
	if err != nil {
		d.pos = startPos
		return 0, false, err
	}
	return int(n), indefinite, nil
}

// DecodeListEnd consumes the CBOR "break" byte that closes an
// indefinite-length list. It is a no-op for definite-length lists,
// whose elements are simply counted off by the caller.
func (d *BinaryDecoder) DecodeListEnd() error {
	major, info, err := d.peekHeader()
	if err == nil && major == majorSpecial && info == indefiniteBreak {
		d.pos++
	}
	return nil
}

func (d *BinaryDecoder) DecodeMapStart() (int, bool, error) {
	startPos := d.pos
	major, _, err := d.peekHeader()
	if err != nil {
		return 0, false, err
	}
	if major != majorMap {
		return 0, false, fmt.Errorf("%w: expected map, major=%d", ErrUnexpectedType, major)
	}
	n, indefinite, err := d.readLength()
	if err != nil {
		d.pos = startPos
		return 0, false, err
	}
	return int(n), indefinite, nil
}

func (d *BinaryDecoder) DecodeMapEnd() error {
	return d.DecodeListEnd()
}

// isBreak reports whether the next byte is the indefinite-length break
// marker, without consuming it.
func (d *BinaryDecoder) isBreak() bool {
	major, info, err := d.peekHeader()
	return err == nil && major == majorSpecial && info == indefiniteBreak
}

// Skip consumes and discards one complete CBOR item, recursing into
// containers. Used when an array is rejected for size, so the decoder
// can still consume the whole array and stay aligned, and when the
// engine discards unknown structure keys.
func (d *BinaryDecoder) Skip() error {
	major, _, err := d.peekHeader()
	if err != nil {
		return err
	}

	switch major {
	case majorUint, majorNegInt:
		_, _, err := d.readLength()
		return err
	case majorBytes:
		_, err := d.DecodeBytes()
		return err
	case majorText:
		_, err := d.DecodeString()
		return err
	case majorArray:
		n, indefinite, err := d.readLengthAt()
		if err != nil {
			return err
		}
		if indefinite {
			for !d.isBreak() {
				if err := d.Skip(); err != nil {
					return err
				}
			}
			d.pos++ // consume break
			return nil
		}
		for i := 0; i < n; i++ {
			if err := d.Skip(); err != nil {
				return err
			}
		}
		return nil
	case majorMap:
		n, indefinite, err := d.readLengthAt()
		if err != nil {
			return err
		}
		if indefinite {
			for !d.isBreak() {
				if err := d.Skip(); err != nil { // key
					return err
				}
				if err := d.Skip(); err != nil { // value
					return err
				}
			}
			d.pos++
			return nil
		}
		for i := 0; i < n; i++ {
			if err := d.Skip(); err != nil {
				return err
			}
			if err := d.Skip(); err != nil {
				return err
			}
		}
		return nil
	case majorTag:
		if _, _, err := d.readLength(); err != nil {
			return err
		}
		return d.Skip()
	case majorSpecial:
		b, err := d.byteAt(d.pos)
		if err != nil {
			return err
		}
		info := b & 0x1F
		d.pos++
		switch info {
		case simpleFloat16:
			d.pos += 2
		case simpleFloat32:
			d.pos += 4
		case simpleFloat64:
			d.pos += 8
		case 24:
			d.pos++
		}
		if d.pos > len(d.data) {
			return ErrTruncated
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown major type %d", ErrUnexpectedType, major)
	}
}

// readLengthAt is readLength but leaves d.pos unmodified on error, used
// internally by Skip so a failed container skip doesn't leave the
// cursor mid-header.
func (d *BinaryDecoder) readLengthAt() (int, bool, error) {
	start := d.pos
	n, indefinite, err := d.readLength()
	if err != nil {
		d.pos = start
	}
	return int(n), indefinite, err
}

func (d *BinaryDecoder) DecodeList(fn func() (bool, error)) error {
	n, indefinite, err := d.DecodeListStart()
	if err != nil {
		return err
	}
	if indefinite {
		for !d.isBreak() {
			cont, err := fn()
			if err != nil {
				return err
			}
			if !cont {
				// Forward-only: cannot rewind past already-consumed
				// elements; caller must still drain to the break so the
				// stream stays aligned for the next sibling value.
				for !d.isBreak() {
					if err := d.Skip(); err != nil {
						return err
					}
				}
				break
			}
		}
		return d.DecodeListEnd()
	}
	for i := 0; i < n; i++ {
		cont, err := fn()
		if err != nil {
			return err
		}
		if !cont {
			for j := i + 1; j < n; j++ {
				if err := d.Skip(); err != nil {
					return err
				}
			}
			break
		}
	}
	return nil
}

func (d *BinaryDecoder) DecodeMap(fn func(Key) (bool, error)) error {
	n, indefinite, err := d.DecodeMapStart()
	if err != nil {
		return err
	}
	readKey := func() (Key, error) {
		major, _, err := d.peekHeader()
		if err != nil {
			return Key{}, err
		}
		if major == majorText {
			s, err := d.DecodeString()
			return Key{IsString: true, Str: s}, err
		}
		v, err := d.DecodeUint()
		return Key{Int: v}, err
	}

	if indefinite {
		for !d.isBreak() {
			key, err := readKey()
			if err != nil {
				return err
			}
			cont, err := fn(key)
			if err != nil {
				return err
			}
			if !cont {
				for !d.isBreak() {
					if err := d.Skip(); err != nil {
						return err
					}
					if err := d.Skip(); err != nil {
						return err
					}
				}
				break
			}
		}
		return d.DecodeMapEnd()
	}

	for i := 0; i < n; i++ {
		key, err := readKey()
		if err != nil {
			return err
		}
		cont, err := fn(key)
		if err != nil {
			return err
		}
		if !cont {
			for j := i + 1; j < n; j++ {
				if err := d.Skip(); err != nil {
					return err
				}
				if err := d.Skip(); err != nil {
					return err
				}
			}
			break
		}
	}
	return nil
}

// float16ToFloat32 converts an IEEE 754 half-precision bit pattern to
// float32. ThingSet nodes never emit half-precision, but a peer might.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h) & 0x3FF

	var f uint32
	switch exp {
	case 0:
		if frac == 0 {
			f = sign << 31
		} else {
			// Subnormal.
			exp = 127 - 15 + 1
			for frac&0x400 == 0 {
				frac <<= 1
				exp--
			}
			frac &= 0x3FF
			f = sign<<31 | exp<<23 | frac<<13
		}
	case 0x1F:
		f = sign<<31 | 0xFF<<23 | frac<<13
	default:
		f = sign<<31 | (exp-15+127)<<23 | frac<<13
	}
	return math.Float32frombits(f)
}
