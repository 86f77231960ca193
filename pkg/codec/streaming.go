package codec

import "fmt"

// DefaultChunkSize is CHUNK: the flush/refill granularity the
// streaming encoder and decoder negotiate with the transport. A CAN
// transport pushes 8-64 byte frames; an IP transport pushes datagrams
// close to the link MTU, so the constant here is a reasonable default
// rather than a protocol-fixed value, and is a constructor parameter.
const DefaultChunkSize = 64

// ChunkWriter is the transport-supplied sink for a streaming encoder:
// write delivers length bytes of chunk, and isFinal marks the last
// chunk of a logical message.
type ChunkWriter func(chunk []byte, length int, isFinal bool) error

// ChunkReader is the transport-supplied source for a streaming
// decoder: it fills chunk and returns the number of bytes read, or an
// error (including io.EOF-like sentinel errors the transport defines)
// when no more data is available.
type ChunkReader func(chunk []byte) (int, error)

// StreamingEncoder wraps a forward-only Encoder and flushes CHUNK-sized
// pieces to a transport callback as they accumulate, rather than
// returning one contiguous buffer. This is the Go-native reading of a
// fixed 2·CHUNK ring buffer on the embedded side: growth is unbounded
// here (Go slices reallocate cheaply) but the flush/shift behaviour —
// emit the head, keep the tail, force a final flush — is preserved
// exactly, which is the part that affects wire behaviour.
type StreamingEncoder struct {
	Encoder
	drain func(n int) []byte
	bufLen func() int
	chunk  int
	write  ChunkWriter
}

// drainer is satisfied by BinaryEncoder and TextEncoder.
type drainer interface {
	Drain(n int) []byte
	Len() int
}

// NewStreamingEncoder wraps enc (which must be a forward-only
// *BinaryEncoder or *TextEncoder) so that every CHUNK bytes produced is
// flushed to write immediately instead of being held until the whole
// message is encoded.
func NewStreamingEncoder(enc Encoder, chunkSize int, write ChunkWriter) (*StreamingEncoder, error) {
	if !enc.ForwardOnly() {
		return nil, fmt.Errorf("%w: streaming encoder requires a forward-only codec", ErrNotSupported)
	}
	d, ok := enc.(drainer)
	if !ok {
		return nil, fmt.Errorf("%w: encoder does not support chunked draining", ErrNotSupported)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &StreamingEncoder{Encoder: enc, drain: d.Drain, bufLen: d.Len, chunk: chunkSize, write: write}, nil
}

// pump flushes any complete CHUNK-sized pieces currently buffered.
func (s *StreamingEncoder) pump() error {
	for s.bufLen() >= s.chunk {
		b := s.drain(s.chunk)
		if err := s.write(b, len(b), false); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces emission of whatever remains buffered, marked final.
func (s *StreamingEncoder) Flush() error {
	if err := s.pump(); err != nil {
		return err
	}
	n := s.bufLen()
	b := s.drain(n)
	return s.write(b, len(b), true)
}

// EncodeAndPump is the composition every call site uses in place of a
// bare Encode* call: perform the encode, then flush whatever full
// chunks it produced.
func (s *StreamingEncoder) EncodeAndPump(encode func(Encoder) error) error {
	if err := encode(s.Encoder); err != nil {
		return err
	}
	return s.pump()
}

// StreamingDecoder wraps a forward-only binary or text decoder whose
// backing buffer is refilled on demand from a ChunkReader as the
// parser consumes past what has been supplied so far. It presents the
// same Decoder interface; refill happens transparently inside each
// Decode* call via the underlying decoder's error path: a ErrTruncated
// triggers one refill-and-retry before propagating.
type StreamingDecoder struct {
	read   ChunkReader
	chunk  int
	eof    bool
	binary *BinaryDecoder
	text   *TextDecoder
	raw    []byte
}

// NewStreamingBinaryDecoder creates a streaming decoder over CBOR
// input, refilling chunkSize bytes at a time from read.
func NewStreamingBinaryDecoder(chunkSize int, read ChunkReader) *StreamingDecoder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	d := &StreamingDecoder{read: read, chunk: chunkSize}
	d.binary = NewForwardOnlyBinaryDecoder(nil)
	return d
}

// NewStreamingTextDecoder creates a streaming decoder over JSON-ish
// input, refilling chunkSize bytes at a time from read.
func NewStreamingTextDecoder(chunkSize int, read ChunkReader) *StreamingDecoder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &StreamingDecoder{read: read, chunk: chunkSize}
}

// refill pulls one more chunk from the transport and appends it to the
// backing buffer, rebuilding the underlying decoder over the grown
// slice at the same read position.
func (d *StreamingDecoder) refill() error {
	if d.eof {
		return ErrTruncated
	}
	buf := make([]byte, d.chunk)
	n, err := d.read(buf)
	if n > 0 {
		d.raw = append(d.raw, buf[:n]...)
		if d.binary != nil {
			pos := d.binary.Pos()
			d.binary = NewForwardOnlyBinaryDecoder(d.raw)
			d.binary.pos = pos
		} else {
			pos := d.text.pos
			d.text = NewForwardOnlyTextDecoder(d.raw)
			d.text.pos = pos
		}
	}
	if err != nil {
		d.eof = true
		if n == 0 {
			return err
		}
	}
	return nil
}

// retry runs op against the current underlying decoder, refilling and
// retrying once on a truncation error.
func retry[T any](d *StreamingDecoder, op func() (T, error)) (T, error) {
	v, err := op()
	if err == ErrTruncated && !d.eof {
		if rerr := d.refill(); rerr != nil {
			var zero T
			return zero, rerr
		}
		return op()
	}
	return v, err
}

func (d *StreamingDecoder) dec() Decoder {
	if d.binary != nil {
		return d.binary
	}
	return d.text
}

func (d *StreamingDecoder) ForwardOnly() bool                  { return true }
func (d *StreamingDecoder) SetAllowUndersizedArrays(allow bool) { d.dec().SetAllowUndersizedArrays(allow) }
func (d *StreamingDecoder) PeekNull() bool                      { return d.dec().PeekNull() }
func (d *StreamingDecoder) PeekIsTextString() bool               { return d.dec().PeekIsTextString() }

func (d *StreamingDecoder) DecodeNull() error {
	_, err := retry(d, func() (struct{}, error) { return struct{}{}, d.dec().DecodeNull() })
	return err
}
func (d *StreamingDecoder) DecodeBool() (bool, error) {
	return retry(d, func() (bool, error) { return d.dec().DecodeBool() })
}
func (d *StreamingDecoder) DecodeUint() (uint64, error) {
	return retry(d, func() (uint64, error) { return d.dec().DecodeUint() })
}
func (d *StreamingDecoder) DecodeInt() (int64, error) {
	return retry(d, func() (int64, error) { return d.dec().DecodeInt() })
}
func (d *StreamingDecoder) DecodeFloat32() (float32, error) {
	return retry(d, func() (float32, error) { return d.dec().DecodeFloat32() })
}
func (d *StreamingDecoder) DecodeFloat64() (float64, error) {
	return retry(d, func() (float64, error) { return d.dec().DecodeFloat64() })
}
func (d *StreamingDecoder) DecodeString() (string, error) {
	return retry(d, func() (string, error) { return d.dec().DecodeString() })
}
func (d *StreamingDecoder) DecodeBytes() ([]byte, error) {
	return retry(d, func() ([]byte, error) { return d.dec().DecodeBytes() })
}
func (d *StreamingDecoder) Skip() error {
	_, err := retry(d, func() (struct{}, error) { return struct{}{}, d.dec().Skip() })
	return err
}

func (d *StreamingDecoder) DecodeListStart() (int, bool, error) {
	type r struct {
		n  int
		ok bool
	}
	res, err := retry(d, func() (r, error) {
		n, ok, err := d.dec().DecodeListStart()
		return r{n, ok}, err
	})
	return res.n, res.ok, err
}

func (d *StreamingDecoder) DecodeListEnd() error {
	_, err := retry(d, func() (struct{}, error) { return struct{}{}, d.dec().DecodeListEnd() })
	return err
}

func (d *StreamingDecoder) DecodeMapStart() (int, bool, error) {
	type r struct {
		n  int
		ok bool
	}
	res, err := retry(d, func() (r, error) {
		n, ok, err := d.dec().DecodeMapStart()
		return r{n, ok}, err
	})
	return res.n, res.ok, err
}

func (d *StreamingDecoder) DecodeMapEnd() error {
	_, err := retry(d, func() (struct{}, error) { return struct{}{}, d.dec().DecodeMapEnd() })
	return err
}

func (d *StreamingDecoder) DecodeList(fn func() (bool, error)) error {
	_, err := retry(d, func() (struct{}, error) { return struct{}{}, d.dec().DecodeList(fn) })
	return err
}

func (d *StreamingDecoder) DecodeMap(fn func(Key) (bool, error)) error {
	_, err := retry(d, func() (struct{}, error) { return struct{}{}, d.dec().DecodeMap(fn) })
	return err
}
