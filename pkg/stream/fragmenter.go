package stream

import "github.com/thingset-go/thingset-go/pkg/codec"

// FrameSink receives one outbound fragment in order: its kind,
// sequence number, and payload bytes.
type FrameSink func(kind FrameKind, seq uint8, payload []byte) error

// Fragmenter splits a complete message into chunkSize-bounded
// fragments tagged the way Reassembler expects to consume them.
type Fragmenter struct {
	chunk int
}

// NewFragmenter creates a fragmenter that emits fragments of at most
// chunkSize bytes. A non-positive chunkSize falls back to the
// streaming codec's default chunk size.
func NewFragmenter(chunkSize int) *Fragmenter {
	if chunkSize <= 0 {
		chunkSize = codec.DefaultChunkSize
	}
	return &Fragmenter{chunk: chunkSize}
}

// Send splits raw and delivers each fragment to sink in order. A
// message that fits in one chunk is sent as a single FrameSingle
// fragment with sequence 0. Otherwise the first fragment is
// FrameFirst with sequence 0, intermediate fragments are
// FrameConsecutive, and the final fragment is FrameLast; the sequence
// advances by one (mod 16) per fragment after the first.
func (f *Fragmenter) Send(raw []byte, sink FrameSink) error {
	if len(raw) <= f.chunk {
		return sink(FrameSingle, 0, raw)
	}

	seq := uint8(0)
	for off := 0; off < len(raw); off += f.chunk {
		end := off + f.chunk
		if end > len(raw) {
			end = len(raw)
		}

		var kind FrameKind
		switch {
		case off == 0:
			kind = FrameFirst
		case end == len(raw):
			kind = FrameLast
		default:
			kind = FrameConsecutive
		}

		if err := sink(kind, seq, raw[off:end]); err != nil {
			return err
		}
		seq = (seq + 1) & 0x0F
	}
	return nil
}
