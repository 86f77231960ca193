package stream

import (
	"errors"
	"fmt"
	"sync"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

// FrameKind tags a fragment's position within a reassembled message.
// Its values are chosen to match wire.MultiFrameType exactly so CAN
// frames convert with a bare cast; UDP frames carry the same values in
// the upper nibble of their header byte.
type FrameKind uint8

const (
	FrameSingle      FrameKind = FrameKind(wire.MultiFrameSingle)
	FrameFirst       FrameKind = FrameKind(wire.MultiFrameFirst)
	FrameConsecutive FrameKind = FrameKind(wire.MultiFrameConsecutive)
	FrameLast        FrameKind = FrameKind(wire.MultiFrameLast)
)

// ErrSequenceGap is returned when a consecutive or last frame's
// sequence number does not match the expected successor; the
// in-progress context for that sender is abandoned.
var ErrSequenceGap = errors.New("stream: sequence gap, context abandoned")

// FrameKindFromCAN converts a CanID multi-frame-type field.
func FrameKindFromCAN(t wire.MultiFrameType) FrameKind { return FrameKind(t) }

// FrameKindToCAN converts back to the CanID multi-frame-type field.
func FrameKindToCAN(k FrameKind) wire.MultiFrameType { return wire.MultiFrameType(k) }

// EncodeUDPHeader builds the two-byte prefix this transport's
// streaming format puts on each UDP report datagram: the frame kind
// and sequence packed into one byte, followed by the verb byte
// (always report for a streamed publish).
func EncodeUDPHeader(kind FrameKind, seq uint8, verb wire.Verb) [2]byte {
	return [2]byte{byte(kind)<<4 | (seq & 0x0F), byte(verb)}
}

// DecodeUDPHeader parses the two-byte prefix back into its fields.
func DecodeUDPHeader(hdr [2]byte) (kind FrameKind, seq uint8, verb wire.Verb) {
	return FrameKind(hdr[0] >> 4), hdr[0] & 0x0F, wire.Verb(hdr[1])
}

// context holds in-progress reassembly state for one sender.
type context struct {
	buf     []byte
	nextSeq uint8
}

// Reassembler accumulates multi-frame reports per sender, keyed by K
// (a CAN source address, a UDP endpoint string, or anything comparable
// a transport uses to tell senders apart). Feed returns a non-nil
// decoder exactly when a fragment completes a message, matching the
// conservative policy of handing the parser nothing until the full
// payload has arrived.
type Reassembler[K comparable] struct {
	mu       sync.Mutex
	contexts map[K]*context

	// newDecoder builds a pull decoder over one completed message's raw
	// bytes. Kept as a hook so the reassembler stays codec-agnostic.
	newDecoder func(raw []byte) codec.Decoder
}

// NewReassembler creates a reassembler that hands completed messages
// to newDecoder.
func NewReassembler[K comparable](newDecoder func(raw []byte) codec.Decoder) *Reassembler[K] {
	return &Reassembler[K]{
		contexts:   make(map[K]*context),
		newDecoder: newDecoder,
	}
}

// Feed applies one fragment from sender and returns a decoder over the
// reassembled payload once kind completes a message (Single or Last).
// A First or Consecutive frame returns (nil, nil) to indicate the
// message is still in progress.
func (r *Reassembler[K]) Feed(sender K, kind FrameKind, seq uint8, payload []byte) (codec.Decoder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case FrameSingle:
		delete(r.contexts, sender)
		return r.newDecoder(payload), nil

	case FrameFirst:
		buf := make([]byte, len(payload))
		copy(buf, payload)
		r.contexts[sender] = &context{buf: buf, nextSeq: (seq + 1) & 0x0F}
		return nil, nil

	case FrameConsecutive:
		ctx, ok := r.contexts[sender]
		if !ok {
			return nil, fmt.Errorf("%w: consecutive frame with no open context", ErrSequenceGap)
		}
		if seq != ctx.nextSeq {
			delete(r.contexts, sender)
			return nil, ErrSequenceGap
		}
		ctx.buf = append(ctx.buf, payload...)
		ctx.nextSeq = (ctx.nextSeq + 1) & 0x0F
		return nil, nil

	case FrameLast:
		ctx, ok := r.contexts[sender]
		if !ok {
			// A lone last frame with no preceding first is treated as
			// a complete message in itself.
			delete(r.contexts, sender)
			return r.newDecoder(payload), nil
		}
		if seq != ctx.nextSeq {
			delete(r.contexts, sender)
			return nil, ErrSequenceGap
		}
		ctx.buf = append(ctx.buf, payload...)
		delete(r.contexts, sender)
		return r.newDecoder(ctx.buf), nil

	default:
		return nil, fmt.Errorf("stream: unknown frame kind %d", kind)
	}
}

// Abandon drops any in-progress context for sender without delivering it.
func (r *Reassembler[K]) Abandon(sender K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, sender)
}

// Pending reports whether sender currently has an open context.
func (r *Reassembler[K]) Pending(sender K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.contexts[sender]
	return ok
}
