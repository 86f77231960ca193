package can

import (
	"context"
	"fmt"
	"sync"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/stream"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

// maxCANPayload bounds a single classic CAN frame's data length.
const maxCANPayload = 8

// ReportPublisher sends reports as one or more multi-frame CAN
// frames, tagging each with the frame-kind/sequence header pkg/stream
// defines and a running per-message counter.
type ReportPublisher struct {
	bus        FrameBus
	source     uint8
	fragmenter *stream.Fragmenter

	mu        sync.Mutex
	messageNo uint8
}

// NewReportPublisher creates a publisher that sources reports from
// the local node address source.
func NewReportPublisher(bus FrameBus, source uint8) *ReportPublisher {
	return &ReportPublisher{bus: bus, source: source, fragmenter: stream.NewFragmenter(maxCANPayload)}
}

// Publish fragments raw across one or more CAN frames and sends them,
// advancing the running message-number counter once.
func (p *ReportPublisher) Publish(raw []byte) error {
	p.mu.Lock()
	msgNo := p.messageNo
	p.messageNo++
	p.mu.Unlock()

	return p.fragmenter.Send(raw, func(kind stream.FrameKind, seq uint8, payload []byte) error {
		id := wire.NewCanID().
			WithMessageType(wire.MessageTypeMultiFrameReport).
			WithPriority(wire.PriorityReportLow).
			WithSource(p.source).
			WithSequence(seq).
			WithMultiFrameType(stream.FrameKindToCAN(kind)).
			WithMessageNumber(msgNo)
		return p.bus.Send(Frame{ID: id.Encode(), Data: payload})
	})
}

// ReportHandler receives a fully reassembled report as a pull decoder
// over its CBOR bytes, along with the CAN source address it arrived
// from.
type ReportHandler func(source uint8, dec codec.Decoder)

// ReportSubscriber accepts all multi-frame and single-frame reports on
// the bus and reassembles them per sender before invoking a
// ReportHandler, accepting reports from any source rather than
// filtering by address.
type ReportSubscriber struct {
	bus   FrameBus
	reasm *stream.Reassembler[uint8]
}

// NewReportSubscriber creates a subscriber over bus.
func NewReportSubscriber(bus FrameBus) *ReportSubscriber {
	return &ReportSubscriber{
		bus: bus,
		reasm: stream.NewReassembler[uint8](func(raw []byte) codec.Decoder {
			return codec.NewBinaryDecoder(raw)
		}),
	}
}

// Serve reads frames until ctx is cancelled or the bus closes,
// reassembling fragmented reports and invoking handler once each
// completes.
func (s *ReportSubscriber) Serve(ctx context.Context, handler ReportHandler) error {
	inbound := s.bus.Frames()
	for {
		select {
		case <-ctx.Done():
			return nil
		case frm, ok := <-inbound:
			if !ok {
				return fmt.Errorf("can: %w", ErrBusClosed)
			}

			id := wire.DecodeCanID(frm.ID)
			var kind stream.FrameKind
			switch id.MessageType() {
			case wire.MessageTypeMultiFrameReport:
				kind = stream.FrameKindFromCAN(id.MultiFrameType())
			case wire.MessageTypeSingleFrameReport:
				kind = stream.FrameSingle
			default:
				continue
			}

			dec, ferr := s.reasm.Feed(id.Source(), kind, id.Sequence(), frm.Data)
			if ferr != nil {
				continue
			}
			if dec != nil {
				handler(id.Source(), dec)
			}
		}
	}
}
