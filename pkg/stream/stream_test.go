package stream

import (
	"bytes"
	"errors"
	"testing"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

func newTestReassembler() (*Reassembler[uint8], *[]byte) {
	var got []byte
	r := NewReassembler[uint8](func(raw []byte) codec.Decoder {
		got = raw
		return codec.NewBinaryDecoder(raw)
	})
	return r, &got
}

func TestReassemblerSingleFrame(t *testing.T) {
	r, got := newTestReassembler()
	dec, err := r.Feed(1, FrameSingle, 0, []byte{0xAA, 0xBB})
	if err != nil || dec == nil {
		t.Fatalf("expected immediate delivery, got dec=%v err=%v", dec, err)
	}
	if !bytes.Equal(*got, []byte{0xAA, 0xBB}) {
		t.Fatalf("unexpected payload %x", *got)
	}
}

func TestReassemblerMultiFrame(t *testing.T) {
	r, got := newTestReassembler()

	if dec, err := r.Feed(1, FrameFirst, 0, []byte{0x01, 0x02}); err != nil || dec != nil {
		t.Fatalf("first frame should not deliver, got dec=%v err=%v", dec, err)
	}
	if dec, err := r.Feed(1, FrameConsecutive, 1, []byte{0x03, 0x04}); err != nil || dec != nil {
		t.Fatalf("consecutive frame should not deliver, got dec=%v err=%v", dec, err)
	}
	dec, err := r.Feed(1, FrameLast, 2, []byte{0x05})
	if err != nil || dec == nil {
		t.Fatalf("last frame should deliver, got dec=%v err=%v", dec, err)
	}
	if !bytes.Equal(*got, []byte{0x01, 0x02, 0x03, 0x04, 0x05}) {
		t.Fatalf("unexpected reassembled payload %x", *got)
	}
	if r.Pending(1) {
		t.Fatalf("context should be cleared after delivery")
	}
}

func TestReassemblerSequenceGapAbandonsContext(t *testing.T) {
	r, _ := newTestReassembler()

	if _, err := r.Feed(1, FrameFirst, 0, []byte{0x01}); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	_, err := r.Feed(1, FrameConsecutive, 5, []byte{0x02})
	if !errors.Is(err, ErrSequenceGap) {
		t.Fatalf("expected ErrSequenceGap, got %v", err)
	}
	if r.Pending(1) {
		t.Fatalf("context should be abandoned after gap")
	}
}

func TestReassemblerConsecutiveWithoutContextIsGap(t *testing.T) {
	r, _ := newTestReassembler()
	_, err := r.Feed(1, FrameConsecutive, 0, []byte{0x01})
	if !errors.Is(err, ErrSequenceGap) {
		t.Fatalf("expected ErrSequenceGap, got %v", err)
	}
}

func TestReassemblerLastWithoutContextActsAsSingle(t *testing.T) {
	r, got := newTestReassembler()
	dec, err := r.Feed(1, FrameLast, 3, []byte{0x9})
	if err != nil || dec == nil {
		t.Fatalf("expected delivery, got dec=%v err=%v", dec, err)
	}
	if !bytes.Equal(*got, []byte{0x9}) {
		t.Fatalf("unexpected payload %x", *got)
	}
}

func TestReassemblerSequenceWrapsModulo16(t *testing.T) {
	r, got := newTestReassembler()
	if _, err := r.Feed(1, FrameFirst, 15, []byte{0x01}); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	dec, err := r.Feed(1, FrameLast, 0, []byte{0x02})
	if err != nil || dec == nil {
		t.Fatalf("expected wraparound delivery, got dec=%v err=%v", dec, err)
	}
	if !bytes.Equal(*got, []byte{0x01, 0x02}) {
		t.Fatalf("unexpected payload %x", *got)
	}
}

func TestReassemblerTracksMultipleSendersIndependently(t *testing.T) {
	r, _ := newTestReassembler()
	if _, err := r.Feed(1, FrameFirst, 0, []byte{0x01}); err != nil {
		t.Fatalf("sender 1 first: %v", err)
	}
	if _, err := r.Feed(2, FrameFirst, 0, []byte{0x02}); err != nil {
		t.Fatalf("sender 2 first: %v", err)
	}
	if !r.Pending(1) || !r.Pending(2) {
		t.Fatalf("both senders should have open contexts")
	}
	r.Abandon(1)
	if r.Pending(1) {
		t.Fatalf("sender 1 should be abandoned")
	}
	if !r.Pending(2) {
		t.Fatalf("sender 2 should be unaffected")
	}
}

func TestFragmenterSingleChunkMessage(t *testing.T) {
	f := NewFragmenter(8)
	var frames []struct {
		kind FrameKind
		seq  uint8
		data []byte
	}
	err := f.Send([]byte{1, 2, 3}, func(kind FrameKind, seq uint8, payload []byte) error {
		frames = append(frames, struct {
			kind FrameKind
			seq  uint8
			data []byte
		}{kind, seq, append([]byte(nil), payload...)})
		return nil
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(frames) != 1 || frames[0].kind != FrameSingle {
		t.Fatalf("expected one single frame, got %+v", frames)
	}
}

func TestFragmenterMultiChunkMessage(t *testing.T) {
	f := NewFragmenter(2)
	raw := []byte{1, 2, 3, 4, 5}

	var kinds []FrameKind
	var seqs []uint8
	var reassembled []byte
	err := f.Send(raw, func(kind FrameKind, seq uint8, payload []byte) error {
		kinds = append(kinds, kind)
		seqs = append(seqs, seq)
		reassembled = append(reassembled, payload...)
		return nil
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !bytes.Equal(reassembled, raw) {
		t.Fatalf("fragments do not reassemble to original: %x", reassembled)
	}
	if kinds[0] != FrameFirst || kinds[len(kinds)-1] != FrameLast {
		t.Fatalf("expected first/last framing, got %v", kinds)
	}
	for i := 1; i < len(kinds)-1; i++ {
		if kinds[i] != FrameConsecutive {
			t.Fatalf("expected consecutive framing at %d, got %v", i, kinds[i])
		}
	}
	for i := range seqs {
		if seqs[i] != uint8(i) {
			t.Fatalf("expected sequence %d at index %d, got %d", i, i, seqs[i])
		}
	}
}

func TestFragmenterRoundTripsThroughReassembler(t *testing.T) {
	f := NewFragmenter(3)
	r, got := newTestReassembler()
	raw := []byte{10, 20, 30, 40, 50, 60, 70}

	var final []byte
	err := f.Send(raw, func(kind FrameKind, seq uint8, payload []byte) error {
		dec, ferr := r.Feed(1, kind, seq, payload)
		if ferr != nil {
			return ferr
		}
		if dec != nil {
			final = *got
		}
		return nil
	})
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !bytes.Equal(final, raw) {
		t.Fatalf("round trip mismatch: got %x want %x", final, raw)
	}
}

func TestUDPHeaderEncodeDecodeRoundTrip(t *testing.T) {
	hdr := EncodeUDPHeader(FrameConsecutive, 7, wire.VerbReport)
	kind, seq, verb := DecodeUDPHeader(hdr)
	if kind != FrameConsecutive || seq != 7 || verb != wire.VerbReport {
		t.Fatalf("round trip mismatch: kind=%v seq=%d verb=%v", kind, seq, verb)
	}
}

func TestFrameKindMatchesCANMultiFrameType(t *testing.T) {
	cases := []wire.MultiFrameType{
		wire.MultiFrameSingle, wire.MultiFrameFirst, wire.MultiFrameConsecutive, wire.MultiFrameLast,
	}
	for _, c := range cases {
		if FrameKindToCAN(FrameKindFromCAN(c)) != c {
			t.Fatalf("round trip mismatch for %v", c)
		}
	}
}
