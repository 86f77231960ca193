package can

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/thingset-go/thingset-go/pkg/codec"
)

func TestReportPublishSubscribeRoundTripSingleFrame(t *testing.T) {
	net := NewLoopbackNetwork()
	pubBus := NewLoopbackBus(net)
	defer pubBus.Close()
	subBus := NewLoopbackBus(net)
	defer subBus.Close()

	pub := NewReportPublisher(pubBus, 0x11)
	sub := NewReportSubscriber(subBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan []byte, 1)
	go sub.Serve(ctx, func(source uint8, dec codec.Decoder) {
		if source != 0x11 {
			t.Errorf("unexpected source 0x%02x", source)
		}
		raw, err := dec.DecodeBytes()
		if err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		received <- raw
	})

	payload := encodeCBORBytes(t, []byte("ok"))
	if err := pub.Publish(payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-received:
		if !bytes.Equal(got, []byte("ok")) {
			t.Fatalf("unexpected payload %x", got)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for report")
	}
}

func TestReportPublishSubscribeRoundTripMultiFrame(t *testing.T) {
	net := NewLoopbackNetwork()
	pubBus := NewLoopbackBus(net)
	defer pubBus.Close()
	subBus := NewLoopbackBus(net)
	defer subBus.Close()

	pub := NewReportPublisher(pubBus, 0x22)
	sub := NewReportSubscriber(subBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan []byte, 1)
	go sub.Serve(ctx, func(source uint8, dec codec.Decoder) {
		raw, err := dec.DecodeBytes()
		if err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		received <- raw
	})

	long := bytes.Repeat([]byte{0xAB}, 40)
	payload := encodeCBORBytes(t, long)
	if err := pub.Publish(payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-received:
		if !bytes.Equal(got, long) {
			t.Fatalf("unexpected payload length %d", len(got))
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for report")
	}
}

func encodeCBORBytes(t *testing.T, raw []byte) []byte {
	t.Helper()
	enc := codec.NewBinaryEncoder()
	if err := enc.EncodeBytes(raw); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return enc.Bytes()
}
