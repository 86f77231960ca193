package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/engine"
	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/registry"
)

type fakeSink struct {
	mu        sync.Mutex
	published [][]byte
}

func (s *fakeSink) Publish(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(raw))
	copy(cp, raw)
	s.published = append(s.published, cp)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func (s *fakeSink) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.published) == 0 {
		return nil
	}
	return s.published[len(s.published)-1]
}

func newTestRegistry(t *testing.T) (*registry.Registry, *node.Property[int32]) {
	t.Helper()
	reg := registry.New()
	grp := node.NewGroup(1, 0, "dGroup")
	if err := reg.Register(grp); err != nil {
		t.Fatalf("register group: %v", err)
	}
	val := node.NewProperty[int32](2, 1, "dValue", node.AccessAnyReadWrite, node.SubsetLive, 42)
	if err := reg.Register(val); err != nil {
		t.Fatalf("register property: %v", err)
	}
	return reg, val
}

func decodeReportMap(t *testing.T, raw []byte) map[uint64]int64 {
	t.Helper()
	dec := codec.NewBinaryDecoder(raw)
	out := make(map[uint64]int64)
	err := dec.DecodeMap(func(key codec.Key) (bool, error) {
		v, err := dec.DecodeInt()
		if err != nil {
			return false, err
		}
		out[uint64(key.Int)] = v
		return true, nil
	})
	if err != nil {
		t.Fatalf("decode report map: %v", err)
	}
	return out
}

func TestServerHandlerDelegatesToEngine(t *testing.T) {
	reg, _ := newTestRegistry(t)
	eng := engine.New(reg, node.RoleSetAll)
	s := New(eng, reg)

	req := append([]byte{0x01}, mustEncodeUint(t, 2)...)
	resp := s.Handler()(req)
	if len(resp) == 0 {
		t.Fatal("expected a response")
	}
}

func mustEncodeUint(t *testing.T, v uint64) []byte {
	t.Helper()
	enc := codec.NewBinaryEncoder()
	if err := enc.EncodeUint(v); err != nil {
		t.Fatalf("encode uint: %v", err)
	}
	if err := enc.EncodeNull(); err != nil {
		t.Fatalf("encode null: %v", err)
	}
	return enc.Bytes()
}

func TestServerPublishNodes(t *testing.T) {
	reg, _ := newTestRegistry(t)
	eng := engine.New(reg, node.RoleSetAll)
	s := New(eng, reg)
	sink := &fakeSink{}

	if err := s.PublishNodes(sink, 2); err != nil {
		t.Fatalf("PublishNodes: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("expected 1 published report, got %d", sink.count())
	}
	got := decodeReportMap(t, sink.last())
	if got[2] != 42 {
		t.Fatalf("report map = %v, want {2: 42}", got)
	}
}

func TestServerPublishNodesSkipsUnknownID(t *testing.T) {
	reg, _ := newTestRegistry(t)
	eng := engine.New(reg, node.RoleSetAll)
	s := New(eng, reg)
	sink := &fakeSink{}

	if err := s.PublishNodes(sink, 2, 999); err != nil {
		t.Fatalf("PublishNodes: %v", err)
	}
	got := decodeReportMap(t, sink.last())
	if len(got) != 1 {
		t.Fatalf("report map = %v, want exactly 1 entry", got)
	}
}

func TestSubsetPublisherFlushesDirtyNodeAfterMinInterval(t *testing.T) {
	reg, val := newTestRegistry(t)
	sink := &fakeSink{}
	cfg := Config{MinInterval: 20 * time.Millisecond, MaxInterval: time.Hour}
	pub := NewSubsetPublisher(reg, sink, node.SubsetLive, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go pub.Run(ctx)
	time.Sleep(5 * time.Millisecond)
	val.Set(99)

	deadline := time.After(150 * time.Millisecond)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a report to be published for the dirty node")
		case <-time.After(5 * time.Millisecond):
		}
	}

	got := decodeReportMap(t, sink.last())
	if got[2] != 99 {
		t.Fatalf("report map = %v, want {2: 99}", got)
	}
	if val.IsDirty() {
		t.Error("expected dirty flag cleared after flush")
	}
}

func TestSubsetPublisherSendsHeartbeatWithoutChanges(t *testing.T) {
	reg, val := newTestRegistry(t)
	val.ClearDirty()
	sink := &fakeSink{}
	cfg := Config{MinInterval: time.Hour, MaxInterval: 20 * time.Millisecond}
	pub := NewSubsetPublisher(reg, sink, node.SubsetLive, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go pub.Run(ctx)

	deadline := time.After(150 * time.Millisecond)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a heartbeat report")
		case <-time.After(5 * time.Millisecond):
		}
	}

	got := decodeReportMap(t, sink.last())
	if got[2] != 42 {
		t.Fatalf("heartbeat report map = %v, want {2: 42}", got)
	}
}
