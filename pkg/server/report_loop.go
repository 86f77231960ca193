package server

import (
	"context"
	"sync"
	"time"

	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/registry"
)

// Default coalescing/heartbeat intervals.
const (
	DefaultMinInterval = 1 * time.Second
	DefaultMaxInterval = 60 * time.Second
	defaultTickDivisor = 4
)

// Config controls a SubsetPublisher's coalescing and heartbeat timing.
type Config struct {
	// MinInterval is the minimum time between change-driven reports:
	// dirty nodes accumulate until this much time has passed since the
	// last report, coalescing bursts of writes into one report.
	MinInterval time.Duration

	// MaxInterval is the maximum time between reports when nothing is
	// dirty: a full snapshot of the subset is sent as a heartbeat.
	MaxInterval time.Duration
}

// DefaultConfig returns the default coalescing/heartbeat intervals.
func DefaultConfig() Config {
	return Config{MinInterval: DefaultMinInterval, MaxInterval: DefaultMaxInterval}
}

// SubsetPublisher periodically reports every node.Dirtyable node in a
// subset that changed since the last report, or the whole subset as a
// heartbeat if nothing changed within MaxInterval. There is no
// per-listener subscribe negotiation: every report is broadcast to
// whatever is listening on the sink, so one publisher per subset
// serves every listener. A report is only ever sent for nodes that
// are actually dirty or, on the heartbeat path, for the subset as a
// whole, so there is no per-listener value cache to maintain.
type SubsetPublisher struct {
	reg    *registry.Registry
	sink   ReportSink
	subset node.Subset
	cfg    Config

	mu        sync.Mutex
	lastFlush time.Time
}

// NewSubsetPublisher creates a publisher reporting nodes in subset
// from reg to sink, on the schedule cfg describes.
func NewSubsetPublisher(reg *registry.Registry, sink ReportSink, subset node.Subset, cfg Config) *SubsetPublisher {
	return &SubsetPublisher{reg: reg, sink: sink, subset: subset, cfg: cfg}
}

// Run polls for dirty nodes until ctx is cancelled, flushing per cfg's
// coalescing and heartbeat intervals. It blocks until ctx is done or a
// publish fails.
func (p *SubsetPublisher) Run(ctx context.Context) error {
	base := p.cfg.MinInterval
	if p.cfg.MaxInterval > 0 && p.cfg.MaxInterval < base {
		base = p.cfg.MaxInterval
	}
	tick := base / defaultTickDivisor
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	p.mu.Lock()
	p.lastFlush = time.Now()
	p.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.tick(); err != nil {
				return err
			}
		}
	}
}

func (p *SubsetPublisher) tick() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var dirty []node.Node
	p.reg.NodesInSubset(p.subset, func(n node.Node) bool {
		if d, ok := n.(node.Dirtyable); ok && d.IsDirty() {
			dirty = append(dirty, n)
		}
		return true
	})

	elapsed := time.Since(p.lastFlush)
	switch {
	case len(dirty) > 0 && elapsed >= p.cfg.MinInterval:
		if err := p.flush(dirty); err != nil {
			return err
		}
		for _, n := range dirty {
			n.(node.Dirtyable).ClearDirty()
		}
		p.lastFlush = time.Now()

	case len(dirty) == 0 && elapsed >= p.cfg.MaxInterval:
		var all []node.Node
		p.reg.NodesInSubset(p.subset, func(n node.Node) bool {
			all = append(all, n)
			return true
		})
		if err := p.flush(all); err != nil {
			return err
		}
		p.lastFlush = time.Now()
	}
	return nil
}

func (p *SubsetPublisher) flush(nodes []node.Node) error {
	var pairs []node.Node
	for _, n := range nodes {
		if _, ok := n.Encodable(); ok {
			pairs = append(pairs, n)
		}
	}
	raw, err := encodeReport(pairs)
	if err != nil {
		return err
	}
	return p.sink.Publish(raw)
}
