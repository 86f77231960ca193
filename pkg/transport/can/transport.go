package can

import (
	"context"
	"fmt"

	"github.com/thingset-go/thingset-go/pkg/log"
)

// Transport wires a FrameBus to the address-claim state machine, the
// ISO-TP-backed request/response channel, and the multi-frame report
// path, presenting the single bound node address and report
// publish/subscribe surface a server or client needs.
type Transport struct {
	bus    FrameBus
	claims *Claimer
	logger log.Logger

	address uint8
	rrc     *RequestResponseChannel
	reports *ReportPublisher
	inbound *ReportSubscriber
}

// NewTransport creates a transport over bus for a node identified by
// eui. A nil logger disables logging.
func NewTransport(bus FrameBus, eui [8]byte, logger log.Logger) *Transport {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Transport{
		bus:    bus,
		claims: NewClaimer(bus, eui, logger),
		logger: logger,
	}
}

// Bind runs the address-claim state machine to acquire addr (or a
// random address if addr is not claimable), binds the request/response
// channel at the claimed address over ep, and prepares the report
// publisher. It blocks until bound or ctx is cancelled.
func (t *Transport) Bind(ctx context.Context, desired uint8, ep IsoTPEndpoint, handler func([]byte) []byte) error {
	addr, err := t.claims.Claim(ctx, desired)
	if err != nil {
		return fmt.Errorf("can: claim address: %w", err)
	}
	t.address = addr

	rrc, err := NewRequestResponseChannel(ep, addr, handler)
	if err != nil {
		return fmt.Errorf("can: bind request/response channel: %w", err)
	}
	t.rrc = rrc
	t.reports = NewReportPublisher(t.bus, addr)
	t.inbound = NewReportSubscriber(t.bus)
	return nil
}

// Address returns the locally bound CAN address. Valid only after Bind
// has returned successfully.
func (t *Transport) Address() uint8 { return t.address }

// Serve runs the bound node's background loops: defending the claimed
// address against rediscovery, and serving the request/response
// channel. It blocks until ctx is cancelled or either loop fails.
func (t *Transport) Serve(ctx context.Context) error {
	errc := make(chan error, 2)
	go func() { errc <- t.claims.Defend(ctx, t.address) }()
	go func() { errc <- t.rrc.Serve(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}

// PublishReport fragments and sends raw as one or more multi-frame CAN
// reports from the locally bound address.
func (t *Transport) PublishReport(raw []byte) error {
	return t.reports.Publish(raw)
}

// SubscribeReports reassembles inbound reports from every sender on
// the bus and invokes handler once each completes. It blocks until ctx
// is cancelled or the bus closes.
func (t *Transport) SubscribeReports(ctx context.Context, handler ReportHandler) error {
	return t.inbound.Serve(ctx, handler)
}

// Close releases the underlying bus.
func (t *Transport) Close() error {
	return t.bus.Close()
}
