package can

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/thingset-go/thingset-go/pkg/log"
	"github.com/thingset-go/thingset-go/pkg/wire"
)

// ClaimState is a state in the address-claim state machine: a node
// moves from unbound through a discovery and claiming round before
// settling on a bound address.
type ClaimState uint8

const (
	StateUnbound ClaimState = iota
	StateDiscovering
	StateClaiming
	StateBound
)

func (s ClaimState) String() string {
	switch s {
	case StateUnbound:
		return "UNBOUND"
	case StateDiscovering:
		return "DISCOVERING"
	case StateClaiming:
		return "CLAIMING"
	case StateBound:
		return "BOUND"
	default:
		return "UNKNOWN"
	}
}

// claimTimeout is the wait for a competing claim before asserting one.
const claimTimeout = 500 * time.Millisecond

// Claimer runs the address-claim state machine to acquire a unique CAN
// address for a node's EUI-64 on a bus.
type Claimer struct {
	bus    FrameBus
	eui    [8]byte
	logger log.Logger
	rng    *rand.Rand
}

// NewClaimer creates a claimer for eui over bus. A nil logger disables
// logging.
func NewClaimer(bus FrameBus, eui [8]byte, logger log.Logger) *Claimer {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Claimer{
		bus:    bus,
		eui:    eui,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Claim runs unbound → discovering → claiming → bound and returns the
// claimed address. It blocks until bound or ctx is cancelled.
func (c *Claimer) Claim(ctx context.Context, desired uint8) (uint8, error) {
	if !wire.IsClaimable(desired) {
		desired = c.randomClaimableAddress()
	}

	addr := desired
	state := StateUnbound
	inbound := c.bus.Frames()

	for {
		switch state {
		case StateUnbound:
			if err := c.sendDiscover(addr); err != nil {
				return 0, fmt.Errorf("can: send discover: %w", err)
			}
			c.logTransition(state, StateDiscovering, addr, "")
			state = StateDiscovering

		case StateDiscovering:
			select {
			case <-ctx.Done():
				return 0, ctx.Err()

			case frm, ok := <-inbound:
				if !ok {
					return 0, fmt.Errorf("can: %w", ErrBusClosed)
				}
				if c.isClaimCollision(frm, addr) {
					old := addr
					addr = c.randomClaimableAddress()
					c.logTransition(state, state, addr, fmt.Sprintf("address 0x%02x in use, retrying 0x%02x", old, addr))
					if err := c.sendDiscover(addr); err != nil {
						return 0, fmt.Errorf("can: send discover: %w", err)
					}
				}

			case <-time.After(claimTimeout):
				c.logTransition(state, StateClaiming, addr, "")
				state = StateClaiming
			}

		case StateClaiming:
			txBefore, _ := c.txErrors()
			if err := c.sendClaim(addr); err != nil {
				c.logTransition(state, StateDiscovering, addr, err.Error())
				state = StateDiscovering
				continue
			}
			txAfter, _ := c.txErrors()
			if txAfter <= txBefore {
				c.logTransition(state, StateBound, addr, "")
				return addr, nil
			}
			c.logTransition(state, StateDiscovering, addr, "collision detected on tx, retrying")
			addr = c.randomClaimableAddress()
			state = StateDiscovering

		case StateBound:
			return addr, nil
		}
	}
}

// Defend listens for discover frames targeting addr and re-asserts a
// claim in response, so a bound node keeps its address against a late
// discovery from a node that joined afterward. It runs until ctx is
// cancelled or the bus closes.
func (c *Claimer) Defend(ctx context.Context, addr uint8) error {
	inbound := c.bus.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frm, ok := <-inbound:
			if !ok {
				return fmt.Errorf("can: %w", ErrBusClosed)
			}
			id := wire.DecodeCanID(frm.ID)
			if id.MessageType() == wire.MessageTypeNetworkManagement && id.Source() == wire.AddressAnonymous &&
				id.Target() == addr && len(frm.Data) == 0 {
				if err := c.sendClaim(addr); err != nil {
					return fmt.Errorf("can: re-assert claim: %w", err)
				}
			}
		}
	}
}

// isClaimCollision reports whether frm is another node's claim frame
// for addr, meaning addr is already taken.
func (c *Claimer) isClaimCollision(frm Frame, addr uint8) bool {
	id := wire.DecodeCanID(frm.ID)
	return id.MessageType() == wire.MessageTypeNetworkManagement &&
		id.Source() == addr &&
		len(frm.Data) == 8
}

// sendDiscover emits a discover frame from the anonymous source
// targeting addr, carrying a random nonce in the message-number field
// to distinguish successive discover attempts.
func (c *Claimer) sendDiscover(addr uint8) error {
	id := wire.NewCanID().
		WithMessageType(wire.MessageTypeNetworkManagement).
		WithPriority(wire.PriorityNetworkManagement).
		WithSource(wire.AddressAnonymous).
		WithTarget(addr).
		WithMessageNumber(uint8(c.rng.Intn(4)))
	return c.bus.Send(Frame{ID: id.Encode()})
}

// sendClaim emits a claim frame asserting addr, carrying the local
// EUI-64 as payload.
func (c *Claimer) sendClaim(addr uint8) error {
	id := wire.NewCanID().
		WithMessageType(wire.MessageTypeNetworkManagement).
		WithPriority(wire.PriorityNetworkManagement).
		WithSource(addr).
		WithTarget(wire.AddressBroadcast)
	data := make([]byte, 8)
	copy(data, c.eui[:])
	return c.bus.Send(Frame{ID: id.Encode(), Data: data})
}

func (c *Claimer) txErrors() (uint32, error) {
	if ec, ok := c.bus.(ErrorCounter); ok {
		return ec.TxErrorCount()
	}
	return 0, nil
}

func (c *Claimer) randomClaimableAddress() uint8 {
	span := int(wire.AddressMax-wire.AddressMin) + 1
	return wire.AddressMin + uint8(c.rng.Intn(span))
}

func (c *Claimer) logTransition(from, to ClaimState, addr uint8, reason string) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: fmt.Sprintf("can:0x%02x", addr),
		Layer:        log.LayerAddressClaim,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityAddressClaim,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}
