package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanIDRequestResponseRoundTrip(t *testing.T) {
	id := NewCanID().
		WithMessageType(MessageTypeRequestResponse).
		WithPriority(PriorityChannel).
		WithSource(0x10).
		WithTarget(0x20)

	raw := id.Encode()
	decoded := DecodeCanID(raw)

	assert.Equal(t, uint8(0x10), decoded.Source())
	assert.Equal(t, uint8(0x20), decoded.Target())
	assert.Equal(t, MessageTypeRequestResponse, decoded.MessageType())
	assert.Equal(t, PriorityChannel, decoded.Priority())
}

func TestCanIDReplyIDSwapsSourceAndTarget(t *testing.T) {
	id := NewCanID().WithMessageType(MessageTypeRequestResponse).WithSource(0x05).WithTarget(0x09)
	reply := id.ReplyID()
	assert.Equal(t, uint8(0x09), reply.Source())
	assert.Equal(t, uint8(0x05), reply.Target())
}

func TestCanIDMultiFrameReportRoundTrip(t *testing.T) {
	id := NewCanID().
		WithMessageType(MessageTypeMultiFrameReport).
		WithPriority(PriorityReportLow).
		WithSource(0x42).
		WithDataID(0x0601).
		WithSequence(7).
		WithMultiFrameType(MultiFrameConsecutive)

	raw := id.Encode()
	decoded := DecodeCanID(raw)

	assert.Equal(t, uint8(0x42), decoded.Source())
	assert.Equal(t, uint16(0x0601), decoded.DataID())
	assert.Equal(t, uint8(7), decoded.Sequence())
	assert.Equal(t, MultiFrameConsecutive, decoded.MultiFrameType())
	assert.Equal(t, MessageTypeMultiFrameReport, decoded.MessageType())
	assert.Equal(t, PriorityReportLow, decoded.Priority())
}

func TestCanIDFitsIn29Bits(t *testing.T) {
	id := NewCanID().
		WithMessageType(MessageTypeMultiFrameReport).
		WithPriority(7).
		WithSource(0xFF).
		WithDataID(0xFFFF).
		WithSequence(0xFF).
		WithMultiFrameType(3).
		WithBridge(0xFF)

	assert.LessOrEqual(t, id.Encode(), uint32(0x1FFFFFFF))
}

func TestIsClaimable(t *testing.T) {
	assert.False(t, IsClaimable(AddressAnonymous))
	assert.False(t, IsClaimable(AddressBroadcast))
	assert.False(t, IsClaimable(0x00))
	assert.True(t, IsClaimable(0x01))
	assert.True(t, IsClaimable(0xFD))
}
