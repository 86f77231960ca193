// Package stream implements the multi-frame report fragmenter and
// reassembler shared by the CAN and IP transports. A single logical
// report payload is split into transport-sized fragments on the way
// out and reassembled per sender on the way in; the header that tags
// each fragment's position differs by transport (CAN ID sub-fields vs.
// a two-byte datagram prefix) but the state machine driving assembly
// is the same, so it lives here once.
package stream
