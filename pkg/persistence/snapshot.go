package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/registry"
)

// CurrentVersion is the persisted state format version this package
// writes and expects to read.
const CurrentVersion uint16 = 1

// headerSize is the fixed {version u16, data_len u16, crc u32} prefix.
const headerSize = 8

var (
	// ErrNoPersistedState is returned by Restore when raw looks like
	// uninitialized backing storage: an EEPROM or flash block that has
	// never been written reads back as either all 0xFF (erased flash)
	// or all 0x00 (zeroed RAM-backed storage), and neither is a valid
	// header for any real version.
	ErrNoPersistedState = errors.New("persistence: no saved state")

	// ErrCorrupt is returned when the payload's CRC-32 doesn't match
	// the header.
	ErrCorrupt = errors.New("persistence: corrupt state (crc mismatch)")

	// ErrVersionMismatch is returned when the header names a format
	// version this package doesn't know how to read.
	ErrVersionMismatch = errors.New("persistence: unsupported state version")
)

// isSentinel reports whether b is indistinguishable from uninitialized
// backing storage: empty, or uniformly 0xFF or 0x00.
func isSentinel(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	allFF, allZero := true, true
	for _, c := range b {
		if c != 0xFF {
			allFF = false
		}
		if c != 0x00 {
			allZero = false
		}
		if !allFF && !allZero {
			return false
		}
	}
	return allFF || allZero
}

// Store snapshots and restores a registry's node values in the
// persisted state format.
type Store struct {
	reg *registry.Registry
}

// NewStore creates a Store operating against reg.
func NewStore(reg *registry.Registry) *Store {
	return &Store{reg: reg}
}

// Snapshot encodes every encodable node in subset as a header-prefixed
// CBOR map of node ID to value, in the layout Restore expects.
func (s *Store) Snapshot(subset node.Subset) ([]byte, error) {
	var nodes []node.Node
	s.reg.NodesInSubset(subset, func(n node.Node) bool {
		if _, ok := n.Encodable(); ok {
			nodes = append(nodes, n)
		}
		return true
	})

	enc := codec.NewBinaryEncoder()
	if err := enc.EncodeMapStart(len(nodes)); err != nil {
		return nil, fmt.Errorf("persistence: encode snapshot: %w", err)
	}
	for _, n := range nodes {
		if err := enc.EncodeUint(uint64(n.ID())); err != nil {
			return nil, fmt.Errorf("persistence: encode snapshot: %w", err)
		}
		encodable, _ := n.Encodable()
		if err := encodable.EncodeTo(enc); err != nil {
			return nil, fmt.Errorf("persistence: encode snapshot: %w", err)
		}
	}
	if err := enc.EncodeMapEnd(); err != nil {
		return nil, fmt.Errorf("persistence: encode snapshot: %w", err)
	}
	data := enc.Bytes()

	if len(data) > int(^uint16(0)) {
		return nil, fmt.Errorf("persistence: snapshot too large (%d bytes)", len(data))
	}

	out := make([]byte, headerSize+len(data))
	binary.LittleEndian.PutUint16(out[0:2], CurrentVersion)
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(data)))
	binary.LittleEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(data))
	copy(out[headerSize:], data)
	return out, nil
}

// Restore decodes a blob produced by Snapshot and writes each value
// back into the registry node matching its ID; unknown IDs are
// skipped, matching the engine's own best-effort UPDATE semantics.
// Returns ErrNoPersistedState if raw is empty or sentinel-filled,
// ErrVersionMismatch on an unrecognized format version, and ErrCorrupt
// on a CRC mismatch.
func (s *Store) Restore(raw []byte) error {
	if len(raw) < headerSize || isSentinel(raw) {
		return ErrNoPersistedState
	}

	version := binary.LittleEndian.Uint16(raw[0:2])
	dataLen := binary.LittleEndian.Uint16(raw[2:4])
	crc := binary.LittleEndian.Uint32(raw[4:8])
	if version != CurrentVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, version, CurrentVersion)
	}
	if headerSize+int(dataLen) > len(raw) {
		return fmt.Errorf("persistence: truncated state (want %d bytes, have %d)", headerSize+int(dataLen), len(raw))
	}
	data := raw[headerSize : headerSize+int(dataLen)]
	if crc32.ChecksumIEEE(data) != crc {
		return ErrCorrupt
	}

	dec := codec.NewBinaryDecoder(data)
	return dec.DecodeMap(func(key codec.Key) (bool, error) {
		n, ok := s.reg.FindByID(uint16(key.Int))
		if !ok {
			return true, dec.Skip()
		}
		decodable, ok := n.Decodable()
		if !ok {
			return true, dec.Skip()
		}
		if err := decodable.DecodeFrom(dec); err != nil {
			return false, fmt.Errorf("persistence: restore node %d: %w", n.ID(), err)
		}
		return true, nil
	})
}
