// Package persistence implements the EEPROM-style persisted state
// layout: an 8-byte header (format version, data length, CRC-32/IEEE
// of the payload) followed by a CBOR map of node ID to encoded value.
// FileStore adapts the format to ordinary file-backed storage, the
// same Save/Load/Clear shape a flash-block-backed device would expose
// through a thinner driver.
package persistence
