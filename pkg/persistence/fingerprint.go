package persistence

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short BLAKE2b-256 digest of raw, hex-encoded.
// This is a debug aid for an inspector's --verify flag to confirm two
// snapshots (e.g. one just saved and one just read back) are
// byte-identical without printing the whole blob; it plays no part in
// the CRC-32/IEEE integrity check Snapshot/Restore already perform.
func Fingerprint(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
