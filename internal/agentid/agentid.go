// Package agentid generates stable, opaque agent identifiers.
//
// No dedicated UUID library is available to reach for here; the
// closest precedent is hailam-chessplay/internal/board/zobrist.go,
// which hand-rolls 64-bit identity hashes from random seed material
// with no external dependency. agentid follows that shape: 16 bytes of
// crypto/rand entropy folded through the xxhash digest this module
// already depends on for argument hashing (internal/arghash), rather
// than introducing a dedicated uuid dependency for this alone.
package agentid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// New returns a new, effectively-unique 16-character hex identifier.
// An agent's id only needs to be stable across saves, not follow any
// particular external format (UUID, etc.).
func New() string {
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand.Read on a supported platform does not fail; if it
		// somehow does, degrade to a zero seed rather than panic so
		// agent construction never aborts a training run over entropy
		// starvation.
		seed = [16]byte{}
	}
	h := xxhash.New()
	_, _ = h.Write(seed[:])
	return fmt.Sprintf("%016x", h.Sum64())
}

// Hex derives an id deterministically from existing bytes, rather than
// from fresh entropy: the xxhash digest of b, hex-encoded with its
// least significant byte first.
func Hex(b []byte) string {
	sum := xxhash.Sum64(b)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(sum >> (8 * uint(i)))
	}
	return hex.EncodeToString(buf[:])
}
