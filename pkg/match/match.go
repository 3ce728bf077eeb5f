// Package match implements the local membership test: Hamming distance
// between an unblinded PRF token and each database entry, compared over
// the raw bytes of their compressed-point encodings.
//
// This is a deliberately blunt instrument: small Hamming distance between
// two pHashes does not imply small Hamming distance between k*H(pHash_a)
// and k*H(pHash_b) once H is modeled as a random oracle. That is the
// system's observable contract and is preserved as-is rather than
// replaced with something metric-preserving.
package match

import (
	"encoding/hex"
	"errors"
	"math/bits"

	"github.com/avahowell/voprfscan/pkg/manifest"
)

// DefaultThreshold is the Hamming-distance cutoff used when the caller
// does not specify one.
const DefaultThreshold = 10

// ErrMalformedToken is returned when the token hex cannot be decoded.
var ErrMalformedToken = errors.New("match: malformed token hex")

// Result is the tagged outcome of a membership test: Matched carries
// file+distance, a non-match carries neither.
type Result struct {
	Matched  bool
	Distance uint32
	File     string
}

// Match compares tokenHex against every entry in db, in database order,
// and returns the first entry whose Hamming distance is <= threshold.
func Match(tokenHex string, db []manifest.Entry, threshold uint32) (Result, error) {
	tokenBytes, err := hex.DecodeString(tokenHex)
	if err != nil {
		return Result{}, ErrMalformedToken
	}

	for _, entry := range db {
		entryBytes, err := hex.DecodeString(entry.PHash)
		if err != nil {
			continue // a malformed database entry can never match; skip it
		}

		d, ok := hammingDistance(tokenBytes, entryBytes)
		if !ok {
			continue // length mismatch: not comparable, never a match
		}

		if d <= threshold {
			return Result{Matched: true, Distance: d, File: entry.File}, nil
		}
	}

	return Result{Matched: false}, nil
}

// hammingDistance XORs two equal-length byte strings and popcounts the
// result. ok is false if the inputs differ in length.
func hammingDistance(a, b []byte) (distance uint32, ok bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var d uint32
	for i := range a {
		d += uint32(bits.OnesCount8(a[i] ^ b[i]))
	}
	return d, true
}
