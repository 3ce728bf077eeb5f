// Package envelope implements an integrity-and-freshness wrapper over
// server responses: a keyed HMAC-SHA-256 MAC over a canonical JSON
// payload, bound to a random nonce and a timestamp so that responses
// outside the freshness window are rejected. Nonces are not remembered, so
// a response replayed within the window is accepted.
package envelope

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avahowell/voprfscan/pkg/canon"
)

// DefaultMaxAge and DefaultFutureSlack are the freshness bounds: a
// 5-minute acceptance window and a 1-minute future-clock-skew tolerance.
const (
	DefaultMaxAge      = 5 * time.Minute
	DefaultFutureSlack = 1 * time.Minute
)

var (
	// ErrStale is returned when an envelope's timestamp is too far in the past.
	ErrStale = errors.New("envelope: timestamp is stale")
	// ErrFuture is returned when an envelope's timestamp is too far in the future.
	ErrFuture = errors.New("envelope: timestamp is too far in the future")
	// ErrMacMismatch is returned when the recomputed MAC does not match.
	ErrMacMismatch = errors.New("envelope: mac mismatch")
)

// Envelope is the four-field wire wrapper: {data, mac, nonce, timestamp}.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	MAC       string          `json:"mac"`
	Nonce     string          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
}

// nowFunc is overridable in tests so freshness boundary behaviors can be
// exercised deterministically.
var nowFunc = func() time.Time { return time.Now() }

// Wrap serializes payload as canonical JSON, attaches a fresh 16-byte
// nonce and the current timestamp, and computes the HMAC-SHA-256 MAC over
// canonical(payload) || ":" || hex(nonce) || ":" || decimal(timestamp).
func Wrap(macKey []byte, payload interface{}) (*Envelope, error) {
	data, err := canon.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal payload: %w", err)
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("envelope: generate nonce: %w", err)
	}
	nonceHex := hex.EncodeToString(nonce)
	ts := nowFunc().UnixMilli()

	mac := computeMAC(macKey, data, nonceHex, ts)

	return &Envelope{
		Data:      json.RawMessage(data),
		MAC:       mac,
		Nonce:     nonceHex,
		Timestamp: ts,
	}, nil
}

// Unwrap validates freshness and integrity, returning the raw canonical
// payload bytes on success. Callers unmarshal the payload into their own
// type. All failures are fail-closed: a failed Unwrap never returns data.
func Unwrap(macKey []byte, env *Envelope, maxAge, futureSlack time.Duration) (json.RawMessage, error) {
	now := nowFunc().UnixMilli()
	age := now - env.Timestamp

	if age > maxAge.Milliseconds() {
		return nil, ErrStale
	}
	if -age > futureSlack.Milliseconds() {
		return nil, ErrFuture
	}

	// Re-canonicalize the data exactly as Wrap did, since json.RawMessage
	// may not itself be in canonical form once it has crossed the wire.
	canonData, err := canon.Canonicalize(env.Data)
	if err != nil {
		return nil, fmt.Errorf("envelope: canonicalize payload: %w", err)
	}

	expected := computeMAC(macKey, canonData, env.Nonce, env.Timestamp)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(env.MAC)) != 1 {
		return nil, ErrMacMismatch
	}

	return canonData, nil
}

func computeMAC(key, canonData []byte, nonceHex string, timestamp int64) string {
	h := hmac.New(sha256.New, key)
	h.Write(canonData)
	h.Write([]byte(":"))
	h.Write([]byte(nonceHex))
	h.Write([]byte(":"))
	h.Write([]byte(fmt.Sprintf("%d", timestamp)))
	return hex.EncodeToString(h.Sum(nil))
}
