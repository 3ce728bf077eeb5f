// Package manifest implements a signed hash-database manifest: generation
// binds the database's content hash, a timestamp, and a version string
// under a keyed HMAC tag; verification re-derives all three and fails
// closed on any mismatch or on expiry.
package manifest

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/avahowell/voprfscan/pkg/curve"
)

// MaxAge is the 30-day rollback-resistance window for a manifest.
const MaxAge = 30 * 24 * time.Hour

var (
	// ErrDBHashMismatch is returned when the database content hash no
	// longer matches the manifest.
	ErrDBHashMismatch = errors.New("manifest: database hash mismatch")
	// ErrDBSigMismatch is returned when the manifest signature does not
	// verify under the configured signing key.
	ErrDBSigMismatch = errors.New("manifest: database signature mismatch")
	// ErrDBExpired is returned when the manifest is older than MaxAge.
	ErrDBExpired = errors.New("manifest: database manifest expired")
)

// Entry is one row of the evaluated-hash database: file is an opaque
// identifier, phash is the server-evaluated token k*H(p) for one
// known-bad perceptual hash, hex-encoded as a compressed SEC1 point.
type Entry struct {
	File  string `json:"file"`
	PHash string `json:"phash"`
}

// Manifest is the signed descriptor stored alongside the database:
// {hash, signature, timestamp, version}.
type Manifest struct {
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

// nowFunc is overridable in tests for deterministic boundary checks.
var nowFunc = func() time.Time { return time.Now() }

// Sign generates a manifest for the given database bytes (offline, at
// publish time): hash = sha256_hex(dbBytes); sig = HMAC-SHA256(signingKey,
// hash ":" timestamp ":" version).
func Sign(dbBytes []byte, signingKey []byte, version string) *Manifest {
	hash := sha256.Sum256(dbBytes)
	hashHex := hex.EncodeToString(hash[:])
	ts := nowFunc().UnixMilli()
	sig := signTag(signingKey, hashHex, ts, version)

	return &Manifest{
		Hash:      hashHex,
		Signature: sig,
		Timestamp: ts,
		Version:   version,
	}
}

// Verify re-reads dbBytes, recomputes the content hash and signature, and
// checks expiry. Only on success is the parsed database admitted to the
// match engine.
func Verify(dbBytes []byte, m *Manifest, signingKey []byte) error {
	hash := sha256.Sum256(dbBytes)
	hashHex := hex.EncodeToString(hash[:])
	if hashHex != m.Hash {
		return ErrDBHashMismatch
	}

	expected := signTag(signingKey, m.Hash, m.Timestamp, m.Version)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(m.Signature)) != 1 {
		return ErrDBSigMismatch
	}

	age := nowFunc().Sub(time.UnixMilli(m.Timestamp))
	if age > MaxAge {
		return ErrDBExpired
	}

	return nil
}

func signTag(key []byte, hashHex string, timestamp int64, version string) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(hashHex))
	h.Write([]byte(":"))
	h.Write([]byte(fmt.Sprintf("%d", timestamp)))
	h.Write([]byte(":"))
	h.Write([]byte(version))
	return hex.EncodeToString(h.Sum(nil))
}

// ShardDigest returns an internal SHA-3-256 integrity tag over a decoded
// set of entries, independent of the SHA-256 manifest hash above. It is
// not part of the wire contract; cmd/dbsign logs it next to the entry
// count when signing, and it is not compared against any stored value.
func ShardDigest(entries []Entry) (string, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("manifest: marshal entries: %w", err)
	}
	sum := sha3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// VerifiedDB is a database that has passed Verify and is safe to hand to
// pkg/match. Ensure re-checks the manifest cheaply (hash/signature/expiry
// only, not a full re-parse) against the bytes captured at Load time; the
// database file is not re-read.
type VerifiedDB struct {
	Entries  []Entry
	Manifest *Manifest

	dbBytes    []byte
	signingKey []byte
}

// Load parses dbBytes and verifies m against it, returning a VerifiedDB
// only on success.
func Load(dbBytes []byte, m *Manifest, signingKey []byte) (*VerifiedDB, error) {
	if err := Verify(dbBytes, m, signingKey); err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(dbBytes, &entries); err != nil {
		return nil, fmt.Errorf("manifest: parse database: %w", err)
	}
	return &VerifiedDB{
		Entries:    entries,
		Manifest:   m,
		dbBytes:    dbBytes,
		signingKey: signingKey,
	}, nil
}

// Ensure re-verifies the manifest's hash, signature, and expiry against
// the bytes captured at Load time, so callers can cheaply confirm a
// database is still good without paying for a full re-parse on every scan.
func (v *VerifiedDB) Ensure() error {
	return Verify(v.dbBytes, v.Manifest, v.signingKey)
}

// EvaluatedPoint decodes one entry's phash field into a curve point.
func (e Entry) EvaluatedPoint() (*curve.Point, error) {
	return curve.PointFromHex(e.PHash)
}
