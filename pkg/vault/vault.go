// Package vault implements session-scoped authenticated encryption of scan
// results at rest: AES-256-GCM under a session key. The derived AES key is
// held only in memory; the raw key material it is derived from is kept in
// the same kvstore.KV that holds the encrypted results, under a fixed slot,
// so it is only as volatile as that store.
//
// Raw session key material is never used directly as a cryptographic key:
// the 32 bytes read from the session slot (or freshly generated) are
// always passed through HKDF-SHA-256 before becoming the AES-256-GCM key.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
	"crypto/sha256"

	"github.com/avahowell/voprfscan/pkg/canon"
	"github.com/avahowell/voprfscan/pkg/kvstore"
)

// sessionKeySlot is the well-known slot name for the raw session key
// material.
const sessionKeySlot = "session_aes_key"

// resultKeyPrefix is the fixed prefix for stored results.
const resultKeyPrefix = "result_"

var (
	// ErrAuthFailure is returned when GCM authentication fails (tampered
	// ciphertext, wrong key, or wrong IV).
	ErrAuthFailure = errors.New("vault: authentication failure")
	// ErrCorruptBlob is returned when the encrypted result is structurally
	// invalid (bad base64, wrong lengths) rather than merely unauthenticated.
	ErrCorruptBlob = errors.New("vault: corrupt encrypted blob")
)

// EncryptedResult is the at-rest wire format.
type EncryptedResult struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Timestamp  int64  `json:"timestamp"`
}

// nowFunc is overridable in tests.
var nowFunc = func() time.Time { return time.Now() }

// Vault ties a session's AES key (single-writer, multi-reader) to a
// durable key-value sink for encrypted results.
type Vault struct {
	mu    sync.Mutex
	store kvstore.KV
	key   []byte // derived 32-byte AES-256-GCM key, nil until first use
}

// New builds a Vault over the given sink. The session key is not
// materialized until the first Encrypt/Decrypt call.
func New(store kvstore.KV) *Vault {
	return &Vault{store: store}
}

// ensureKey loads the session key from its well-known slot, or generates
// and persists a fresh one via CSPRNG if absent or unparsable. Must be
// called with v.mu held.
func (v *Vault) ensureKey() ([]byte, error) {
	if v.key != nil {
		return v.key, nil
	}

	if raw, ok := v.store.Get(sessionKeySlot); ok && len(raw) == 32 {
		v.key = deriveAESKey(raw)
		return v.key, nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("vault: generate session key: %w", err)
	}
	v.store.Set(sessionKeySlot, raw)
	v.key = deriveAESKey(raw)
	return v.key, nil
}

// deriveAESKey runs raw session key material through HKDF-SHA-256 before
// it becomes the actual AES-256-GCM key.
func deriveAESKey(raw []byte) []byte {
	out := make([]byte, 32)
	kdf := hkdf.New(sha256.New, raw, nil, []byte("voprfscan-result-vault-v1"))
	if _, err := kdf.Read(out); err != nil {
		panic("vault: hkdf expansion failed: " + err.Error())
	}
	return out
}

// Encrypt canonically serializes obj, encrypts it under the session key
// with a fresh 12-byte IV, and returns the base64-wrapped result.
func (v *Vault) Encrypt(obj interface{}) (*EncryptedResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.ensureKey()
	if err != nil {
		return nil, err
	}

	plaintext, err := canon.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("vault: marshal payload: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: new gcm: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("vault: generate iv: %w", err)
	}

	ciphertext := gcm.Seal(nil, iv, plaintext, nil)

	return &EncryptedResult{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Timestamp:  nowFunc().UnixMilli(),
	}, nil
}

// Decrypt reverses Encrypt, unmarshaling the authenticated plaintext into
// out (a pointer).
func (v *Vault) Decrypt(enc *EncryptedResult, out interface{}) error {
	v.mu.Lock()
	key, err := v.ensureKey()
	v.mu.Unlock()
	if err != nil {
		return err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(enc.Ciphertext)
	if err != nil {
		return fmt.Errorf("%w: ciphertext: %v", ErrCorruptBlob, err)
	}
	iv, err := base64.StdEncoding.DecodeString(enc.IV)
	if err != nil {
		return fmt.Errorf("%w: iv: %v", ErrCorruptBlob, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("%w: cipher init: %v", ErrCorruptBlob, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("%w: gcm init: %v", ErrCorruptBlob, err)
	}
	if len(iv) != gcm.NonceSize() {
		return fmt.Errorf("%w: bad iv length", ErrCorruptBlob)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return ErrAuthFailure
	}

	return json.Unmarshal(plaintext, out)
}

// Store persists an already-encrypted result under result_<id>.
func (v *Vault) Store(id string, enc *EncryptedResult) error {
	raw, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("vault: marshal encrypted result: %w", err)
	}
	v.store.Set(resultKeyPrefix+id, raw)
	return nil
}

// Load retrieves a previously stored encrypted result by id.
func (v *Vault) Load(id string) (*EncryptedResult, bool, error) {
	raw, ok := v.store.Get(resultKeyPrefix + id)
	if !ok {
		return nil, false, nil
	}
	var enc EncryptedResult
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrCorruptBlob, err)
	}
	return &enc, true, nil
}

// ClearAll removes every stored result and zeroes the in-memory session
// key.
func (v *Vault) ClearAll() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, k := range v.store.Keys(resultKeyPrefix) {
		v.store.Delete(k)
	}
	v.store.Delete(sessionKeySlot)
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
}
