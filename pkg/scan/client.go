package scan

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/avahowell/voprfscan/pkg/curve"
	"github.com/avahowell/voprfscan/pkg/dleq"
	"github.com/avahowell/voprfscan/pkg/envelope"
	"github.com/avahowell/voprfscan/pkg/manifest"
	"github.com/avahowell/voprfscan/pkg/match"
	"github.com/avahowell/voprfscan/pkg/oprf"
	"github.com/avahowell/voprfscan/pkg/phash"
	"github.com/avahowell/voprfscan/pkg/vault"
)

// ErrDBUnverified is returned when a scan is attempted before the database
// manifest backing a session has been successfully verified.
var ErrDBUnverified = errors.New("scan: database manifest not verified")

// Transport sends a client's blinded point to the server and returns the
// server's enveloped OPRF response, decoupling the orchestrator from any
// particular wire transport.
type Transport interface {
	PostBlindedPoint(blindedPointHex string) (*envelope.Envelope, error)
}

// ClientSession runs one user's scans against a verified database and a
// server public-key commitment. A session is not safe for concurrent
// scans, but the vault it writes into serializes its own writes, so a
// ClientSession may be reused sequentially for many scans.
type ClientSession struct {
	id              string
	db              *manifest.VerifiedDB
	serverPublicKey *curve.Point
	macSecret       []byte
	threshold       uint32
	vault           *vault.Vault
	transport       Transport
	logger          *log.Logger

	state State
}

// NewClientSession builds a session bound to a verified database, the
// server's published key commitment, and a transport for the network
// round trip.
func NewClientSession(db *manifest.VerifiedDB, serverPublicKey *curve.Point, macSecret []byte, threshold uint32, v *vault.Vault, transport Transport, logger *log.Logger) *ClientSession {
	if logger == nil {
		logger = log.New(log.Writer(), "[Scan] ", log.LstdFlags)
	}
	return &ClientSession{
		id:              uuid.NewString(),
		db:              db,
		serverPublicKey: serverPublicKey,
		macSecret:       macSecret,
		threshold:       threshold,
		vault:           v,
		transport:       transport,
		logger:          logger,
		state:           StateIdle,
	}
}

// Outcome is the result of a completed scan: the match result and the
// encrypted-at-rest record produced from it.
type Outcome struct {
	SessionID string
	Result    match.Result
	Encrypted *vault.EncryptedResult
}

// ScanImage drives one full pass through the client state machine: HASHING
// -> BLINDING -> AWAIT_SERVER -> VERIFY_ENV -> VERIFY_PROOF -> UNBLIND ->
// MATCH -> ENCRYPT_STORE -> IDLE. Any failure along the way moves the
// session to FAIL and returns the error; the session is reusable afterward
// since the next call resets state from StateHashing onward.
func (c *ClientSession) ScanImage(imageBytes []byte) (*Outcome, error) {
	if err := c.db.Ensure(); err != nil {
		return nil, c.fail(fmt.Errorf("%w: %v", ErrDBUnverified, err))
	}

	c.state = StateHashing
	p, err := phash.Hash(imageBytes)
	if err != nil {
		return nil, c.fail(fmt.Errorf("scan: %w", err))
	}

	c.state = StateBlinding
	blinded := oprf.Blind(p)

	c.state = StateAwaitServer
	env, err := c.transport.PostBlindedPoint(blinded.Point.Hex())
	if err != nil {
		return nil, c.fail(fmt.Errorf("scan: transport: %w", err))
	}

	c.state = StateVerifyEnv
	rawPayload, err := envelope.Unwrap(c.macSecret, env, envelope.DefaultMaxAge, envelope.DefaultFutureSlack)
	if err != nil {
		return nil, c.fail(fmt.Errorf("scan: response integrity failed: %w", err))
	}

	var payload OPRFResponsePayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, c.fail(fmt.Errorf("scan: decode response payload: %w", err))
	}

	c.state = StateVerifyProof
	evaluated, err := curve.PointFromHex(payload.EvaluatedPoint)
	if err != nil {
		return nil, c.fail(fmt.Errorf("scan: server proof invalid: %w", err))
	}
	proof, err := dleq.FromWire(payload.Proof)
	if err != nil {
		return nil, c.fail(fmt.Errorf("scan: server proof invalid: %w", err))
	}
	if err := dleq.Verify(proof, curve.Generator(), c.serverPublicKey, blinded.Point, evaluated); err != nil {
		return nil, c.fail(fmt.Errorf("scan: server proof invalid: %w", err))
	}

	c.state = StateUnblind
	token := oprf.Unblind(evaluated, blinded.R)
	zero(blinded.R.Bytes())

	c.state = StateMatch
	result, err := match.Match(token.Hex(), c.db.Entries, c.threshold)
	if err != nil {
		return nil, c.fail(fmt.Errorf("scan: %w", err))
	}

	c.state = StateEncryptStore
	enc, err := c.vault.Encrypt(result)
	if err != nil {
		return nil, c.fail(fmt.Errorf("scan: encrypt result: %w", err))
	}
	resultID := hex.EncodeToString(randomBytes(8))
	if err := c.vault.Store(resultID, enc); err != nil {
		return nil, c.fail(fmt.Errorf("scan: store result: %w", err))
	}

	c.state = StateIdle
	c.logger.Printf("session=%s scan complete matched=%v", c.id, result.Matched)

	return &Outcome{SessionID: c.id, Result: result, Encrypted: enc}, nil
}

// fail moves the session to the FAIL state, logs the cause, and returns
// the error unchanged so call sites can write "return nil, c.fail(err)".
func (c *ClientSession) fail(err error) error {
	c.state = StateFail
	c.logger.Printf("session=%s scan failed: %v", c.id, err)
	return err
}

// State reports the session's current state-machine node.
func (c *ClientSession) State() State { return c.state }

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
