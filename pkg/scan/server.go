package scan

import (
	"fmt"
	"log"

	"github.com/avahowell/voprfscan/pkg/curve"
	"github.com/avahowell/voprfscan/pkg/dleq"
	"github.com/avahowell/voprfscan/pkg/envelope"
	"github.com/avahowell/voprfscan/pkg/oprf"
	"github.com/avahowell/voprfscan/pkg/textscan"
)

// ServerConfig holds the server's process-wide immutable state: the OPRF
// secret k, its derived public commitment K, the MAC secret for response
// envelopes, and the compiled text-scan keyword lists. It is built once at
// startup and passed into handlers rather than held as an ambient mutable
// global.
type ServerConfig struct {
	K         *curve.Scalar // secret scalar, never serialized
	PublicKey *curve.Point  // K = k*G, safe to publish
	MACSecret []byte
	TextScan  *textscan.Scanner
	Logger    *log.Logger
}

// NewServerConfig derives the public key commitment from k and builds a
// ServerConfig. The secret never leaves this call. textScanner may be nil
// if the deployment serves no text-scan traffic.
func NewServerConfig(k *curve.Scalar, macSecret []byte, textScanner *textscan.Scanner, logger *log.Logger) *ServerConfig {
	if logger == nil {
		logger = log.New(log.Writer(), "[Scan] ", log.LstdFlags)
	}
	return &ServerConfig{
		K:         k,
		PublicKey: curve.Generator().Mult(k),
		MACSecret: macSecret,
		TextScan:  textScanner,
		Logger:    logger,
	}
}

// ScanText runs the text-scan collaborator against the given string and
// wraps its {status, detail} result in a MAC envelope. No cryptographic
// machinery beyond the envelope participates.
func (s *ServerConfig) ScanText(text string) (*envelope.Envelope, error) {
	result := s.TextScan.Scan(text)

	env, err := envelope.Wrap(s.MACSecret, result)
	if err != nil {
		return nil, fmt.Errorf("scan: wrap text-scan response: %w", err)
	}
	return env, nil
}

// OPRFResponsePayload is the {evaluatedPoint, proof} shape carried inside
// the response envelope.
type OPRFResponsePayload struct {
	EvaluatedPoint string    `json:"evaluatedPoint"`
	Proof          dleq.Wire `json:"proof"`
}

// KeyCommitment is the static artifact served at
// /server_key_commitment.json.
type KeyCommitment struct {
	PublicKey string `json:"publicKey"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

// EvaluateBlinded runs the server's half of one OPRF exchange: decode the
// client's blinded point, evaluate it under k, build a DLEQ proof binding
// the evaluation to the published commitment, and wrap the response in a
// MAC envelope. No per-client state is read or written.
func (s *ServerConfig) EvaluateBlinded(blindedPointHex string) (*envelope.Envelope, error) {
	blindedPoint, err := curve.PointFromHex(blindedPointHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", curve.ErrBadPoint, err)
	}

	evaluated := oprf.EvaluateServer(blindedPoint, s.K)
	proof := dleq.Prove(s.K, curve.Generator(), s.PublicKey, blindedPoint, evaluated)

	payload := OPRFResponsePayload{
		EvaluatedPoint: evaluated.Hex(),
		Proof:          proof.ToWire(),
	}

	env, err := envelope.Wrap(s.MACSecret, payload)
	if err != nil {
		return nil, fmt.Errorf("scan: wrap oprf response: %w", err)
	}

	s.Logger.Printf("evaluated blinded point, proof issued")
	return env, nil
}
