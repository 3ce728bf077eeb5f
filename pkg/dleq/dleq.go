// Package dleq implements the non-interactive Chaum-Pedersen discrete-log
// equality proof used to make the OPRF verifiable: a Fiat-Shamir-
// transformed two-generator Schnorr proof that log_G(K) = log_P'(Q).
//
// The prover commits with a fresh nonce against both generators, derives
// the challenge from the transcript, and responds linearly in the secret.
package dleq

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/avahowell/voprfscan/pkg/curve"
)

// ErrChallengeMismatch is returned when the recomputed Fiat-Shamir
// challenge does not match the one carried in the proof.
var ErrChallengeMismatch = errors.New("dleq: challenge mismatch")

// ErrEqG is returned when the proof fails the s*G == R1 + c*K check.
var ErrEqG = errors.New("dleq: s*G != R1 + c*K")

// ErrEqP is returned when the proof fails the s*P' == R2 + c*Q check.
var ErrEqP = errors.New("dleq: s*P' != R2 + c*Q")

// Proof asserts knowledge of k such that K = k*G and Q = k*P', without
// revealing k.
type Proof struct {
	Challenge  *curve.Scalar
	Response   *curve.Scalar
	Commitment [2]*curve.Point // R1, R2
}

// Prove generates a DLEQ proof for the tuple (G, K, P', Q) using secret k,
// where K = k*G and Q = k*P'.
func Prove(k *curve.Scalar, g, pubK, blindedPoint, evaluated *curve.Point) *Proof {
	rho := curve.RandomScalar()
	r1 := g.Mult(rho)
	r2 := blindedPoint.Mult(rho)

	c := challenge(g, pubK, blindedPoint, evaluated, r1, r2)

	// s = rho + c*k (mod n)
	s := rho.Add(c.Mul(k))

	return &Proof{
		Challenge:  c,
		Response:   s,
		Commitment: [2]*curve.Point{r1, r2},
	}
}

// Verify checks a DLEQ proof against the public tuple (G, K, P', Q).
func Verify(proof *Proof, g, pubK, blindedPoint, evaluated *curve.Point) error {
	r1, r2 := proof.Commitment[0], proof.Commitment[1]

	cPrime := challenge(g, pubK, blindedPoint, evaluated, r1, r2)
	if !cPrime.Equal(proof.Challenge) {
		return ErrChallengeMismatch
	}

	// s*G == R1 + c*K
	lhsG := g.Mult(proof.Response)
	rhsG := r1.Add(pubK.Mult(proof.Challenge))
	if !lhsG.Equal(rhsG) {
		return ErrEqG
	}

	// s*P' == R2 + c*Q
	lhsP := blindedPoint.Mult(proof.Response)
	rhsP := r2.Add(evaluated.Mult(proof.Challenge))
	if !lhsP.Equal(rhsP) {
		return ErrEqP
	}

	return nil
}

// challenge computes c = SHA-256(hex(G) || hex(K) || hex(P') || hex(Q) ||
// hex(R1) || hex(R2)) mod n. This exact byte layout is part of the wire
// contract and must not be reordered.
func challenge(g, pubK, blindedPoint, evaluated, r1, r2 *curve.Point) *curve.Scalar {
	h := sha256.New()
	for _, p := range []*curve.Point{g, pubK, blindedPoint, evaluated, r1, r2} {
		h.Write([]byte(p.Hex()))
	}
	digest := h.Sum(nil)
	return curve.ScalarFromWideBytes(digest)
}

// Wire is the JSON-serializable {challenge, response, commitment} form of
// a Proof.
type Wire struct {
	Challenge  string `json:"challenge"`
	Response   string `json:"response"`
	Commitment string `json:"commitment"`
}

// ToWire renders the proof in its transport form.
func (p *Proof) ToWire() Wire {
	return Wire{
		Challenge:  p.Challenge.Hex(),
		Response:   p.Response.Hex(),
		Commitment: p.EncodeCommitment(),
	}
}

// FromWire parses a transport-form proof.
func FromWire(w Wire) (*Proof, error) {
	c, err := curve.ScalarFromHex(w.Challenge)
	if err != nil {
		return nil, fmt.Errorf("dleq: challenge: %w", err)
	}
	s, err := curve.ScalarFromHex(w.Response)
	if err != nil {
		return nil, fmt.Errorf("dleq: response: %w", err)
	}
	r1, r2, err := DecodeCommitment(w.Commitment)
	if err != nil {
		return nil, err
	}
	return &Proof{Challenge: c, Response: s, Commitment: [2]*curve.Point{r1, r2}}, nil
}

// EncodeCommitment renders the proof's two commitment points as
// "hex1|hex2".
func (p *Proof) EncodeCommitment() string {
	return p.Commitment[0].Hex() + "|" + p.Commitment[1].Hex()
}

// DecodeCommitment parses the "hex1|hex2" wire format back into two points.
func DecodeCommitment(s string) (r1, r2 *curve.Point, err error) {
	parts := strings.SplitN(s, "|", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("dleq: malformed commitment %q", s)
	}
	r1, err = curve.PointFromHex(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("dleq: commitment R1: %w", err)
	}
	r2, err = curve.PointFromHex(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("dleq: commitment R2: %w", err)
	}
	return r1, r2, nil
}
