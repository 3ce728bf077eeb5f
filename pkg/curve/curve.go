// Package curve wraps the NIST P-256 group operations needed by the OPRF
// and DLEQ layers: scalar sampling, scalar inversion, point multiplication,
// hash-to-curve, and compressed SEC1 (de)serialization. It is a thin
// adapter over github.com/bytemare/crypto's group/scalar/element
// abstraction, configured for the P-256 ciphersuite.
//
// No operation here branches on the value of a secret scalar or point; all
// arithmetic is delegated to bytemare/crypto, which implements the NIST
// curves with constant-time primitives.
package curve

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/bytemare/crypto"
)

// Suite is the P256_XMD:SHA-256_SSWU_RO_ ciphersuite this protocol is
// pinned to: databases produced under this suite are only interoperable
// with other implementations of the same suite.
const Suite = crypto.P256Sha256

// domainSeparationTag binds hash-to-curve calls to this protocol so that
// the same pHash bytes hashed for a different purpose never collide with
// the OPRF input space.
const domainSeparationTag = "VOPRF-IMAGESCAN-P256-V1"

// Order is the P-256 group order n (NIST FIPS 186-4), spelled out here
// rather than read out of a library constant so the Fiat-Shamir reduction
// below is auditable on its own.
var Order, _ = new(big.Int).SetString("FFFFFFFF00000000FFFFFFFFFFFFFFFFBCE6FAADA7179E84F3B9CAC2FC632551", 16)

// scalarByteLen is the fixed big-endian encoding length of a P-256 scalar.
const scalarByteLen = 32

// ErrBadPoint is returned when a hex string fails to decode to a valid,
// non-identity P-256 point.
var ErrBadPoint = errors.New("curve: invalid or infinite point")

// ErrBadScalar is returned when a hex string fails to decode to a valid
// scalar, or decodes to zero where a non-zero scalar is required.
var ErrBadScalar = errors.New("curve: invalid or zero scalar")

// Scalar is an integer modulo the P-256 group order.
type Scalar struct {
	s *crypto.Scalar
}

// Point is a P-256 affine point, guaranteed non-identity once constructed
// via NewPoint, DecodePoint, or HashToCurve.
type Point struct {
	e *crypto.Element
}

// Generator returns the standard P-256 base point G, pinned from the
// library's NIST constant rather than derived by multiplying an arbitrary
// point by the scalar 1.
func Generator() *Point {
	return &Point{e: Suite.Base()}
}

// RandomScalar samples a scalar uniformly from [1, n).
func RandomScalar() *Scalar {
	for {
		s := Suite.NewScalar().Random()
		if !s.IsZero() {
			return &Scalar{s: s}
		}
	}
}

// Invert returns the modular inverse of s mod n. s must be non-zero.
func (s *Scalar) Invert() *Scalar {
	return &Scalar{s: s.s.Copy().Invert()}
}

// Add returns s + o mod n.
func (s *Scalar) Add(o *Scalar) *Scalar {
	return &Scalar{s: s.s.Copy().Add(o.s)}
}

// Mul returns s * o mod n.
func (s *Scalar) Mul(o *Scalar) *Scalar {
	return &Scalar{s: s.s.Copy().Multiply(o.s)}
}

// ScalarFromWideBytes reduces an arbitrary-length big-endian byte string
// (typically a hash digest) modulo the group order n and returns the
// resulting scalar. Used by pkg/dleq to turn a SHA-256 transcript digest
// into the Fiat-Shamir challenge scalar via a bare "digest mod n"
// reduction, rather than a domain-separated hash-to-scalar construction.
func ScalarFromWideBytes(digest []byte) *Scalar {
	i := new(big.Int).SetBytes(digest)
	i.Mod(i, Order)

	b := make([]byte, scalarByteLen)
	i.FillBytes(b)

	sc := Suite.NewScalar()
	if err := sc.Decode(b); err != nil || sc.IsZero() {
		// A zero challenge has negligible probability and would indicate a
		// broken hash; fall back to a freshly sampled random scalar rather
		// than panicking mid-protocol. That fallback is not reproducible, so
		// a verifier's recomputed challenge will not match it.
		sc = Suite.NewScalar().Random()
	}
	return &Scalar{s: sc}
}

// Equal reports whether two scalars are equal.
func (s *Scalar) Equal(o *Scalar) bool {
	return s.s.Equal(o.s) == 1
}

// Bytes returns the fixed-length big-endian encoding of the scalar.
func (s *Scalar) Bytes() []byte {
	return s.s.Encode()
}

// Hex renders the scalar as lowercase hex.
func (s *Scalar) Hex() string {
	return hex.EncodeToString(s.Bytes())
}

// ScalarFromHex decodes a hex-encoded scalar, rejecting zero.
func ScalarFromHex(h string) (*Scalar, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadScalar, err)
	}
	s := Suite.NewScalar()
	if err := s.Decode(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadScalar, err)
	}
	if s.IsZero() {
		return nil, ErrBadScalar
	}
	return &Scalar{s: s}, nil
}

// HashToCurve maps an arbitrary byte string to a P-256 point using the
// RFC 9380 P256_XMD:SHA-256_SSWU_RO_ suite, modeled as a random oracle.
func HashToCurve(input []byte) *Point {
	return &Point{e: Suite.HashToGroup(input, []byte(domainSeparationTag))}
}

// Mult returns p multiplied by scalar s.
func (p *Point) Mult(s *Scalar) *Point {
	return &Point{e: p.e.Copy().Multiply(s.s)}
}

// Add returns the sum of two points.
func (p *Point) Add(o *Point) *Point {
	return &Point{e: p.e.Copy().Add(o.e)}
}

// Equal reports whether two points are equal.
func (p *Point) Equal(o *Point) bool {
	return p.e.Equal(o.e) == 1
}

// Bytes returns the 33-byte compressed SEC1 encoding of the point.
func (p *Point) Bytes() []byte {
	return p.e.Encode()
}

// Hex renders the point as lowercase compressed SEC1 hex, the wire format
// used throughout the protocol.
func (p *Point) Hex() string {
	return hex.EncodeToString(p.Bytes())
}

// NewPoint builds a Point from its compressed SEC1 encoding, rejecting the
// point at infinity.
func NewPoint(compressed []byte) (*Point, error) {
	e := Suite.NewElement()
	if err := e.Decode(compressed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPoint, err)
	}
	if e.IsIdentity() {
		return nil, ErrBadPoint
	}
	return &Point{e: e}, nil
}

// PointFromHex decodes a hex-encoded compressed SEC1 point.
func PointFromHex(h string) (*Point, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPoint, err)
	}
	return NewPoint(b)
}
