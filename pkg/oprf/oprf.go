// Package oprf implements the client-blind / server-evaluate / client-unblind
// dance of the verifiable OPRF protocol over the P-256 blinded-point
// construction.
package oprf

import (
	"github.com/avahowell/voprfscan/pkg/curve"
)

// Blinded is the result of blinding a pHash: the point to send over the
// wire, and the scalar the client must retain to unblind the response.
type Blinded struct {
	Point *curve.Point
	R     *curve.Scalar
}

// Blind samples a fresh blinding scalar r and returns P' = r*H(p), where
// H is the hash-to-curve map over the raw bytes of the hex-encoded pHash.
func Blind(phashHex string) *Blinded {
	p := curve.HashToCurve([]byte(phashHex))
	r := curve.RandomScalar()
	return &Blinded{
		Point: p.Mult(r),
		R:     r,
	}
}

// EvaluateServer computes Q = k*P' for a blinded point received from a
// client. It is the server's only OPRF operation; k never leaves the
// caller's process.
func EvaluateServer(blindedPoint *curve.Point, k *curve.Scalar) *curve.Point {
	return blindedPoint.Mult(k)
}

// Unblind removes the blinding factor from the server's evaluation,
// producing the final PRF output token = r^-1 * Q = k*H(p).
func Unblind(evaluated *curve.Point, r *curve.Scalar) *curve.Point {
	rInv := r.Invert()
	return evaluated.Mult(rInv)
}
