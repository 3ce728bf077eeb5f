package dleq

import (
	"testing"

	"github.com/avahowell/voprfscan/pkg/curve"
)

// verify that an honestly generated proof verifies.
func TestProveVerify(t *testing.T) {
	k := curve.RandomScalar()
	g := curve.Generator()
	pubK := g.Mult(k)

	blindedPoint := curve.HashToCurve([]byte("some blinded input"))
	evaluated := blindedPoint.Mult(k)

	proof := Prove(k, g, pubK, blindedPoint, evaluated)
	if err := Verify(proof, g, pubK, blindedPoint, evaluated); err != nil {
		t.Fatal(err)
	}
}

// verify that a proof generated under a different secret key fails.
func TestVerifyRejectsWrongKey(t *testing.T) {
	k := curve.RandomScalar()
	wrongK := curve.RandomScalar()
	g := curve.Generator()
	pubK := g.Mult(k)

	blindedPoint := curve.HashToCurve([]byte("some blinded input"))
	evaluated := blindedPoint.Mult(wrongK) // evaluated under the wrong key

	proof := Prove(wrongK, g, g.Mult(wrongK), blindedPoint, evaluated)

	// Verify against the real pubK, not the one the proof was made for.
	if err := Verify(proof, g, pubK, blindedPoint, evaluated); err == nil {
		t.Fatal("expected verification failure against mismatched public key")
	}
}

// verify that tampering with the response scalar is detected.
func TestVerifyRejectsTamperedResponse(t *testing.T) {
	k := curve.RandomScalar()
	g := curve.Generator()
	pubK := g.Mult(k)
	blindedPoint := curve.HashToCurve([]byte("input"))
	evaluated := blindedPoint.Mult(k)

	proof := Prove(k, g, pubK, blindedPoint, evaluated)
	proof.Response = curve.RandomScalar()

	if err := Verify(proof, g, pubK, blindedPoint, evaluated); err == nil {
		t.Fatal("expected verification failure on tampered response")
	}
}

// verify that the wire encoding round-trips.
func TestWireRoundTrip(t *testing.T) {
	k := curve.RandomScalar()
	g := curve.Generator()
	pubK := g.Mult(k)
	blindedPoint := curve.HashToCurve([]byte("input"))
	evaluated := blindedPoint.Mult(k)

	proof := Prove(k, g, pubK, blindedPoint, evaluated)
	wire := proof.ToWire()

	decoded, err := FromWire(wire)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(decoded, g, pubK, blindedPoint, evaluated); err != nil {
		t.Fatal(err)
	}
}

// verify that a malformed commitment string is rejected.
func TestDecodeCommitmentRejectsMalformed(t *testing.T) {
	if _, _, err := DecodeCommitment("not-a-valid-commitment"); err == nil {
		t.Fatal("expected error decoding malformed commitment")
	}
}
