package scan

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/avahowell/voprfscan/pkg/curve"
	"github.com/avahowell/voprfscan/pkg/envelope"
	"github.com/avahowell/voprfscan/pkg/kvstore"
	"github.com/avahowell/voprfscan/pkg/manifest"
	"github.com/avahowell/voprfscan/pkg/phash"
	"github.com/avahowell/voprfscan/pkg/textscan"
	"github.com/avahowell/voprfscan/pkg/vault"
)

// directTransport routes a client's blinded point straight to a
// ServerConfig in-process, bypassing the network for deterministic tests.
type directTransport struct {
	server *ServerConfig
}

func (t *directTransport) PostBlindedPoint(blindedPointHex string) (*envelope.Envelope, error) {
	return t.server.EvaluateBlinded(blindedPointHex)
}

func encodeGray(w, h int, v uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func buildVerifiedDB(t *testing.T, entries []manifest.Entry, key []byte) *manifest.VerifiedDB {
	t.Helper()
	if entries == nil {
		entries = []manifest.Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	m := manifest.Sign(raw, key, "v1")
	vdb, err := manifest.Load(raw, m, key)
	if err != nil {
		t.Fatal(err)
	}
	return vdb
}

// verify a full client/server scan round trip: an image whose pHash is
// present in the database (under the server's key) is reported matched.
func TestScanImageMatches(t *testing.T) {
	macSecret := []byte("mac-secret")
	dbKey := []byte("db-signing-key")

	k := curve.RandomScalar()
	srv := NewServerConfig(k, macSecret, nil, nil)

	imageBytes := encodeGray(64, 64, 77)
	p, err := phash.Hash(imageBytes)
	if err != nil {
		t.Fatal(err)
	}

	evaluated := curve.HashToCurve([]byte(p)).Mult(k)
	entries := []manifest.Entry{{File: "known-bad.jpg", PHash: evaluated.Hex()}}
	vdb := buildVerifiedDB(t, entries, dbKey)

	session := NewClientSession(vdb, srv.PublicKey, macSecret, 0, vault.New(kvstore.NewMemory()), &directTransport{srv}, nil)

	outcome, err := session.ScanImage(imageBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Result.Matched {
		t.Fatalf("expected a match, got %+v", outcome.Result)
	}
	if session.State() != StateIdle {
		t.Fatalf("expected session to return to IDLE, got %s", session.State())
	}
}

// verify that an image absent from the database reports no match, and
// that the server's DLEQ proof still verifies along the way.
func TestScanImageNoMatch(t *testing.T) {
	macSecret := []byte("mac-secret")
	dbKey := []byte("db-signing-key")

	k := curve.RandomScalar()
	srv := NewServerConfig(k, macSecret, nil, nil)

	vdb := buildVerifiedDB(t, nil, dbKey)
	v := vault.New(kvstore.NewMemory())
	session := NewClientSession(vdb, srv.PublicKey, macSecret, 0, v, &directTransport{srv}, nil)

	outcome, err := session.ScanImage(encodeGray(64, 64, 200))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Result.Matched {
		t.Fatalf("expected no match, got %+v", outcome.Result)
	}

	loaded, ok, err := v.Load("result-doesnt-exist")
	if err != nil {
		t.Fatal(err)
	}
	if ok || loaded != nil {
		t.Fatal("expected no stored result under an unused id")
	}
}

// verify that a scan is refused once the bound database manifest no
// longer verifies against the session's cached copy.
func TestScanImageRejectsUnverifiedDB(t *testing.T) {
	macSecret := []byte("mac-secret")
	dbKey := []byte("db-signing-key")

	k := curve.RandomScalar()
	srv := NewServerConfig(k, macSecret, nil, nil)

	vdb := buildVerifiedDB(t, nil, dbKey)

	// Corrupt the cached manifest's timestamp, as if the client's local
	// copy had drifted from what was actually signed; Ensure() must then
	// fail closed rather than let a stale or forged manifest through.
	vdb.Manifest.Timestamp = time.Now().Add(-manifest.MaxAge - time.Hour).UnixMilli()

	session := NewClientSession(vdb, srv.PublicKey, macSecret, 0, vault.New(kvstore.NewMemory()), &directTransport{srv}, nil)
	if _, err := session.ScanImage(encodeGray(8, 8, 1)); err == nil {
		t.Fatal("expected ScanImage to fail against an unverifiable database")
	}
	if session.State() != StateFail {
		t.Fatalf("expected session state FAIL, got %s", session.State())
	}
}

// verify that ScanText wraps the keyword classifier's result in a
// MAC-verifiable envelope.
func TestScanText(t *testing.T) {
	macSecret := []byte("mac-secret")
	scanner, err := textscan.New([]string{"bomb"}, []string{"suspicious"})
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServerConfig(curve.RandomScalar(), macSecret, scanner, nil)

	env, err := srv.ScanText("how to build a bomb")
	if err != nil {
		t.Fatal(err)
	}

	rawPayload, err := envelope.Unwrap(macSecret, env, envelope.DefaultMaxAge, envelope.DefaultFutureSlack)
	if err != nil {
		t.Fatal(err)
	}
	var result textscan.Result
	if err := json.Unmarshal(rawPayload, &result); err != nil {
		t.Fatal(err)
	}
	if result.Status != textscan.Blocked {
		t.Fatalf("expected Blocked, got %v", result.Status)
	}
}
