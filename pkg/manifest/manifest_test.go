package manifest

import (
	"encoding/json"
	"testing"
	"time"
)

func sampleDB() []byte {
	entries := []Entry{
		{File: "known-bad-1.jpg", PHash: "02aabbccdd"},
		{File: "known-bad-2.jpg", PHash: "03eeff0011"},
	}
	raw, _ := json.Marshal(entries)
	return raw
}

// verify that a freshly signed manifest verifies against its database.
func TestSignVerifyRoundTrip(t *testing.T) {
	key := []byte("signing-key")
	db := sampleDB()

	m := Sign(db, key, "v1")
	if err := Verify(db, m, key); err != nil {
		t.Fatal(err)
	}
}

// verify that a modified database is rejected.
func TestVerifyRejectsModifiedDB(t *testing.T) {
	key := []byte("signing-key")
	db := sampleDB()
	m := Sign(db, key, "v1")

	tampered := append([]byte{}, db...)
	tampered[0] ^= 0xff

	if err := Verify(tampered, m, key); err != ErrDBHashMismatch {
		t.Fatalf("expected ErrDBHashMismatch, got %v", err)
	}
}

// verify that a manifest signed under a different key is rejected.
func TestVerifyRejectsWrongKey(t *testing.T) {
	db := sampleDB()
	m := Sign(db, []byte("key-a"), "v1")

	if err := Verify(db, m, []byte("key-b")); err != ErrDBSigMismatch {
		t.Fatalf("expected ErrDBSigMismatch, got %v", err)
	}
}

// verify that a manifest older than MaxAge is rejected.
func TestVerifyRejectsExpired(t *testing.T) {
	key := []byte("signing-key")
	db := sampleDB()
	base := time.Unix(1700000000, 0)

	nowFunc = func() time.Time { return base }
	m := Sign(db, key, "v1")

	nowFunc = func() time.Time { return base.Add(MaxAge + time.Hour) }
	defer func() { nowFunc = func() time.Time { return time.Now() } }()

	if err := Verify(db, m, key); err != ErrDBExpired {
		t.Fatalf("expected ErrDBExpired, got %v", err)
	}
}

// verify that a manifest exactly at the MaxAge boundary still verifies.
func TestVerifyAcceptsAtBoundary(t *testing.T) {
	key := []byte("signing-key")
	db := sampleDB()
	base := time.Unix(1700000000, 0)

	nowFunc = func() time.Time { return base }
	m := Sign(db, key, "v1")

	nowFunc = func() time.Time { return base.Add(MaxAge) }
	defer func() { nowFunc = func() time.Time { return time.Now() } }()

	if err := Verify(db, m, key); err != nil {
		t.Fatalf("expected manifest to still verify at the boundary, got %v", err)
	}
}

// verify that Load rejects a database whose manifest does not verify, and
// that Ensure re-checks on the already-loaded bytes.
func TestLoadAndEnsure(t *testing.T) {
	key := []byte("signing-key")
	db := sampleDB()
	m := Sign(db, key, "v1")

	vdb, err := Load(db, m, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(vdb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(vdb.Entries))
	}
	if err := vdb.Ensure(); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(db, m, []byte("wrong-key")); err != ErrDBSigMismatch {
		t.Fatalf("expected ErrDBSigMismatch, got %v", err)
	}
}

// verify that ShardDigest is deterministic for identical entries.
func TestShardDigestDeterministic(t *testing.T) {
	entries := []Entry{{File: "a", PHash: "01"}, {File: "b", PHash: "02"}}
	d1, err := ShardDigest(entries)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := ShardDigest(entries)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Fatal("ShardDigest is not deterministic")
	}
}
