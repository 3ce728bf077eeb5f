// Command dbsign signs an evaluated-phash database, producing the
// manifest JSON published alongside it.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/avahowell/voprfscan/pkg/manifest"
)

func main() {
	logger := log.New(log.Writer(), "[DBSign] ", log.LstdFlags)

	var (
		dbPath     = flag.String("db", "", "path to the evaluated-phash database JSON")
		outPath    = flag.String("out", "", "path to write the signed manifest JSON")
		signingKey = flag.String("key", "", "HMAC signing key (or set DB_SIGNING_KEY)")
		version    = flag.String("version", "v1", "database version tag")
	)
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		logger.Fatalf("usage: dbsign -db <path> -out <path> [-key <key>] [-version <v>]")
	}

	key := *signingKey
	if key == "" {
		key = os.Getenv("DB_SIGNING_KEY")
	}
	if key == "" {
		logger.Fatalf("no signing key: pass -key or set DB_SIGNING_KEY")
	}

	dbBytes, err := os.ReadFile(*dbPath)
	if err != nil {
		logger.Fatalf("read database: %v", err)
	}

	var entries []manifest.Entry
	if err := json.Unmarshal(dbBytes, &entries); err != nil {
		logger.Fatalf("parse database: %v", err)
	}
	digest, err := manifest.ShardDigest(entries)
	if err != nil {
		logger.Fatalf("compute shard digest: %v", err)
	}
	logger.Printf("database has %d entries, shard digest %s", len(entries), digest)

	m := manifest.Sign(dbBytes, []byte(key), *version)

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		logger.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(*outPath, out, 0o644); err != nil {
		logger.Fatalf("write manifest: %v", err)
	}

	logger.Printf("signed manifest written to %s (hash=%s)", *outPath, m.Hash)
}
