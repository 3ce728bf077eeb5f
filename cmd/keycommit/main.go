// Command keycommit derives and prints the public-key commitment for a
// server's OPRF secret, for publishing at /server_key_commitment.json.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/avahowell/voprfscan/pkg/config"
	"github.com/avahowell/voprfscan/pkg/curve"
	"github.com/avahowell/voprfscan/pkg/scan"
)

func main() {
	logger := log.New(log.Writer(), "[KeyCommit] ", log.LstdFlags)

	var (
		keyHex  = flag.String("key", "", "server OPRF secret scalar, hex (or set SERVER_OPRF_KEY, decimal or hex)")
		version = flag.String("version", "v1", "key commitment version tag")
		outPath = flag.String("out", "", "path to write the commitment JSON (default: stdout)")
	)
	flag.Parse()

	var k *curve.Scalar
	if *keyHex != "" {
		parsed, err := curve.ScalarFromHex(*keyHex)
		if err != nil {
			logger.Fatalf("parse key: %v", err)
		}
		k = parsed
	} else {
		// Same SERVER_OPRF_KEY parsing (decimal or hex) as the server.
		cfg, err := config.Load()
		if err != nil {
			logger.Fatalf("parse key: %v", err)
		}
		if cfg.OPRFKey == nil {
			logger.Fatalf("no key: pass -key or set SERVER_OPRF_KEY")
		}
		k = cfg.OPRFKey
	}

	pub := curve.Generator().Mult(k)
	commitment := scan.KeyCommitment{
		PublicKey: pub.Hex(),
		Timestamp: time.Now().UnixMilli(),
		Version:   *version,
	}

	out, err := json.MarshalIndent(commitment, "", "  ")
	if err != nil {
		logger.Fatalf("marshal commitment: %v", err)
	}

	if *outPath == "" {
		os.Stdout.Write(out)
		os.Stdout.Write([]byte("\n"))
		return
	}
	if err := os.WriteFile(*outPath, out, 0o644); err != nil {
		logger.Fatalf("write commitment: %v", err)
	}
	logger.Printf("key commitment written to %s", *outPath)
}
