// Package config loads the server's environment-driven configuration with
// a Load()/Validate() split: Load fills in development placeholders and
// fails only on an unparsable SERVER_OPRF_KEY; Validate always rejects a
// missing OPRF key, and rejects the placeholders when running in
// production.
package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/avahowell/voprfscan/pkg/curve"
)

// devSigningKeyPlaceholder and devMacSecretPlaceholder are development-
// only defaults: deployments must supply real secrets, and Validate
// rejects these placeholders when Production is set.
const (
	devMacSecretPlaceholder  = "dev-mac-secret-do-not-use-in-production"
	devSigningKeyPlaceholder = "dev-db-signing-key-do-not-use-in-production"
	defaultListenAddr        = ":8080"
	defaultDBPath            = "eHashes/evaluated_phashes.json"
	defaultDBSignaturePath   = "eHashes/database_signature.json"
	defaultKeyCommitmentPath = "server_key_commitment.json"
	defaultBlockingKeywords  = "bomb,explosive,malware"
	defaultWarningKeywords   = "suspicious,weapon"
)

// Config holds the server's runtime configuration.
type Config struct {
	// OPRFKey is the server's secret scalar k; required in production.
	OPRFKey *curve.Scalar

	// MACSecret is the HMAC key for the response envelope.
	MACSecret []byte

	// DBSigningKey is the HMAC key for the database manifest.
	DBSigningKey []byte

	ListenAddr        string
	DBPath            string
	DBSignaturePath   string
	KeyCommitmentPath string

	// BlockingKeywords and WarningKeywords seed the text-scan collaborator.
	BlockingKeywords []string
	WarningKeywords  []string

	// Production gates the placeholder-secret rejection in Validate.
	Production bool
}

// Load reads configuration from the environment. It does not itself
// reject insecure development defaults; call Validate for that, so that
// tests and local tooling can still run with SERVER_OPRF_KEY unset.
func Load() (*Config, error) {
	cfg := &Config{
		MACSecret:         []byte(getEnvOr("MAC_SECRET", devMacSecretPlaceholder)),
		DBSigningKey:      []byte(getEnvOr("DB_SIGNING_KEY", devSigningKeyPlaceholder)),
		ListenAddr:        getEnvOr("LISTEN_ADDR", defaultListenAddr),
		DBPath:            getEnvOr("DB_PATH", defaultDBPath),
		DBSignaturePath:   getEnvOr("DB_SIGNATURE_PATH", defaultDBSignaturePath),
		KeyCommitmentPath: getEnvOr("KEY_COMMITMENT_PATH", defaultKeyCommitmentPath),
		BlockingKeywords:  splitCSV(getEnvOr("BLOCKING_KEYWORDS", defaultBlockingKeywords)),
		WarningKeywords:   splitCSV(getEnvOr("WARNING_KEYWORDS", defaultWarningKeywords)),
		Production:        os.Getenv("ENVIRONMENT") == "production",
	}

	if raw := os.Getenv("SERVER_OPRF_KEY"); raw != "" {
		k, err := curve.ScalarFromHex(hexOrDecimal(raw))
		if err != nil {
			return nil, fmt.Errorf("config: invalid SERVER_OPRF_KEY: %w", err)
		}
		cfg.OPRFKey = k
	}

	return cfg, nil
}

// Validate enforces the production requirements: a real OPRF key and
// non-placeholder secrets.
func (c *Config) Validate() error {
	if c.OPRFKey == nil {
		return fmt.Errorf("config: SERVER_OPRF_KEY is required")
	}
	if c.Production {
		if string(c.MACSecret) == devMacSecretPlaceholder {
			return fmt.Errorf("config: MAC_SECRET must be set in production")
		}
		if string(c.DBSigningKey) == devSigningKeyPlaceholder {
			return fmt.Errorf("config: DB_SIGNING_KEY must be set in production")
		}
	}
	return nil
}

func getEnvOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated keyword list, trimming whitespace and
// dropping empty entries.
func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hexOrDecimal accepts SERVER_OPRF_KEY either as a decimal string or as
// hex, decoding decimal into the hex form curve.ScalarFromHex expects.
func hexOrDecimal(raw string) string {
	for _, c := range raw {
		if c < '0' || c > '9' {
			return raw // already hex (or garbage, which ScalarFromHex will reject)
		}
	}
	i, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	b := make([]byte, 32)
	i.FillBytes(b)
	return hex.EncodeToString(b)
}
