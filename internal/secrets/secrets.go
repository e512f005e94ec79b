// Package secrets loads process-lifetime key material from protected files.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Material holds the secrets the service needs at runtime. It is loaded once
// at startup and treated as immutable afterwards.
type Material struct {
	// SigningKey is the symmetric secret used to sign bearer tokens.
	SigningKey []byte

	// IngestAPIKey is the pre-shared key devices present on sample ingestion.
	IngestAPIKey string
}

// Config holds the file locations for key material.
type Config struct {
	// SigningKeyFile is the path to the token signing key file.
	SigningKeyFile string

	// IngestAPIKeyFile is the path to the device ingest API key file.
	IngestAPIKeyFile string
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		SigningKeyFile:   getEnvOrDefault("TOKEN_KEY_FILE", "keys/token.key"),
		IngestAPIKeyFile: getEnvOrDefault("INGEST_API_KEY_FILE", "keys/apikey"),
	}
}

// Load reads all key material from disk. A missing or empty key file is an
// error; callers are expected to treat it as fatal at startup.
func Load(cfg Config) (*Material, error) {
	signingKey, err := readKeyFile(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}

	apiKey, err := readKeyFile(cfg.IngestAPIKeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading ingest API key: %w", err)
	}

	return &Material{
		SigningKey:   []byte(signingKey),
		IngestAPIKey: apiKey,
	}, nil
}

// readKeyFile reads a single key from a file, trimming surrounding whitespace.
func readKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("key file %s is empty", path)
	}

	return key, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
