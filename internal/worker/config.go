// Package worker provides the Pub/Sub sample ingestion pipeline for VitaLink.
//
// Field gateways that cannot reach the HTTP API directly publish batches of
// sensor samples to a Pub/Sub topic; the worker consumes them and writes
// through the same normalization and validation path as POST /sensor.
package worker

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the ingest worker.
type Config struct {
	// ProjectID is the Google Cloud project hosting the subscription.
	ProjectID string

	// SubscriptionName is the Pub/Sub subscription to consume.
	SubscriptionName string

	// MaxOutstandingMessages bounds concurrent message processing.
	// Default: 10
	MaxOutstandingMessages int

	// MaxExtension is how long message ack deadlines may be extended.
	// Default: 10 minutes
	MaxExtension time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	maxOutstanding, _ := strconv.Atoi(getEnvOrDefault("PUBSUB_MAX_OUTSTANDING", "10"))
	maxExtension, _ := time.ParseDuration(getEnvOrDefault("PUBSUB_MAX_EXTENSION", "10m"))

	return Config{
		ProjectID:              os.Getenv("PUBSUB_PROJECT_ID"),
		SubscriptionName:       getEnvOrDefault("PUBSUB_SUBSCRIPTION", "sensor-samples"),
		MaxOutstandingMessages: maxOutstanding,
		MaxExtension:           maxExtension,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
