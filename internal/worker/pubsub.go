package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/sensor"
)

// PubSubHandler consumes sample batches from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	samples          *sensor.Service
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	Config  Config
	Samples *sensor.Service
	Logger  zerolog.Logger
}

// SampleMessage is the wire format published by field gateways. A message
// carries either a batch or, for older gateway firmware, a single sample at
// the top level.
type SampleMessage struct {
	Samples []sensor.RawPayload `json:"samples,omitempty"`

	// Single-sample fallback fields.
	sensor.RawPayload
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.Config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.Config.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.Config.MaxOutstandingMessages
	subscriber.ReceiveSettings.MaxExtension = cfg.Config.MaxExtension

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.Config.SubscriptionName,
		samples:          cfg.Samples,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. Blocks until the context is
// canceled or the subscription fails.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting ingest worker")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var sampleMsg SampleMessage
	if err := json.Unmarshal(msg.Data, &sampleMsg); err != nil {
		// Malformed messages never become parseable; ack to drop them.
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Ack()
		return
	}

	payloads := sampleMsg.Samples
	if len(payloads) == 0 {
		payloads = []sensor.RawPayload{sampleMsg.RawPayload}
	}

	stored, rejected := 0, 0
	for _, payload := range payloads {
		if _, err := h.samples.Ingest(ctx, payload); err != nil {
			if errors.Is(err, sensor.ErrValidation) {
				// Invalid samples are dropped, not redelivered.
				rejected++
				logger.Warn().Err(err).Str("device_id", payload.DeviceID).Msg("sample rejected")
				continue
			}

			// Storage failure: nack the whole message for redelivery. The
			// already-stored samples will be written again, which matches the
			// at-least-once semantics of the ingest pipeline.
			logger.Error().Err(err).Msg("sample storage failed")
			msg.Nack()
			return
		}
		stored++
	}

	logger.Info().
		Int("stored", stored).
		Int("rejected", rejected).
		Dur("duration", time.Since(startTime)).
		Msg("sample batch processed")

	msg.Ack()
}
