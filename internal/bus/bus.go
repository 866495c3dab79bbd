package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/welfareshield/internal/domain"
)

// New creates a new event bus based on configuration.
// For Community edition: returns ChannelBus.
// For Pro edition: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// PublishJSON encodes event as JSON and publishes it.
func PublishJSON(ctx context.Context, b domain.EventBus, stream, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}
	return b.Publish(ctx, stream, topic, payload)
}
