package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels or NATS.
// Messages are scoped by stream; the audit stream carries events of every
// session and the session ID travels in the payload.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, stream string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, stream string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Stream    string            `json:"stream"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `json:"type" yaml:"type"`

	// Channel settings
	ChannelBufferSize int `json:"channelBufferSize" yaml:"channelBufferSize"`

	// NATS settings
	NATSUrl           string `json:"natsUrl" yaml:"natsUrl"`
	NATSToken         string `json:"-" yaml:"natsToken"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" yaml:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" yaml:"natsReconnectWait"` // seconds

	// NATSQueueGroup load-balances subscribers across instances, so each
	// audit event is recorded once. Empty fans out to every subscriber.
	NATSQueueGroup string `json:"natsQueueGroup" yaml:"natsQueueGroup"`
}

// AuditStream is the stream every session publishes audit events to.
const AuditStream = "_audit"

// Standard topic names.
const (
	TopicProfileViewed = "profile.viewed"
	TopicSnapshotReset = "snapshot.reset"
)

// SnapshotResetEvent is published when a session regenerates its data.
type SnapshotResetEvent struct {
	SessionID     string `json:"sessionId"`
	Seed          uint64 `json:"seed"`
	Generation    int    `json:"generation"`
	Beneficiaries int    `json:"beneficiaries"`
	Transactions  int    `json:"transactions"`
}
