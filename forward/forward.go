// Package forward defines the core interfaces and types for renderflow
// progress-event sinks. Each sink implementation (kafka, rabbitmq, nats,
// etc.) lives in its own sub-package and registers itself with the forward
// registry. A sink is the outbound side of the progress pipeline: classified
// events leave the process through it.
package forward

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Sink is the outbound endpoint produced by a builder. Publisher is always
// set. Subscriber is only set by in-process sinks (the channel sink) so
// tests and local consumers can read forwarded events back; network sinks
// leave it nil.
type Sink struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder is the function signature for creating a sink from config.
// Each sink package should provide a Builder function that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Sink, error)

// Config provides the configuration values needed by sinks. This interface
// allows sinks to access only the config they need without depending on the
// full config package.
type Config interface {
	// GetForwarderSystem returns the sink type name.
	GetForwarderSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string

	// HTTP
	GetHTTPPublisherURL() string
}

// CapabilitiesProvider is implemented by sinks that can report their
// capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
