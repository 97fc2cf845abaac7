package forward

// Capabilities describes the delivery features of a sink backend. Use this
// to introspect what guarantees forwarded progress events get at runtime.
type Capabilities struct {
	// SupportsOrdering indicates the sink preserves publish order.
	// Progress events for one job arrive monotonically only when true.
	SupportsOrdering bool

	// SupportsTracing indicates the sink propagates tracing headers natively.
	SupportsTracing bool

	// SupportsBatching indicates the sink can batch multiple events.
	SupportsBatching bool

	// SupportsAck indicates the sink confirms delivery.
	SupportsAck bool

	// SupportsDurability indicates events survive a broker restart.
	SupportsDurability bool

	// MaxMessageSize is the maximum event size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64

	// Name is the human-readable name of the sink.
	Name string

	// Version is the sink/driver version.
	Version string
}

// LosesEventsOnRestart returns true if forwarded events need an upstream
// replay mechanism because the sink is not durable.
func (c Capabilities) LosesEventsOnRestart() bool {
	return !c.SupportsDurability
}

// SupportsReliableDelivery returns true if the sink confirms durable
// delivery of forwarded events.
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsDurability
}

// Predefined capability sets for common sinks.
var (
	// ChannelCapabilities for the in-memory Go channel sink.
	ChannelCapabilities = Capabilities{
		Name:               "channel",
		SupportsOrdering:   true,
		SupportsTracing:    false,
		SupportsBatching:   false,
		SupportsAck:        true,
		SupportsDurability: false,
	}

	// KafkaCapabilities for the Apache Kafka sink.
	KafkaCapabilities = Capabilities{
		Name:               "kafka",
		SupportsOrdering:   true,
		SupportsTracing:    true,
		SupportsBatching:   true,
		SupportsAck:        true,
		SupportsDurability: true,
		MaxMessageSize:     1048576, // Default 1MB
	}

	// RabbitMQCapabilities for the RabbitMQ/AMQP sink.
	RabbitMQCapabilities = Capabilities{
		Name:               "rabbitmq",
		SupportsOrdering:   true,
		SupportsTracing:    true,
		SupportsBatching:   false,
		SupportsAck:        true,
		SupportsDurability: true,
	}

	// NATSCapabilities for the NATS Core sink.
	NATSCapabilities = Capabilities{
		Name:               "nats",
		SupportsOrdering:   false,
		SupportsTracing:    true,
		SupportsBatching:   false,
		SupportsAck:        false,
		SupportsDurability: false,
		MaxMessageSize:     1048576, // Default 1MB
	}

	// HTTPCapabilities for the HTTP webhook sink.
	HTTPCapabilities = Capabilities{
		Name:               "http",
		SupportsOrdering:   false,
		SupportsTracing:    true,
		SupportsBatching:   false,
		SupportsAck:        false,
		SupportsDurability: false,
	}
)

// GetCapabilities returns the capabilities for a sink by name. Uses the
// registry to look up capabilities registered by each sink package. Returns
// a zero Capabilities struct if the sink is unknown.
func GetCapabilities(sinkName string) Capabilities {
	return DefaultRegistry.GetCapabilities(sinkName)
}
