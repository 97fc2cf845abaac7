// Package nats provides a NATS Core sink for renderflow progress events.
package nats

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/renderflow/forward"
)

// SinkName is the name used to register this sink.
const SinkName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// Register registers the NATS sink with the default registry.
// This should be called from an init() function in an importing package,
// or explicitly before using the sink.
func Register() {
	forward.RegisterWithCapabilities(SinkName, Build, forward.NATSCapabilities)
}

// Build creates a new NATS sink.
func Build(ctx context.Context, cfg forward.Config, logger watermill.LoggerAdapter) (forward.Sink, error) {
	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL:       cfg.GetNATSURL(),
			Marshaler: &nats.NATSMarshaler{},
		},
		logger,
	)
	if err != nil {
		return forward.Sink{}, err
	}

	return forward.Sink{Publisher: publisher}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() forward.Capabilities {
	return forward.NATSCapabilities
}
