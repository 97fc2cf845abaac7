// Package channel provides an in-memory Go channel sink for renderflow.
// This sink is useful for testing and for consuming forwarded progress
// events inside the same process.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/renderflow/forward"
)

// SinkName is the name used to register this sink.
const SinkName = "channel"

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	forward.RegisterWithCapabilities(SinkName, Build, forward.ChannelCapabilities)
}

// Build creates a new Go channel sink. The returned Sink carries a
// Subscriber so forwarded events can be read back in-process.
func Build(ctx context.Context, cfg forward.Config, logger watermill.LoggerAdapter) (forward.Sink, error) {
	pub, sub := Factory(gochannel.Config{}, logger)
	return forward.Sink{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() forward.Capabilities {
	return forward.ChannelCapabilities
}
