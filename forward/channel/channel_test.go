package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/renderflow/forward"
)

type mockConfig struct{}

func (m *mockConfig) GetForwarderSystem() string  { return SinkName }
func (m *mockConfig) GetKafkaBrokers() []string   { return nil }
func (m *mockConfig) GetKafkaClientID() string    { return "" }
func (m *mockConfig) GetRabbitMQURL() string      { return "" }
func (m *mockConfig) GetNATSURL() string          { return "" }
func (m *mockConfig) GetHTTPPublisherURL() string { return "" }

func TestInitRegisters(t *testing.T) {
	assert.True(t, forward.DefaultRegistry.Has(SinkName))

	caps := forward.GetCapabilities(SinkName)
	assert.Equal(t, "channel", caps.Name)
	assert.True(t, caps.SupportsOrdering)
	assert.False(t, caps.SupportsDurability)
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities()
	assert.Equal(t, forward.ChannelCapabilities, caps)
}

func TestBuild(t *testing.T) {
	t.Run("creates sink with default factory", func(t *testing.T) {
		sink, err := Build(context.Background(), &mockConfig{}, watermill.NopLogger{})

		require.NoError(t, err)
		assert.NotNil(t, sink.Publisher)
		assert.NotNil(t, sink.Subscriber)
	})

	t.Run("uses custom factory", func(t *testing.T) {
		originalFactory := Factory
		defer func() { Factory = originalFactory }()

		var called bool
		Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
			called = true
			pubSub := gochannel.NewGoChannel(cfg, logger)
			return pubSub, pubSub
		}

		_, err := Build(context.Background(), &mockConfig{}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.True(t, called)
	})
}

func TestRoundTrip(t *testing.T) {
	sink, err := Build(context.Background(), &mockConfig{}, watermill.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgs, err := sink.Subscriber.Subscribe(ctx, "render.progress")
	require.NoError(t, err)

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"percent":50}`))
	require.NoError(t, sink.Publisher.Publish("render.progress", msg))

	select {
	case got := <-msgs:
		assert.Equal(t, msg.UUID, got.UUID)
		assert.JSONEq(t, `{"percent":50}`, string(got.Payload))
		got.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for forwarded event")
	}
}
