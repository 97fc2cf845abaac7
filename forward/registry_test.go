package forward

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock config for testing
type mockConfig struct {
	forwarderSystem string
}

func (m *mockConfig) GetForwarderSystem() string  { return m.forwarderSystem }
func (m *mockConfig) GetKafkaBrokers() []string   { return nil }
func (m *mockConfig) GetKafkaClientID() string    { return "" }
func (m *mockConfig) GetRabbitMQURL() string      { return "" }
func (m *mockConfig) GetNATSURL() string          { return "" }
func (m *mockConfig) GetHTTPPublisherURL() string { return "" }

// Mock publisher and subscriber
type mockPublisher struct{}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error {
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error {
	return nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotNil(t, reg)
	assert.NotNil(t, reg.builders)
	assert.NotNil(t, reg.capabilities)
	assert.Empty(t, reg.Names())
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Sink, error) {
		return Sink{Publisher: &mockPublisher{}}, nil
	}

	reg.Register("test-sink", builder)
	assert.True(t, reg.Has("test-sink"))
	assert.Contains(t, reg.Names(), "test-sink")
}

func TestRegistry_RegisterWithCapabilities(t *testing.T) {
	reg := NewRegistry()

	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Sink, error) {
		return Sink{Publisher: &mockPublisher{}}, nil
	}
	caps := Capabilities{Name: "test-sink", SupportsOrdering: true}

	reg.RegisterWithCapabilities("test-sink", builder, caps)
	assert.True(t, reg.Has("test-sink"))
	assert.Equal(t, caps, reg.GetCapabilities("test-sink"))
}

func TestRegistry_GetCapabilities_Unknown(t *testing.T) {
	reg := NewRegistry()
	caps := reg.GetCapabilities("nope")
	assert.Equal(t, "nope", caps.Name)
	assert.False(t, caps.SupportsOrdering)
}

func TestRegistry_Build(t *testing.T) {
	t.Run("builds a registered sink", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("test-sink", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Sink, error) {
			return Sink{Publisher: &mockPublisher{}}, nil
		})

		sink, err := reg.Build(context.Background(), &mockConfig{forwarderSystem: "test-sink"}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.NotNil(t, sink.Publisher)
		assert.Nil(t, sink.Subscriber)
	})

	t.Run("fails on nil config", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.Build(context.Background(), nil, watermill.NopLogger{})
		assert.Error(t, err)
	})

	t.Run("fails on unknown sink", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.Build(context.Background(), &mockConfig{forwarderSystem: "missing"}, watermill.NopLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown sink")
	})

	t.Run("propagates builder errors", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("broken", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Sink, error) {
			return Sink{}, errors.New("broker unavailable")
		})

		_, err := reg.Build(context.Background(), &mockConfig{forwarderSystem: "broken"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "broker unavailable")
	})
}

func TestDefaultRegistryHelpers(t *testing.T) {
	original := DefaultRegistry
	defer func() { DefaultRegistry = original }()
	DefaultRegistry = NewRegistry()

	Register("test-sink", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Sink, error) {
		return Sink{Publisher: &mockPublisher{}}, nil
	})
	assert.True(t, DefaultRegistry.Has("test-sink"))

	sink, err := Build(context.Background(), &mockConfig{forwarderSystem: "test-sink"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, sink.Publisher)
}
