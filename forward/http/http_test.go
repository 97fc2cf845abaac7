package http

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/renderflow/forward"
)

type mockConfig struct {
	publisherURL string
}

func (m *mockConfig) GetForwarderSystem() string  { return SinkName }
func (m *mockConfig) GetKafkaBrokers() []string   { return nil }
func (m *mockConfig) GetKafkaClientID() string    { return "" }
func (m *mockConfig) GetRabbitMQURL() string      { return "" }
func (m *mockConfig) GetNATSURL() string          { return "" }
func (m *mockConfig) GetHTTPPublisherURL() string { return m.publisherURL }

type mockPublisher struct{}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
func (m *mockPublisher) Close() error                                             { return nil }

func TestInitRegisters(t *testing.T) {
	assert.True(t, forward.DefaultRegistry.Has(SinkName))

	caps := forward.GetCapabilities(SinkName)
	assert.Equal(t, "http", caps.Name)
	assert.True(t, caps.SupportsTracing)
	assert.False(t, caps.SupportsDurability)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, forward.HTTPCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	t.Run("marshals events against the publisher URL", func(t *testing.T) {
		originalFactory := PublisherFactory
		defer func() { PublisherFactory = originalFactory }()

		var marshal wmhttp.MarshalMessageFunc
		mockPub := &mockPublisher{}
		PublisherFactory = func(cfg wmhttp.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			marshal = cfg.MarshalMessageFunc
			return mockPub, nil
		}

		sink, err := Build(context.Background(), &mockConfig{publisherURL: "http://hooks.example/"}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Equal(t, mockPub, sink.Publisher)

		req, err := marshal("render.progress", message.NewMessage("id-1", []byte(`{}`)))
		require.NoError(t, err)
		assert.Equal(t, "http://hooks.example/render.progress", req.URL.String())
	})

	t.Run("propagates factory errors", func(t *testing.T) {
		originalFactory := PublisherFactory
		defer func() { PublisherFactory = originalFactory }()

		PublisherFactory = func(cfg wmhttp.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("listener busy")
		}

		_, err := Build(context.Background(), &mockConfig{publisherURL: "http://hooks.example/"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "listener busy")
	})
}
