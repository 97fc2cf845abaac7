package runtime

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	idspkg "github.com/drblury/renderflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/renderflow/internal/runtime/metadata"
)

// Metadata keys stamped on every forwarded event.
const (
	MetaCorrelationID = "correlation_id"
	MetaEventKind     = "event_kind"
	MetaEmittedAt     = "emitted_at"
)

// artifactsEnvelope is the payload shape of forwarded artifact batches.
type artifactsEnvelope struct {
	CorrelationID string   `json:"correlationId,omitempty"`
	Artifacts     []string `json:"artifacts"`
}

// Forwarder bridges the in-process event bus onto a watermill publisher:
// normalized progress events and artifact batches leave the process on their
// configured topics. Forwarding is best effort; a failed publish is logged
// and dropped, never propagated back into the channel pipeline.
type Forwarder struct {
	bus            *Bus
	publisher      message.Publisher
	progressTopic  string
	artifactsTopic string
	ids            idspkg.Generator
	logger         loggingpkg.ServiceLogger
	metrics        *Metrics

	subs []*Subscription
}

// NewForwarder builds a Forwarder over the given bus and publisher. It does
// not take ownership of the publisher; closing it is the caller's job.
func NewForwarder(bus *Bus, publisher message.Publisher, progressTopic, artifactsTopic string, gen idspkg.Generator, logger loggingpkg.ServiceLogger, metrics *Metrics) (*Forwarder, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if progressTopic == "" || artifactsTopic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	if gen == nil {
		gen = idspkg.NewGenerator()
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Forwarder{
		bus:            bus,
		publisher:      publisher,
		progressTopic:  progressTopic,
		artifactsTopic: artifactsTopic,
		ids:            gen,
		logger:         logger.With(loggingpkg.LogFields{"component": "forwarder"}),
		metrics:        metrics,
	}, nil
}

// Start registers the forwarder on the bus. Calling Start twice is a no-op.
func (f *Forwarder) Start() error {
	if len(f.subs) > 0 {
		return nil
	}

	progressSub, err := f.bus.On(EventTaskProgress, func(data any) {
		ev, ok := data.(*ProgressEvent)
		if !ok {
			return
		}
		f.publish(f.progressTopic, "progress", ev.CorrelationID, ev)
	})
	if err != nil {
		return err
	}

	artifactsSub, err := f.bus.On(EventGeneratedImages, func(data any) {
		artifacts, ok := data.([]string)
		if !ok {
			return
		}
		f.publish(f.artifactsTopic, "artifacts", "", artifactsEnvelope{Artifacts: artifacts})
	})
	if err != nil {
		f.bus.Off(progressSub)
		return err
	}

	f.subs = []*Subscription{progressSub, artifactsSub}
	return nil
}

// Stop removes the forwarder's bus registrations. The publisher is left
// open.
func (f *Forwarder) Stop() {
	for _, sub := range f.subs {
		f.bus.Off(sub)
	}
	f.subs = nil
}

func (f *Forwarder) publish(topic, kind, correlationID string, payload any) {
	md := metadatapkg.New(
		MetaEventKind, kind,
		MetaEmittedAt, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if correlationID != "" {
		md = md.With(MetaCorrelationID, correlationID)
	}

	if err := PublishEvent(nil, f.publisher, topic, f.ids.EventID(), payload, md); err != nil {
		f.logger.Error("forwarding event failed", err, loggingpkg.LogFields{"topic": topic})
		return
	}
	f.metrics.incForwarded(topic)
}
