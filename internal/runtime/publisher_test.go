package runtime

import (
	"context"
	"errors"
	"testing"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/renderflow/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/renderflow/internal/runtime/metadata"
)

func TestNewEventMessage(t *testing.T) {
	md := metadatapkg.New(MetaEventKind, "progress")
	msg, err := NewEventMessage("event-1", &ProgressEvent{Percent: 40}, md)
	if err != nil {
		t.Fatalf("NewEventMessage: %v", err)
	}

	if msg.UUID != "event-1" {
		t.Fatalf("UUID = %q, want event-1", msg.UUID)
	}
	if msg.Metadata[MetaEventKind] != "progress" {
		t.Fatalf("metadata = %v, want event_kind=progress", msg.Metadata)
	}

	var ev ProgressEvent
	if err := jsoncodec.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if ev.Percent != 40 {
		t.Fatalf("Percent = %d, want 40", ev.Percent)
	}
}

func TestNewEventMessageRequiresPayload(t *testing.T) {
	if _, err := NewEventMessage("event-1", nil, nil); !errors.Is(err, errspkg.ErrEventPayloadRequired) {
		t.Fatalf("err = %v, want ErrEventPayloadRequired", err)
	}
}

func TestPublishEventValidation(t *testing.T) {
	payload := &ProgressEvent{Percent: 10}

	if err := PublishEvent(context.Background(), nil, "t", "u", payload, nil); !errors.Is(err, errspkg.ErrPublisherRequired) {
		t.Fatalf("err = %v, want ErrPublisherRequired", err)
	}

	pub := &capturingPublisher{}
	if err := PublishEvent(context.Background(), pub, "", "u", payload, nil); !errors.Is(err, errspkg.ErrTopicRequired) {
		t.Fatalf("err = %v, want ErrTopicRequired", err)
	}
}

func TestPublishEventDelivers(t *testing.T) {
	pub := &capturingPublisher{}
	err := PublishEvent(context.Background(), pub, "render.progress", "event-1", &ProgressEvent{Percent: 75}, nil)
	if err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.msgs) != 1 || pub.topics[0] != "render.progress" {
		t.Fatalf("published = %v msgs on %v", len(pub.msgs), pub.topics)
	}
	if pub.msgs[0].Context() == nil {
		t.Fatal("expected message context to be set")
	}
}
