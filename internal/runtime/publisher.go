package runtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/renderflow/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/renderflow/internal/runtime/metadata"
)

// NewEventMessage serializes payload and wraps it in a Watermill message with
// the provided metadata. The uuid becomes the message UUID; pass a fresh
// event id so downstream consumers can deduplicate.
func NewEventMessage(uuid string, payload any, metadata metadatapkg.Metadata) (*message.Message, error) {
	if payload == nil {
		return nil, errspkg.ErrEventPayloadRequired
	}

	raw, err := jsoncodec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msg := message.NewMessage(uuid, raw)
	msg.Metadata = metadatapkg.ToWatermill(metadata)
	return msg, nil
}

// PublishEvent marshals the payload and publishes it to the provided topic.
func PublishEvent(ctx context.Context, publisher message.Publisher, topic, uuid string, payload any, metadata metadatapkg.Metadata) error {
	if publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	msg, err := NewEventMessage(uuid, payload, metadata)
	if err != nil {
		return err
	}

	if ctx != nil {
		msg.SetContext(ctx)
	}

	return publisher.Publish(topic, msg)
}
