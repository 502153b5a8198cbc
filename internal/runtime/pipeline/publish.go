package pipeline

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/vehicleflow/internal/runtime/completion"
	"github.com/drblury/vehicleflow/internal/runtime/correlation"
	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	idspkg "github.com/drblury/vehicleflow/internal/runtime/ids"
	metadatapkg "github.com/drblury/vehicleflow/internal/runtime/metadata"
)

// NewCompletionMessage converts an envelope and its correlation attributes
// into a Watermill message. The body is the serialized envelope and the
// metadata is the wire form of attrs.
func NewCompletionMessage(attrs correlation.Attributes, env completion.Envelope) (*message.Message, error) {
	body, err := env.Serialize()
	if err != nil {
		return nil, errspkg.New(errspkg.ErrPublish, "serialize completion", err)
	}

	msg := message.NewMessage(idspkg.CreateULID(), body)
	msg.Metadata = metadatapkg.ToWatermill(attrs.ToWire())
	return msg, nil
}

// PublishCompletion publishes one completion event to topic. It makes a
// single attempt.
func PublishCompletion(ctx context.Context, publisher message.Publisher, topic string, attrs correlation.Attributes, env completion.Envelope) error {
	if publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	msg, err := NewCompletionMessage(attrs, env)
	if err != nil {
		return err
	}
	if ctx != nil {
		msg.SetContext(ctx)
	}

	if err := publisher.Publish(topic, msg); err != nil {
		return errspkg.New(errspkg.ErrPublish, "publish completion", err)
	}
	return nil
}
