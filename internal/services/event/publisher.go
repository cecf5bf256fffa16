package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/messages"
)

// TopicPublisher is satisfied by *rabbitmq.Publisher.
type TopicPublisher interface {
	PublishTo(topic string, qos byte, payload []byte) error
}

// Publisher is a recorder that publishes every record as a JSON event.
type Publisher struct {
	pub TopicPublisher
}

func NewPublisher(pub TopicPublisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) StoreMeasurement(ctx context.Context, rec messages.MeasurementRecord) error {
	return p.publish(ctx, MeasurementTopic(rec.RunID), MeasurementQoS, rec)
}

func (p *Publisher) StoreAction(ctx context.Context, rec messages.ActionRecord) error {
	return p.publish(ctx, ActionTopic(rec.RunID), ActionQoS, rec)
}

func (p *Publisher) publish(ctx context.Context, topic string, qos byte, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("event: encode %s: %w", topic, err)
	}
	if err := p.pub.PublishTo(topic, qos, payload); err != nil {
		return fmt.Errorf("event: %w", err)
	}
	return nil
}
