package rabbitmq

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// IPublisher publishes to a fixed topic.
type IPublisher interface {
	PublishMessage(message interface{}) error
	Close()
}

// Publisher publishes on a default topic and, through PublishTo, on any other.
type Publisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	log     *zap.Logger
}

func NewPublisher(client mqtt.Client, topic string, qos byte, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{client: client, topic: topic, qos: qos, timeout: 5 * time.Second, log: log}
}

// PublishMessage publishes a string or []byte payload on the default topic.
func (p *Publisher) PublishMessage(message interface{}) error {
	var payload []byte
	switch m := message.(type) {
	case string:
		payload = []byte(m)
	case []byte:
		payload = m
	default:
		return fmt.Errorf("invalid message format %T, expected string or []byte", message)
	}
	return p.PublishTo(p.topic, p.qos, payload)
}

// PublishTo publishes payload on topic and waits for the broker ack (QoS > 0)
// or the network write (QoS 0).
func (p *Publisher) PublishTo(topic string, qos byte, payload []byte) error {
	if topic == "" {
		return errors.New("mqtt: empty topic")
	}
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
	}
	p.log.Debug("mqtt: published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

func (p *Publisher) Close() {
	CloseRabbitMQConn(p.client, p.log)
}
