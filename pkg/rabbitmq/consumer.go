package rabbitmq

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler receives the subscription filter that matched and the message.
type Handler func(filter string, message mqtt.Message) error

// IConsumer subscribes and dispatches until its context is done.
type IConsumer interface {
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler Handler)
}

// Subscription is one topic filter and the QoS to request for it.
type Subscription struct {
	Topic string
	QoS   byte
}

// Consumer subscribes a set of topic filters on a shared client.
type Consumer struct {
	client  mqtt.Client
	subs    []Subscription
	handler Handler
	log     *zap.Logger
}

func NewConsumer(client mqtt.Client, subs []Subscription, handler Handler, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{client: client, subs: subs, handler: handler, log: log}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// ConsumeMessage subscribes to every filter and blocks until ctx is done,
// then unsubscribes. A failed subscription is returned after undoing the
// ones already made.
func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	done := make([]string, 0, len(c.subs))
	for _, s := range c.subs {
		filter := s.Topic
		token := c.client.Subscribe(filter, s.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			c.dispatch(filter, msg)
		})
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("mqtt: subscribe failed", zap.String("topic", filter), zap.Error(err))
			if len(done) > 0 {
				c.client.Unsubscribe(done...).Wait()
			}
			return err
		}
		c.log.Info("mqtt: subscribed", zap.String("topic", filter), zap.Uint8("qos", s.QoS))
		done = append(done, filter)
	}

	<-ctx.Done()

	if len(done) > 0 {
		c.client.Unsubscribe(done...).Wait()
	}
	return nil
}

func (c *Consumer) dispatch(filter string, msg mqtt.Message) {
	if c.handler == nil {
		c.log.Warn("mqtt: no handler set", zap.String("topic", filter))
		return
	}
	if err := c.handler(filter, msg); err != nil {
		c.log.Warn("mqtt: handling message", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}
