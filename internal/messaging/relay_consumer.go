package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"story-zine/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const relayPublishTimeout = 5 * time.Second

// relayedEvent - событие в том виде, в каком оно приходит из exchange.
type relayedEvent struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// EventRelayConsumer читает события из fanout exchange через эксклюзивную
// очередь экземпляра и передает их в локальный EventPublisher (обычно websocket hub).
type EventRelayConsumer struct {
	channel     *amqp.Channel
	queueName   string
	sink        EventPublisher
	logger      *zap.Logger
	stopChannel chan struct{}
	stopOnce    sync.Once
}

// NewEventRelayConsumer объявляет exchange и привязывает к нему эксклюзивную очередь.
// После возврата все новые события попадают в очередь, даже если StartConsuming еще не вызван.
func NewEventRelayConsumer(conn *amqp.Connection, exchange string, sink EventPublisher, logger *zap.Logger) (*EventRelayConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("relay consumer: failed to open channel: %w", err)
	}
	if err := declareEventsExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("relay consumer: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // name (генерирует брокер)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("relay consumer: failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("relay consumer: failed to bind queue '%s' to '%s': %w", q.Name, exchange, err)
	}

	return &EventRelayConsumer{
		channel:     ch,
		queueName:   q.Name,
		sink:        sink,
		logger:      logger.Named("EventRelayConsumer"),
		stopChannel: make(chan struct{}),
	}, nil
}

// StartConsuming блокирует до Stop или закрытия канала.
func (c *EventRelayConsumer) StartConsuming() error {
	if err := c.channel.Qos(32, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	c.logger.Info("Relay consumer started", zap.String("queue", c.queueName))

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				c.logger.Info("RabbitMQ delivery channel closed")
				return nil
			}
			c.handleDelivery(d)
		case <-c.stopChannel:
			c.logger.Info("Relay consumer stop signal received")
			return nil
		}
	}
}

func (c *EventRelayConsumer) handleDelivery(d amqp.Delivery) {
	var ev relayedEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil || ev.Event == "" || ev.Room == "" {
		c.logger.Warn("Dropping malformed event", zap.ByteString("body", d.Body), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	err := c.sink.Publish(ctx, models.StoryEvent{Room: ev.Room, Event: ev.Event, Payload: ev.Payload})
	if err != nil {
		c.logger.Warn("Failed to relay event", zap.String("event", ev.Event), zap.String("room", ev.Room), zap.Error(err))
	}
	_ = d.Ack(false)
}

// Stop останавливает цикл потребления и закрывает канал.
func (c *EventRelayConsumer) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopChannel)
		err = c.channel.Close()
	})
	return err
}
