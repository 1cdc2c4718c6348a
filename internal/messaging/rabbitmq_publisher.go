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

// DefaultEventsExchange - fanout exchange, через который экземпляры сервиса обмениваются событиями.
const DefaultEventsExchange = "story_events"

var _ EventPublisher = (*RabbitMQEventPublisher)(nil)

// RabbitMQEventPublisher публикует события в fanout exchange.
// Каждый экземпляр сервиса получает их через EventRelayConsumer.
type RabbitMQEventPublisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitMQEventPublisher открывает канал и объявляет exchange.
func NewRabbitMQEventPublisher(conn *amqp.Connection, exchange string, logger *zap.Logger) (*RabbitMQEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("event publisher: failed to open channel: %w", err)
	}
	if err := declareEventsExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("event publisher: %w", err)
	}
	logger.Info("Event publisher initialized", zap.String("exchange", exchange))
	return &RabbitMQEventPublisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger.Named("RabbitMQEventPublisher"),
	}, nil
}

func declareEventsExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}
	return nil
}

func (p *RabbitMQEventPublisher) Publish(ctx context.Context, event models.StoryEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Event, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		"",         // routing key (fanout)
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event", event.Event),
			zap.String("room", event.Room),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish event %s: %w", event.Event, err)
	}
	p.logger.Debug("Event published", zap.String("event", event.Event), zap.String("room", event.Room))
	return nil
}

// Close закрывает канал публикации.
func (p *RabbitMQEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Close()
}
