package service

import (
	"context"

	"story-zine/internal/messaging"
	"story-zine/internal/models"

	"go.uber.org/zap"
)

// notifier публикует события и только логирует ошибки публикации.
type notifier struct {
	publisher messaging.EventPublisher
	logger    *zap.Logger
}

func newNotifier(publisher messaging.EventPublisher, logger *zap.Logger) notifier {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return notifier{publisher: publisher, logger: logger}
}

func (n notifier) notify(ctx context.Context, room, event string, payload any) {
	err := n.publisher.Publish(ctx, models.StoryEvent{Room: room, Event: event, Payload: payload})
	if err != nil {
		n.logger.Warn("Failed to publish event",
			zap.String("event", event),
			zap.String("room", room),
			zap.Error(err),
		)
	}
}

// withLock выполняет fn под блокировкой key.
func withLock(ctx context.Context, locker StoryLocker, key string, fn func() error) error {
	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
