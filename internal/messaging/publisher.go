package messaging

import (
	"context"

	"story-zine/internal/models"
)

// EventPublisher рассылает события об изменениях истории.
// Вызывается только после успешного сохранения; ошибка публикации
// не должна отменять уже выполненную операцию.
type EventPublisher interface {
	Publish(ctx context.Context, event models.StoryEvent) error
}

// NopPublisher используется, когда транспорт уведомлений не настроен.
type NopPublisher struct{}

var _ EventPublisher = NopPublisher{}

func (NopPublisher) Publish(context.Context, models.StoryEvent) error {
	return nil
}
