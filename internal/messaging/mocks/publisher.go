package mocks

import (
	"context"

	"story-zine/internal/models"

	"github.com/stretchr/testify/mock"
)

// Mock EventPublisher
type EventPublisher struct {
	mock.Mock
}

func (m *EventPublisher) Publish(ctx context.Context, event models.StoryEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
