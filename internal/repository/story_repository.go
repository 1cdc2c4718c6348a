package repository

import (
	"context"
	"errors"
	"fmt"

	"story-zine/internal/models"
	"story-zine/internal/storage"

	"go.uber.org/zap"
)

// StoryRepository хранит истории и общий индекс историй.
type StoryRepository interface {
	// Get возвращает историю или models.ErrStoryNotFound.
	Get(ctx context.Context, storyID string) (*models.Story, error)
	Save(ctx context.Context, story *models.Story) error
	// ListIndex возвращает индекс историй; отсутствующий индекс - пустой список.
	ListIndex(ctx context.Context) ([]models.Story, error)
	SaveIndex(ctx context.Context, stories []models.Story) error
}

var _ StoryRepository = (*storyRepository)(nil)

type storyRepository struct {
	store  storage.Store
	logger *zap.Logger
}

// NewStoryRepository создает репозиторий историй поверх Store.
func NewStoryRepository(store storage.Store, logger *zap.Logger) StoryRepository {
	return &storyRepository{
		store:  store,
		logger: logger.Named("StoryRepo"),
	}
}

func (r *storyRepository) Get(ctx context.Context, storyID string) (*models.Story, error) {
	var story models.Story
	if err := r.store.Read(ctx, storage.StoryKey(storyID), &story); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, models.ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to read story %s: %w", storyID, err)
	}
	return &story, nil
}

func (r *storyRepository) Save(ctx context.Context, story *models.Story) error {
	if err := r.store.Write(ctx, storage.StoryKey(story.ID), story); err != nil {
		return fmt.Errorf("failed to write story %s: %w", story.ID, err)
	}
	return nil
}

func (r *storyRepository) ListIndex(ctx context.Context) ([]models.Story, error) {
	var stories []models.Story
	if err := r.store.Read(ctx, storage.StoriesIndexKey(), &stories); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.logger.Debug("Stories index not found, returning empty list")
			return []models.Story{}, nil
		}
		return nil, fmt.Errorf("failed to read stories index: %w", err)
	}
	if stories == nil {
		stories = []models.Story{}
	}
	return stories, nil
}

func (r *storyRepository) SaveIndex(ctx context.Context, stories []models.Story) error {
	if stories == nil {
		stories = []models.Story{}
	}
	if err := r.store.Write(ctx, storage.StoriesIndexKey(), stories); err != nil {
		return fmt.Errorf("failed to write stories index: %w", err)
	}
	return nil
}
