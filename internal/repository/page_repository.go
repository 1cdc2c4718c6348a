package repository

import (
	"context"
	"errors"
	"fmt"

	"story-zine/internal/models"
	"story-zine/internal/storage"

	"go.uber.org/zap"
)

// PageRepository хранит страницы истории.
type PageRepository interface {
	// Get возвращает страницу или models.ErrPageNotFound.
	Get(ctx context.Context, storyID string, pageNumber int) (*models.Page, error)
	Save(ctx context.Context, storyID string, page *models.Page) error
}

var _ PageRepository = (*pageRepository)(nil)

type pageRepository struct {
	store  storage.Store
	logger *zap.Logger
}

func NewPageRepository(store storage.Store, logger *zap.Logger) PageRepository {
	return &pageRepository{
		store:  store,
		logger: logger.Named("PageRepo"),
	}
}

func (r *pageRepository) Get(ctx context.Context, storyID string, pageNumber int) (*models.Page, error) {
	var page models.Page
	if err := r.store.Read(ctx, storage.PageKey(storyID, pageNumber), &page); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, models.ErrPageNotFound
		}
		return nil, fmt.Errorf("failed to read page %d of story %s: %w", pageNumber, storyID, err)
	}
	if page.Proposals == nil {
		page.Proposals = []string{}
	}
	return &page, nil
}

func (r *pageRepository) Save(ctx context.Context, storyID string, page *models.Page) error {
	if page.Proposals == nil {
		page.Proposals = []string{}
	}
	if err := r.store.Write(ctx, storage.PageKey(storyID, page.PageNumber), page); err != nil {
		return fmt.Errorf("failed to write page %d of story %s: %w", page.PageNumber, storyID, err)
	}
	return nil
}
