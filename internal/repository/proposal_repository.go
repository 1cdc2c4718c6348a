package repository

import (
	"context"
	"errors"
	"fmt"

	"story-zine/internal/models"
	"story-zine/internal/storage"

	"go.uber.org/zap"
)

// ProposalRepository хранит весь журнал предложений истории одним документом.
type ProposalRepository interface {
	// List возвращает предложения в порядке создания; отсутствующий журнал - пустой список.
	List(ctx context.Context, storyID string) ([]models.Proposal, error)
	SaveAll(ctx context.Context, storyID string, proposals []models.Proposal) error
}

var _ ProposalRepository = (*proposalRepository)(nil)

type proposalRepository struct {
	store  storage.Store
	logger *zap.Logger
}

func NewProposalRepository(store storage.Store, logger *zap.Logger) ProposalRepository {
	return &proposalRepository{
		store:  store,
		logger: logger.Named("ProposalRepo"),
	}
}

func (r *proposalRepository) List(ctx context.Context, storyID string) ([]models.Proposal, error) {
	var proposals []models.Proposal
	if err := r.store.Read(ctx, storage.ProposalsKey(storyID), &proposals); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []models.Proposal{}, nil
		}
		return nil, fmt.Errorf("failed to read proposals of story %s: %w", storyID, err)
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	return proposals, nil
}

func (r *proposalRepository) SaveAll(ctx context.Context, storyID string, proposals []models.Proposal) error {
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	if err := r.store.Write(ctx, storage.ProposalsKey(storyID), proposals); err != nil {
		return fmt.Errorf("failed to write proposals of story %s: %w", storyID, err)
	}
	return nil
}
