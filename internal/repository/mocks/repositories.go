package mocks

import (
	"context"

	"story-zine/internal/models"

	"github.com/stretchr/testify/mock"
)

// Mock StoryRepository
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) Get(ctx context.Context, storyID string) (*models.Story, error) {
	args := m.Called(ctx, storyID)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) Save(ctx context.Context, story *models.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}
func (m *StoryRepository) ListIndex(ctx context.Context) ([]models.Story, error) {
	args := m.Called(ctx)
	stories, _ := args.Get(0).([]models.Story)
	return stories, args.Error(1)
}
func (m *StoryRepository) SaveIndex(ctx context.Context, stories []models.Story) error {
	args := m.Called(ctx, stories)
	return args.Error(0)
}

// Mock PageRepository
type PageRepository struct {
	mock.Mock
}

func (m *PageRepository) Get(ctx context.Context, storyID string, pageNumber int) (*models.Page, error) {
	args := m.Called(ctx, storyID, pageNumber)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}
func (m *PageRepository) Save(ctx context.Context, storyID string, page *models.Page) error {
	args := m.Called(ctx, storyID, page)
	return args.Error(0)
}

// Mock ProposalRepository
type ProposalRepository struct {
	mock.Mock
}

func (m *ProposalRepository) List(ctx context.Context, storyID string) ([]models.Proposal, error) {
	args := m.Called(ctx, storyID)
	proposals, _ := args.Get(0).([]models.Proposal)
	return proposals, args.Error(1)
}
func (m *ProposalRepository) SaveAll(ctx context.Context, storyID string, proposals []models.Proposal) error {
	args := m.Called(ctx, storyID, proposals)
	return args.Error(0)
}
