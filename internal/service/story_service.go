package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"story-zine/internal/messaging"
	"story-zine/internal/models"
	"story-zine/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoryService отвечает за создание, получение и завершение историй.
type StoryService struct {
	stories     repository.StoryRepository
	pages       repository.PageRepository
	proposals   repository.ProposalRepository
	policy      ContentPolicy
	seedOpening bool
	locker      StoryLocker
	events      notifier
	logger      *zap.Logger
	now         func() time.Time
}

// StoryServiceOptions - необязательные параметры StoryService.
type StoryServiceOptions struct {
	// SeedOpening включает запись пролога в первую страницу при создании.
	SeedOpening bool
}

// NewStoryService создает новый экземпляр StoryService.
func NewStoryService(
	stories repository.StoryRepository,
	pages repository.PageRepository,
	proposals repository.ProposalRepository,
	policy ContentPolicy,
	locker StoryLocker,
	publisher messaging.EventPublisher,
	logger *zap.Logger,
	opts StoryServiceOptions,
) *StoryService {
	logger = logger.Named("StoryService")
	return &StoryService{
		stories:     stories,
		pages:       pages,
		proposals:   proposals,
		policy:      policy,
		seedOpening: opts.SeedOpening,
		locker:      locker,
		events:      newNotifier(publisher, logger),
		logger:      logger,
		now:         time.Now,
	}
}

func cleanAuthors(authors []string) []string {
	out := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return models.NormalizeAuthors(out)
}

// Create создает историю: страница 1 открыта, страницы 2 и 3 заблокированы,
// журнал предложений пуст. Записи не атомарны как группа.
func (s *StoryService) Create(ctx context.Context, title string, authors []string) (*models.Story, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.ErrInvalidInput.Withf("title is required")
	}

	story := &models.Story{
		ID:        uuid.NewString(),
		Title:     title,
		Authors:   cleanAuthors(authors),
		Pages:     []int{1, 2, 3},
		Status:    models.StoryStatusActive,
		CreatedAt: s.now().UnixMilli(),
	}
	log := s.logger.With(zap.String("storyID", story.ID))

	err := withLock(ctx, s.locker, storyLockKey(story.ID), func() error {
		for n := 1; n <= models.PagesPerStory; n++ {
			page := models.NewPage(n, n != 1)
			if n == 1 && s.seedOpening {
				page.Content = s.policy.GenerateOpening(title)
			}
			if err := s.pages.Save(ctx, story.ID, page); err != nil {
				return err
			}
		}
		if err := s.proposals.SaveAll(ctx, story.ID, []models.Proposal{}); err != nil {
			return err
		}
		if err := s.stories.Save(ctx, story); err != nil {
			return err
		}
		return withLock(ctx, s.locker, indexLockKey, func() error {
			index, err := s.stories.ListIndex(ctx)
			if err != nil {
				return err
			}
			return s.stories.SaveIndex(ctx, append(index, *story))
		})
	})
	if err != nil {
		log.Error("Failed to create story", zap.Error(err))
		return nil, err
	}

	log.Info("Story created", zap.String("title", title))
	s.events.notify(ctx, models.LobbyRoom, models.EventStoryCreated, models.StoryCreatedPayload{Story: *story})
	s.events.notify(ctx, models.StoryRoom(story.ID), models.EventPageOpened,
		models.PageRefPayload{StoryID: story.ID, PageNumber: 1})
	return story, nil
}

// Get возвращает историю или models.ErrStoryNotFound.
func (s *StoryService) Get(ctx context.Context, storyID string) (*models.Story, error) {
	return s.stories.Get(ctx, storyID)
}

// List возвращает все истории, новые первыми.
func (s *StoryService) List(ctx context.Context) ([]models.Story, error) {
	index, err := s.stories.ListIndex(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(index, func(i, j int) bool {
		return index[i].CreatedAt > index[j].CreatedAt
	})
	return index, nil
}

// Complete переводит историю в completed. Для уже завершенной истории ничего не делает.
// Вызывается под блокировкой истории.
func (s *StoryService) Complete(ctx context.Context, storyID string) (*models.Story, error) {
	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.IsCompleted() {
		return story, nil
	}

	story.Status = models.StoryStatusCompleted
	if err := s.stories.Save(ctx, story); err != nil {
		return nil, err
	}

	err = withLock(ctx, s.locker, indexLockKey, func() error {
		index, err := s.stories.ListIndex(ctx)
		if err != nil {
			return err
		}
		for i := range index {
			if index[i].ID == storyID {
				index[i].Status = models.StoryStatusCompleted
				return s.stories.SaveIndex(ctx, index)
			}
		}
		s.logger.Warn("Completed story is missing from the index", zap.String("storyID", storyID))
		return nil
	})
	if err != nil {
		// сама история уже сохранена как completed
		s.logger.Error("Failed to update stories index", zap.String("storyID", storyID), zap.Error(err))
	}

	s.logger.Info("Story completed", zap.String("storyID", storyID))
	payload := models.StoryCompletedPayload{StoryID: storyID}
	s.events.notify(ctx, models.StoryRoom(storyID), models.EventStoryCompleted, payload)
	s.events.notify(ctx, models.LobbyRoom, models.EventStoryCompleted, payload)
	return story, nil
}
