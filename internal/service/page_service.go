package service

import (
	"context"
	"errors"
	"fmt"

	"story-zine/internal/messaging"
	"story-zine/internal/models"
	"story-zine/internal/repository"

	"go.uber.org/zap"
)

// StoryCompleter переводит историю в статус completed.
type StoryCompleter interface {
	Complete(ctx context.Context, storyID string) (*models.Story, error)
}

// LockResult - результат блокировки страницы. В зависимости от ветки каскада
// заполнено либо OpenedNext, либо Story.
type LockResult struct {
	Page       *models.Page  `json:"page"`
	OpenedNext *models.Page  `json:"openedNext,omitempty"`
	Story      *models.Story `json:"story,omitempty"`
}

// PageService управляет содержимым страниц и каскадом блокировок.
type PageService struct {
	stories   repository.StoryRepository
	pages     repository.PageRepository
	proposals repository.ProposalRepository
	completer StoryCompleter
	policy    ContentPolicy
	locker    StoryLocker
	events    notifier
	logger    *zap.Logger
}

// NewPageService создает новый экземпляр PageService.
func NewPageService(
	stories repository.StoryRepository,
	pages repository.PageRepository,
	proposals repository.ProposalRepository,
	completer StoryCompleter,
	policy ContentPolicy,
	locker StoryLocker,
	publisher messaging.EventPublisher,
	logger *zap.Logger,
) *PageService {
	logger = logger.Named("PageService")
	return &PageService{
		stories:   stories,
		pages:     pages,
		proposals: proposals,
		completer: completer,
		policy:    policy,
		locker:    locker,
		events:    newNotifier(publisher, logger),
		logger:    logger,
	}
}

// GetPage возвращает страницу или models.ErrPageNotFound.
func (s *PageService) GetPage(ctx context.Context, storyID string, pageNumber int) (*models.Page, error) {
	if !models.ValidPageNumber(pageNumber) {
		return nil, models.ErrPageNotFound
	}
	return s.pages.Get(ctx, storyID, pageNumber)
}

// ListPages возвращает все три страницы истории.
func (s *PageService) ListPages(ctx context.Context, storyID string) ([]models.Page, error) {
	if _, err := s.stories.Get(ctx, storyID); err != nil {
		return nil, err
	}
	pages := make([]models.Page, 0, models.PagesPerStory)
	for n := 1; n <= models.PagesPerStory; n++ {
		page, err := s.pages.Get(ctx, storyID, n)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
	}
	return pages, nil
}

// AppendProposal дописывает текст принятого предложения в его страницу.
// Вызывающий должен удерживать блокировку истории.
func (s *PageService) AppendProposal(ctx context.Context, storyID string, proposal models.Proposal) (*models.Page, error) {
	page, err := s.GetPage(ctx, storyID, proposal.PageNumber)
	if err != nil {
		return nil, err
	}
	if page.Locked {
		return nil, models.ErrPageLocked
	}
	if !s.policy.CanAppend(page.Content, proposal.Text) {
		return nil, models.ErrContentTooLong
	}

	page.Content += proposal.Text
	page.Proposals = append(page.Proposals, proposal.ID)
	if err := s.pages.Save(ctx, storyID, page); err != nil {
		return nil, err
	}
	return page, nil
}

// Lock блокирует страницу и запускает каскад: открывает следующую страницу
// или, для последней страницы, завершает историю. Повторный вызов для
// уже заблокированной страницы ничего не меняет.
func (s *PageService) Lock(ctx context.Context, storyID string, pageNumber int) (*LockResult, error) {
	var result *LockResult
	err := withLock(ctx, s.locker, storyLockKey(storyID), func() error {
		var err error
		result, err = s.lock(ctx, storyID, pageNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PageService) lock(ctx context.Context, storyID string, pageNumber int) (*LockResult, error) {
	log := s.logger.With(zap.String("storyID", storyID), zap.Int("pageNumber", pageNumber))

	if _, err := s.stories.Get(ctx, storyID); err != nil {
		return nil, err
	}
	page, err := s.GetPage(ctx, storyID, pageNumber)
	if err != nil {
		return nil, err
	}
	if page.Locked {
		log.Debug("Page already locked")
		return &LockResult{Page: page}, nil
	}

	proposals, err := s.proposals.List(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if accepted := models.CountAccepted(proposals, pageNumber); accepted < s.policy.LockThreshold {
		return nil, models.ErrAcceptThresholdNotMet.Withf("At least %d accepted proposals required to lock this page", s.policy.LockThreshold)
	}
	if textLength(page.Content) < s.policy.PageTotalMin {
		return nil, models.ErrContentTooShort.Withf("Page content must be at least %d chars to lock", s.policy.PageTotalMin)
	}

	page.Locked = true
	if err := s.pages.Save(ctx, storyID, page); err != nil {
		return nil, err
	}
	log.Info("Page locked")
	s.events.notify(ctx, models.StoryRoom(storyID), models.EventPageLocked,
		models.PageRefPayload{StoryID: storyID, PageNumber: pageNumber})

	result := &LockResult{Page: page}
	if page.IsLast() {
		story, err := s.completer.Complete(ctx, storyID)
		if err != nil {
			return nil, fmt.Errorf("page %d locked but story completion failed: %w", pageNumber, err)
		}
		result.Story = story
		return result, nil
	}

	next, err := s.pages.Get(ctx, storyID, pageNumber+1)
	if err != nil {
		if errors.Is(err, models.ErrPageNotFound) {
			log.Warn("Next page is missing, nothing to open")
			return result, nil
		}
		return nil, fmt.Errorf("page %d locked but next page could not be read: %w", pageNumber, err)
	}
	if next.Locked {
		next.Locked = false
		if err := s.pages.Save(ctx, storyID, next); err != nil {
			return nil, fmt.Errorf("page %d locked but next page could not be opened: %w", pageNumber, err)
		}
		log.Info("Next page opened", zap.Int("nextPage", next.PageNumber))
		s.events.notify(ctx, models.StoryRoom(storyID), models.EventPageOpened,
			models.PageRefPayload{StoryID: storyID, PageNumber: next.PageNumber})
		result.OpenedNext = next
	}
	return result, nil
}
