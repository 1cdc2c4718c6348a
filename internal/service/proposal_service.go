package service

import (
	"context"
	"strings"
	"time"

	"story-zine/internal/messaging"
	"story-zine/internal/models"
	"story-zine/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PageMerger дописывает принятое предложение в страницу.
type PageMerger interface {
	GetPage(ctx context.Context, storyID string, pageNumber int) (*models.Page, error)
	AppendProposal(ctx context.Context, storyID string, proposal models.Proposal) (*models.Page, error)
}

// AcceptResult - принятое предложение и обновленная страница.
type AcceptResult struct {
	Proposal *models.Proposal `json:"proposal"`
	Page     *models.Page     `json:"page"`
}

// ProposalService ведет журнал предложений истории.
type ProposalService struct {
	proposals repository.ProposalRepository
	pages     PageMerger
	policy    ContentPolicy
	locker    StoryLocker
	events    notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewProposalService создает новый экземпляр ProposalService.
func NewProposalService(
	proposals repository.ProposalRepository,
	pages PageMerger,
	policy ContentPolicy,
	locker StoryLocker,
	publisher messaging.EventPublisher,
	logger *zap.Logger,
) *ProposalService {
	logger = logger.Named("ProposalService")
	return &ProposalService{
		proposals: proposals,
		pages:     pages,
		policy:    policy,
		locker:    locker,
		events:    newNotifier(publisher, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// List возвращает все предложения истории в порядке создания.
func (s *ProposalService) List(ctx context.Context, storyID string) ([]models.Proposal, error) {
	return s.proposals.List(ctx, storyID)
}

// Create добавляет в журнал новое предложение со статусом pending.
func (s *ProposalService) Create(ctx context.Context, storyID string, pageNumber int, author, text string) (*models.Proposal, error) {
	if strings.TrimSpace(author) == "" || strings.TrimSpace(text) == "" {
		return nil, models.ErrInvalidInput.Withf("author and text are required")
	}

	var created *models.Proposal
	err := withLock(ctx, s.locker, storyLockKey(storyID), func() error {
		page, err := s.pages.GetPage(ctx, storyID, pageNumber)
		if err != nil {
			return err
		}
		if page.Locked {
			return models.ErrPageLocked
		}
		if err := s.policy.ValidateProposal(text); err != nil {
			return err
		}
		if !s.policy.CanAppend(page.Content, text) {
			return models.ErrContentTooLong
		}

		all, err := s.proposals.List(ctx, storyID)
		if err != nil {
			return err
		}
		proposal := models.Proposal{
			ID:         uuid.NewString(),
			StoryID:    storyID,
			PageNumber: pageNumber,
			Author:     author,
			Text:       text,
			Status:     models.ProposalStatusPending,
			CreatedAt:  s.now().UnixMilli(),
		}
		if err := s.proposals.SaveAll(ctx, storyID, append(all, proposal)); err != nil {
			return err
		}
		created = &proposal
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Proposal created",
		zap.String("storyID", storyID),
		zap.String("proposalID", created.ID),
		zap.Int("pageNumber", pageNumber),
	)
	s.events.notify(ctx, models.StoryRoom(storyID), models.EventProposalCreated,
		models.ProposalCreatedPayload{Proposal: *created})
	return created, nil
}

// Accept принимает предложение и дописывает его текст в страницу.
// Сначала сохраняется страница, затем журнал; эти записи не атомарны.
func (s *ProposalService) Accept(ctx context.Context, storyID, proposalID string) (*AcceptResult, error) {
	var result *AcceptResult
	err := withLock(ctx, s.locker, storyLockKey(storyID), func() error {
		all, err := s.proposals.List(ctx, storyID)
		if err != nil {
			return err
		}
		idx := models.FindProposal(all, proposalID)
		if idx < 0 {
			return models.ErrProposalNotFound
		}
		proposal := all[idx]
		switch proposal.Status {
		case models.ProposalStatusAccepted:
			return models.ErrAlreadyAccepted
		case models.ProposalStatusRejected:
			return models.ErrAlreadyRejected
		}
		if models.CountAccepted(all, proposal.PageNumber) >= s.policy.AcceptLimit {
			return models.ErrAcceptLimitReached
		}

		page, err := s.pages.AppendProposal(ctx, storyID, proposal)
		if err != nil {
			return err
		}

		proposal.Status = models.ProposalStatusAccepted
		all[idx] = proposal
		if err := s.proposals.SaveAll(ctx, storyID, all); err != nil {
			s.logger.Error("Page merged but proposal status was not saved",
				zap.String("storyID", storyID),
				zap.String("proposalID", proposalID),
				zap.Error(err),
			)
			return err
		}
		result = &AcceptResult{Proposal: &proposal, Page: page}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Proposal accepted",
		zap.String("storyID", storyID),
		zap.String("proposalID", proposalID),
		zap.Int("pageNumber", result.Page.PageNumber),
	)
	room := models.StoryRoom(storyID)
	s.events.notify(ctx, room, models.EventProposalAccepted, models.ProposalStatusPayload{ProposalID: proposalID})
	s.events.notify(ctx, room, models.EventPageUpdated, models.PageUpdatedPayload{
		StoryID:    storyID,
		PageNumber: result.Page.PageNumber,
		Content:    result.Page.Content,
	})
	return result, nil
}

// Reject отклоняет предложение. Отклонить можно только pending.
func (s *ProposalService) Reject(ctx context.Context, storyID, proposalID string) (*models.Proposal, error) {
	var rejected *models.Proposal
	err := withLock(ctx, s.locker, storyLockKey(storyID), func() error {
		all, err := s.proposals.List(ctx, storyID)
		if err != nil {
			return err
		}
		idx := models.FindProposal(all, proposalID)
		if idx < 0 {
			return models.ErrProposalNotFound
		}
		switch all[idx].Status {
		case models.ProposalStatusAccepted:
			return models.ErrAlreadyAccepted
		case models.ProposalStatusRejected:
			return models.ErrAlreadyRejected
		}
		all[idx].Status = models.ProposalStatusRejected
		if err := s.proposals.SaveAll(ctx, storyID, all); err != nil {
			return err
		}
		p := all[idx]
		rejected = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Proposal rejected", zap.String("storyID", storyID), zap.String("proposalID", proposalID))
	s.events.notify(ctx, models.StoryRoom(storyID), models.EventProposalRejected,
		models.ProposalStatusPayload{ProposalID: proposalID})
	return rejected, nil
}
