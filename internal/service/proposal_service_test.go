package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	msgmocks "story-zine/internal/messaging/mocks"
	"story-zine/internal/models"
	repomocks "story-zine/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateProposal(t *testing.T) {
	env := newDefaultEnv(t)
	ctx := context.Background()
	story := env.createStory(t)

	t.Run("49 chars rejected, 50 accepted as pending", func(t *testing.T) {
		_, err := env.proposals.Create(ctx, story.ID, 1, "A", textOf("x", 49))
		assert.ErrorIs(t, err, models.ErrProposalTooShort)

		p, err := env.proposals.Create(ctx, story.ID, 1, "A", textOf("x", 50))
		require.NoError(t, err)
		assert.Equal(t, models.ProposalStatusPending, p.Status)
		assert.Equal(t, story.ID, p.StoryID)
		assert.Equal(t, 1, p.PageNumber)
		assert.NotEmpty(t, p.ID)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := env.proposals.Create(ctx, story.ID, 1, "A", textOf("x", 251))
		assert.ErrorIs(t, err, models.ErrProposalTooLong)
	})

	t.Run("locked page", func(t *testing.T) {
		_, err := env.proposals.Create(ctx, story.ID, 2, "B", textOf("x", 60))
		assert.ErrorIs(t, err, models.ErrPageLocked)
		assert.Equal(t, models.KindConflict, models.KindOf(err))
	})

	t.Run("missing page or story", func(t *testing.T) {
		_, err := env.proposals.Create(ctx, story.ID, 4, "A", textOf("x", 60))
		assert.ErrorIs(t, err, models.ErrPageNotFound)

		_, err = env.proposals.Create(ctx, "missing", 1, "A", textOf("x", 60))
		assert.ErrorIs(t, err, models.ErrPageNotFound)
	})

	t.Run("author and text required", func(t *testing.T) {
		_, err := env.proposals.Create(ctx, story.ID, 1, " ", textOf("x", 60))
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("ledger keeps creation order", func(t *testing.T) {
		second := env.propose(t, story.ID, 1, "B", textOf("y", 55))
		list, err := env.proposals.List(ctx, story.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[1].ID)
	})

	t.Run("event", func(t *testing.T) {
		ev, ok := env.events.find(models.EventProposalCreated)
		require.True(t, ok)
		assert.Equal(t, models.StoryRoom(story.ID), ev.Room)
		payload, ok := ev.Payload.(models.ProposalCreatedPayload)
		require.True(t, ok)
		assert.Equal(t, story.ID, payload.Proposal.StoryID)
	})
}

func TestCreateProposalRejectsWhenPageWouldOverflow(t *testing.T) {
	env := newDefaultEnv(t)
	ctx := context.Background()
	story := env.createStory(t)

	page, err := env.pageRepo.Get(ctx, story.ID, 1)
	require.NoError(t, err)
	page.Content = textOf("o", 720)
	require.NoError(t, env.pageRepo.Save(ctx, story.ID, page))

	_, err = env.proposals.Create(ctx, story.ID, 1, "A", textOf("x", 50))
	assert.ErrorIs(t, err, models.ErrContentTooLong)

	list, err := env.proposals.List(ctx, story.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAcceptProposal(t *testing.T) {
	env := newDefaultEnv(t)
	ctx := context.Background()
	story := env.createStory(t)

	p := env.propose(t, story.ID, 1, "b", textOf("b", 60))
	env.events.reset()

	res, err := env.proposals.Accept(ctx, story.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusAccepted, res.Proposal.Status)
	assert.Equal(t, textOf("b", 60), res.Page.Content)
	assert.Equal(t, []string{p.ID}, res.Page.Proposals)

	page, err := env.pages.GetPage(ctx, story.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, res.Page, page)

	list, err := env.proposals.List(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusAccepted, list[0].Status)

	assert.Equal(t, []string{models.EventProposalAccepted, models.EventPageUpdated}, env.events.names())
	updated, _ := env.events.find(models.EventPageUpdated)
	assert.Equal(t, models.PageUpdatedPayload{StoryID: story.ID, PageNumber: 1, Content: page.Content}, updated.Payload)
}

func TestAcceptProposalMergesInAcceptanceOrder(t *testing.T) {
	env := newDefaultEnv(t)
	ctx := context.Background()
	story := env.createStory(t)

	first := env.propose(t, story.ID, 1, "A", textOf("1", 50))
	second := env.propose(t, story.ID, 1, "B", textOf("2", 50))

	_, err := env.proposals.Accept(ctx, story.ID, second.ID)
	require.NoError(t, err)
	res, err := env.proposals.Accept(ctx, story.ID, first.ID)
	require.NoError(t, err)

	assert.Equal(t, textOf("2", 50)+textOf("1", 50), res.Page.Content)
	assert.Equal(t, []string{second.ID, first.ID}, res.Page.Proposals)
}

func TestAcceptProposalErrors(t *testing.T) {
	env := newDefaultEnv(t)
	ctx := context.Background()
	story := env.createStory(t)

	t.Run("unknown proposal", func(t *testing.T) {
		_, err := env.proposals.Accept(ctx, story.ID, "does-not-exist")
		assert.ErrorIs(t, err, models.ErrProposalNotFound)
		assert.Equal(t, models.KindNotFound, models.KindOf(err))
	})

	t.Run("accept twice", func(t *testing.T) {
		p := env.propose(t, story.ID, 1, "A", textOf("x", 60))
		_, err := env.proposals.Accept(ctx, story.ID, p.ID)
		require.NoError(t, err)

		_, err = env.proposals.Accept(ctx, story.ID, p.ID)
		assert.ErrorIs(t, err, models.ErrAlreadyAccepted)
		assert.EqualError(t, err, "Already accepted")

		page, err := env.pages.GetPage(ctx, story.ID, 1)
		require.NoError(t, err)
		assert.Len(t, page.Proposals, 1)
	})

	t.Run("accept rejected", func(t *testing.T) {
		p := env.propose(t, story.ID, 1, "A", textOf("r", 60))
		_, err := env.proposals.Reject(ctx, story.ID, p.ID)
		require.NoError(t, err)

		_, err = env.proposals.Accept(ctx, story.ID, p.ID)
		assert.ErrorIs(t, err, models.ErrAlreadyRejected)
	})
}

func TestAcceptProposalRechecksCeiling(t *testing.T) {
	policy := DefaultContentPolicy()
	policy.PageTotalMax = 120
	env := newTestEnv(t, policy, StoryServiceOptions{})
	ctx := context.Background()
	story := env.createStory(t)

	// все три помещаются по отдельности в пустую страницу
	p1 := env.propose(t, story.ID, 1, "A", textOf("a", 50))
	p2 := env.propose(t, story.ID, 1, "B", textOf("b", 50))
	p3 := env.propose(t, story.ID, 1, "C", textOf("c", 50))

	_, err := env.proposals.Accept(ctx, story.ID, p1.ID)
	require.NoError(t, err)
	_, err = env.proposals.Accept(ctx, story.ID, p2.ID)
	require.NoError(t, err)

	_, err = env.proposals.Accept(ctx, story.ID, p3.ID)
	assert.ErrorIs(t, err, models.ErrContentTooLong)

	page, err := env.pages.GetPage(ctx, story.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, textLength(page.Content))

	list, err := env.proposals.List(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPending, list[2].Status)
}

func TestRejectProposal(t *testing.T) {
	env := newDefaultEnv(t)
	ctx := context.Background()
	story := env.createStory(t)

	p := env.propose(t, story.ID, 1, "A", textOf("x", 60))
	env.events.reset()

	rejected, err := env.proposals.Reject(ctx, story.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejected, rejected.Status)
	assert.Equal(t, []string{models.EventProposalRejected}, env.events.names())

	page, err := env.pages.GetPage(ctx, story.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, page.Content)

	t.Run("reject twice", func(t *testing.T) {
		_, err := env.proposals.Reject(ctx, story.ID, p.ID)
		assert.ErrorIs(t, err, models.ErrAlreadyRejected)
	})

	t.Run("reject accepted", func(t *testing.T) {
		res := env.acceptNew(t, story.ID, 1, textOf("y", 60))
		_, err := env.proposals.Reject(ctx, story.ID, res.Proposal.ID)
		assert.ErrorIs(t, err, models.ErrAlreadyAccepted)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := env.proposals.Reject(ctx, story.ID, "nope")
		assert.ErrorIs(t, err, models.ErrProposalNotFound)
	})
}

func TestConcurrentAcceptsRespectLimit(t *testing.T) {
	env := newDefaultEnv(t)
	ctx := context.Background()
	story := env.createStory(t)

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = env.propose(t, story.ID, 1, "A", textOf(string(rune('a'+i)), 60)).ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		limited   int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.proposals.Accept(ctx, story.ID, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrAcceptLimitReached):
				limited++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, n-3, limited)

	page, err := env.pages.GetPage(ctx, story.ID, 1)
	require.NoError(t, err)
	assert.Len(t, page.Proposals, 3)
	assert.Equal(t, 180, textLength(page.Content))
}

func TestAcceptLedgerWriteFailure(t *testing.T) {
	ctx := context.Background()
	storyRepo := new(repomocks.StoryRepository)
	pageRepo := new(repomocks.PageRepository)
	propRepo := new(repomocks.ProposalRepository)
	publisher := new(msgmocks.EventPublisher)
	logger := zap.NewNop()
	locker := NewLocalLocker(5 * time.Second)
	policy := DefaultContentPolicy()

	pending := models.Proposal{ID: "p1", StoryID: "s1", PageNumber: 1, Author: "A", Text: textOf("x", 60), Status: models.ProposalStatusPending}
	propRepo.On("List", mock.Anything, "s1").Return([]models.Proposal{pending}, nil)
	propRepo.On("SaveAll", mock.Anything, "s1", mock.Anything).Return(errors.New("disk full"))
	pageRepo.On("Get", mock.Anything, "s1", 1).Return(models.NewPage(1, false), nil)
	pageRepo.On("Save", mock.Anything, "s1", mock.AnythingOfType("*models.Page")).Return(nil)

	pages := NewPageService(storyRepo, pageRepo, propRepo, nil, policy, locker, publisher, logger)
	proposals := NewProposalService(propRepo, pages, policy, locker, publisher, logger)

	_, err := proposals.Accept(ctx, "s1", "p1")
	require.Error(t, err)
	assert.Equal(t, models.KindInternal, models.KindOf(err))

	// страница уже сохранена, журнал - нет: известная граница согласованности
	pageRepo.AssertCalled(t, "Save", mock.Anything, "s1", mock.AnythingOfType("*models.Page"))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
