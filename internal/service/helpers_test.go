package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"story-zine/internal/models"
	"story-zine/internal/repository"
	"story-zine/internal/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []models.StoryEvent
}

func (r *eventRecorder) Publish(_ context.Context, event models.StoryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Event)
	}
	return out
}

func (r *eventRecorder) count(name string) int {
	n := 0
	for _, e := range r.names() {
		if e == name {
			n++
		}
	}
	return n
}

func (r *eventRecorder) find(name string) (models.StoryEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Event == name {
			return e, true
		}
	}
	return models.StoryEvent{}, false
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type testEnv struct {
	store     storage.Store
	storyRepo repository.StoryRepository
	pageRepo  repository.PageRepository
	propRepo  repository.ProposalRepository
	stories   *StoryService
	pages     *PageService
	proposals *ProposalService
	export    *ExportService
	events    *eventRecorder
}

func newTestEnv(t *testing.T, policy ContentPolicy, opts StoryServiceOptions) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := storage.NewMemoryStore()
	env := &testEnv{
		store:     store,
		storyRepo: repository.NewStoryRepository(store, logger),
		pageRepo:  repository.NewPageRepository(store, logger),
		propRepo:  repository.NewProposalRepository(store, logger),
		events:    &eventRecorder{},
	}
	locker := NewLocalLocker(5 * time.Second)
	env.stories = NewStoryService(env.storyRepo, env.pageRepo, env.propRepo, policy, locker, env.events, logger, opts)
	env.pages = NewPageService(env.storyRepo, env.pageRepo, env.propRepo, env.stories, policy, locker, env.events, logger)
	env.proposals = NewProposalService(env.propRepo, env.pages, policy, locker, env.events, logger)
	env.export = NewExportService(env.storyRepo, env.pageRepo, env.propRepo)
	return env
}

func newDefaultEnv(t *testing.T) *testEnv {
	return newTestEnv(t, DefaultContentPolicy(), StoryServiceOptions{})
}

// textOf возвращает строку из n повторений символа ch.
func textOf(ch string, n int) string {
	return strings.Repeat(ch, n)
}

func (e *testEnv) createStory(t *testing.T) *models.Story {
	t.Helper()
	story, err := e.stories.Create(context.Background(), "Test", nil)
	require.NoError(t, err)
	return story
}

func (e *testEnv) propose(t *testing.T, storyID string, page int, author, text string) *models.Proposal {
	t.Helper()
	p, err := e.proposals.Create(context.Background(), storyID, page, author, text)
	require.NoError(t, err)
	return p
}

func (e *testEnv) acceptNew(t *testing.T, storyID string, page int, text string) *AcceptResult {
	t.Helper()
	p := e.propose(t, storyID, page, "A", text)
	res, err := e.proposals.Accept(context.Background(), storyID, p.ID)
	require.NoError(t, err)
	return res
}

// fillAndLock принимает три предложения по 60 символов и блокирует страницу.
func (e *testEnv) fillAndLock(t *testing.T, storyID string, page int) *LockResult {
	t.Helper()
	for _, ch := range []string{"a", "b", "c"} {
		e.acceptNew(t, storyID, page, textOf(ch, 60))
	}
	res, err := e.pages.Lock(context.Background(), storyID, page)
	require.NoError(t, err)
	return res
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}
