package service

import (
	"context"
	"testing"

	"story-zine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportSplitsPagesByAuthor(t *testing.T) {
	env := newTestEnv(t, DefaultContentPolicy(), StoryServiceOptions{SeedOpening: true})
	ctx := context.Background()

	story, err := env.stories.Create(ctx, "Zine", []string{"ａnn", "Bo"})
	require.NoError(t, err)

	p := env.propose(t, story.ID, 1, " b ", textOf("b", 50))
	env.propose(t, story.ID, 1, "C", textOf("c", 50)) // pending, в экспорт не попадает
	_, err = env.proposals.Accept(ctx, story.ID, p.ID)
	require.NoError(t, err)

	out, err := env.export.Export(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.ID, out.Story.ID)
	require.Len(t, out.Pages, 3)

	first := out.Pages[0]
	require.Len(t, first.Blocks, 2)
	assert.Equal(t, "ANN", first.Blocks[0].Author)
	assert.Equal(t, env.stories.policy.GenerateOpening("Zine"), first.Blocks[0].Text)
	assert.Empty(t, first.Blocks[0].ProposalID)
	assert.Equal(t, ExportBlock{Author: "B", Text: textOf("b", 50), ProposalID: p.ID}, first.Blocks[1])
	assert.Equal(t, first.Blocks[0].Text+first.Blocks[1].Text, first.Content)

	assert.Empty(t, out.Pages[1].Blocks)
	assert.True(t, out.Pages[1].Locked)
}

func TestExportWithoutOpening(t *testing.T) {
	env := newDefaultEnv(t)
	ctx := context.Background()
	story := env.createStory(t)

	env.fillAndLock(t, story.ID, 1)

	out, err := env.export.Export(ctx, story.ID)
	require.NoError(t, err)
	blocks := out.Pages[0].Blocks
	require.Len(t, blocks, 3)
	for i, ch := range []string{"a", "b", "c"} {
		assert.Equal(t, textOf(ch, 60), blocks[i].Text)
		assert.Equal(t, "A", blocks[i].Author)
	}
}

func TestBuildBlocksCreditsMergedPendingProposal(t *testing.T) {
	opening := textOf("o", 160)
	merged := models.Proposal{ID: "p1", PageNumber: 1, Author: "b", Text: textOf("m", 60), Status: models.ProposalStatusPending}
	page := &models.Page{PageNumber: 1, Content: opening + merged.Text, Proposals: []string{"p1"}}

	blocks := buildBlocks(page, map[string]models.Proposal{"p1": merged}, "A")

	require.Len(t, blocks, 2)
	assert.Equal(t, ExportBlock{Author: "A", Text: opening}, blocks[0])
	assert.Equal(t, ExportBlock{Author: "B", Text: merged.Text, ProposalID: "p1"}, blocks[1])
}

func TestExportMissingStory(t *testing.T) {
	env := newDefaultEnv(t)
	_, err := env.export.Export(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrStoryNotFound)
}

func TestNormalizeAuthor(t *testing.T) {
	assert.Equal(t, "A", normalizeAuthor(" ａ "))
	assert.Equal(t, "BC", normalizeAuthor("Ｂc"))
	assert.Equal(t, "ANNA", normalizeAuthor("anna"))
}
