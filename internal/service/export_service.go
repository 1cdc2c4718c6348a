package service

import (
	"context"
	"strings"

	"story-zine/internal/models"
	"story-zine/internal/repository"
)

// ExportBlock - фрагмент страницы с указанием автора.
type ExportBlock struct {
	Author     string `json:"author"`
	Text       string `json:"text"`
	ProposalID string `json:"proposalId,omitempty"`
}

type ExportPage struct {
	PageNumber int           `json:"pageNumber"`
	Locked     bool          `json:"locked"`
	Content    string        `json:"content"`
	Blocks     []ExportBlock `json:"blocks"`
}

type StoryExport struct {
	Story models.Story `json:"story"`
	Pages []ExportPage `json:"pages"`
}

// ExportService собирает историю для печати: каждая страница разбита на блоки по авторам.
type ExportService struct {
	stories   repository.StoryRepository
	pages     repository.PageRepository
	proposals repository.ProposalRepository
}

func NewExportService(stories repository.StoryRepository, pages repository.PageRepository, proposals repository.ProposalRepository) *ExportService {
	return &ExportService{stories: stories, pages: pages, proposals: proposals}
}

func (s *ExportService) Export(ctx context.Context, storyID string) (*StoryExport, error) {
	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	proposals, err := s.proposals.List(ctx, storyID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Proposal, len(proposals))
	for _, p := range proposals {
		byID[p.ID] = p
	}

	openingAuthor := "A"
	if len(story.Authors) > 0 {
		openingAuthor = normalizeAuthor(story.Authors[0])
	}

	out := &StoryExport{Story: *story, Pages: make([]ExportPage, 0, models.PagesPerStory)}
	for n := 1; n <= models.PagesPerStory; n++ {
		page, err := s.pages.Get(ctx, storyID, n)
		if err != nil {
			return nil, err
		}
		out.Pages = append(out.Pages, ExportPage{
			PageNumber: page.PageNumber,
			Locked:     page.Locked,
			Content:    page.Content,
			Blocks:     buildBlocks(page, byID, openingAuthor),
		})
	}
	return out, nil
}

// buildBlocks делит содержимое страницы на пролог (часть, не покрытую
// слитыми предложениями) и слитые предложения в порядке слияния.
// Слитым считается предложение из page.Proposals независимо от статуса в журнале.
func buildBlocks(page *models.Page, byID map[string]models.Proposal, openingAuthor string) []ExportBlock {
	merged := make([]models.Proposal, 0, len(page.Proposals))
	covered := 0
	for _, id := range page.Proposals {
		p, ok := byID[id]
		if !ok || p.PageNumber != page.PageNumber {
			continue
		}
		merged = append(merged, p)
		covered += textLength(p.Text)
	}

	blocks := make([]ExportBlock, 0, len(merged)+1)
	content := []rune(page.Content)
	if openingLen := len(content) - covered; openingLen > 0 {
		blocks = append(blocks, ExportBlock{Author: openingAuthor, Text: string(content[:openingLen])})
	}
	for _, p := range merged {
		blocks = append(blocks, ExportBlock{Author: normalizeAuthor(p.Author), Text: p.Text, ProposalID: p.ID})
	}
	return blocks
}

var fullWidthAuthors = strings.NewReplacer(
	"Ａ", "A", "ａ", "A",
	"Ｂ", "B", "ｂ", "B",
	"Ｃ", "C", "ｃ", "C",
)

func normalizeAuthor(author string) string {
	return strings.ToUpper(fullWidthAuthors.Replace(strings.TrimSpace(author)))
}
