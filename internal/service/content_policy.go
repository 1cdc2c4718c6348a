package service

import (
	"strings"
	"unicode/utf8"

	"story-zine/internal/models"
)

// ContentPolicy - правила длины текста. Длина считается в символах Unicode.
type ContentPolicy struct {
	ProposalMin   int
	ProposalMax   int
	PageTotalMin  int
	PageTotalMax  int
	AcceptLimit   int // максимум принятых предложений на страницу
	LockThreshold int // сколько принятых предложений нужно для блокировки страницы
}

// DefaultContentPolicy возвращает политику со значениями по умолчанию.
func DefaultContentPolicy() ContentPolicy {
	return ContentPolicy{
		ProposalMin:   50,
		ProposalMax:   250,
		PageTotalMin:  150,
		PageTotalMax:  750,
		AcceptLimit:   3,
		LockThreshold: 3,
	}
}

// SeedFits сообщает, хватает ли места на первой странице с прологом
// для LockThreshold предложений минимальной длины.
func (p ContentPolicy) SeedFits() bool {
	return textLength(models.OpeningText)+p.LockThreshold*p.ProposalMin <= p.PageTotalMax
}

func textLength(s string) int {
	return utf8.RuneCountInString(s)
}

// ValidateProposal проверяет длину текста предложения после обрезки пробелов.
func (p ContentPolicy) ValidateProposal(text string) error {
	n := textLength(strings.TrimSpace(text))
	if n < p.ProposalMin {
		return models.ErrProposalTooShort.Withf("Proposal text must be at least %d chars", p.ProposalMin)
	}
	if n > p.ProposalMax {
		return models.ErrProposalTooLong.Withf("Proposal text must be at most %d chars", p.ProposalMax)
	}
	return nil
}

// CanAppend сообщает, поместится ли text в страницу с текущим содержимым current.
func (p ContentPolicy) CanAppend(current, text string) bool {
	return textLength(current)+textLength(text) <= p.PageTotalMax
}

// GenerateOpening возвращает текст пролога для первой страницы.
func (p ContentPolicy) GenerateOpening(_ string) string {
	return models.OpeningText
}
