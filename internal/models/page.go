package models

// Page - одна из трех страниц истории.
type Page struct {
	PageNumber int      `json:"pageNumber"`
	Content    string   `json:"content"`
	Proposals  []string `json:"proposals"` // id принятых предложений в порядке слияния
	Locked     bool     `json:"locked"`
}

// NewPage создает пустую страницу.
func NewPage(pageNumber int, locked bool) *Page {
	return &Page{
		PageNumber: pageNumber,
		Content:    "",
		Proposals:  []string{},
		Locked:     locked,
	}
}

// ValidPageNumber проверяет, что номер страницы лежит в диапазоне 1..PagesPerStory.
func ValidPageNumber(n int) bool {
	return n >= 1 && n <= PagesPerStory
}

// IsLast сообщает, является ли страница последней в истории.
func (p *Page) IsLast() bool {
	return p.PageNumber == PagesPerStory
}
