package models

// StoryStatus - статус истории.
type StoryStatus string

const (
	StoryStatusActive    StoryStatus = "active"
	StoryStatusCompleted StoryStatus = "completed"
)

const (
	// PagesPerStory - фиксированное количество страниц в истории.
	PagesPerStory = 3
	// MaxAuthors - максимальное количество авторов истории.
	MaxAuthors = 3
)

// OpeningText - фиксированный пролог первой страницы. Название истории не учитывается.
const OpeningText = "Before dawn the fog city still slept. Shen An stood at the old post office with a letter that had no sender. " +
	"Inside was one line: \"When the fog lifts, you will see the choice you forgot.\" Then someone called her name."

// DefaultAuthors возвращает список авторов по умолчанию.
func DefaultAuthors() []string {
	return []string{"A", "B", "C"}
}

// Story представляет историю, состоящую ровно из трех страниц.
type Story struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Authors   []string    `json:"authors"`
	Pages     []int       `json:"pages"`
	Status    StoryStatus `json:"status"`
	CreatedAt int64       `json:"createdAt"` // unix ms
}

// IsCompleted сообщает, завершена ли история.
func (s *Story) IsCompleted() bool {
	return s.Status == StoryStatusCompleted
}

// NormalizeAuthors обрезает список авторов до MaxAuthors
// и подставляет значения по умолчанию для пустого списка.
func NormalizeAuthors(authors []string) []string {
	if len(authors) == 0 {
		return DefaultAuthors()
	}
	if len(authors) > MaxAuthors {
		authors = authors[:MaxAuthors]
	}
	out := make([]string, len(authors))
	copy(out, authors)
	return out
}
