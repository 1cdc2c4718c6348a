package models

import "fmt"

// Названия событий, рассылаемых подписчикам комнаты истории.
const (
	EventStoryCreated     = "story:created"
	EventStoryCompleted   = "story:completed"
	EventProposalCreated  = "proposal:created"
	EventProposalAccepted = "proposal:accepted"
	EventProposalRejected = "proposal:rejected"
	EventPageUpdated      = "page:updated"
	EventPageLocked       = "page:locked"
	EventPageOpened       = "page:opened"
)

// LobbyRoom - комната для событий, не привязанных к конкретной истории.
const LobbyRoom = "stories"

// StoryRoom возвращает имя комнаты для истории.
func StoryRoom(storyID string) string {
	return fmt.Sprintf("story:%s", storyID)
}

// StoryEvent - событие, публикуемое после успешного сохранения изменений.
type StoryEvent struct {
	Room    string `json:"room"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type StoryCreatedPayload struct {
	Story Story `json:"story"`
}

type ProposalCreatedPayload struct {
	Proposal Proposal `json:"proposal"`
}

type ProposalStatusPayload struct {
	ProposalID string `json:"proposalId"`
}

type PageUpdatedPayload struct {
	StoryID    string `json:"storyId"`
	PageNumber int    `json:"pageNumber"`
	Content    string `json:"content"`
}

// PageRefPayload используется для page:locked и page:opened.
type PageRefPayload struct {
	StoryID    string `json:"storyId"`
	PageNumber int    `json:"pageNumber"`
}

type StoryCompletedPayload struct {
	StoryID string `json:"storyId"`
}
