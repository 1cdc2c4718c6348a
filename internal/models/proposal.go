package models

// ProposalStatus - статус предложения.
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// Proposal - фрагмент текста, предложенный автором для конкретной страницы.
type Proposal struct {
	ID         string         `json:"id"`
	StoryID    string         `json:"storyId"`
	PageNumber int            `json:"pageNumber"`
	Author     string         `json:"author"`
	Text       string         `json:"text"`
	Status     ProposalStatus `json:"status"`
	CreatedAt  int64          `json:"createdAt"` // unix ms
}

// CountAccepted считает принятые предложения для указанной страницы.
func CountAccepted(proposals []Proposal, pageNumber int) int {
	n := 0
	for i := range proposals {
		if proposals[i].PageNumber == pageNumber && proposals[i].Status == ProposalStatusAccepted {
			n++
		}
	}
	return n
}

// FindProposal возвращает индекс предложения в списке или -1.
func FindProposal(proposals []Proposal, id string) int {
	for i := range proposals {
		if proposals[i].ID == id {
			return i
		}
	}
	return -1
}
