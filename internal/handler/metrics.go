package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storiesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_stories_created_total",
		Help: "Total number of created stories.",
	})

	storiesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_stories_completed_total",
		Help: "Total number of stories completed by locking the last page.",
	})

	pagesLockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_pages_locked_total",
		Help: "Total number of successful page lock requests.",
	})

	proposalActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_proposal_actions_total",
			Help: "Total number of proposal actions by action and outcome.",
		},
		[]string{"action", "status"},
	)
)

func observeProposal(action string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	proposalActionsTotal.WithLabelValues(action, status).Inc()
}
