package handler

import (
	"context"
	"net/http"
	"strconv"

	"story-zine/internal/models"
	"story-zine/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StoryService - операции над историями, нужные HTTP слою.
type StoryService interface {
	Create(ctx context.Context, title string, authors []string) (*models.Story, error)
	Get(ctx context.Context, storyID string) (*models.Story, error)
	List(ctx context.Context) ([]models.Story, error)
}

type PageService interface {
	GetPage(ctx context.Context, storyID string, pageNumber int) (*models.Page, error)
	ListPages(ctx context.Context, storyID string) ([]models.Page, error)
	Lock(ctx context.Context, storyID string, pageNumber int) (*service.LockResult, error)
}

type ProposalService interface {
	List(ctx context.Context, storyID string) ([]models.Proposal, error)
	Create(ctx context.Context, storyID string, pageNumber int, author, text string) (*models.Proposal, error)
	Accept(ctx context.Context, storyID, proposalID string) (*service.AcceptResult, error)
	Reject(ctx context.Context, storyID, proposalID string) (*models.Proposal, error)
}

type ExportService interface {
	Export(ctx context.Context, storyID string) (*service.StoryExport, error)
}

// StoryHandler обслуживает REST API историй.
type StoryHandler struct {
	stories   StoryService
	pages     PageService
	proposals ProposalService
	export    ExportService
	logger    *zap.Logger
}

func NewStoryHandler(stories StoryService, pages PageService, proposals ProposalService, export ExportService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		stories:   stories,
		pages:     pages,
		proposals: proposals,
		export:    export,
		logger:    logger.Named("StoryHandler"),
	}
}

// RegisterRoutes регистрирует маршруты под /api. writeLimit (может быть nil)
// применяется к запросам, изменяющим данные.
func (h *StoryHandler) RegisterRoutes(router gin.IRouter, writeLimit gin.HandlerFunc) {
	with := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		if writeLimit == nil {
			return []gin.HandlerFunc{handler}
		}
		return []gin.HandlerFunc{writeLimit, handler}
	}

	api := router.Group("/api")
	{
		api.GET("/stories", h.listStories)
		api.POST("/stories", with(h.createStory)...)
		api.GET("/stories/:id", h.getStory)
		api.GET("/stories/:id/proposals", h.listProposals)
		api.GET("/stories/:id/pages", h.listPages)
		api.GET("/stories/:id/pages/:pageNumber", h.getPage)
		api.POST("/stories/:id/pages/:pageNumber/lock", with(h.lockPage)...)
		api.POST("/stories/:id/pages/:pageNumber/proposals", with(h.createProposal)...)
		api.GET("/stories/:id/export", h.exportStory)

		api.POST("/proposals/:proposalId/accept", with(h.acceptProposal)...)
		api.POST("/proposals/:proposalId/reject", with(h.rejectProposal)...)
	}
}

type createStoryRequest struct {
	Title   string   `json:"title" binding:"required"`
	Authors []string `json:"authors"`
}

type createProposalRequest struct {
	Author string `json:"author" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

type proposalActionRequest struct {
	StoryID string `json:"storyId" binding:"required"`
}

func (h *StoryHandler) listStories(c *gin.Context) {
	stories, err := h.stories.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stories)
}

func (h *StoryHandler) createStory(c *gin.Context) {
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title is required")
		return
	}

	story, err := h.stories.Create(c.Request.Context(), req.Title, req.Authors)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	storiesCreatedTotal.Inc()
	c.JSON(http.StatusCreated, story)
}

func (h *StoryHandler) getStory(c *gin.Context) {
	story, err := h.stories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

// requireStory прерывает запрос с 404, если истории нет.
func (h *StoryHandler) requireStory(c *gin.Context, storyID string) bool {
	if _, err := h.stories.Get(c.Request.Context(), storyID); err != nil {
		handleServiceError(c, h.logger, err)
		return false
	}
	return true
}

func (h *StoryHandler) listProposals(c *gin.Context) {
	storyID := c.Param("id")
	if !h.requireStory(c, storyID) {
		return
	}
	proposals, err := h.proposals.List(c.Request.Context(), storyID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, proposals)
}

func (h *StoryHandler) listPages(c *gin.Context) {
	pages, err := h.pages.ListPages(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}

func parsePageNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("pageNumber"))
	if err != nil {
		badRequest(c, "pageNumber must be an integer")
		return 0, false
	}
	return n, true
}

func (h *StoryHandler) getPage(c *gin.Context) {
	storyID := c.Param("id")
	pageNumber, ok := parsePageNumber(c)
	if !ok || !h.requireStory(c, storyID) {
		return
	}
	page, err := h.pages.GetPage(c.Request.Context(), storyID, pageNumber)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *StoryHandler) lockPage(c *gin.Context) {
	pageNumber, ok := parsePageNumber(c)
	if !ok {
		return
	}
	result, err := h.pages.Lock(c.Request.Context(), c.Param("id"), pageNumber)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	pagesLockedTotal.Inc()
	if result.Story != nil && result.Story.IsCompleted() {
		storiesCompletedTotal.Inc()
	}
	c.JSON(http.StatusOK, result)
}

func (h *StoryHandler) createProposal(c *gin.Context) {
	storyID := c.Param("id")
	pageNumber, ok := parsePageNumber(c)
	if !ok {
		return
	}
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "author and text are required")
		return
	}
	if !h.requireStory(c, storyID) {
		return
	}

	proposal, err := h.proposals.Create(c.Request.Context(), storyID, pageNumber, req.Author, req.Text)
	observeProposal("create", err)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, proposal)
}

func (h *StoryHandler) acceptProposal(c *gin.Context) {
	var req proposalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "storyId is required")
		return
	}
	if !h.requireStory(c, req.StoryID) {
		return
	}

	result, err := h.proposals.Accept(c.Request.Context(), req.StoryID, c.Param("proposalId"))
	observeProposal("accept", err)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *StoryHandler) rejectProposal(c *gin.Context) {
	var req proposalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "storyId is required")
		return
	}
	if !h.requireStory(c, req.StoryID) {
		return
	}

	proposal, err := h.proposals.Reject(c.Request.Context(), req.StoryID, c.Param("proposalId"))
	observeProposal("reject", err)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

func (h *StoryHandler) exportStory(c *gin.Context) {
	export, err := h.export.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, export)
}
