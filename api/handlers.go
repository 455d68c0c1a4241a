package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/flowboard/flowboard/integrations"
	"github.com/flowboard/flowboard/internal/engine"
	"github.com/flowboard/flowboard/internal/metrics"
	"github.com/flowboard/flowboard/internal/models"
	"github.com/gin-gonic/gin"
)

// Handler adapts the board engine to HTTP. It holds no state of its own;
// authorization is assumed to have happened upstream.
type Handler struct {
	Engine *engine.Engine
	Bridge *integrations.TaskSyncBridge
}

// Register wires all routes onto the group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/health", h.HealthCheck)

	g.POST("/boards", h.CreateBoard)
	g.POST("/boards/:id/archive", h.ArchiveBoard)
	g.PUT("/boards/:id/status-mapping", h.SetStatusMapping)
	g.POST("/boards/:id/columns", h.AddColumn)
	g.PUT("/boards/:id/columns/order", h.ReorderColumns)
	g.PUT("/columns/:id/wip-limit", h.SetWIPLimit)

	g.POST("/boards/:id/cards", h.CreateCard)
	g.PATCH("/cards/:id", h.UpdateCard)
	g.POST("/cards/:id/move", h.MoveCard)
	g.DELETE("/cards/:id", h.RemoveCard)

	g.POST("/boards/:id/rules", h.SaveRule)

	g.GET("/boards/:id/metrics/distribution", h.MetricsDistribution)
	g.GET("/boards/:id/metrics/lead-time", h.MetricsLeadTime)
	g.GET("/boards/:id/metrics/cycle-time", h.MetricsCycleTime)
	g.GET("/boards/:id/metrics/flow", h.MetricsFlow)
	g.GET("/boards/:id/metrics/throughput", h.MetricsThroughput)
	g.GET("/boards/:id/metrics/bottlenecks", h.MetricsBottlenecks)

	g.POST("/tasks/webhook", h.TaskWebhook)
	g.HEAD("/tasks/webhook", h.TaskWebhook)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail translates engine errors to HTTP statuses.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrWIPLimitExceeded), errors.Is(err, engine.ErrBoardArchived):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrCrossBoardMove), errors.Is(err, engine.ErrInvalidRuleDefinition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type columnRequest struct {
	Name       string `json:"name" binding:"required"`
	WIPLimit   int    `json:"wipLimit"`
	Color      string `json:"color"`
	IsTerminal bool   `json:"isTerminal"`
}

type createBoardRequest struct {
	Name    string          `json:"name" binding:"required"`
	Columns []columnRequest `json:"columns"`
}

func (h *Handler) CreateBoard(c *gin.Context) {
	var req createBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	columns := make([]models.Column, len(req.Columns))
	for i, col := range req.Columns {
		columns[i] = models.Column{
			Name:       col.Name,
			WIPLimit:   col.WIPLimit,
			Color:      col.Color,
			IsTerminal: col.IsTerminal,
		}
	}
	board, err := h.Engine.CreateBoard(c.Request.Context(), req.Name, columns)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, board)
}

func (h *Handler) ArchiveBoard(c *gin.Context) {
	if err := h.Engine.ArchiveBoard(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetStatusMapping(c *gin.Context) {
	var mapping map[string]string
	if err := c.ShouldBindJSON(&mapping); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	if err := h.Engine.SetStatusMapping(c.Request.Context(), c.Param("id"), mapping); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddColumn(c *gin.Context) {
	var req columnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	col, err := h.Engine.AddColumn(c.Request.Context(), c.Param("id"), models.Column{
		Name:       req.Name,
		WIPLimit:   req.WIPLimit,
		Color:      req.Color,
		IsTerminal: req.IsTerminal,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (h *Handler) ReorderColumns(c *gin.Context) {
	var req struct {
		ColumnIDs []string `json:"columnIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	if err := h.Engine.ReorderColumns(c.Request.Context(), c.Param("id"), req.ColumnIDs); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetWIPLimit(c *gin.Context) {
	var req struct {
		Limit int `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	if err := h.Engine.SetWIPLimit(c.Request.Context(), c.Param("id"), req.Limit); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createCardRequest struct {
	ColumnID       string          `json:"columnId" binding:"required"`
	Title          string          `json:"title" binding:"required"`
	Description    string          `json:"description"`
	Priority       models.Priority `json:"priority"`
	Assignee       string          `json:"assignee"`
	DueDate        *time.Time      `json:"dueDate"`
	Labels         []string        `json:"labels"`
	ExternalTaskID string          `json:"externalTaskId"`
	Actor          string          `json:"actor"`
}

func (h *Handler) CreateCard(c *gin.Context) {
	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	card, _, err := h.Engine.CreateCard(c.Request.Context(), c.Param("id"), req.ColumnID, engine.CardDraft{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		Assignee:       req.Assignee,
		DueDate:        req.DueDate,
		Labels:         req.Labels,
		ExternalTaskID: req.ExternalTaskID,
	}, actorOr(req.Actor))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

type updateCardRequest struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	Priority     *models.Priority `json:"priority"`
	Assignee     *string          `json:"assignee"`
	DueDate      *time.Time       `json:"dueDate"`
	ClearDueDate bool             `json:"clearDueDate"`
	Labels       *[]string        `json:"labels"`
	Actor        string           `json:"actor"`
}

func (h *Handler) UpdateCard(c *gin.Context) {
	var req updateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	card, _, err := h.Engine.UpdateCard(c.Request.Context(), c.Param("id"), engine.CardPatch{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Assignee:     req.Assignee,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		Labels:       req.Labels,
	}, actorOr(req.Actor))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

type moveCardRequest struct {
	ColumnID string `json:"columnId" binding:"required"`
	Position *int   `json:"position"`
	Actor    string `json:"actor"`
}

func (h *Handler) MoveCard(c *gin.Context) {
	var req moveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	card, event, err := h.Engine.MoveCard(c.Request.Context(), c.Param("id"), req.ColumnID, req.Position, actorOr(req.Actor))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": card, "event": event})
}

func (h *Handler) RemoveCard(c *gin.Context) {
	if _, err := h.Engine.RemoveCard(c.Request.Context(), c.Param("id"), "api"); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SaveRule(c *gin.Context) {
	var rule models.AutomationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	rule.BoardID = c.Param("id")
	status := http.StatusCreated
	if rule.ID != "" {
		status = http.StatusOK
	}
	saved, err := h.Engine.SaveRule(c.Request.Context(), rule)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(status, saved)
}

func (h *Handler) MetricsDistribution(c *gin.Context) {
	h.withSnapshot(c, func(s *metrics.Snapshot) any { return metrics.Distribution(s) })
}

func (h *Handler) MetricsLeadTime(c *gin.Context) {
	h.withSnapshot(c, func(s *metrics.Snapshot) any { return metrics.LeadTimes(s) })
}

func (h *Handler) MetricsCycleTime(c *gin.Context) {
	h.withSnapshot(c, func(s *metrics.Snapshot) any { return metrics.CycleTimes(s) })
}

func (h *Handler) MetricsFlow(c *gin.Context) {
	h.withSnapshot(c, func(s *metrics.Snapshot) any { return metrics.CumulativeFlow(s) })
}

func (h *Handler) MetricsThroughput(c *gin.Context) {
	h.withSnapshot(c, func(s *metrics.Snapshot) any { return metrics.Throughput(s) })
}

func (h *Handler) MetricsBottlenecks(c *gin.Context) {
	h.withSnapshot(c, func(s *metrics.Snapshot) any { return metrics.Bottlenecks(s) })
}

func (h *Handler) withSnapshot(c *gin.Context, compute func(*metrics.Snapshot) any) {
	snap, err := h.Engine.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, compute(snap))
}

type taskWebhookPayload struct {
	BoardID string `json:"boardId"`
	TaskID  string `json:"taskId"`
	Status  string `json:"status"`
}

// TaskWebhook receives status updates from the external task tracker.
// Trackers probe the endpoint with HEAD before delivering, so non-POST
// requests get a bare 200.
func (h *Handler) TaskWebhook(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Status(http.StatusOK)
		return
	}

	var payload taskWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	if err := h.Bridge.ApplyExternalStatus(c.Request.Context(), payload.BoardID, payload.TaskID, payload.Status); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status applied"})
}

func actorOr(actor string) string {
	if actor == "" {
		return "api"
	}
	return actor
}
