// Package handler exposes the engagement API over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"swipelink_backend/internal/engagement/service"
	"swipelink_backend/internal/engagement/transport"
	"swipelink_backend/platform/httpkit"
	"swipelink_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc  *service.Service
	orch *service.Orchestrator
	val  *validator.Validator
}

func New(svc *service.Service, orch *service.Orchestrator, val *validator.Validator) *Handler {
	return &Handler{svc: svc, orch: orch, val: val}
}

// RegisterLinkRoutes mounts the link lifecycle routes.
func (h *Handler) RegisterLinkRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateLink)
	rg.POST("/:linkID/share", h.ShareLink)
	rg.POST("/:linkID/sessions", h.StartSession)
	rg.GET("/:linkID/sessions", h.ListSessions)
}

// RegisterSessionRoutes mounts the client-facing session routes.
func (h *Handler) RegisterSessionRoutes(rg *gin.RouterGroup) {
	rg.POST("/:sessionID/interactions", h.RecordInteraction)
	rg.POST("/:sessionID/end", h.EndSession)
}

// RegisterDealRoutes mounts the agent-facing deal routes.
func (h *Handler) RegisterDealRoutes(rg *gin.RouterGroup) {
	rg.GET("/:dealID", h.GetDeal)
	rg.GET("/:dealID/tasks", h.ListDealTasks)
	rg.POST("/:dealID/showings", h.ScheduleShowing)
	rg.POST("/:dealID/close", h.CloseDeal)
}

// RegisterTaskRoutes mounts the task resolution route.
func (h *Handler) RegisterTaskRoutes(rg *gin.RouterGroup) {
	rg.PATCH("/:taskID", h.ResolveTask)
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, param+" must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) CreateLink(c *gin.Context) {
	var req transport.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CreateLink(c.Request.Context(), service.CreateLinkInput{
		AgentID:       req.AgentID,
		Name:          req.Name,
		PropertyCount: req.PropertyCount,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.CreateLinkResponse{
		Link:  transport.FromLink(result.Link),
		Deal:  transport.FromDeal(result.Deal),
		Tasks: transport.FromTasks(result.Tasks),
	})
}

func (h *Handler) ShareLink(c *gin.Context) {
	linkID, ok := parseID(c, "linkID")
	if !ok {
		return
	}

	deal, err := h.svc.ShareLink(c.Request.Context(), linkID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromDeal(deal))
}

func (h *Handler) StartSession(c *gin.Context) {
	linkID, ok := parseID(c, "linkID")
	if !ok {
		return
	}

	// The body is optional: anonymous clients start sessions without it.
	var req transport.StartSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	in := service.StartSessionInput{LinkID: linkID}
	if req.Client != nil {
		in.Client = service.ClientContext{
			ClientID: req.Client.ClientID,
			Name:     req.Client.Name,
			Phone:    req.Client.Phone,
			Email:    req.Client.Email,
		}
	}

	result, err := h.svc.StartSession(c.Request.Context(), in)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.StartSessionResponse{
		Session:     transport.FromSession(result.Session),
		ReturnVisit: result.ReturnVisit,
	})
}

func (h *Handler) ListSessions(c *gin.Context) {
	linkID, ok := parseID(c, "linkID")
	if !ok {
		return
	}

	sessions, err := h.svc.ListLinkSessions(c.Request.Context(), linkID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromSessions(sessions))
}

func (h *Handler) RecordInteraction(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionID")
	if !ok {
		return
	}

	var req transport.RecordInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.orch.RecordInteraction(c.Request.Context(), service.RecordInteractionInput{
		SessionID:  sessionID,
		PropertyID: req.PropertyID,
		Action:     req.Action,
		OccurredAt: req.OccurredAt,
		Metadata:   req.Metadata,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.InteractionResponse{
		Session: transport.FromSession(result.Session),
		Metrics: result.Metrics,
	}
	if result.Eval != nil {
		deal := transport.FromDeal(result.Eval.Deal)
		resp.Deal = &deal
		resp.Tasks = transport.FromTasks(result.Eval.Tasks)
	}

	httpkit.OK(c, resp)
}

func (h *Handler) EndSession(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionID")
	if !ok {
		return
	}

	result, err := h.orch.EndSession(c.Request.Context(), sessionID, false)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.EndSessionResponse{
		Session:   transport.FromSession(result.Session),
		Metrics:   result.Metrics,
		Finalized: result.Finalized,
	}
	if result.Eval != nil {
		deal := transport.FromDeal(result.Eval.Deal)
		resp.Deal = &deal
	}

	httpkit.OK(c, resp)
}

func (h *Handler) GetDeal(c *gin.Context) {
	dealID, ok := parseID(c, "dealID")
	if !ok {
		return
	}

	overview, err := h.svc.GetDealOverview(c.Request.Context(), dealID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromOverview(overview))
}

func (h *Handler) ListDealTasks(c *gin.Context) {
	dealID, ok := parseID(c, "dealID")
	if !ok {
		return
	}

	onlyOpen := c.Query("status") == "open"
	tasks, err := h.svc.ListDealTasks(c.Request.Context(), dealID, onlyOpen)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromTasks(tasks))
}

func (h *Handler) ScheduleShowing(c *gin.Context) {
	dealID, ok := parseID(c, "dealID")
	if !ok {
		return
	}

	result, err := h.orch.ScheduleShowing(c.Request.Context(), dealID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromDeal(result.Deal))
}

func (h *Handler) CloseDeal(c *gin.Context) {
	dealID, ok := parseID(c, "dealID")
	if !ok {
		return
	}

	var req transport.CloseDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	deal, err := h.svc.CloseDeal(c.Request.Context(), dealID, req.Won)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromDeal(deal))
}

func (h *Handler) ResolveTask(c *gin.Context) {
	taskID, ok := parseID(c, "taskID")
	if !ok {
		return
	}

	var req transport.ResolveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	task, err := h.svc.ResolveTask(c.Request.Context(), taskID, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromTask(task))
}
