// Package handler exposes the leads HTTP endpoints.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"advocate_backend/internal/leads/conversation"
	"advocate_backend/internal/leads/domain"
	"advocate_backend/internal/leads/repository"
	"advocate_backend/internal/leads/transport"
	"advocate_backend/platform/httpkit"
	"advocate_backend/platform/phone"
	"advocate_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid lead id"
	msgInvalidPhone     = "invalid phone number"
)

const topAtRiskLimit = 10

// TaskEnqueuer queues background agent runs. The scheduler client
// implements it; handlers never run the engines inline.
type TaskEnqueuer interface {
	EnqueueRiskSweep(ctx context.Context) error
	EnqueueOutreachCycle(ctx context.Context) error
	EnqueueOpportunityScan(ctx context.Context) error
}

// Handler handles HTTP requests for leads.
type Handler struct {
	repo   repository.LeadsRepository
	router *conversation.Router
	tasks  TaskEnqueuer
	val    *validator.Validator
}

// New creates a new leads handler.
func New(repo repository.LeadsRepository, router *conversation.Router, tasks TaskEnqueuer, val *validator.Validator) *Handler {
	return &Handler{repo: repo, router: router, tasks: tasks, val: val}
}

// CreateLead registers a new lead.
// POST /api/v1/leads
func (h *Handler) CreateLead(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if !phone.IsValid(req.Phone) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidPhone, nil)
		return
	}

	lead, err := h.repo.CreateLead(c.Request.Context(), repository.CreateLeadParams{
		Name:  req.Name,
		Phone: phone.NormalizeE164(req.Phone),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, leadResponse(lead))
}

// GetLead returns one lead by id.
// GET /api/v1/leads/:id
func (h *Handler) GetLead(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}

	lead, err := h.repo.GetLeadByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, leadResponse(lead))
}

// PostMessage records an inbound message and returns the instant reply.
// POST /api/v1/leads/:id/messages
func (h *Handler) PostMessage(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	reply, err := h.router.HandleInbound(c.Request.Context(), id, req.Body)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.PostMessageResponse{
		Intent:    string(reply.Intent),
		IsHandoff: reply.Handoff,
		InHandoff: reply.InHandoff,
	}
	if reply.Message != nil {
		msg := messageResponse(*reply.Message)
		resp.Reply = &msg
	}

	httpkit.OK(c, resp)
}

// RiskSummary returns the status breakdown and the highest-risk leads.
// GET /api/v1/leads/risk-summary
func (h *Handler) RiskSummary(c *gin.Context) {
	counts, err := h.repo.CountByStatus(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	top, err := h.repo.TopAtRisk(c.Request.Context(), topAtRiskLimit)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.RiskSummaryResponse{
		Statuses:  make([]transport.StatusCountResponse, 0, len(counts)),
		TopAtRisk: make([]transport.LeadResponse, 0, len(top)),
	}
	for _, count := range counts {
		resp.Statuses = append(resp.Statuses, transport.StatusCountResponse{
			Status: string(count.Status),
			Count:  count.Count,
		})
	}
	for _, lead := range top {
		resp.TopAtRisk = append(resp.TopAtRisk, leadResponse(lead))
	}

	httpkit.OK(c, resp)
}

// TriggerRiskSweep queues a risk sweep.
// POST /api/v1/agents/risk-sweep
func (h *Handler) TriggerRiskSweep(c *gin.Context) {
	h.trigger(c, "risk_sweep", h.tasks.EnqueueRiskSweep)
}

// TriggerOutreachCycle queues an outreach cycle.
// POST /api/v1/agents/outreach-cycle
func (h *Handler) TriggerOutreachCycle(c *gin.Context) {
	h.trigger(c, "outreach_cycle", h.tasks.EnqueueOutreachCycle)
}

// TriggerOpportunityScan queues an opportunity scan.
// POST /api/v1/agents/opportunity-scan
func (h *Handler) TriggerOpportunityScan(c *gin.Context) {
	h.trigger(c, "opportunity_scan", h.tasks.EnqueueOpportunityScan)
}

func (h *Handler) trigger(c *gin.Context, job string, enqueue func(ctx context.Context) error) {
	if err := enqueue(c.Request.Context()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.TriggerResponse{Job: job, Queued: true})
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}

func leadResponse(lead domain.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:             lead.ID,
		Name:           lead.Name,
		Phone:          lead.Phone,
		Status:         string(lead.Status),
		RiskLevel:      string(lead.RiskLevel),
		RiskScore:      lead.RiskScore,
		RiskFactors:    lead.RiskFactors,
		SentimentScore: lead.SentimentScore,
		ReasonForCold:  lead.ReasonForCold,
		LastContact:    lead.LastContact,
		CreatedAt:      lead.CreatedAt,
	}
}

func messageResponse(msg domain.Message) transport.MessageResponse {
	return transport.MessageResponse{
		ID:        msg.ID,
		Direction: string(msg.Direction),
		Origin:    string(msg.Origin),
		Body:      msg.Body,
		Intent:    msg.Intent,
		CreatedAt: msg.CreatedAt,
	}
}
