// Package transport defines the request and response shapes for the leads
// HTTP surface.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateLeadRequest is the intake payload.
type CreateLeadRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=200"`
	Phone string `json:"phone" validate:"required,min=7,max=32"`
}

// PostMessageRequest carries one inbound message from a lead.
type PostMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4000"`
}

// LeadResponse is the public representation of a lead.
type LeadResponse struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	Status         string     `json:"status"`
	RiskLevel      string     `json:"risk_level"`
	RiskScore      int        `json:"risk_score"`
	RiskFactors    []string   `json:"risk_factors"`
	SentimentScore float64    `json:"sentiment_score"`
	ReasonForCold  *string    `json:"reason_for_cold,omitempty"`
	LastContact    *time.Time `json:"last_contact,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MessageResponse is one conversation turn.
type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	Direction string    `json:"direction"`
	Origin    string    `json:"origin"`
	Body      string    `json:"body"`
	Intent    *string   `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PostMessageResponse returns the generated reply, when there is one.
type PostMessageResponse struct {
	Intent    string           `json:"intent,omitempty"`
	Reply     *MessageResponse `json:"reply,omitempty"`
	IsHandoff bool             `json:"is_handoff"`
	InHandoff bool             `json:"in_handoff"`
}

// StatusCountResponse is one row of the risk summary.
type StatusCountResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// RiskSummaryResponse aggregates the lead base by status and lists the
// leads most in need of attention.
type RiskSummaryResponse struct {
	Statuses  []StatusCountResponse `json:"statuses"`
	TopAtRisk []LeadResponse        `json:"top_at_risk"`
}

// TriggerResponse acknowledges a queued agent run.
type TriggerResponse struct {
	Job    string `json:"job"`
	Queued bool   `json:"queued"`
}
