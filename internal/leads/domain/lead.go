// Package domain holds the lead lifecycle types shared across the
// engagement engines.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is a lead's lifecycle state.
type Status string

const (
	StatusNew          Status = "new"
	StatusActive       Status = "active"
	StatusAtRisk       Status = "at_risk"
	StatusCold         Status = "cold"
	StatusContacted    Status = "contacted"
	StatusHumanHandoff Status = "human_handoff"
	StatusConverted    Status = "converted"
	StatusDoNotContact Status = "do_not_contact"
)

// RiskLevel classifies how likely a lead is to disengage.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Lead is a prospective patient tracked by the engagement engine.
type Lead struct {
	ID             uuid.UUID
	Name           string
	Phone          string
	Status         Status
	RiskLevel      RiskLevel
	RiskScore      int
	RiskFactors    []string
	SentimentScore float64
	ReasonForCold  *string
	LastContact    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Suppressed reports whether all generated output must be withheld
// from this lead.
func (l Lead) Suppressed() bool {
	return l.Status == StatusDoNotContact
}

// InHandoff reports whether the conversation is owned by human staff.
func (l Lead) InHandoff() bool {
	return l.Status == StatusHumanHandoff
}

// RiskEligible reports whether the lead participates in risk sweeps.
func (l Lead) RiskEligible() bool {
	return l.Status == StatusActive || l.Status == StatusAtRisk
}

// SilenceSince returns the reference time silence is measured from: the
// newest message regardless of sender, falling back to creation time for
// leads with no conversation yet.
func (l Lead) SilenceSince(lastMessage *time.Time) time.Time {
	if lastMessage != nil {
		return *lastMessage
	}
	return l.CreatedAt
}
