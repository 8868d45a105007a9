// Package events defines the domain events exchanged between modules.
package events

import (
	"time"

	platformevents "advocate_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types so modules import a single events package.
type (
	Event       = platformevents.Event
	BaseEvent   = platformevents.BaseEvent
	Handler     = platformevents.Handler
	HandlerFunc = platformevents.HandlerFunc
	Bus         = platformevents.Bus
)

// NewBaseEvent creates a new base event with the current timestamp.
func NewBaseEvent() BaseEvent {
	return platformevents.NewBaseEvent()
}

// LeadStatusChanged fires whenever a lead moves between lifecycle statuses.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID
	OldStatus string
	NewStatus string
	Reason    string
}

// EventName returns the unique event identifier.
func (e LeadStatusChanged) EventName() string { return "leads.status_changed" }

// LeadEscalated fires when a conversation is routed to human staff.
type LeadEscalated struct {
	BaseEvent
	LeadID   uuid.UUID
	LeadName string
	Phone    string
	Intent   string
	Message  string
}

// EventName returns the unique event identifier.
func (e LeadEscalated) EventName() string { return "leads.escalated" }

// OutreachSent fires after a re-engagement message is persisted for a lead.
type OutreachSent struct {
	BaseEvent
	LeadID   uuid.UUID
	Strategy string
	Source   string
}

// EventName returns the unique event identifier.
func (e OutreachSent) EventName() string { return "outreach.sent" }

// OpportunityFound fires when the scanner decides to engage a lead.
type OpportunityFound struct {
	BaseEvent
	LeadID    uuid.UUID
	Strategy  string
	Urgency   string
	Reasoning string
}

// EventName returns the unique event identifier.
func (e OpportunityFound) EventName() string { return "scanner.opportunity_found" }

// ExplainerAccessed fires when a financial explainer link is opened.
type ExplainerAccessed struct {
	BaseEvent
	ExplainerID uuid.UUID
	LeadID      uuid.UUID
	FirstAccess bool
	AccessedAt  time.Time
}

// EventName returns the unique event identifier.
func (e ExplainerAccessed) EventName() string { return "assets.explainer_accessed" }
