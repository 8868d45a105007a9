package repository

import (
	"context"
	"time"

	"advocate_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// CreateLeadParams holds the fields for lead intake.
type CreateLeadParams struct {
	Name  string
	Phone string
}

// CreateMessageParams holds the fields for persisting a conversation turn.
type CreateMessageParams struct {
	LeadID    uuid.UUID
	Direction domain.Direction
	Origin    domain.Origin
	Body      string
	Intent    *string
}

// RiskUpdate carries the result of a risk evaluation for one lead.
type RiskUpdate struct {
	LeadID        uuid.UUID
	Score         int
	Level         domain.RiskLevel
	Sentiment     float64
	Factors       []string
	NewStatus     *domain.Status
	ReasonForCold *string
}

// OutreachRecord persists one outbound engagement decision atomically:
// the message, the strategy log entry, the last-contact touch and an
// optional status move happen in a single transaction.
type OutreachRecord struct {
	LeadID    uuid.UUID
	Body      string
	Origin    domain.Origin
	Strategy  string
	Reasoning string
	Source    string
	NewStatus *domain.Status
}

// StatusCount is one row of the risk summary aggregation.
type StatusCount struct {
	Status domain.Status
	Count  int
}

// LeadsRepository is the persistence boundary for the engagement engines.
type LeadsRepository interface {
	CreateLead(ctx context.Context, params CreateLeadParams) (domain.Lead, error)
	GetLeadByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	GetLeadByPhone(ctx context.Context, phone string) (domain.Lead, error)
	ListLeadsByStatus(ctx context.Context, statuses []domain.Status) ([]domain.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
	UpdateLeadRisk(ctx context.Context, update RiskUpdate) error
	TouchLastContact(ctx context.Context, id uuid.UUID, at time.Time) error

	CreateMessage(ctx context.Context, params CreateMessageParams) (domain.Message, error)
	SetMessageIntent(ctx context.Context, id uuid.UUID, intent string) error
	ListRecentMessages(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.Message, error)
	LastMessage(ctx context.Context, leadID uuid.UUID) (*domain.Message, error)
	CountMessages(ctx context.Context, leadID uuid.UUID) (int, error)

	RecordOutreach(ctx context.Context, record OutreachRecord) (domain.Message, error)
	LastStrategyAt(ctx context.Context, leadID uuid.UUID, sources []string) (*time.Time, error)

	CountByStatus(ctx context.Context) ([]StatusCount, error)
	TopAtRisk(ctx context.Context, limit int) ([]domain.Lead, error)
}
