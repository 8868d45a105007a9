// Package audit records operational system events to the database so staff
// can trace what the engagement engines did and why.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Severity levels for system events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Repo persists system events.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo creates a new audit repository.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Insert writes one system event row.
func (r *Repo) Insert(ctx context.Context, eventType, severity string, leadID *uuid.UUID, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO system_events (event_type, severity, lead_id, payload)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, query, eventType, severity, leadID, data); err != nil {
		return fmt.Errorf("insert system event: %w", err)
	}
	return nil
}
