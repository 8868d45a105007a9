package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"advocate_backend/internal/leads/domain"
	"advocate_backend/platform/apperr"
)

const (
	leadNotFoundMessage    = "lead not found"
	messageNotFoundMessage = "message not found"
	duplicatePhoneMessage  = "a lead with this phone number already exists"

	uniqueViolationCode = "23505"
)

const leadColumns = `id, name, phone, status, risk_level, risk_score, risk_factors, sentiment_score, reason_for_cold, last_contact, created_at, updated_at`

// Repo implements the leads repository on Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements LeadsRepository.
var _ LeadsRepository = (*Repo)(nil)

// CreateLead inserts a new lead in status new.
func (r *Repo) CreateLead(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	query := `
		INSERT INTO leads (name, phone)
		VALUES ($1, $2)
		RETURNING ` + leadColumns

	lead, err := scanLead(r.pool.QueryRow(ctx, query, params.Name, params.Phone))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.Lead{}, apperr.Conflict(duplicatePhoneMessage)
		}
		return domain.Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

// GetLeadByID retrieves a lead by ID.
func (r *Repo) GetLeadByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return domain.Lead{}, fmt.Errorf("get lead by id: %w", err)
	}
	return lead, nil
}

// GetLeadByPhone retrieves a lead by normalized phone number.
func (r *Repo) GetLeadByPhone(ctx context.Context, phone string) (domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone = $1`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return domain.Lead{}, fmt.Errorf("get lead by phone: %w", err)
	}
	return lead, nil
}

// ListLeadsByStatus lists all leads in any of the given statuses.
func (r *Repo) ListLeadsByStatus(ctx context.Context, statuses []domain.Status) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE status = ANY($1) ORDER BY created_at`

	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}

	rows, err := r.pool.Query(ctx, query, values)
	if err != nil {
		return nil, fmt.Errorf("list leads by status: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

// UpdateLeadStatus moves a lead to a new status.
func (r *Repo) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	query := `UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

// UpdateLeadRisk stores a risk evaluation. The level, score, factors and
// optional status move are applied in one statement so a half-written
// evaluation can never be observed.
func (r *Repo) UpdateLeadRisk(ctx context.Context, update RiskUpdate) error {
	query := `
		UPDATE leads
		SET risk_level = $2,
			risk_score = $3,
			risk_factors = $4,
			sentiment_score = $5,
			status = COALESCE($6, status),
			reason_for_cold = COALESCE($7, reason_for_cold),
			updated_at = now()
		WHERE id = $1`

	var status *string
	if update.NewStatus != nil {
		s := string(*update.NewStatus)
		status = &s
	}

	factors := update.Factors
	if factors == nil {
		factors = []string{}
	}

	result, err := r.pool.Exec(ctx, query,
		update.LeadID, string(update.Level), update.Score, factors,
		update.Sentiment, status, update.ReasonForCold,
	)
	if err != nil {
		return fmt.Errorf("update lead risk: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

// TouchLastContact updates the last contact timestamp.
func (r *Repo) TouchLastContact(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE leads SET last_contact = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("touch last contact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

// CreateMessage persists a conversation turn.
func (r *Repo) CreateMessage(ctx context.Context, params CreateMessageParams) (domain.Message, error) {
	query := `
		INSERT INTO conversation_messages (lead_id, direction, origin, body, intent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, lead_id, direction, origin, body, intent, created_at`

	msg, err := scanMessage(r.pool.QueryRow(ctx, query,
		params.LeadID, string(params.Direction), string(params.Origin), params.Body, params.Intent,
	))
	if err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// SetMessageIntent stores the classified intent on an inbound message.
func (r *Repo) SetMessageIntent(ctx context.Context, id uuid.UUID, intent string) error {
	query := `UPDATE conversation_messages SET intent = $2 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, intent)
	if err != nil {
		return fmt.Errorf("set message intent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(messageNotFoundMessage)
	}
	return nil
}

// ListRecentMessages returns up to limit most recent messages, oldest first.
func (r *Repo) ListRecentMessages(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, lead_id, direction, origin, body, intent, created_at
		FROM (
			SELECT id, lead_id, direction, origin, body, intent, created_at
			FROM conversation_messages
			WHERE lead_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("list recent messages: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// LastMessage returns the most recent message, or nil when none exist.
func (r *Repo) LastMessage(ctx context.Context, leadID uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT id, lead_id, direction, origin, body, intent, created_at
		FROM conversation_messages
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	msg, err := scanMessage(r.pool.QueryRow(ctx, query, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last message: %w", err)
	}
	return &msg, nil
}

// CountMessages counts the lead's conversation turns.
func (r *Repo) CountMessages(ctx context.Context, leadID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM conversation_messages WHERE lead_id = $1`
	if err := r.pool.QueryRow(ctx, query, leadID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// RecordOutreach writes the outbound message, strategy log entry, last
// contact touch and optional status move in one transaction.
func (r *Repo) RecordOutreach(ctx context.Context, record OutreachRecord) (domain.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Message{}, fmt.Errorf("record outreach: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	msgQuery := `
		INSERT INTO conversation_messages (lead_id, direction, origin, body)
		VALUES ($1, 'outbound', $2, $3)
		RETURNING id, lead_id, direction, origin, body, intent, created_at`

	msg, err := scanMessage(tx.QueryRow(ctx, msgQuery, record.LeadID, string(record.Origin), record.Body))
	if err != nil {
		return domain.Message{}, fmt.Errorf("record outreach: message: %w", err)
	}

	logQuery := `
		INSERT INTO strategy_log (lead_id, strategy, reasoning, source)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, logQuery, record.LeadID, record.Strategy, record.Reasoning, record.Source); err != nil {
		return domain.Message{}, fmt.Errorf("record outreach: strategy log: %w", err)
	}

	var status *string
	if record.NewStatus != nil {
		s := string(*record.NewStatus)
		status = &s
	}
	leadQuery := `
		UPDATE leads
		SET last_contact = now(),
			status = COALESCE($2, status),
			updated_at = now()
		WHERE id = $1`
	result, err := tx.Exec(ctx, leadQuery, record.LeadID, status)
	if err != nil {
		return domain.Message{}, fmt.Errorf("record outreach: lead: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.Message{}, apperr.NotFound(leadNotFoundMessage)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Message{}, fmt.Errorf("record outreach: commit: %w", err)
	}
	return msg, nil
}

// LastStrategyAt returns when a strategy from any of the given sources was
// last logged for the lead, or nil when none was.
func (r *Repo) LastStrategyAt(ctx context.Context, leadID uuid.UUID, sources []string) (*time.Time, error) {
	query := `
		SELECT created_at
		FROM strategy_log
		WHERE lead_id = $1 AND source = ANY($2)
		ORDER BY created_at DESC
		LIMIT 1`

	var at time.Time
	if err := r.pool.QueryRow(ctx, query, leadID, sources).Scan(&at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last strategy at: %w", err)
	}
	return &at, nil
}

// CountByStatus aggregates lead counts per status.
func (r *Repo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	query := `SELECT status, COUNT(*) FROM leads GROUP BY status ORDER BY status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var entry StatusCount
		var status string
		if err := rows.Scan(&status, &entry.Count); err != nil {
			return nil, fmt.Errorf("count by status: %w", err)
		}
		entry.Status = domain.Status(status)
		counts = append(counts, entry)
	}
	return counts, rows.Err()
}

// TopAtRisk lists the highest-scoring at-risk leads.
func (r *Repo) TopAtRisk(ctx context.Context, limit int) ([]domain.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE status = 'at_risk'
		ORDER BY risk_score DESC, updated_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top at risk: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var lead domain.Lead
	var status, level string
	if err := row.Scan(
		&lead.ID, &lead.Name, &lead.Phone, &status, &level, &lead.RiskScore,
		&lead.RiskFactors, &lead.SentimentScore, &lead.ReasonForCold,
		&lead.LastContact, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return domain.Lead{}, err
	}
	lead.Status = domain.Status(status)
	lead.RiskLevel = domain.RiskLevel(level)
	return lead, nil
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	var leads []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var msg domain.Message
	var direction, origin string
	if err := row.Scan(
		&msg.ID, &msg.LeadID, &direction, &origin, &msg.Body, &msg.Intent, &msg.CreatedAt,
	); err != nil {
		return domain.Message{}, err
	}
	msg.Direction = domain.Direction(direction)
	msg.Origin = domain.Origin(origin)
	return msg, nil
}
