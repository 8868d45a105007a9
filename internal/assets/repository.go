package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"advocate_backend/platform/apperr"
)

// PlanOption is a single financing term inside an explainer.
type PlanOption struct {
	Months       int   `json:"months"`
	MonthlyCents int64 `json:"monthly_cents"`
}

// Explainer is a stored financial breakdown for one lead and procedure.
type Explainer struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	Token           string
	Category        string
	TotalCents      int64
	InsuranceCents  int64
	PatientCents    int64
	Plans           []PlanOption
	AccessCount     int
	FirstAccessedAt *time.Time
	CreatedAt       time.Time
}

// ExplainersRepository persists financial explainers.
type ExplainersRepository interface {
	Insert(ctx context.Context, explainer Explainer) (Explainer, error)
	GetByToken(ctx context.Context, token string) (Explainer, error)
	// Access increments the access counter and stamps the first access time
	// once. It reports whether this was the first access.
	Access(ctx context.Context, token string) (Explainer, bool, error)
}

type pgExplainersRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL-backed explainers repository.
func NewRepository(pool *pgxpool.Pool) ExplainersRepository {
	return &pgExplainersRepository{pool: pool}
}

var _ ExplainersRepository = (*pgExplainersRepository)(nil)

const explainerColumns = `id, lead_id, token, category, total_cents, insurance_cents, patient_cents, plans, access_count, first_accessed_at, created_at`

func (r *pgExplainersRepository) Insert(ctx context.Context, explainer Explainer) (Explainer, error) {
	plansJSON, err := json.Marshal(explainer.Plans)
	if err != nil {
		return Explainer{}, fmt.Errorf("marshal plans: %w", err)
	}

	query := `
		INSERT INTO financial_explainers (lead_id, token, category, total_cents, insurance_cents, patient_cents, plans)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + explainerColumns

	row := r.pool.QueryRow(ctx, query,
		explainer.LeadID,
		explainer.Token,
		explainer.Category,
		explainer.TotalCents,
		explainer.InsuranceCents,
		explainer.PatientCents,
		plansJSON,
	)

	stored, err := scanExplainer(row)
	if err != nil {
		return Explainer{}, fmt.Errorf("insert explainer: %w", err)
	}
	return stored, nil
}

func (r *pgExplainersRepository) GetByToken(ctx context.Context, token string) (Explainer, error) {
	query := `SELECT ` + explainerColumns + ` FROM financial_explainers WHERE token = $1`

	explainer, err := scanExplainer(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Explainer{}, apperr.NotFound("explainer not found")
		}
		return Explainer{}, fmt.Errorf("get explainer by token: %w", err)
	}
	return explainer, nil
}

func (r *pgExplainersRepository) Access(ctx context.Context, token string) (Explainer, bool, error) {
	query := `
		UPDATE financial_explainers
		SET access_count = access_count + 1,
		    first_accessed_at = COALESCE(first_accessed_at, now())
		WHERE token = $1
		RETURNING ` + explainerColumns

	explainer, err := scanExplainer(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Explainer{}, false, apperr.NotFound("explainer not found")
		}
		return Explainer{}, false, fmt.Errorf("access explainer: %w", err)
	}

	firstAccess := explainer.AccessCount == 1
	return explainer, firstAccess, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExplainer(row rowScanner) (Explainer, error) {
	var (
		explainer Explainer
		plansJSON []byte
	)

	err := row.Scan(
		&explainer.ID,
		&explainer.LeadID,
		&explainer.Token,
		&explainer.Category,
		&explainer.TotalCents,
		&explainer.InsuranceCents,
		&explainer.PatientCents,
		&plansJSON,
		&explainer.AccessCount,
		&explainer.FirstAccessedAt,
		&explainer.CreatedAt,
	)
	if err != nil {
		return Explainer{}, err
	}

	if len(plansJSON) > 0 {
		if err := json.Unmarshal(plansJSON, &explainer.Plans); err != nil {
			return Explainer{}, fmt.Errorf("unmarshal plans: %w", err)
		}
	}
	return explainer, nil
}
