package assets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"advocate_backend/internal/audit"
	"advocate_backend/internal/events"
	"advocate_backend/platform/logger"
)

// Estimator builds financial explainers and records access to them.
type Estimator struct {
	repo       ExplainersRepository
	audit      *audit.Logger
	bus        events.Bus
	log        *logger.Logger
	baseURL    string
	planMonths []int
}

// NewEstimator wires an estimator with the configured financing terms.
func NewEstimator(repo ExplainersRepository, auditLog *audit.Logger, bus events.Bus, log *logger.Logger, baseURL string, planMonths []int) *Estimator {
	return &Estimator{
		repo:       repo,
		audit:      auditLog,
		bus:        bus,
		log:        log,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		planMonths: planMonths,
	}
}

// Generate creates an explainer for the procedure mentioned in sourceText,
// falling back to a general estimate when no procedure is recognized.
func (e *Estimator) Generate(ctx context.Context, leadID uuid.UUID, sourceText string) (Explainer, error) {
	category := DetectCategory(sourceText)

	totalCents := CostCents(category)
	insuranceCents, patientCents := SplitCost(totalCents, Coverage(category))

	plans := make([]PlanOption, 0, len(e.planMonths))
	for _, months := range e.planMonths {
		plans = append(plans, PlanOption{
			Months:       months,
			MonthlyCents: MonthlyCents(patientCents, months),
		})
	}

	token, err := newAccessToken()
	if err != nil {
		return Explainer{}, fmt.Errorf("generate access token: %w", err)
	}

	explainer, err := e.repo.Insert(ctx, Explainer{
		LeadID:         leadID,
		Token:          token,
		Category:       category,
		TotalCents:     totalCents,
		InsuranceCents: insuranceCents,
		PatientCents:   patientCents,
		Plans:          plans,
	})
	if err != nil {
		return Explainer{}, err
	}

	e.audit.Event(ctx, "explainer_generated", audit.SeverityInfo, &leadID, map[string]any{
		"category":      category,
		"total_cents":   totalCents,
		"patient_cents": patientCents,
	})

	return explainer, nil
}

// Access resolves an explainer by token and records the view. The first
// access is stamped once; later accesses only bump the counter.
func (e *Estimator) Access(ctx context.Context, token string) (Explainer, error) {
	explainer, firstAccess, err := e.repo.Access(ctx, token)
	if err != nil {
		return Explainer{}, err
	}

	e.audit.Event(ctx, "explainer_accessed", audit.SeverityInfo, &explainer.LeadID, map[string]any{
		"category":     explainer.Category,
		"access_count": explainer.AccessCount,
		"first_access": firstAccess,
	})

	e.bus.Publish(ctx, events.ExplainerAccessed{
		BaseEvent:   events.NewBaseEvent(),
		ExplainerID: explainer.ID,
		LeadID:      explainer.LeadID,
		FirstAccess: firstAccess,
		AccessedAt:  time.Now().UTC(),
	})

	return explainer, nil
}

// URL returns the public link for an explainer token.
func (e *Estimator) URL(token string) string {
	return e.baseURL + "/api/v1/explainers/" + token
}

// newAccessToken returns a 40-character hex token from 20 random bytes.
func newAccessToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
