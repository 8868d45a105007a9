package assets

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"advocate_backend/platform/httpkit"
	"advocate_backend/platform/logger"
)

// Handler serves the public explainer endpoint.
type Handler struct {
	estimator *Estimator
	log       *logger.Logger
}

// NewHandler creates an assets HTTP handler.
func NewHandler(estimator *Estimator, log *logger.Logger) *Handler {
	return &Handler{estimator: estimator, log: log}
}

type planResponse struct {
	Months       int   `json:"months"`
	MonthlyCents int64 `json:"monthly_cents"`
}

type explainerResponse struct {
	Category       string         `json:"category"`
	TotalCents     int64          `json:"total_cents"`
	InsuranceCents int64          `json:"insurance_cents"`
	PatientCents   int64          `json:"patient_cents"`
	Plans          []planResponse `json:"plans"`
	AccessCount    int            `json:"access_count"`
}

// GetExplainer resolves a tokenized explainer link. The route is public;
// the token itself is the credential.
func (h *Handler) GetExplainer(c *gin.Context) {
	token := c.Param("token")
	if len(token) != 40 {
		httpkit.Error(c, http.StatusNotFound, "explainer not found", nil)
		return
	}

	explainer, err := h.estimator.Access(c.Request.Context(), token)
	if httpkit.HandleError(c, err) {
		return
	}

	plans := make([]planResponse, 0, len(explainer.Plans))
	for _, plan := range explainer.Plans {
		plans = append(plans, planResponse{Months: plan.Months, MonthlyCents: plan.MonthlyCents})
	}

	httpkit.OK(c, explainerResponse{
		Category:       explainer.Category,
		TotalCents:     explainer.TotalCents,
		InsuranceCents: explainer.InsuranceCents,
		PatientCents:   explainer.PatientCents,
		Plans:          plans,
		AccessCount:    explainer.AccessCount,
	})
}
