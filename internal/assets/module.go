package assets

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"advocate_backend/internal/audit"
	"advocate_backend/internal/events"
	apphttp "advocate_backend/internal/http"
	"advocate_backend/platform/config"
	"advocate_backend/platform/logger"
)

// Module is the assets bounded context: financial explainer generation and
// the public tokenized access endpoint.
type Module struct {
	handler   *Handler
	estimator *Estimator
}

// NewModule creates and initializes the assets module.
func NewModule(pool *pgxpool.Pool, auditLog *audit.Logger, bus events.Bus, log *logger.Logger, cfg config.EngagementConfig) *Module {
	repo := NewRepository(pool)
	estimator := NewEstimator(repo, auditLog, bus, log, cfg.GetAppBaseURL(), cfg.GetFinancePlanMonths())

	return &Module{
		handler:   NewHandler(estimator, log),
		estimator: estimator,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assets"
}

// Estimator returns the estimator for use by the conversation router.
func (m *Module) Estimator() *Estimator {
	return m.estimator
}

// RegisterRoutes mounts the public explainer route. The token in the URL
// is the only credential, so the route stays outside the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/explainers/:token", m.handler.GetExplainer)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
