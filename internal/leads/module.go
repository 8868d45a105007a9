// Package leads provides the lead engagement bounded context module.
package leads

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"advocate_backend/internal/assets"
	"advocate_backend/internal/audit"
	catalog "advocate_backend/internal/catalog/repository"
	"advocate_backend/internal/events"
	apphttp "advocate_backend/internal/http"
	"advocate_backend/internal/leads/conversation"
	"advocate_backend/internal/leads/handler"
	"advocate_backend/internal/leads/outreach"
	"advocate_backend/internal/leads/repository"
	"advocate_backend/internal/leads/risk"
	"advocate_backend/internal/leads/scanner"
	"advocate_backend/platform/ai"
	"advocate_backend/platform/config"
	"advocate_backend/platform/logger"
	"advocate_backend/platform/validator"
)

// ModuleConfig combines the config interfaces the leads module needs.
type ModuleConfig interface {
	config.AIConfig
	config.EngagementConfig
}

// Module is the leads bounded context: intake, conversation routing and the
// three background engines.
type Module struct {
	handler    *handler.Handler
	repo       repository.LeadsRepository
	router     *conversation.Router
	scorer     *risk.Scorer
	strategist *outreach.Strategist
	scanner    *scanner.Scanner
}

// NewModule creates and initializes the leads module. The model client may
// come in rate limited; everything downstream treats it as opaque.
func NewModule(
	pool *pgxpool.Pool,
	estimator *assets.Estimator,
	model ai.Client,
	auditLog *audit.Logger,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
	cfg ModuleConfig,
	tasks handler.TaskEnqueuer,
) *Module {
	repo := repository.New(pool)
	catalogRepo := catalog.New(pool)

	router := conversation.NewRouter(repo, catalogRepo, estimator, model, auditLog, bus, log, cfg.GetAITimeout())

	intervener := risk.NewIntervener(repo, model, catalogRepo, auditLog, log, cfg.GetAITimeout())
	scorer := risk.NewScorer(repo, risk.NewAnalyzer(), intervener, auditLog, bus, log)

	var decider outreach.StrategyDecider = outreach.NewRuleDecider(cfg.GetOutreachCooldownDays())
	if cfg.IsAIEnabled() {
		decider = outreach.NewAIDecider(model, catalogRepo, decider, log, cfg.GetAITimeout())
	}
	strategist := outreach.NewStrategist(repo, decider, outreach.NewComposer(catalogRepo), auditLog, bus, log, cfg.GetOutreachCooldownDays())

	scan := scanner.New(repo, model, auditLog, bus, log, scanner.Config{
		Parallelism:  cfg.GetScanParallelism(),
		ModelTimeout: cfg.GetAITimeout(),
	})

	return &Module{
		handler:    handler.New(repo, router, tasks, val),
		repo:       repo,
		router:     router,
		scorer:     scorer,
		strategist: strategist,
		scanner:    scan,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.LeadsRepository {
	return m.repo
}

// Scorer returns the risk engine for the background worker.
func (m *Module) Scorer() *risk.Scorer {
	return m.scorer
}

// Strategist returns the outreach engine for the background worker.
func (m *Module) Strategist() *outreach.Strategist {
	return m.strategist
}

// Scanner returns the opportunity engine for the background worker.
func (m *Module) Scanner() *scanner.Scanner {
	return m.scanner
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/leads", m.handler.CreateLead)
	ctx.V1.GET("/leads/:id", m.handler.GetLead)
	ctx.V1.POST("/leads/:id/messages", m.handler.PostMessage)
	ctx.V1.GET("/leads/risk-summary", m.handler.RiskSummary)

	// Manual agent triggers for operators.
	ctx.Protected.POST("/agents/risk-sweep", m.handler.TriggerRiskSweep)
	ctx.Protected.POST("/agents/outreach-cycle", m.handler.TriggerOutreachCycle)
	ctx.Protected.POST("/agents/opportunity-scan", m.handler.TriggerOpportunityScan)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
