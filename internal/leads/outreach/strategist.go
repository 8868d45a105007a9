// Package outreach runs the re-engagement cycle for at-risk and cold leads.
package outreach

import (
	"context"
	"time"

	"advocate_backend/internal/audit"
	"advocate_backend/internal/events"
	"advocate_backend/internal/leads/domain"
	"advocate_backend/internal/leads/repository"
	"advocate_backend/platform/logger"
)

// neverContactedDays stands in for "no contact on record" so such leads
// always clear the cooldown.
const neverContactedDays = 999

const transcriptWindow = 10

// CycleStats summarizes one outreach cycle.
type CycleStats struct {
	LeadsEvaluated       int
	MessagesSent         int
	SkippedDNC           int
	SkippedHuman         int
	SkippedCooldown      int
	SkippedByDecision    int
	AIStrategiesSelected int
	Errors               int
}

// Strategist runs the periodic outreach cycle.
type Strategist struct {
	repo         repository.LeadsRepository
	decider      StrategyDecider
	composer     *Composer
	audit        *audit.Logger
	bus          events.Bus
	log          *logger.Logger
	cooldownDays int
}

// NewStrategist wires the outreach strategist.
func NewStrategist(repo repository.LeadsRepository, decider StrategyDecider, composer *Composer, auditLog *audit.Logger, bus events.Bus, log *logger.Logger, cooldownDays int) *Strategist {
	return &Strategist{
		repo:         repo,
		decider:      decider,
		composer:     composer,
		audit:        auditLog,
		bus:          bus,
		log:          log,
		cooldownDays: cooldownDays,
	}
}

// Cycle evaluates every at-risk and cold lead and sends at most one
// re-engagement message per eligible lead. Per-lead failures are counted
// and logged but never abort the cycle.
func (s *Strategist) Cycle(ctx context.Context) (CycleStats, error) {
	leads, err := s.repo.ListLeadsByStatus(ctx, []domain.Status{
		domain.StatusAtRisk,
		domain.StatusCold,
	})
	if err != nil {
		return CycleStats{}, err
	}

	var stats CycleStats
	now := time.Now().UTC()

	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.LeadsEvaluated++

		if err := s.engage(ctx, lead, now, &stats); err != nil {
			stats.Errors++
			s.log.Warn("outreach failed", "lead_id", lead.ID, "error", err)
		}
	}

	return stats, nil
}

// engage runs the qualification gauntlet and, when the lead clears it,
// decides on a strategy and sends the message.
func (s *Strategist) engage(ctx context.Context, lead domain.Lead, now time.Time, stats *CycleStats) error {
	if lead.Suppressed() {
		stats.SkippedDNC++
		return nil
	}

	last, err := s.repo.LastMessage(ctx, lead.ID)
	if err != nil {
		return err
	}
	if last != nil && last.FromHuman() {
		// Staff own the thread; an automated follow-up would talk over them.
		stats.SkippedHuman++
		return nil
	}

	days := daysSinceContact(lead, now)
	if days < s.cooldownDays {
		stats.SkippedCooldown++
		return nil
	}

	transcript, err := s.repo.ListRecentMessages(ctx, lead.ID, transcriptWindow)
	if err != nil {
		return err
	}

	decision, err := s.decider.Decide(ctx, lead, transcript, days)
	if err != nil {
		return err
	}
	decision = applyCooldownOverride(decision, days, s.cooldownDays)
	if !decision.ShouldContact {
		stats.SkippedByDecision++
		return nil
	}
	if decision.Source == SourceAI {
		stats.AIStrategiesSelected++
	}

	body := s.composer.Compose(ctx, lead, decision, transcript)

	newStatus := domain.StatusContacted
	if _, err := s.repo.RecordOutreach(ctx, repository.OutreachRecord{
		LeadID:    lead.ID,
		Body:      body,
		Origin:    domain.OriginAssistant,
		Strategy:  decision.Strategy,
		Reasoning: decision.Reasoning,
		Source:    decision.Source,
		NewStatus: &newStatus,
	}); err != nil {
		return err
	}
	stats.MessagesSent++

	s.audit.OutreachCampaign(ctx, lead.ID, decision.Strategy, decision.Source)
	s.bus.Publish(ctx, events.OutreachSent{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Strategy:  decision.Strategy,
		Source:    decision.Source,
	})

	return nil
}

// daysSinceContact measures the cooldown window from the lead's last
// contact of any kind. Leads never contacted at all always qualify.
func daysSinceContact(lead domain.Lead, now time.Time) int {
	if lead.LastContact == nil {
		return neverContactedDays
	}
	return int(now.Sub(*lead.LastContact).Hours() / 24)
}
