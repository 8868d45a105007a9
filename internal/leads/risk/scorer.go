// Package risk scores leads on disengagement signals, tags the reasons,
// and intervenes before an at-risk lead goes cold.
package risk

import (
	"context"
	"strings"
	"time"

	"advocate_backend/internal/audit"
	"advocate_backend/internal/events"
	"advocate_backend/internal/leads/domain"
	"advocate_backend/internal/leads/repository"
	"advocate_backend/platform/logger"
)

// Scoring thresholds. Silence is measured from the newest message of any
// sender, falling back to lead creation for empty conversations.
const (
	sentimentNegative       = -0.3
	silenceLong             = 72 * time.Hour
	silenceGrowing          = 24 * time.Hour
	silenceColdWithHighRisk = 168 * time.Hour
	silenceColdAbsolute     = 336 * time.Hour
	thinConversationMsgs    = 3
	recentMessageWindow     = 10
)

// Keyword groups scanned over the last few messages for risk-factor tags.
var (
	priceKeywords      = []string{"expensive", "cost", "price", "afford", "budget", "money", "insurance"}
	anxietyKeywords    = []string{"nervous", "scared", "worried", "anxious", "pain", "hurt"}
	competitorKeywords = []string{"other dentist", "another practice", "comparing", "quote"}
)

const coldReason = "no response after risk interventions"

// Assessment is the outcome of scoring one lead.
type Assessment struct {
	Score   int
	Level   domain.RiskLevel
	Factors []string
}

// SweepStats summarizes one full risk sweep.
type SweepStats struct {
	Evaluated            int
	NewlyAtRisk          int
	InterventionsSent    int
	AggressiveOffersSent int
	MarkedCold           int
	Errors               int
}

// Scorer runs the periodic risk sweep.
type Scorer struct {
	repo       repository.LeadsRepository
	analyzer   *Analyzer
	intervener *Intervener
	audit      *audit.Logger
	bus        events.Bus
	log        *logger.Logger
}

// NewScorer wires the risk scorer. A nil intervener disables interventions.
func NewScorer(repo repository.LeadsRepository, analyzer *Analyzer, intervener *Intervener, auditLog *audit.Logger, bus events.Bus, log *logger.Logger) *Scorer {
	return &Scorer{repo: repo, analyzer: analyzer, intervener: intervener, audit: auditLog, bus: bus, log: log}
}

// Sweep evaluates every active and at-risk lead. Per-lead failures are
// counted and logged but never abort the sweep.
func (s *Scorer) Sweep(ctx context.Context) (SweepStats, error) {
	leads, err := s.repo.ListLeadsByStatus(ctx, []domain.Status{
		domain.StatusActive,
		domain.StatusAtRisk,
	})
	if err != nil {
		return SweepStats{}, err
	}

	var stats SweepStats
	now := time.Now().UTC()

	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Evaluated++

		if err := s.evaluate(ctx, lead, now, &stats); err != nil {
			stats.Errors++
			s.log.Warn("risk evaluation failed", "lead_id", lead.ID, "error", err)
		}
	}

	return stats, nil
}

// evaluate scores one lead, persists the result and fires interventions on
// a worsening level.
func (s *Scorer) evaluate(ctx context.Context, lead domain.Lead, now time.Time, stats *SweepStats) error {
	messages, err := s.repo.ListRecentMessages(ctx, lead.ID, recentMessageWindow)
	if err != nil {
		return err
	}
	msgCount, err := s.repo.CountMessages(ctx, lead.ID)
	if err != nil {
		return err
	}

	var lastMessageAt *time.Time
	if len(messages) > 0 {
		t := messages[len(messages)-1].CreatedAt
		lastMessageAt = &t
	}

	sentiment := s.analyzer.ConversationSentiment(messages)
	silence := now.Sub(lead.SilenceSince(lastMessageAt))
	assessment := assess(sentiment, silence, msgCount, messages)

	update := repository.RiskUpdate{
		LeadID:    lead.ID,
		Score:     assessment.Score,
		Level:     assessment.Level,
		Sentiment: sentiment,
		Factors:   assessment.Factors,
	}

	newStatus := nextStatus(lead, assessment.Level, now)
	if newStatus != "" {
		update.NewStatus = &newStatus
	}
	if newStatus == domain.StatusCold {
		reason := coldReason
		update.ReasonForCold = &reason
	}

	if err := s.repo.UpdateLeadRisk(ctx, update); err != nil {
		return err
	}

	if assessment.Level != lead.RiskLevel {
		severity := audit.SeverityInfo
		if assessment.Level == domain.RiskHigh {
			severity = audit.SeverityWarning
		}
		s.audit.Event(ctx, "risk_level_change", severity, &lead.ID, map[string]any{
			"old_level":  string(lead.RiskLevel),
			"new_level":  string(assessment.Level),
			"risk_score": assessment.Score,
			"factors":    assessment.Factors,
		})
	}

	if newStatus != "" {
		reason := "risk sweep"
		if newStatus == domain.StatusCold {
			reason = coldReason
			stats.MarkedCold++
		} else {
			stats.NewlyAtRisk++
		}
		s.audit.StatusChange(ctx, lead.ID, string(lead.Status), string(newStatus), reason)
		s.bus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			OldStatus: string(lead.Status),
			NewStatus: string(newStatus),
			Reason:    reason,
		})
	}

	if newStatus != domain.StatusCold {
		s.intervene(ctx, lead, assessment, messages, sentiment, stats)
	}

	return nil
}

// intervene reacts to a worsening risk level. A new high level gets the
// personalized intervention plus a retention offer; a lead already at risk
// that turns medium gets a milder check-in. Intervention failures are
// logged but never fail the evaluation that triggered them.
func (s *Scorer) intervene(ctx context.Context, lead domain.Lead, assessment Assessment, messages []domain.Message, sentiment float64, stats *SweepStats) {
	if s.intervener == nil || assessment.Level == lead.RiskLevel {
		return
	}

	switch assessment.Level {
	case domain.RiskHigh:
		if err := s.intervener.Predictive(ctx, lead, messages, sentiment, assessment.Factors); err != nil {
			s.log.Warn("predictive intervention failed", "lead_id", lead.ID, "error", err)
			return
		}
		stats.InterventionsSent++

		if err := s.intervener.RetentionOffer(ctx, lead, messages); err != nil {
			s.log.Warn("retention offer failed", "lead_id", lead.ID, "error", err)
			return
		}
		stats.AggressiveOffersSent++

	case domain.RiskMedium:
		if lead.Status != domain.StatusAtRisk {
			return
		}
		if err := s.intervener.CheckIn(ctx, lead); err != nil {
			s.log.Warn("risk check-in failed", "lead_id", lead.ID, "error", err)
			return
		}
		stats.InterventionsSent++
	}
}

// assess derives the score, level and factor tags from the raw signals.
func assess(sentiment float64, silence time.Duration, msgCount int, messages []domain.Message) Assessment {
	var score int

	switch {
	case sentiment < sentimentNegative:
		score += 2
	case sentiment < 0:
		score++
	}

	switch {
	case silence > silenceLong:
		score += 2
	case silence > silenceGrowing:
		score++
	}

	if msgCount < thinConversationMsgs {
		score++
	}

	level := domain.RiskLow
	switch {
	case score >= 3:
		level = domain.RiskHigh
	case score >= 2:
		level = domain.RiskMedium
	}

	return Assessment{
		Score:   score,
		Level:   level,
		Factors: identifyFactors(sentiment, silence, msgCount, messages),
	}
}

// identifyFactors tags everything worth a human's attention about the
// conversation. The tags are explanatory and richer than the score inputs.
func identifyFactors(sentiment float64, silence time.Duration, msgCount int, messages []domain.Message) []string {
	var factors []string

	switch {
	case sentiment < -0.5:
		factors = append(factors, "very_negative_sentiment")
	case sentiment < -0.2:
		factors = append(factors, "negative_sentiment_trend")
	}

	switch {
	case silence > silenceLong:
		factors = append(factors, "no_response_72h")
	case silence > 48*time.Hour:
		factors = append(factors, "no_response_48h")
	case silence > silenceGrowing:
		factors = append(factors, "no_response_24h")
	}

	if msgCount < thinConversationMsgs {
		factors = append(factors, "limited_engagement")
	}

	recent := recentText(messages, 3)
	if containsAny(recent, priceKeywords) {
		if sentiment < 0 {
			factors = append(factors, "price_concern_negative_sentiment")
		} else {
			factors = append(factors, "recent_price_discussion")
		}
	}
	if containsAny(recent, anxietyKeywords) {
		factors = append(factors, "dental_anxiety_signals")
	}
	if containsAny(recent, competitorKeywords) {
		factors = append(factors, "considering_competitors")
	}

	if len(messages) > 0 && messages[len(messages)-1].FromHuman() && silence > silenceGrowing {
		factors = append(factors, "no_response_after_human")
	}

	return factors
}

// nextStatus applies the risk transitions. A high level promotes an active
// lead to at_risk. An at-risk lead goes cold after a week without contact
// at high risk, or after two weeks regardless of level; leads never
// contacted at all count as silent forever.
func nextStatus(lead domain.Lead, level domain.RiskLevel, now time.Time) domain.Status {
	switch lead.Status {
	case domain.StatusActive:
		if level == domain.RiskHigh {
			return domain.StatusAtRisk
		}
	case domain.StatusAtRisk:
		sinceContact := silenceColdAbsolute + time.Hour
		if lead.LastContact != nil {
			sinceContact = now.Sub(*lead.LastContact)
		}
		if (level == domain.RiskHigh && sinceContact > silenceColdWithHighRisk) || sinceContact > silenceColdAbsolute {
			return domain.StatusCold
		}
	}
	return ""
}

// recentText joins the last n message bodies lowercased for keyword scans.
func recentText(messages []domain.Message, n int) string {
	start := len(messages) - n
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, msg := range messages[start:] {
		b.WriteString(strings.ToLower(msg.Body))
		b.WriteByte(' ')
	}
	return b.String()
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
