// Package scanner sweeps quiet conversations for engagement opportunities
// and either reaches out proactively or pulls staff in.
package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"advocate_backend/internal/audit"
	"advocate_backend/internal/events"
	"advocate_backend/internal/leads/domain"
	"advocate_backend/internal/leads/repository"
	"advocate_backend/platform/ai"
	"advocate_backend/platform/logger"
)

// Source recorded in the strategy log for scanner outreach. The scan
// cooldown is tracked through it.
const Source = "scanner"

// Engagement strategies a scan decision can land on.
const (
	StrategyProactiveOutreach = "proactive_outreach"
	StrategyEscalateToHuman   = "escalate_to_human"
	StrategyNone              = "none"
)

const (
	scanCooldown     = 48 * time.Hour
	transcriptWindow = 10

	// Rule fallback tiers, applied when the model is unusable.
	newLeadUntouched    = 24 * time.Hour
	activeLeadUntouched = 72 * time.Hour
)

// ScanStats summarizes one scan.
type ScanStats struct {
	mu sync.Mutex

	LeadsScanned            int
	OpportunitiesIdentified int
	ProactiveMessagesSent   int
	LeadsEscalated          int
	SkippedRecentlyNudged   int
	Errors                  int
}

// Scanner runs the periodic opportunity scan.
type Scanner struct {
	repo        repository.LeadsRepository
	model       ai.Client
	audit       *audit.Logger
	bus         events.Bus
	log         *logger.Logger
	parallelism int
	timeout     time.Duration
}

// Config holds the scanner tuning knobs.
type Config struct {
	Parallelism  int
	ModelTimeout time.Duration
}

// New wires the opportunity scanner.
func New(repo repository.LeadsRepository, model ai.Client, auditLog *audit.Logger, bus events.Bus, log *logger.Logger, cfg Config) *Scanner {
	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	return &Scanner{
		repo:        repo,
		model:       model,
		audit:       auditLog,
		bus:         bus,
		log:         log,
		parallelism: parallelism,
		timeout:     cfg.ModelTimeout,
	}
}

// Scan reviews every new, active and at-risk lead in parallel, bounded by
// the configured limit. Per-lead failures are counted but never abort the
// scan.
func (s *Scanner) Scan(ctx context.Context) (*ScanStats, error) {
	leads, err := s.repo.ListLeadsByStatus(ctx, []domain.Status{
		domain.StatusNew,
		domain.StatusActive,
		domain.StatusAtRisk,
	})
	if err != nil {
		return nil, err
	}

	stats := &ScanStats{}
	now := time.Now().UTC()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallelism)

	for _, lead := range leads {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			if err := s.scanLead(groupCtx, lead, now, stats); err != nil {
				stats.mu.Lock()
				stats.Errors++
				stats.mu.Unlock()
				s.log.Warn("opportunity scan failed for lead", "lead_id", lead.ID, "error", err)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Scanner) scanLead(ctx context.Context, lead domain.Lead, now time.Time, stats *ScanStats) error {
	stats.mu.Lock()
	stats.LeadsScanned++
	stats.mu.Unlock()

	lastNudge, err := s.repo.LastStrategyAt(ctx, lead.ID, []string{Source})
	if err != nil {
		return err
	}
	if lastNudge != nil && now.Sub(*lastNudge) < scanCooldown {
		stats.mu.Lock()
		stats.SkippedRecentlyNudged++
		stats.mu.Unlock()
		return nil
	}

	transcript, err := s.repo.ListRecentMessages(ctx, lead.ID, transcriptWindow)
	if err != nil {
		return err
	}

	dec, err := s.review(ctx, lead, transcript)
	if err != nil {
		s.log.Warn("scan model unusable, falling back to rules", "lead_id", lead.ID, "error", err)
		dec = fallbackDecision(lead, transcript, now)
	}
	if !dec.ShouldEngage || dec.Strategy == StrategyNone {
		return nil
	}

	stats.mu.Lock()
	stats.OpportunitiesIdentified++
	stats.mu.Unlock()

	s.audit.Event(ctx, "opportunity_identified", audit.SeverityInfo, &lead.ID, map[string]any{
		"strategy":         dec.Strategy,
		"urgency_level":    dec.UrgencyLevel,
		"reasoning":        dec.Reasoning,
		"next_best_action": dec.NextBestAction,
	})

	if dec.Strategy == StrategyEscalateToHuman {
		return s.escalate(ctx, lead, dec, stats)
	}
	return s.engage(ctx, lead, dec, stats)
}

// engage sends the proactive outreach message the decision asked for.
func (s *Scanner) engage(ctx context.Context, lead domain.Lead, dec decision, stats *ScanStats) error {
	if _, err := s.repo.RecordOutreach(ctx, repository.OutreachRecord{
		LeadID:    lead.ID,
		Body:      outreachMessage(lead, dec),
		Origin:    domain.OriginAssistant,
		Strategy:  StrategyProactiveOutreach,
		Reasoning: dec.Reasoning,
		Source:    Source,
	}); err != nil {
		return err
	}

	stats.mu.Lock()
	stats.ProactiveMessagesSent++
	stats.mu.Unlock()

	s.bus.Publish(ctx, events.OpportunityFound{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Strategy:  dec.Strategy,
		Urgency:   dec.UrgencyLevel,
		Reasoning: dec.Reasoning,
	})

	return nil
}

// escalate hands the lead to staff instead of messaging them.
func (s *Scanner) escalate(ctx context.Context, lead domain.Lead, dec decision, stats *ScanStats) error {
	if err := s.repo.UpdateLeadStatus(ctx, lead.ID, domain.StatusHumanHandoff); err != nil {
		return err
	}

	stats.mu.Lock()
	stats.LeadsEscalated++
	stats.mu.Unlock()

	s.audit.StatusChange(ctx, lead.ID, string(lead.Status), string(domain.StatusHumanHandoff), "opportunity scan escalation")
	s.bus.Publish(ctx, events.LeadEscalated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		LeadName:  lead.Name,
		Phone:     lead.Phone,
		Intent:    "opportunity_scan",
		Message:   dec.Reasoning,
	})

	return nil
}

// decision is the engagement verdict for one lead.
type decision struct {
	ShouldEngage     bool   `json:"should_engage"`
	Strategy         string `json:"strategy"`
	Reasoning        string `json:"reasoning"`
	RecommendedOffer string `json:"recommended_offer"`
	UrgencyLevel     string `json:"urgency_level"`
	NextBestAction   string `json:"next_best_action"`
}

const reviewSystemPrompt = `You review dental clinic leads for engagement opportunities.
You get a lead's status, risk profile and conversation. Decide whether to
engage them now and how:

- proactive_outreach: send a friendly automated message re-opening the topic
- escalate_to_human: a staff member should take over personally
- none: leave them alone for now

Respond with JSON only:
{"should_engage": true|false, "strategy": "<name>", "reasoning": "<one sentence>",
 "recommended_offer": "<offer to mention or empty>", "urgency_level": "low|medium|high",
 "next_best_action": "<one sentence>"}`

var decisionSchema = []byte(`{
	"type": "object",
	"required": ["should_engage", "strategy"],
	"properties": {
		"should_engage": {"type": "boolean"},
		"strategy": {"type": "string", "enum": ["proactive_outreach", "escalate_to_human", "none"]},
		"reasoning": {"type": "string"},
		"recommended_offer": {"type": "string"},
		"urgency_level": {"type": "string"},
		"next_best_action": {"type": "string"}
	}
}`)

func (s *Scanner) review(ctx context.Context, lead domain.Lead, transcript []domain.Message) (decision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.model.Complete(ctx, ai.Request{
		System: reviewSystemPrompt,
		Messages: []ai.Message{{
			Role:    ai.RoleUser,
			Content: reviewPrompt(lead, transcript),
		}},
		JSONOnly: true,
	})
	s.log.AICall("opportunity_review", time.Since(start), err)
	if err != nil {
		return decision{}, err
	}

	var out decision
	if err := ai.DecodeStructured(raw, decisionSchema, &out); err != nil {
		return decision{}, err
	}
	return out, nil
}

func reviewPrompt(lead domain.Lead, transcript []domain.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead: %s\nStatus: %s\nRisk level: %s\nRisk factors: %s\n\nConversation (oldest first):\n",
		lead.Name, lead.Status, lead.RiskLevel, strings.Join(lead.RiskFactors, ", "))
	for _, msg := range transcript {
		speaker := "Patient"
		if msg.Direction == domain.DirectionOutbound {
			speaker = "Clinic"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, msg.Body)
	}
	if len(transcript) == 0 {
		b.WriteString("(no messages yet)\n")
	}
	return b.String()
}

// fallbackDecision applies the rule ladder when the model is unusable.
// Untouched time runs from the newest message of any sender, or from
// creation for leads nobody has talked to yet.
func fallbackDecision(lead domain.Lead, transcript []domain.Message, now time.Time) decision {
	since := lead.CreatedAt
	if len(transcript) > 0 {
		since = transcript[len(transcript)-1].CreatedAt
	}
	untouched := now.Sub(since)

	switch lead.Status {
	case domain.StatusNew:
		if untouched > newLeadUntouched {
			return decision{
				ShouldEngage:     true,
				Strategy:         StrategyProactiveOutreach,
				Reasoning:        "new lead without a follow-up for over a day",
				RecommendedOffer: "new patient welcome offer",
				UrgencyLevel:     "medium",
				NextBestAction:   "send a welcome message with the new patient offer",
			}
		}
	case domain.StatusAtRisk:
		switch lead.RiskLevel {
		case domain.RiskHigh:
			return decision{
				ShouldEngage:   true,
				Strategy:       StrategyProactiveOutreach,
				Reasoning:      "at-risk lead at high risk level",
				UrgencyLevel:   "high",
				NextBestAction: "send an urgent re-engagement message",
			}
		case domain.RiskMedium:
			return decision{
				ShouldEngage:   true,
				Strategy:       StrategyProactiveOutreach,
				Reasoning:      "at-risk lead at medium risk level",
				UrgencyLevel:   "medium",
				NextBestAction: "send a supportive check-in",
			}
		}
	case domain.StatusActive:
		if untouched > activeLeadUntouched {
			return decision{
				ShouldEngage:   true,
				Strategy:       StrategyProactiveOutreach,
				Reasoning:      "active conversation quiet for over three days",
				UrgencyLevel:   "low",
				NextBestAction: "send a friendly check-in",
			}
		}
	}
	return decision{Strategy: StrategyNone}
}

func outreachMessage(lead domain.Lead, dec decision) string {
	name := lead.Name
	if i := strings.IndexByte(name, ' '); i > 0 {
		name = name[:i]
	}
	if dec.RecommendedOffer != "" {
		return fmt.Sprintf(
			"Hi %s! We've been thinking of you, and we currently have a %s available. Happy to answer any remaining questions or help you find a convenient time to come in.",
			name, dec.RecommendedOffer,
		)
	}
	return fmt.Sprintf(
		"Hi %s! Just circling back on your earlier questions. Happy to pick up where we left off whenever you're ready.",
		name,
	)
}
