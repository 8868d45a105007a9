package outreach

import (
	"context"
	"fmt"
	"strings"
	"time"

	catalog "advocate_backend/internal/catalog/repository"
	"advocate_backend/internal/leads/domain"
	"advocate_backend/platform/ai"
	"advocate_backend/platform/logger"
)

// Strategy names. The tier a lead falls into depends on how long they have
// been out of touch; custom is reserved for messages the model writes
// itself.
const (
	StrategyGentleNudge    = "gentle_nudge"
	StrategySocialProof    = "social_proof"
	StrategyIncentiveOffer = "incentive_offer"
	StrategyCustom         = "custom"
)

// Decision sources recorded in the strategy log.
const (
	SourceAI       = "ai"
	SourceRule     = "rule"
	SourceOverride = "override"
)

// Tier boundaries in days since the last contact.
const (
	tierSocialProofDays    = 30
	tierIncentiveOfferDays = 45
)

// Decision is an outreach verdict for one lead.
type Decision struct {
	ShouldContact       bool
	Strategy            string
	Reasoning           string
	CustomMessage       string
	FeaturedOffer       string
	FeaturedTestimonial string
	UrgencyLevel        string
	NextBestAction      string
	Source              string
}

// StrategyDecider picks a re-engagement strategy for a lead.
type StrategyDecider interface {
	Decide(ctx context.Context, lead domain.Lead, transcript []domain.Message, daysSinceContact int) (Decision, error)
}

// ruleDecider applies the escalating tier ladder: the longer the silence,
// the stronger the pull.
type ruleDecider struct {
	cooldownDays int
}

// NewRuleDecider returns the deterministic tier-based decider.
func NewRuleDecider(cooldownDays int) StrategyDecider {
	return &ruleDecider{cooldownDays: cooldownDays}
}

func (d *ruleDecider) Decide(_ context.Context, _ domain.Lead, _ []domain.Message, daysSinceContact int) (Decision, error) {
	if daysSinceContact < d.cooldownDays {
		return Decision{Source: SourceRule}, nil
	}
	return Decision{
		ShouldContact: true,
		Strategy:      tierStrategy(daysSinceContact),
		Reasoning:     fmt.Sprintf("%d days without contact", daysSinceContact),
		Source:        SourceRule,
	}, nil
}

// tierStrategy maps days of silence onto the strategy ladder.
func tierStrategy(days int) string {
	switch {
	case days >= tierIncentiveOfferDays:
		return StrategyIncentiveOffer
	case days >= tierSocialProofDays:
		return StrategySocialProof
	default:
		return StrategyGentleNudge
	}
}

const strategistSystemPrompt = `You are the retention strategist for Bright Smile Dental Clinic.
Given a lead's conversation history, how long they have been silent and the
content currently available to feature, decide whether to reach out now and
with which strategy:

- gentle_nudge: a friendly low-pressure check-in
- social_proof: share a relevant patient success story
- incentive_offer: include a concrete discount or promotion
- custom: write the full message yourself in custom_message

Only advise contact when it is likely to be welcome. Respond with JSON only:
{"should_contact": true|false, "strategy": "<name>", "reasoning": "<one sentence>",
 "custom_message": "<full message when strategy is custom, else empty>",
 "featured_offer": "<offer to feature or empty>",
 "featured_testimonial": "<testimonial to feature or empty>",
 "urgency_level": "low|medium|high",
 "next_best_action": "<one sentence>"}`

var decisionSchema = []byte(`{
	"type": "object",
	"required": ["should_contact", "strategy", "reasoning"],
	"properties": {
		"should_contact": {"type": "boolean"},
		"strategy": {"type": "string"},
		"reasoning": {"type": "string"},
		"custom_message": {"type": "string"},
		"featured_offer": {"type": "string"},
		"featured_testimonial": {"type": "string"},
		"urgency_level": {"type": "string"},
		"next_best_action": {"type": "string"}
	}
}`)

// aiDecider asks the model for a strategy and falls back to the rule ladder
// when the call or its output cannot be trusted. The catalog feeds the
// prompt so the model can feature real offers and testimonials.
type aiDecider struct {
	model    ai.Client
	catalog  catalog.CatalogRepository
	fallback StrategyDecider
	log      *logger.Logger
	timeout  time.Duration
}

// NewAIDecider wraps the rule decider with a model-driven one.
func NewAIDecider(model ai.Client, catalogRepo catalog.CatalogRepository, fallback StrategyDecider, log *logger.Logger, timeout time.Duration) StrategyDecider {
	return &aiDecider{model: model, catalog: catalogRepo, fallback: fallback, log: log, timeout: timeout}
}

func (d *aiDecider) Decide(ctx context.Context, lead domain.Lead, transcript []domain.Message, daysSinceContact int) (Decision, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	raw, err := d.model.Complete(callCtx, ai.Request{
		System: strategistSystemPrompt,
		Messages: []ai.Message{{
			Role:    ai.RoleUser,
			Content: d.decisionPrompt(callCtx, lead, transcript, daysSinceContact),
		}},
		JSONOnly: true,
	})
	d.log.AICall("outreach_strategy", time.Since(start), err)

	if err == nil {
		var parsed struct {
			ShouldContact       bool   `json:"should_contact"`
			Strategy            string `json:"strategy"`
			Reasoning           string `json:"reasoning"`
			CustomMessage       string `json:"custom_message"`
			FeaturedOffer       string `json:"featured_offer"`
			FeaturedTestimonial string `json:"featured_testimonial"`
			UrgencyLevel        string `json:"urgency_level"`
			NextBestAction      string `json:"next_best_action"`
		}
		if decodeErr := ai.DecodeStructured(raw, decisionSchema, &parsed); decodeErr != nil {
			err = decodeErr
		} else if strategy, ok := normalizeStrategy(parsed.Strategy); ok {
			return Decision{
				ShouldContact:       parsed.ShouldContact,
				Strategy:            strategy,
				Reasoning:           parsed.Reasoning,
				CustomMessage:       parsed.CustomMessage,
				FeaturedOffer:       parsed.FeaturedOffer,
				FeaturedTestimonial: parsed.FeaturedTestimonial,
				UrgencyLevel:        parsed.UrgencyLevel,
				NextBestAction:      parsed.NextBestAction,
				Source:              SourceAI,
			}, nil
		} else {
			err = fmt.Errorf("unknown strategy %q", parsed.Strategy)
		}
	}

	d.log.Warn("strategy model unusable, falling back to rules", "lead_id", lead.ID, "error", err)
	return d.fallback.Decide(ctx, lead, transcript, daysSinceContact)
}

func (d *aiDecider) decisionPrompt(ctx context.Context, lead domain.Lead, transcript []domain.Message, daysSinceContact int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead: %s\nDays since last contact: %d\nCurrent status: %s\nRisk level: %s\n\nConversation (oldest first):\n",
		lead.Name, daysSinceContact, lead.Status, lead.RiskLevel)
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

	category := categoryFromTranscript(transcript)
	if offer, err := d.catalog.ActiveOffer(ctx, category); err == nil {
		fmt.Fprintf(&b, "\nAvailable offer: %s (%s)\n", offer.Title, offer.Body)
	}
	if testimonial, err := d.catalog.ActiveTestimonial(ctx, category); err == nil {
		fmt.Fprintf(&b, "Available testimonial from %s: %s\n", testimonial.Author, testimonial.Body)
	}
	return b.String()
}

func normalizeStrategy(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StrategyGentleNudge:
		return StrategyGentleNudge, true
	case StrategySocialProof:
		return StrategySocialProof, true
	case StrategyIncentiveOffer:
		return StrategyIncentiveOffer, true
	case StrategyCustom:
		return StrategyCustom, true
	default:
		return "", false
	}
}

// applyCooldownOverride forces contact for a lead the model declined but
// whose silence already passed the cooldown. The tier ladder picks the
// strategy and the decision is marked as overridden.
func applyCooldownOverride(decision Decision, daysSinceContact, cooldownDays int) Decision {
	if decision.ShouldContact || daysSinceContact < cooldownDays {
		return decision
	}
	return Decision{
		ShouldContact: true,
		Strategy:      tierStrategy(daysSinceContact),
		Reasoning:     fmt.Sprintf("contact forced after %d days without contact", daysSinceContact),
		Source:        SourceOverride,
	}
}
