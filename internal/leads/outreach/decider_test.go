package outreach

import (
	"context"
	"errors"
	"testing"
	"time"

	"advocate_backend/internal/leads/domain"
	"advocate_backend/platform/ai"
	"advocate_backend/platform/logger"
)

type cannedModel struct {
	response string
	err      error
}

func (m cannedModel) Complete(context.Context, ai.Request) (string, error) {
	return m.response, m.err
}

func newAITestDecider(model ai.Client) StrategyDecider {
	return NewAIDecider(model, emptyCatalog{}, NewRuleDecider(14), logger.New("test"), time.Second)
}

func TestAIDeciderParsesDecision(t *testing.T) {
	model := cannedModel{response: `{"should_contact": true, "strategy": "social_proof", "reasoning": "they asked about veneers"}`}
	decider := newAITestDecider(model)

	decision, err := decider.Decide(context.Background(), domain.Lead{Name: "Ana"}, nil, 20)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !decision.ShouldContact || decision.Strategy != StrategySocialProof {
		t.Fatalf("decision = %+v, want social_proof contact", decision)
	}
	if decision.Source != SourceAI {
		t.Fatalf("source = %q, want ai", decision.Source)
	}
}

func TestAIDeciderParsesCustomDecision(t *testing.T) {
	model := cannedModel{response: `{"should_contact": true, "strategy": "custom",
		"reasoning": "they were close to booking",
		"custom_message": "Hi Ana, Dr. Lee still has that Thursday slot open if you'd like it.",
		"featured_offer": "free whitening with your first cleaning",
		"featured_testimonial": "Best dentist visit I've ever had.",
		"urgency_level": "high",
		"next_best_action": "hold the Thursday slot"}`}
	decider := newAITestDecider(model)

	decision, err := decider.Decide(context.Background(), domain.Lead{Name: "Ana"}, nil, 20)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Strategy != StrategyCustom {
		t.Fatalf("strategy = %q, want custom", decision.Strategy)
	}
	if decision.CustomMessage == "" || decision.FeaturedOffer == "" || decision.FeaturedTestimonial == "" {
		t.Fatalf("decision = %+v, want featured content preserved", decision)
	}
	if decision.UrgencyLevel != "high" || decision.NextBestAction == "" {
		t.Fatalf("decision = %+v, want urgency and next best action preserved", decision)
	}
}

func TestAIDeciderFallsBackOnModelError(t *testing.T) {
	decider := newAITestDecider(cannedModel{err: errors.New("model down")})

	decision, err := decider.Decide(context.Background(), domain.Lead{Name: "Ana"}, nil, 50)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !decision.ShouldContact || decision.Strategy != StrategyIncentiveOffer {
		t.Fatalf("decision = %+v, want incentive_offer from rules", decision)
	}
	if decision.Source != SourceRule {
		t.Fatalf("source = %q, want rule", decision.Source)
	}
}

func TestAIDeciderFallsBackOnUnknownStrategy(t *testing.T) {
	model := cannedModel{response: `{"should_contact": true, "strategy": "free_toothbrush", "reasoning": "why not"}`}
	decider := newAITestDecider(model)

	decision, err := decider.Decide(context.Background(), domain.Lead{Name: "Ana"}, nil, 20)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Source != SourceRule {
		t.Fatalf("source = %q, want rule fallback", decision.Source)
	}
	if decision.Strategy != StrategyGentleNudge {
		t.Fatalf("strategy = %q, want gentle_nudge", decision.Strategy)
	}
}

func TestComposeRendersCustomMessage(t *testing.T) {
	composer := NewComposer(emptyCatalog{})
	decision := Decision{
		Strategy:      StrategyCustom,
		CustomMessage: "Hi Ana, Dr. Lee still has that Thursday slot open.",
	}

	got := composer.Compose(context.Background(), domain.Lead{Name: "Ana Silva"}, decision, nil)
	if got != decision.CustomMessage {
		t.Fatalf("Compose = %q, want the model's own message", got)
	}
}

func TestComposePrefersFeaturedContent(t *testing.T) {
	composer := NewComposer(emptyCatalog{})
	lead := domain.Lead{Name: "Ana Silva"}

	proof := composer.Compose(context.Background(), lead, Decision{
		Strategy:            StrategySocialProof,
		FeaturedTestimonial: "My smile has never looked better.",
	}, nil)
	if !containsSubstring(proof, "My smile has never looked better.") {
		t.Fatalf("Compose = %q, want the featured testimonial quoted", proof)
	}

	offer := composer.Compose(context.Background(), lead, Decision{
		Strategy:      StrategyIncentiveOffer,
		FeaturedOffer: "20% off your first whitening",
	}, nil)
	if !containsSubstring(offer, "20% off your first whitening") {
		t.Fatalf("Compose = %q, want the featured offer mentioned", offer)
	}
}

func TestComposeDegradesToTemplate(t *testing.T) {
	composer := NewComposer(emptyCatalog{})

	got := composer.Compose(context.Background(), domain.Lead{Name: "Ana Silva"}, Decision{Strategy: StrategySocialProof}, nil)
	if got == "" || !containsSubstring(got, "Ana") {
		t.Fatalf("Compose = %q, want a personalized template fallback", got)
	}
}
