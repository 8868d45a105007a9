package risk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"advocate_backend/internal/assets"
	"advocate_backend/internal/audit"
	catalog "advocate_backend/internal/catalog/repository"
	"advocate_backend/internal/leads/domain"
	"advocate_backend/internal/leads/repository"
	"advocate_backend/platform/ai"
	"advocate_backend/platform/logger"
)

// Source recorded in the strategy log for risk interventions.
const Source = "risk"

// Intervention strategies recorded in the strategy log.
const (
	StrategyPredictive     = "predictive_intervention"
	StrategyRetentionOffer = "retention_offer"
	StrategyCheckIn        = "risk_check_in"
)

const interventionSystemPrompt = `You write retention messages for Bright Smile Dental Clinic.
A patient lead is showing signs of disengaging. You get their recent
conversation, the overall sentiment and the concerns we detected. Write a
short, warm message that speaks to those concerns without naming them
clinically. Rules:

- at most three sentences, plain text, no markdown
- never mention risk, scoring or monitoring
- never invent prices or availability
- end with a gentle invitation to reply

Respond with JSON only: {"message": "<text>"}`

var interventionSchema = []byte(`{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message": {"type": "string", "minLength": 1}
	}
}`)

// Intervener sends the retention messages the risk sweep triggers when a
// lead's level worsens.
type Intervener struct {
	repo    repository.LeadsRepository
	model   ai.Client
	catalog catalog.CatalogRepository
	audit   *audit.Logger
	log     *logger.Logger
	timeout time.Duration
}

// NewIntervener wires the intervention sender.
func NewIntervener(repo repository.LeadsRepository, model ai.Client, catalogRepo catalog.CatalogRepository, auditLog *audit.Logger, log *logger.Logger, timeout time.Duration) *Intervener {
	return &Intervener{
		repo:    repo,
		model:   model,
		catalog: catalogRepo,
		audit:   auditLog,
		log:     log,
		timeout: timeout,
	}
}

// Predictive sends a personalized message to a lead whose risk level just
// turned high. Generation failures degrade to a template so the lead is
// reached either way.
func (iv *Intervener) Predictive(ctx context.Context, lead domain.Lead, messages []domain.Message, sentiment float64, factors []string) error {
	body := iv.composeIntervention(ctx, lead, messages, sentiment, factors)

	if _, err := iv.repo.RecordOutreach(ctx, repository.OutreachRecord{
		LeadID:    lead.ID,
		Body:      body,
		Origin:    domain.OriginAssistant,
		Strategy:  StrategyPredictive,
		Reasoning: strings.Join(factors, ", "),
		Source:    Source,
	}); err != nil {
		return err
	}

	iv.audit.AIInteraction(ctx, lead.ID, "predictive_intervention", map[string]any{
		"risk_factors": factors,
		"sentiment":    sentiment,
	})
	return nil
}

// RetentionOffer follows the predictive message with a concrete incentive
// pulled from the catalog, matched to the procedure the lead talked about.
func (iv *Intervener) RetentionOffer(ctx context.Context, lead domain.Lead, messages []domain.Message) error {
	name := firstName(lead.Name)
	body := fmt.Sprintf(
		"%s, we'd hate to see you miss out. Mention this message and we'll take care of a special discount on your next visit. No pressure, the offer will be here when you're ready.",
		name,
	)
	if offer, err := iv.catalog.ActiveOffer(ctx, conversationCategory(messages)); err == nil {
		body = fmt.Sprintf("%s, before you decide anything: %s. %s Reply here and we'll hold it for you.", name, offer.Title, offer.Body)
	}

	if _, err := iv.repo.RecordOutreach(ctx, repository.OutreachRecord{
		LeadID:    lead.ID,
		Body:      body,
		Origin:    domain.OriginAssistant,
		Strategy:  StrategyRetentionOffer,
		Reasoning: "high risk level",
		Source:    Source,
	}); err != nil {
		return err
	}

	iv.audit.Event(ctx, "aggressive_retention_offer", audit.SeverityInfo, &lead.ID, nil)
	return nil
}

// CheckIn sends the milder nudge for an at-risk lead that settled at a
// medium level.
func (iv *Intervener) CheckIn(ctx context.Context, lead domain.Lead) error {
	body := fmt.Sprintf(
		"Hi %s! Just wanted to check in and see if you have any questions we can help with. We're here whenever you're ready, no rush at all.",
		firstName(lead.Name),
	)

	if _, err := iv.repo.RecordOutreach(ctx, repository.OutreachRecord{
		LeadID:    lead.ID,
		Body:      body,
		Origin:    domain.OriginAssistant,
		Strategy:  StrategyCheckIn,
		Reasoning: "medium risk level while at risk",
		Source:    Source,
	}); err != nil {
		return err
	}

	iv.audit.Event(ctx, "risk_check_in", audit.SeverityInfo, &lead.ID, nil)
	return nil
}

// composeIntervention asks the model for the personalized message and falls
// back to a template when the call or its output cannot be trusted.
func (iv *Intervener) composeIntervention(ctx context.Context, lead domain.Lead, messages []domain.Message, sentiment float64, factors []string) string {
	ctx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	start := time.Now()
	raw, err := iv.model.Complete(ctx, ai.Request{
		System: interventionSystemPrompt,
		Messages: []ai.Message{{
			Role:    ai.RoleUser,
			Content: interventionPrompt(lead, messages, sentiment, factors),
		}},
		JSONOnly: true,
	})
	iv.log.AICall("predictive_intervention", time.Since(start), err)

	if err == nil {
		var parsed struct {
			Message string `json:"message"`
		}
		if decodeErr := ai.DecodeStructured(raw, interventionSchema, &parsed); decodeErr == nil {
			return parsed.Message
		}
	}

	return fmt.Sprintf(
		"Hi %s! I wanted to personally check in. If anything about the treatment, timing or costs has been on your mind, I'm happy to talk it through. We'd love to help whenever you're ready.",
		firstName(lead.Name),
	)
}

func interventionPrompt(lead domain.Lead, messages []domain.Message, sentiment float64, factors []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead: %s\nOverall sentiment: %.2f\nDetected concerns: %s\n\nConversation (oldest first):\n",
		lead.Name, sentiment, strings.Join(factors, ", "))
	for _, msg := range messages {
		speaker := "Patient"
		if msg.Direction == domain.DirectionOutbound {
			speaker = "Clinic"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, msg.Body)
	}
	if len(messages) == 0 {
		b.WriteString("(no messages yet)\n")
	}
	return b.String()
}

// conversationCategory guesses the procedure the lead cared about so the
// offer can match it.
func conversationCategory(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Direction != domain.DirectionInbound {
			continue
		}
		if category := assets.DetectCategory(messages[i].Body); category != assets.CategoryGeneral {
			return category
		}
	}
	return ""
}

func firstName(full string) string {
	if full == "" {
		return "there"
	}
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}
