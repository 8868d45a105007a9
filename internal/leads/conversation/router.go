// Package conversation routes inbound lead messages: it classifies intent,
// generates an instant reply and hands booking and staff requests to humans.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"advocate_backend/internal/assets"
	"advocate_backend/internal/audit"
	catalog "advocate_backend/internal/catalog/repository"
	"advocate_backend/internal/events"
	"advocate_backend/internal/leads/domain"
	"advocate_backend/internal/leads/repository"
	"advocate_backend/platform/ai"
	"advocate_backend/platform/apperr"
	"advocate_backend/platform/logger"
	"advocate_backend/platform/sanitize"
)

// Static fallback replies per intent, used when generation fails. A lead
// must never be left without an acknowledgement.
var fallbackReplies = map[domain.Intent]string{
	domain.IntentPriceInquiry:     "Great question! Our front desk will follow up shortly with a detailed cost breakdown for you.",
	domain.IntentGeneralQuestion:  "Thanks for your message! A member of our team will get back to you shortly with an answer.",
	domain.IntentComplaintConcern: "I'm sorry to hear that. Thank you for telling us; a member of our team will get back to you shortly so we can make it right.",
}

// Handoff confirmations per intent. Bookings are confirmed by the front
// desk; an explicit request for a person gets a personal promise.
var handoffReplies = map[domain.Intent]string{
	domain.IntentBookingRequest: "Thanks for reaching out! I've passed this to our front desk and they'll contact you within one business day to find a time that works for you.",
	domain.IntentHumanHandoff:   "Of course. I've shared your conversation with our care team and one of our staff will reach out to you personally very soon.",
}

// Reply is the outcome of handling one inbound message.
type Reply struct {
	Intent    domain.Intent
	Message   *domain.Message
	Handoff   bool
	InHandoff bool
}

// Router is the instant-reply pipeline for inbound lead messages.
type Router struct {
	repo      repository.LeadsRepository
	catalog   catalog.CatalogRepository
	estimator *assets.Estimator
	model     ai.Client
	audit     *audit.Logger
	bus       events.Bus
	log       *logger.Logger
	timeout   time.Duration
}

// NewRouter wires the conversation router.
func NewRouter(repo repository.LeadsRepository, catalogRepo catalog.CatalogRepository, estimator *assets.Estimator, model ai.Client, auditLog *audit.Logger, bus events.Bus, log *logger.Logger, timeout time.Duration) *Router {
	return &Router{
		repo:      repo,
		catalog:   catalogRepo,
		estimator: estimator,
		model:     model,
		audit:     auditLog,
		bus:       bus,
		log:       log,
		timeout:   timeout,
	}
}

// HandleInbound processes one inbound message end to end. Opted-out leads
// are rejected before anything is stored. Leads in human handoff get their
// message stored but no generated reply.
func (r *Router) HandleInbound(ctx context.Context, leadID uuid.UUID, body string) (Reply, error) {
	lead, err := r.repo.GetLeadByID(ctx, leadID)
	if err != nil {
		return Reply{}, err
	}

	if lead.Suppressed() {
		r.audit.Warning(ctx, &lead.ID, "message_suppressed", map[string]any{
			"reason": "lead opted out of contact",
		})
		return Reply{}, apperr.Conflict("lead has opted out of contact")
	}

	body = sanitize.Text(body)
	if body == "" {
		return Reply{}, apperr.Validation("message body is empty")
	}

	inbound, err := r.repo.CreateMessage(ctx, repository.CreateMessageParams{
		LeadID:    lead.ID,
		Direction: domain.DirectionInbound,
		Origin:    domain.OriginHuman,
		Body:      body,
	})
	if err != nil {
		return Reply{}, err
	}
	if err := r.repo.TouchLastContact(ctx, lead.ID, time.Now().UTC()); err != nil {
		return Reply{}, err
	}

	if lead.InHandoff() {
		return Reply{InHandoff: true}, nil
	}

	intent := r.classify(ctx, lead, body)
	if err := r.repo.SetMessageIntent(ctx, inbound.ID, string(intent)); err != nil {
		r.log.Warn("failed to store message intent", "lead_id", lead.ID, "error", err)
	}

	if intent.RequiresHandoff() {
		return r.handoff(ctx, lead, intent, body)
	}

	replyText := r.compose(ctx, lead, intent, body)

	outbound, err := r.repo.CreateMessage(ctx, repository.CreateMessageParams{
		LeadID:    lead.ID,
		Direction: domain.DirectionOutbound,
		Origin:    domain.OriginAssistant,
		Body:      replyText,
	})
	if err != nil {
		return Reply{}, err
	}

	r.audit.AIInteraction(ctx, lead.ID, "reply_sent", map[string]any{
		"intent": string(intent),
	})

	if err := r.activate(ctx, lead); err != nil {
		return Reply{}, err
	}

	return Reply{Intent: intent, Message: &outbound}, nil
}

// classify asks the model for the message intent. Failures fall back to a
// general question so routing always has a defined branch.
func (r *Router) classify(ctx context.Context, lead domain.Lead, body string) domain.Intent {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	raw, err := r.model.Complete(ctx, ai.Request{
		System:   classifierSystemPrompt,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: body}},
		JSONOnly: true,
	})
	r.log.AICall("classify_intent", time.Since(start), err)

	if err == nil {
		var parsed struct {
			Intent string `json:"intent"`
		}
		if decodeErr := ai.DecodeStructured(raw, intentSchema, &parsed); decodeErr == nil {
			return domain.NormalizeIntent(parsed.Intent)
		} else {
			err = decodeErr
		}
	}

	r.audit.Warning(ctx, &lead.ID, "intent_classification_failed", map[string]any{
		"error": err.Error(),
	})
	return domain.IntentGeneralQuestion
}

// compose produces the reply text for an intent the assistant answers
// itself. Price inquiries get the financial explainer; everything else
// gets a generated answer enriched with matching patient stories.
func (r *Router) compose(ctx context.Context, lead domain.Lead, intent domain.Intent, body string) string {
	if intent == domain.IntentPriceInquiry {
		if reply, err := r.costReply(ctx, lead, body); err == nil {
			return reply
		} else {
			r.log.Warn("explainer generation failed, using fallback reply", "lead_id", lead.ID, "error", err)
			return fallbackReplies[intent]
		}
	}

	testimonials := r.testimonials(ctx, body)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	raw, err := r.model.Complete(ctx, ai.Request{
		System:   replySystemPrompt,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: replyPrompt(body, testimonials)}},
		JSONOnly: true,
	})
	r.log.AICall("compose_reply", time.Since(start), err)

	if err == nil {
		var parsed struct {
			Reply string `json:"reply"`
		}
		if decodeErr := ai.DecodeStructured(raw, replySchema, &parsed); decodeErr == nil {
			return parsed.Reply
		}
	}

	fallback := fallbackReplies[intent]
	if len(testimonials) > 0 && intent == domain.IntentGeneralQuestion {
		fallback = testimonialFallback(fallback, testimonials[0])
	}
	return fallback
}

// testimonials collects up to two active patient stories matching the
// procedures the message mentions, falling back to a general story when no
// procedure matched. Catalog failures degrade to no stories at all.
func (r *Router) testimonials(ctx context.Context, body string) []catalog.Testimonial {
	categories := assets.DetectCategories(body, 2)
	if len(categories) == 0 {
		categories = []string{""}
	}

	var out []catalog.Testimonial
	seen := make(map[uuid.UUID]bool, 2)
	for _, category := range categories {
		testimonial, err := r.catalog.ActiveTestimonial(ctx, category)
		if err != nil {
			continue
		}
		if seen[testimonial.ID] {
			continue
		}
		seen[testimonial.ID] = true
		out = append(out, testimonial)
		if len(out) == 2 {
			break
		}
	}

	if len(out) == 0 && categories[0] != "" {
		if testimonial, err := r.catalog.ActiveTestimonial(ctx, ""); err == nil {
			out = append(out, testimonial)
		}
	}
	return out
}

func replyPrompt(body string, testimonials []catalog.Testimonial) string {
	if len(testimonials) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\nPatient stories you may quote:\n")
	for _, t := range testimonials {
		fmt.Fprintf(&b, "- %s: %s\n", t.Author, t.Body)
	}
	return b.String()
}

func testimonialFallback(fallback string, t catalog.Testimonial) string {
	return fmt.Sprintf("%s In the meantime, here is what %s told us: \"%s\"", fallback, t.Author, t.Body)
}

// costReply generates a financial explainer and a reply carrying its link.
func (r *Router) costReply(ctx context.Context, lead domain.Lead, body string) (string, error) {
	explainer, err := r.estimator.Generate(ctx, lead.ID, body)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"Great question! I've put together a personalized cost breakdown for you, including what insurance typically covers and monthly payment options. You can view it here: %s",
		r.estimator.URL(explainer.Token),
	), nil
}

// handoff moves the conversation to human staff and confirms it to the
// lead. No further automated replies follow until staff release the lead
// from handoff.
func (r *Router) handoff(ctx context.Context, lead domain.Lead, intent domain.Intent, body string) (Reply, error) {
	if err := r.repo.UpdateLeadStatus(ctx, lead.ID, domain.StatusHumanHandoff); err != nil {
		return Reply{}, err
	}

	outbound, err := r.repo.CreateMessage(ctx, repository.CreateMessageParams{
		LeadID:    lead.ID,
		Direction: domain.DirectionOutbound,
		Origin:    domain.OriginAssistant,
		Body:      handoffReplies[intent],
	})
	if err != nil {
		return Reply{}, err
	}

	r.audit.StatusChange(ctx, lead.ID, string(lead.Status), string(domain.StatusHumanHandoff), "handed to staff")
	r.audit.Event(ctx, "lead_escalated", audit.SeverityWarning, &lead.ID, map[string]any{
		"intent": string(intent),
	})

	r.bus.Publish(ctx, events.LeadEscalated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		LeadName:  lead.Name,
		Phone:     lead.Phone,
		Intent:    string(intent),
		Message:   body,
	})

	return Reply{Intent: intent, Message: &outbound, Handoff: true}, nil
}

// activate moves a brand-new lead to active once its first message has
// been answered. Every other status keeps its state.
func (r *Router) activate(ctx context.Context, lead domain.Lead) error {
	if lead.Status != domain.StatusNew {
		return nil
	}

	if err := r.repo.UpdateLeadStatus(ctx, lead.ID, domain.StatusActive); err != nil {
		return err
	}

	r.audit.StatusChange(ctx, lead.ID, string(lead.Status), string(domain.StatusActive), "first message answered")
	r.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		OldStatus: string(lead.Status),
		NewStatus: string(domain.StatusActive),
		Reason:    "first message answered",
	})
	return nil
}
