package outreach

import (
	"context"
	"fmt"

	"advocate_backend/internal/assets"
	catalog "advocate_backend/internal/catalog/repository"
	"advocate_backend/internal/leads/domain"
)

// Composer turns a strategy decision into the actual message text,
// enriching social proof and incentive messages with catalog content.
type Composer struct {
	catalog catalog.CatalogRepository
}

// NewComposer creates a message composer backed by the content catalog.
func NewComposer(repo catalog.CatalogRepository) *Composer {
	return &Composer{catalog: repo}
}

// Compose renders the outreach message for a lead. A custom decision
// carries the model's own text; content the decision featured wins over a
// catalog lookup, and failed lookups degrade to the plain template rather
// than blocking the outreach.
func (c *Composer) Compose(ctx context.Context, lead domain.Lead, decision Decision, transcript []domain.Message) string {
	firstName := firstName(lead.Name)
	category := categoryFromTranscript(transcript)

	switch decision.Strategy {
	case StrategyCustom:
		if decision.CustomMessage != "" {
			return decision.CustomMessage
		}
		return checkInMessage(firstName)

	case StrategySocialProof:
		if decision.FeaturedTestimonial != "" {
			return fmt.Sprintf(
				"Hi %s! I wanted to share what one of our patients recently told us: \"%s\" We'd love to help you feel the same way. Want to pick up where we left off?",
				firstName, decision.FeaturedTestimonial,
			)
		}
		if testimonial, err := c.catalog.ActiveTestimonial(ctx, category); err == nil {
			return fmt.Sprintf(
				"Hi %s! I wanted to share what %s recently told us: \"%s\" We'd love to help you feel the same way. Want to pick up where we left off?",
				firstName, testimonial.Author, testimonial.Body,
			)
		}
		return fmt.Sprintf(
			"Hi %s! So many of our patients tell us how glad they are that they took the first step. We'd love to help you too. Want to pick up where we left off?",
			firstName,
		)

	case StrategyIncentiveOffer:
		if decision.FeaturedOffer != "" {
			return fmt.Sprintf(
				"Hi %s! Good news: %s. Reply here and we'll get you booked in.",
				firstName, decision.FeaturedOffer,
			)
		}
		if offer, err := c.catalog.ActiveOffer(ctx, category); err == nil {
			return fmt.Sprintf(
				"Hi %s! Good news: %s. %s Reply here and we'll get you booked in.",
				firstName, offer.Title, offer.Body,
			)
		}
		return fmt.Sprintf(
			"Hi %s! We'd love to welcome you back, and we can offer a special discount on your next visit. Reply here and we'll get you booked in.",
			firstName,
		)

	default:
		return checkInMessage(firstName)
	}
}

func checkInMessage(firstName string) string {
	return fmt.Sprintf(
		"Hi %s! Just checking in. We're here whenever you're ready, and happy to answer any questions you still have.",
		firstName,
	)
}

// categoryFromTranscript guesses the procedure the lead cared about so the
// catalog can serve matching content.
func categoryFromTranscript(transcript []domain.Message) string {
	// Most recent mention wins.
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Direction != domain.DirectionInbound {
			continue
		}
		if category := assets.DetectCategory(transcript[i].Body); category != assets.CategoryGeneral {
			return category
		}
	}
	return ""
}

func firstName(full string) string {
	for i, r := range full {
		if r == ' ' {
			return full[:i]
		}
	}
	if full == "" {
		return "there"
	}
	return full
}
