// Package repository provides access to the outreach content catalog:
// active offers and patient testimonials attached to re-engagement messages.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"advocate_backend/platform/apperr"
)

const (
	offerNotFoundMessage       = "no active offer available"
	testimonialNotFoundMessage = "no active testimonial available"
)

// Offer is a promotional incentive attached to incentive_offer outreach.
type Offer struct {
	ID          uuid.UUID
	Title       string
	Body        string
	Category    string
	DiscountPct int
	Active      bool
	CreatedAt   time.Time
}

// Testimonial is social proof attached to social_proof outreach.
type Testimonial struct {
	ID        uuid.UUID
	Author    string
	Body      string
	Category  string
	Active    bool
	CreatedAt time.Time
}

// CatalogRepository serves outreach content lookups.
type CatalogRepository interface {
	ActiveOffer(ctx context.Context, category string) (Offer, error)
	ActiveTestimonial(ctx context.Context, category string) (Testimonial, error)
}

// Repo implements the catalog repository on Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new catalog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements CatalogRepository.
var _ CatalogRepository = (*Repo)(nil)

// ActiveOffer returns an active offer for the category, preferring an exact
// category match and falling back to a general (uncategorized) offer.
func (r *Repo) ActiveOffer(ctx context.Context, category string) (Offer, error) {
	query := `
		SELECT id, title, body, category, discount_pct, active, created_at
		FROM offers
		WHERE active AND (category = $1 OR category = '')
		ORDER BY (category = $1) DESC, created_at DESC
		LIMIT 1`

	var offer Offer
	if err := r.pool.QueryRow(ctx, query, category).Scan(
		&offer.ID, &offer.Title, &offer.Body, &offer.Category, &offer.DiscountPct, &offer.Active, &offer.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, apperr.NotFound(offerNotFoundMessage)
		}
		return Offer{}, fmt.Errorf("active offer: %w", err)
	}
	return offer, nil
}

// ActiveTestimonial returns an active testimonial for the category with the
// same exact-match-first fallback as ActiveOffer.
func (r *Repo) ActiveTestimonial(ctx context.Context, category string) (Testimonial, error) {
	query := `
		SELECT id, author, body, category, active, created_at
		FROM testimonials
		WHERE active AND (category = $1 OR category = '')
		ORDER BY (category = $1) DESC, created_at DESC
		LIMIT 1`

	var tst Testimonial
	if err := r.pool.QueryRow(ctx, query, category).Scan(
		&tst.ID, &tst.Author, &tst.Body, &tst.Category, &tst.Active, &tst.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Testimonial{}, apperr.NotFound(testimonialNotFoundMessage)
		}
		return Testimonial{}, fmt.Errorf("active testimonial: %w", err)
	}
	return tst, nil
}
