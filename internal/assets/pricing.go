// Package assets generates financial explainers: per-procedure cost
// breakdowns with insurance estimates and payment plan options, shared with
// leads through tokenized links.
package assets

import (
	"math"
	"slices"
	"strings"
)

// Procedure categories recognized by the estimator.
const (
	CategoryInvisalign   = "invisalign"
	CategoryImplants     = "implants"
	CategoryCrown        = "crown"
	CategoryVeneer       = "veneer"
	CategoryWhitening    = "whitening"
	CategoryCleaning     = "cleaning"
	CategoryExtraction   = "extraction"
	CategoryRootCanal    = "root_canal"
	CategoryBraces       = "braces"
	CategoryGumTreatment = "gum_treatment"
	CategoryGeneral      = "general"
)

const (
	defaultCostCents       int64   = 250000
	defaultCoverageFraction float64 = 0.5
)

// procedureCostCents holds typical total cost per category, in cents.
var procedureCostCents = map[string]int64{
	CategoryInvisalign:   450000,
	CategoryImplants:     350000,
	CategoryCrown:        120000,
	CategoryVeneer:       100000,
	CategoryWhitening:    45000,
	CategoryCleaning:     15000,
	CategoryExtraction:   20000,
	CategoryRootCanal:    80000,
	CategoryBraces:       500000,
	CategoryGumTreatment: 60000,
}

// coverageFraction holds the typical insurance-covered share per category.
// Cosmetic procedures carry no coverage; preventive care is fully covered.
var coverageFraction = map[string]float64{
	CategoryCleaning:     1.0,
	CategoryExtraction:   0.8,
	CategoryGumTreatment: 0.7,
	CategoryRootCanal:    0.6,
	CategoryCrown:        0.5,
	CategoryBraces:       0.3,
	CategoryInvisalign:   0.0,
	CategoryImplants:     0.0,
	CategoryWhitening:    0.0,
	CategoryVeneer:       0.0,
}

// categoryKeywords maps message keywords to procedure categories. Multi-word
// phrases come first so "root canal" wins over a later "canal" fragment.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"root canal", CategoryRootCanal},
	{"root_canal", CategoryRootCanal},
	{"invisalign", CategoryInvisalign},
	{"aligner", CategoryInvisalign},
	{"implant", CategoryImplants},
	{"crown", CategoryCrown},
	{"veneer", CategoryVeneer},
	{"whitening", CategoryWhitening},
	{"whiten", CategoryWhitening},
	{"bleach", CategoryWhitening},
	{"cleaning", CategoryCleaning},
	{"checkup", CategoryCleaning},
	{"check-up", CategoryCleaning},
	{"hygiene", CategoryCleaning},
	{"extraction", CategoryExtraction},
	{"extract", CategoryExtraction},
	{"wisdom", CategoryExtraction},
	{"braces", CategoryBraces},
	{"orthodont", CategoryBraces},
	{"gum", CategoryGumTreatment},
	{"periodont", CategoryGumTreatment},
}

// DetectCategory scans free text for a known procedure keyword. It returns
// the general category when nothing matches.
func DetectCategory(text string) string {
	lowered := strings.ToLower(text)
	for _, entry := range categoryKeywords {
		if strings.Contains(lowered, entry.keyword) {
			return entry.category
		}
	}
	return CategoryGeneral
}

// DetectCategories returns up to max distinct procedure categories mentioned
// in the text, in keyword priority order. Returns nil when nothing matches.
func DetectCategories(text string, max int) []string {
	lowered := strings.ToLower(text)
	var found []string
	for _, entry := range categoryKeywords {
		if len(found) == max {
			break
		}
		if !strings.Contains(lowered, entry.keyword) {
			continue
		}
		if !slices.Contains(found, entry.category) {
			found = append(found, entry.category)
		}
	}
	return found
}

// CostCents returns the typical total cost for a category, in cents.
func CostCents(category string) int64 {
	if cost, ok := procedureCostCents[category]; ok {
		return cost
	}
	return defaultCostCents
}

// Coverage returns the insurance-covered fraction for a category.
func Coverage(category string) float64 {
	if fraction, ok := coverageFraction[category]; ok {
		return fraction
	}
	return defaultCoverageFraction
}

// SplitCost divides a total into the insurance and patient portions.
func SplitCost(totalCents int64, coverage float64) (insuranceCents, patientCents int64) {
	insuranceCents = int64(math.Round(float64(totalCents) * coverage))
	patientCents = totalCents - insuranceCents
	return insuranceCents, patientCents
}

// MonthlyCents returns the per-month amount for a patient portion spread
// over the given term, rounded to the nearest cent.
func MonthlyCents(patientCents int64, months int) int64 {
	if months <= 0 {
		return patientCents
	}
	return int64(math.Round(float64(patientCents) / float64(months)))
}
