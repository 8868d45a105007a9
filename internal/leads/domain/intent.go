package domain

import "strings"

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	IntentPriceInquiry     Intent = "price_inquiry"
	IntentBookingRequest   Intent = "booking_request"
	IntentHumanHandoff     Intent = "human_handoff"
	IntentGeneralQuestion  Intent = "general_question"
	IntentComplaintConcern Intent = "complaint_concern"
)

// NormalizeIntent coerces a raw classifier label onto the closed intent set.
// Anything unrecognized becomes a general question so routing always has a
// defined branch.
func NormalizeIntent(label string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(label))) {
	case IntentPriceInquiry:
		return IntentPriceInquiry
	case IntentBookingRequest:
		return IntentBookingRequest
	case IntentHumanHandoff:
		return IntentHumanHandoff
	case IntentComplaintConcern:
		return IntentComplaintConcern
	case IntentGeneralQuestion:
		return IntentGeneralQuestion
	default:
		return IntentGeneralQuestion
	}
}

// RequiresHandoff reports whether an intent moves the conversation to human
// staff. Booking requests are confirmed by the front desk, and an explicit
// handoff request is always honored.
func (i Intent) RequiresHandoff() bool {
	return i == IntentBookingRequest || i == IntentHumanHandoff
}
