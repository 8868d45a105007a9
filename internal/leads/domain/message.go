package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction tells whether a message came from the lead or went to them.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Origin identifies the author of an outbound message.
type Origin string

const (
	OriginHuman     Origin = "human"
	OriginAssistant Origin = "assistant"
	OriginSystem    Origin = "system"
)

// Message is a single turn in a lead's conversation history.
type Message struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Direction Direction
	Origin    Origin
	Body      string
	Intent    *string
	CreatedAt time.Time
}

// FromHuman reports whether a message was written by staff.
func (m Message) FromHuman() bool {
	return m.Direction == DirectionOutbound && m.Origin == OriginHuman
}
