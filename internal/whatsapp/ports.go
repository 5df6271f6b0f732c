package whatsapp

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GenericErrorText is the only failure notice a sender ever sees, whatever
// went wrong internally.
const GenericErrorText = "Sorry, I encountered an error processing your message. Please try again."

// InboundMessage is one (sender, text) pair extracted from a webhook call.
type InboundMessage struct {
	RequestID string
	From      string
	Body      string
}

// Outcome is how the pipeline finished with a message.
type Outcome string

const (
	OutcomeSkipped        Outcome = "skipped"
	OutcomeUnrouted       Outcome = "unrouted"
	OutcomeConfigError    Outcome = "config_error"
	OutcomeAssistantError Outcome = "assistant_error"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeReplied        Outcome = "replied"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
)

// Event is the routing record kept for every handled message. It never
// carries message or reply text.
type Event struct {
	ID        uuid.UUID
	RequestID string
	Sender    string
	AgentID   string
	Outcome   Outcome
	Detail    string
	ThreadID  string
	RunID     string
	CreatedAt time.Time
}

// Outbound delivers one text message to a sender through the messaging
// provider.
type Outbound interface {
	Send(ctx context.Context, to string, text string) error
}

// EventSink stores routing events.
type EventSink interface {
	Record(ctx context.Context, ev Event) error
}

// Service is the message handling pipeline. Handle never fails: every
// path ends in a relay send or a deliberate no-op.
type Service interface {
	Handle(ctx context.Context, msg InboundMessage) Outcome
}
