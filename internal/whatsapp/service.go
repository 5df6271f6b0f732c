package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Vovarama1992/whatsapp-family-router/internal/ai"
	"github.com/Vovarama1992/whatsapp-family-router/internal/directory"
)

type service struct {
	directory *directory.Directory
	registry  *directory.Registry
	assistant ai.Assistant
	relay     *Relay
	events    EventSink
	logger    *slog.Logger
}

func NewService(
	dir *directory.Directory,
	reg *directory.Registry,
	assistant ai.Assistant,
	relay *Relay,
	events EventSink,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = NewLogSink(logger)
	}
	return &service{
		directory: dir,
		registry:  reg,
		assistant: assistant,
		relay:     relay,
		events:    events,
		logger:    logger,
	}
}

func (s *service) Handle(ctx context.Context, msg InboundMessage) Outcome {
	requestID := msg.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	sender := directory.NormalizeSender(msg.From)

	ev := Event{
		ID:        uuid.New(),
		RequestID: requestID,
		Sender:    sender,
		CreatedAt: time.Now().UTC(),
	}
	log := s.logger.With("request_id", requestID, "sender", sender)

	s.route(ctx, log, &ev, sender, msg.Body)
	s.record(ctx, log, ev)
	return ev.Outcome
}

func (s *service) route(ctx context.Context, log *slog.Logger, ev *Event, sender, text string) {
	if sender == "" || text == "" {
		log.Info("missing sender or body, skipping")
		ev.Outcome = OutcomeSkipped
		return
	}

	profile, ok := s.directory.Lookup(sender)
	if !ok {
		log.Info("unknown sender, message dropped")
		ev.Outcome = OutcomeUnrouted
		return
	}
	ev.AgentID = profile.AgentID
	log = log.With("agent_id", profile.AgentID)
	log.Info("message received", "agent", profile.DisplayName, "text_len", len(text))

	assistantID, ok := s.registry.Resolve(profile.AgentID)
	if !ok {
		err := &directory.ConfigurationError{AgentID: profile.AgentID}
		log.Error("routing misconfigured", "error", err)
		ev.Outcome = OutcomeConfigError
		ev.Detail = err.Error()
		s.notifyFailure(ctx, log, ev, sender)
		return
	}

	reply, err := s.assistant.Converse(ctx, sender, assistantID, text)
	if err != nil {
		ev.Outcome = assistantOutcome(err)
		ev.Detail = err.Error()
		ev.ThreadID, ev.RunID = failureIDs(err)
		log.Error("assistant failed", "assistant_id", assistantID, "error", err)
		s.notifyFailure(ctx, log, ev, sender)
		return
	}
	ev.ThreadID, ev.RunID = reply.ThreadID, reply.RunID
	log.Debug("assistant replied", "thread_id", reply.ThreadID, "run_id", reply.RunID, "reply", short(reply.Text))

	if err := s.relay.Send(ctx, sender, reply.Text); err != nil {
		log.Error("reply delivery failed", "error", err)
		ev.Outcome = OutcomeDeliveryFailed
		ev.Detail = err.Error()
		return
	}
	log.Info("reply sent", "reply_len", len(reply.Text))
	ev.Outcome = OutcomeReplied
}

// notifyFailure sends the generic error text. The failure that led here
// stays the event outcome; a failed notice only adds to the detail.
func (s *service) notifyFailure(ctx context.Context, log *slog.Logger, ev *Event, sender string) {
	if err := s.relay.Send(ctx, sender, GenericErrorText); err != nil {
		log.Error("error notice delivery failed", "error", err)
		ev.Detail += "; notice not delivered: " + err.Error()
	}
}

func (s *service) record(ctx context.Context, log *slog.Logger, ev Event) {
	if err := s.events.Record(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn("routing event not recorded", "outcome", ev.Outcome, "error", err)
	}
}

func assistantOutcome(err error) Outcome {
	var terr *ai.TimeoutError
	if errors.As(err, &terr) {
		return OutcomeTimeout
	}
	return OutcomeAssistantError
}

func failureIDs(err error) (threadID, runID string) {
	var terr *ai.TimeoutError
	if errors.As(err, &terr) {
		return terr.ThreadID, terr.RunID
	}
	var aerr *ai.AssistantError
	if errors.As(err, &aerr) {
		return aerr.ThreadID, aerr.RunID
	}
	return "", ""
}

func short(s string) string {
	r := []rune(s)
	if len(r) > 180 {
		return string(r[:180]) + "..."
	}
	return s
}
