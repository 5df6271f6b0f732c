package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultPollInterval = time.Second
	DefaultRunTimeout   = 2 * time.Minute

	// messages fetched when looking for the reply of a finished run
	replyPageSize  = 20
	cleanupTimeout = 10 * time.Second
)

// NewOpenAIClient builds the Assistants API client. baseURL is optional.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

type Options struct {
	// PollInterval is the fixed delay between run status fetches.
	PollInterval time.Duration
	// RunTimeout bounds a whole conversation. Zero disables the budget.
	RunTimeout time.Duration
	// DeleteThreads removes the thread once the conversation is over.
	DeleteThreads bool
	Logger        *slog.Logger
}

// Orchestrator runs one thread/run cycle per message against an assistant.
// It holds no per-conversation state and is safe for concurrent use.
type Orchestrator struct {
	api           AssistantsAPI
	pollInterval  time.Duration
	runTimeout    time.Duration
	deleteThreads bool
	logger        *slog.Logger
}

func NewOrchestrator(api AssistantsAPI, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		api:           api,
		pollInterval:  opts.PollInterval,
		runTimeout:    opts.RunTimeout,
		deleteThreads: opts.DeleteThreads,
		logger:        opts.Logger,
	}
}

// Converse sends text to the assistant in a fresh thread and returns the
// assistant's reply once the run completes.
func (o *Orchestrator) Converse(ctx context.Context, senderID, assistantID, text string) (Reply, error) {
	started := time.Now()
	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}
	log := o.logger.With("sender", senderID, "assistant_id", assistantID)

	thread, err := o.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return Reply{}, o.fail(ctx, "create thread", err, "", "", started)
	}
	log = log.With("thread_id", thread.ID)
	if o.deleteThreads {
		defer o.deleteThread(ctx, thread.ID, log)
	}

	if _, err := o.api.CreateMessage(ctx, thread.ID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	}); err != nil {
		return Reply{}, o.fail(ctx, "add message", err, thread.ID, "", started)
	}

	run, err := o.api.CreateRun(ctx, thread.ID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return Reply{}, o.fail(ctx, "create run", err, thread.ID, "", started)
	}
	log = log.With("run_id", run.ID)
	log.Debug("assistant run started", "status", run.Status)

	polls, err := o.waitForRun(ctx, thread.ID, run.ID)
	if err != nil {
		log.Warn("assistant run did not complete", "polls", polls, "error", err)
		return Reply{}, o.fail(ctx, "wait run", err, thread.ID, run.ID, started)
	}
	log.Debug("assistant run completed", "polls", polls, "elapsed", time.Since(started))

	order := "desc"
	limit := replyPageSize
	runID := run.ID
	list, err := o.api.ListMessage(ctx, thread.ID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return Reply{}, o.fail(ctx, "list messages", err, thread.ID, run.ID, started)
	}

	replyText, ok := SelectReply(list.Messages)
	if !ok {
		return Reply{}, &AssistantError{Op: "read reply", ThreadID: thread.ID, RunID: run.ID, Err: ErrNoReply}
	}
	return Reply{Text: replyText, ThreadID: thread.ID, RunID: run.ID}, nil
}

// waitForRun fetches the run status immediately and then once per poll
// interval until the run reaches a terminal status. It returns the number of
// status fetches made.
func (o *Orchestrator) waitForRun(ctx context.Context, threadID, runID string) (int, error) {
	for polls := 1; ; polls++ {
		run, err := o.api.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return polls, err
		}

		switch classifyRun(run.Status) {
		case runSucceeded:
			return polls, nil
		case runFailed:
			if run.Status == openai.RunStatusRequiresAction {
				o.cancelRun(ctx, threadID, runID)
			}
			return polls, &AssistantError{Op: "run", Status: string(run.Status), Err: lastRunError(run)}
		}

		timer := time.NewTimer(o.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return polls, ctx.Err()
		case <-timer.C:
		}
	}
}

type runOutcome int

const (
	runPending runOutcome = iota
	runSucceeded
	runFailed
)

func classifyRun(status openai.RunStatus) runOutcome {
	switch status {
	case openai.RunStatusCompleted:
		return runSucceeded
	case openai.RunStatusFailed,
		openai.RunStatusCancelled,
		openai.RunStatusExpired,
		openai.RunStatusIncomplete,
		// tool outputs are never submitted, so this run cannot progress
		openai.RunStatusRequiresAction:
		return runFailed
	default:
		return runPending
	}
}

func lastRunError(run openai.Run) error {
	if run.LastError == nil || run.LastError.Message == "" {
		return nil
	}
	return errors.New(string(run.LastError.Code) + ": " + run.LastError.Message)
}

// SelectReply picks the newest assistant message by creation time and returns
// its first text segment. Ties keep the earlier list position, which is the
// newer message for a newest-first listing.
func SelectReply(msgs []openai.Message) (string, bool) {
	best := -1
	var reply string
	for i, m := range msgs {
		if m.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		text, ok := firstText(m)
		if !ok {
			continue
		}
		if best >= 0 && m.CreatedAt <= msgs[best].CreatedAt {
			continue
		}
		best = i
		reply = text
	}
	return reply, best >= 0
}

func firstText(m openai.Message) (string, bool) {
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil && c.Text.Value != "" {
			return c.Text.Value, true
		}
	}
	return "", false
}

func (o *Orchestrator) fail(ctx context.Context, op string, err error, threadID, runID string, started time.Time) error {
	var aerr *AssistantError
	if errors.As(err, &aerr) {
		aerr.ThreadID, aerr.RunID = threadID, runID
		return aerr
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if runID != "" {
			o.cancelRun(ctx, threadID, runID)
		}
		return &TimeoutError{ThreadID: threadID, RunID: runID, Waited: time.Since(started)}
	}
	return &AssistantError{Op: op, ThreadID: threadID, RunID: runID, Err: err}
}

func (o *Orchestrator) cancelRun(ctx context.Context, threadID, runID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if _, err := o.api.CancelRun(ctx, threadID, runID); err != nil {
		o.logger.Warn("cancel run failed", "thread_id", threadID, "run_id", runID, "error", err)
	}
}

func (o *Orchestrator) deleteThread(ctx context.Context, threadID string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if _, err := o.api.DeleteThread(ctx, threadID); err != nil {
		log.Warn("delete thread failed", "error", err)
	}
}
