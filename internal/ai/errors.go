package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoReply is returned when a completed run left no assistant text in the
// thread.
var ErrNoReply = errors.New("assistant produced no text reply")

// AssistantError is any provider-level failure while talking to the
// assistant: a failed API call or a run that ended in a failure status.
type AssistantError struct {
	Op       string
	Status   string // terminal run status, empty for API call failures
	ThreadID string
	RunID    string
	Err      error
}

func (e *AssistantError) Error() string {
	switch {
	case e.Status != "" && e.Err != nil:
		return fmt.Sprintf("assistant %s: run %s: %v", e.Op, e.Status, e.Err)
	case e.Status != "":
		return fmt.Sprintf("assistant %s: run %s", e.Op, e.Status)
	default:
		return fmt.Sprintf("assistant %s: %v", e.Op, e.Err)
	}
}

func (e *AssistantError) Unwrap() error { return e.Err }

// TimeoutError is returned when a conversation exceeded its wait budget.
type TimeoutError struct {
	ThreadID string
	RunID    string
	Waited   time.Duration
}

func (e *TimeoutError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("assistant timed out after %s (thread %s)", e.Waited.Round(time.Millisecond), e.ThreadID)
	}
	return fmt.Sprintf("assistant run %s timed out after %s (thread %s)",
		e.RunID, e.Waited.Round(time.Millisecond), e.ThreadID)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }
