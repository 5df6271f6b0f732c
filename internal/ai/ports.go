package ai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Assistant is the external conversational assistant. It knows nothing about
// WhatsApp or the sender directory.
type Assistant interface {
	Converse(ctx context.Context, senderID, assistantID, text string) (Reply, error)
}

// Reply is the assistant's answer to one inbound message.
type Reply struct {
	Text     string
	ThreadID string
	RunID    string
}

// AssistantsAPI is the part of the OpenAI Assistants API the orchestrator
// drives. *openai.Client satisfies it.
type AssistantsAPI interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	CancelRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
	DeleteThread(ctx context.Context, threadID string) (openai.ThreadDeleteResponse, error)
}
