package whatsapp

import (
	"context"
	"fmt"
)

// MaxBodyChars is the longest body WhatsApp accepts in one message.
const MaxBodyChars = 1600

// Relay sends text back to a sender, splitting replies that do not fit in a
// single WhatsApp message.
type Relay struct {
	out      Outbound
	maxChars int
}

func NewRelay(out Outbound) *Relay {
	return &Relay{out: out, maxChars: MaxBodyChars}
}

// Send delivers text to the sender. The first failing part aborts the rest.
func (r *Relay) Send(ctx context.Context, to string, text string) error {
	parts := splitMessage(text, r.maxChars)
	for i, part := range parts {
		if err := r.out.Send(ctx, to, part); err != nil {
			if len(parts) == 1 {
				return err
			}
			return fmt.Errorf("send part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

// splitMessage cuts msg into chunks of at most maxLen runes, preferring to
// break after a newline in the second half of a chunk.
func splitMessage(msg string, maxLen int) []string {
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}

		cut := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}

		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}
