package ai

import (
	"context"
	"fmt"
	"time"
)

// Classifier is the interface for the external classification service.
// Implement this interface to add new providers (Gemini, Ollama, OpenAI, etc.)
type Classifier interface {
	// Classify sends one prompt and returns the raw text of the model's reply.
	Classify(ctx context.Context, prompt string) (string, error)
}

// RateLimitError signals that the provider rejected the request with a
// rate-limit response. RetryAfter carries the provider's retry hint, already
// defaulted when the provider supplied none.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("classification service rate-limited, retry after %s", e.RetryAfter)
}
