// Package llm is the text-generation gateway used by the drafting flows.
package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Generator returns the text of the single top completion for req.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Error is returned by providers for failed calls. Retryable marks failures worth another attempt.
type Error struct {
	Provider  string
	Status    int
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrEmptyCompletion = errors.New("empty completion")
	ErrNoMessages      = errors.New("no messages to send")
)

// IsRetryable reports whether err is a provider failure marked retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}
