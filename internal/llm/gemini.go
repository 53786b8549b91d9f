package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gemini serves the same Generator contract on Google's generative models.
// System messages become the model's system instruction; assistant turns map to "model".
type Gemini struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Gemini, error) {
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	system, history, last, err := splitForGemini(req.Messages)
	if err != nil {
		return "", &Error{Provider: "gemini", Err: err}
	}

	model := g.client.GenerativeModel(req.Model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	temperature := float32(req.Temperature)
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temperature}
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		model.GenerationConfig.MaxOutputTokens = &maxTokens
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", geminiError(ctx, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &Error{Provider: "gemini", Err: ErrEmptyCompletion}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if value, ok := part.(genai.Text); ok {
			text.WriteString(string(value))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", &Error{Provider: "gemini", Err: ErrEmptyCompletion}
	}
	return text.String(), nil
}

// splitForGemini separates the system instruction, the prior turns and the final user turn.
func splitForGemini(messages []Message) (string, []*genai.Content, string, error) {
	if len(messages) == 0 {
		return "", nil, "", ErrNoMessages
	}
	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return "", nil, "", fmt.Errorf("last message must come from the user, got %q", last.Role)
	}

	var system []string
	history := make([]*genai.Content, 0, len(messages)-1)
	for _, msg := range messages[:len(messages)-1] {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	return strings.Join(system, "\n\n"), history, last.Content, nil
}

func geminiError(ctx context.Context, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &Error{Provider: "gemini", Status: apiErr.Code, Retryable: retryableStatus(apiErr.Code), Err: err}
	}
	return &Error{Provider: "gemini", Retryable: !errors.Is(ctx.Err(), context.Canceled), Err: err}
}
