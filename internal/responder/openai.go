package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultAPITimeout = 2 * time.Minute

// OpenAIResponder generates replies through an OpenAI-compatible chat API.
// Unlike the exec responder it cannot touch the filesystem, so the caller
// appends the returned text to the transcript.
type OpenAIResponder struct {
	client  *openai.Client
	model   string
	system  string
	timeout time.Duration
}

// NewOpenAIResponder builds a responder against the given endpoint. baseURL
// may be empty for the public API.
func NewOpenAIResponder(apiKey, baseURL, model, systemPrompt string, timeout time.Duration) (*OpenAIResponder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai responder requires an api key")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai responder requires a model")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	return &OpenAIResponder{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		system:  systemPrompt,
		timeout: timeout,
	}, nil
}

func (responder *OpenAIResponder) Respond(ctx context.Context, request Request) (Reply, error) {
	if responder == nil || responder.client == nil {
		return Reply{}, ErrNoResponder
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, responder.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{}
	if strings.TrimSpace(responder.system) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: responder.system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: buildUserContent(request),
	})

	start := time.Now()
	resp, err := responder.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    responder.model,
		Messages: messages,
	})
	duration := time.Since(start)
	if err != nil {
		return Reply{Model: responder.model, Duration: duration}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{Model: responder.model, Duration: duration}, errors.New("chat completion returned no choices")
	}

	return Reply{
		Text:     strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:    resp.Model,
		Duration: duration,
	}, nil
}

func buildUserContent(request Request) string {
	builder := strings.Builder{}
	builder.WriteString("Dialogue transcript:\n\n")
	builder.WriteString(request.Transcript)
	if request.LatestTurn != "" {
		builder.WriteString("\n\nThe latest human turn to reply to:\n\n")
		builder.WriteString(request.LatestTurn)
	}
	return builder.String()
}
