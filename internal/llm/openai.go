package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client over the chat completion API. Any
// OpenAI-compatible endpoint works when a base URL is given.
type OpenAIClient struct {
	client  *openai.Client
	modelID string
}

// NewOpenAIClient creates an OpenAI client. An empty baseURL uses the
// public OpenAI endpoint.
func NewOpenAIClient(apiKey, baseURL, modelID string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: openai api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gpt-4o-mini"
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		modelID: modelID,
	}, nil
}

// Model returns the configured model id.
func (c *OpenAIClient) Model() string {
	return c.modelID
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, s := range req.System {
		if strings.TrimSpace(s) == "" {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s})
	}
	for _, m := range req.Messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	if len(msgs) == 0 {
		return Response{}, errors.New("llm: openai requires at least one message")
	}

	model := c.modelID
	if strings.TrimSpace(req.Model) != "" {
		model = req.Model
	}
	ccr := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		TopP:     req.TopP,
	}
	if req.Temperature >= 0 {
		ccr.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		ccr.MaxTokens = int(req.MaxTokens)
	}

	resp, err := c.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return Response{}, fmt.Errorf("llm: openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("llm: openai returned no choices")
	}

	return Response{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}
