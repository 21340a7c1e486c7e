package translation

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const refineSystemPrompt = "You are a clinical language specialist. You rewrite informal health descriptions into formal clinical language only."

const refinePromptTemplate = `Rewrite the following patient description in clear, formal clinical language.
Keep every symptom, duration and detail. Do not add a diagnosis, advice or commentary.
Return only the rewritten text.

Patient description:
{input}`

// Refiner rewrites informal text through an OpenAI-compatible endpoint
// (OpenRouter by default). Any failure returns the input unchanged.
type Refiner struct {
	client *openai.Client
	model  string
	logger *logging.Logger
}

// NewRefiner creates a refiner. An empty apiKey yields a refiner that
// passes text through untouched.
func NewRefiner(apiKey, baseURL, model string, logger *logging.Logger) *Refiner {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Refiner{model: model, logger: logger}
	if strings.TrimSpace(apiKey) == "" {
		return r
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	r.client = openai.NewClientWithConfig(cfg)
	if r.model == "" {
		r.model = "deepseek/deepseek-r1"
	}
	return r
}

// Enabled reports whether an upstream model is configured.
func (r *Refiner) Enabled() bool {
	return r != nil && r.client != nil
}

// Refine returns the clinical rewrite of raw, or raw itself on any failure.
func (r *Refiner) Refine(ctx context.Context, raw string) string {
	if !r.Enabled() || strings.TrimSpace(raw) == "" {
		return raw
	}
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: refineSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: strings.ReplaceAll(refinePromptTemplate, "{input}", raw)},
		},
	})
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("no choices")
	}
	if err != nil {
		r.logger.Warn("text refinement failed, using raw text", "error", err)
		return raw
	}
	refined := strings.TrimSpace(resp.Choices[0].Message.Content)
	if refined == "" {
		return raw
	}
	return refined
}
