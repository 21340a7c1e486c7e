package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOverCostCeiling is returned before any network call when the
	// estimated cost of a prompt exceeds the caller's ceiling.
	ErrOverCostCeiling = errors.New("llm: estimated cost exceeds ceiling")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Backend names as they appear in AI_BACKEND_ORDER and response tags.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
	BackendClaude = "claude"
)

// Per-word rates used when a backend does not set its own.
var DefaultRates = map[string]float64{
	BackendGemini: 0.00001,
	BackendOpenAI: 0.0002,
	BackendClaude: 0.00025,
}

// Backend is a configured provider together with its pricing.
type Backend struct {
	Name        string
	Client      Client
	Model       string
	RatePerWord float64
	MaxTokens   int32
	Temperature float32
}

// Completion is the text returned by a backend and what it cost.
type Completion struct {
	Text  string
	Cost  float64
	Usage TokenUsage
}

// EstimateCost prices a prompt by its whitespace-separated word count.
func EstimateCost(prompt string, ratePerWord float64) float64 {
	return float64(len(strings.Fields(prompt))) * ratePerWord
}

// Tag identifies the backend and model in responses and logs.
func (b *Backend) Tag() string {
	if b.Model == "" {
		return b.Name
	}
	return b.Name + ":" + b.Model
}

// Cost is the price of sending prompt to this backend.
func (b *Backend) Cost(prompt string) float64 {
	return EstimateCost(prompt, b.RatePerWord)
}

// Complete sends prompt as a single user message. maxCost <= 0 disables the
// ceiling check.
func (b *Backend) Complete(ctx context.Context, prompt string, maxCost float64) (Completion, error) {
	cost := b.Cost(prompt)
	if maxCost > 0 && cost > maxCost {
		return Completion{Cost: cost}, fmt.Errorf("%w: %s estimated %.6f > %.6f", ErrOverCostCeiling, b.Name, cost, maxCost)
	}

	resp, err := b.Client.Complete(ctx, Request{
		Model:       b.Model,
		Messages:    []ChatMessage{{Role: RoleUser, Content: prompt}},
		MaxTokens:   b.MaxTokens,
		Temperature: b.Temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("llm: %s: %w", b.Name, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Completion{}, fmt.Errorf("llm: %s: %w", b.Name, ErrEmptyResponse)
	}
	return Completion{Text: text, Cost: cost, Usage: resp.Usage}, nil
}
