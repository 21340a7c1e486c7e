package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/afiyalink/afiyalink-assistant/internal/cost"
	"github.com/afiyalink/afiyalink-assistant/internal/knowledge"
	"github.com/afiyalink/afiyalink-assistant/internal/llm"
	"github.com/afiyalink/afiyalink-assistant/internal/observability/metrics"
	"github.com/afiyalink/afiyalink-assistant/internal/safety"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

var tracer = otel.Tracer("afiyalink.internal.triage")

// Ladder stages in the order they are tried.
const (
	LadderAI        = "ai"
	LadderKnowledge = "knowledge"
	LadderRule      = "rule"
)

const (
	knowledgeReliabilityFloor = 0.7
	defaultAICallTimeout      = 8 * time.Second
	defaultMaxCallCost        = 0.01
)

var (
	errNoBackends     = errors.New("triage: no AI backends configured")
	errBackendsFailed = errors.New("triage: every AI backend failed")
	errReserve        = errors.New("triage: AI budget reservation failed")
	errNoSymptoms     = errors.New("triage: no symptoms extracted")
	errLowReliability = errors.New("triage: knowledge entry below reliability floor")
)

// PromptBlockedError is the AI stage result when the prompt guard refuses
// the message.
type PromptBlockedError struct {
	Guard safety.GuardResult
}

func (e *PromptBlockedError) Error() string {
	return fmt.Sprintf("triage: prompt guard blocked message (score %.2f)", e.Guard.Score)
}

// StageResult records what one ladder stage did.
type StageResult struct {
	Stage string
	OK    bool
	Model string
	Err   error
}

// GenerateInput is everything the ladder needs for one message.
type GenerateInput struct {
	RequestID          string
	Text               string
	Symptoms           []string
	Intent             Intent
	Language           string
	CulturalBackground string
}

// GeneratorConfig tunes the AI stage.
type GeneratorConfig struct {
	// MaxCallCost is both the per-call cost ceiling and the amount reserved
	// against the daily budget while a call is in flight.
	MaxCallCost float64
	CallTimeout time.Duration
}

// Generator runs the response ladder: AI, knowledge lookup, canned rules.
type Generator struct {
	registry  *llm.Registry
	governor  *cost.Governor
	knowledge knowledge.Lookup
	cfg       GeneratorConfig
	metrics   *metrics.TriageMetrics
	logger    *logging.Logger
}

// NewGenerator builds a ladder. A nil registry or governor disables the AI
// stage; a nil knowledge lookup disables the knowledge stage. The rule
// stage is always available.
func NewGenerator(registry *llm.Registry, governor *cost.Governor, lookup knowledge.Lookup, cfg GeneratorConfig, m *metrics.TriageMetrics, logger *logging.Logger) *Generator {
	if cfg.MaxCallCost <= 0 {
		cfg.MaxCallCost = defaultMaxCallCost
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultAICallTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{
		registry:  registry,
		governor:  governor,
		knowledge: lookup,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// BackendCount is the number of configured AI backends.
func (g *Generator) BackendCount() int {
	return g.registry.Len()
}

// Generate returns the first usable candidate. It never returns nil: the
// rule stage always answers.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (*ChatResponse, []StageResult) {
	results := make([]StageResult, 0, 3)

	resp, res := g.tryAI(ctx, in)
	results = append(results, res)
	if resp != nil {
		return resp, results
	}

	resp, res = g.tryKnowledge(ctx, in)
	results = append(results, res)
	if resp != nil {
		return resp, results
	}

	resp, res = g.ruleBased(ctx, in)
	results = append(results, res)
	return resp, results
}

func (g *Generator) tryAI(ctx context.Context, in GenerateInput) (*ChatResponse, StageResult) {
	res := StageResult{Stage: LadderAI}
	defer func() { g.metrics.ObserveStage(LadderAI, res.OK) }()

	if g.registry.Len() == 0 || g.governor == nil {
		res.Err = errNoBackends
		return nil, res
	}
	if !g.governor.CanSpend(ctx, g.cfg.MaxCallCost) {
		res.Err = cost.ErrBudgetExhausted
		return nil, res
	}
	if guard := safety.ScanForPromptInjection(in.Text); guard.Blocked {
		res.Err = &PromptBlockedError{Guard: guard}
		return nil, res
	}

	ctx, span := tracer.Start(ctx, "triage.ladder.ai")
	defer span.End()
	span.SetAttributes(attribute.String("afiyalink.request_id", in.RequestID))

	prompt := BuildPrompt(in.Text, in.Language, in.CulturalBackground)
	var lastErr error
	for _, backend := range g.registry.AvailableInOrder() {
		completion, err := g.callBackend(ctx, backend, prompt, in.RequestID)
		if errors.Is(err, cost.ErrBudgetExhausted) || errors.Is(err, errReserve) {
			// budget gone or ledger down; later backends would fail the same way
			lastErr = err
			break
		}
		if err != nil {
			g.logger.Warn("AI backend failed", "request_id", in.RequestID, "backend", backend.Tag(), "error", err)
			span.RecordError(err)
			lastErr = err
			continue
		}
		g.metrics.ObserveAICost(backend.Tag(), completion.Cost)

		span.SetAttributes(
			attribute.String("afiyalink.ai_model", backend.Tag()),
			attribute.Float64("afiyalink.ai_cost", completion.Cost),
		)
		res.OK = true
		res.Model = backend.Tag()
		return &ChatResponse{
			Response:     completion.Text,
			Intent:       IntentHealthQuery,
			Confidence:   0.85,
			RiskLevel:    RiskLow,
			UsedAIModel:  backend.Tag(),
			CostEstimate: completion.Cost,
		}, res
	}

	if lastErr == nil {
		lastErr = errBackendsFailed
	}
	res.Err = lastErr
	return nil, res
}

// callBackend runs one paid completion under a budget reservation. The
// reservation is released on every exit that does not commit, panics included.
func (g *Generator) callBackend(ctx context.Context, backend *llm.Backend, prompt, requestID string) (llm.Completion, error) {
	reservation, err := g.governor.Reserve(ctx, g.cfg.MaxCallCost)
	if err != nil {
		if errors.Is(err, cost.ErrBudgetExhausted) {
			return llm.Completion{}, err
		}
		return llm.Completion{}, fmt.Errorf("%w: %w", errReserve, err)
	}
	settleCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := reservation.Release(settleCtx); err != nil {
			g.logger.Error("failed to release AI reservation", "request_id", requestID, "error", err)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	completion, err := backend.Complete(callCtx, prompt, g.cfg.MaxCallCost)
	if err != nil {
		return llm.Completion{}, err
	}
	if err := reservation.Commit(settleCtx, completion.Cost); err != nil {
		g.logger.Error("failed to commit AI spend", "request_id", requestID, "backend", backend.Tag(), "cost", completion.Cost, "error", err)
	}
	return completion, nil
}

func (g *Generator) tryKnowledge(ctx context.Context, in GenerateInput) (*ChatResponse, StageResult) {
	res := StageResult{Stage: LadderKnowledge}
	defer func() { g.metrics.ObserveStage(LadderKnowledge, res.OK) }()

	if len(in.Symptoms) == 0 {
		res.Err = errNoSymptoms
		return nil, res
	}
	if g.knowledge == nil {
		res.Err = knowledge.ErrNotFound
		return nil, res
	}

	ctx, span := tracer.Start(ctx, "triage.ladder.knowledge")
	defer span.End()
	span.SetAttributes(attribute.String("afiyalink.symptom", in.Symptoms[0]))

	entry, err := g.knowledge.Find(ctx, in.Symptoms[0])
	if err != nil {
		if !errors.Is(err, knowledge.ErrNotFound) {
			span.RecordError(err)
			g.logger.Warn("knowledge lookup failed", "request_id", in.RequestID, "symptom", in.Symptoms[0], "error", err)
		}
		res.Err = err
		return nil, res
	}
	if entry.Reliability <= knowledgeReliabilityFloor {
		res.Err = errLowReliability
		return nil, res
	}

	risk := RiskLow
	if entry.SeverityLevel == knowledge.SeverityHigh {
		risk = RiskMedium
	}
	res.OK = true
	return &ChatResponse{
		Response:   FormatKnowledge(entry),
		Intent:     IntentSymptomCheck,
		Confidence: entry.Reliability,
		RiskLevel:  risk,
	}, res
}

func (g *Generator) ruleBased(_ context.Context, in GenerateInput) (*ChatResponse, StageResult) {
	_, text := SelectTemplate(in.Text)
	intent := in.Intent
	if intent == "" {
		intent = ClassifyIntent(in.Text)
	}
	g.metrics.ObserveStage(LadderRule, true)
	return &ChatResponse{
		Response:   text,
		Intent:     intent,
		Confidence: 0.7,
		RiskLevel:  RiskLow,
	}, StageResult{Stage: LadderRule, OK: true}
}
