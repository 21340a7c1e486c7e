package triage

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/afiyalink/afiyalink-assistant/internal/cost"
	"github.com/afiyalink/afiyalink-assistant/internal/interactionlog"
	"github.com/afiyalink/afiyalink-assistant/internal/notify"
	"github.com/afiyalink/afiyalink-assistant/internal/observability/metrics"
	"github.com/afiyalink/afiyalink-assistant/internal/safety"
	"github.com/afiyalink/afiyalink-assistant/internal/translation"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// AlertNotifier pages on-call staff about an emergency.
type AlertNotifier interface {
	NotifyEmergency(ctx context.Context, alert notify.EmergencyAlert) error
}

// AuditRecorder keeps the compliance trail of safety decisions.
type AuditRecorder interface {
	LogEmergencyDetected(ctx context.Context, requestID, userID, message string, warnings []string) error
	LogHighRiskInput(ctx context.Context, requestID, userID, message string, warnings []string) error
	LogSafetyRejection(ctx context.Context, requestID, userID, model, reason, aiResponse string) error
	LogPromptInjection(ctx context.Context, requestID, userID string, score float64, reasons []string) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the pipeline's tunables.
type Config struct {
	EnableSafetyValidation bool
	ProcessingLanguage     string

	// EmergencyResponseTarget is informational; slower emergency replies are
	// logged at warn.
	EmergencyResponseTarget time.Duration

	// MaxResponseTime bounds the normal path.
	MaxResponseTime time.Duration

	TranslateTimeout time.Duration
	LogWriteTimeout  time.Duration
	AlertTimeout     time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		EnableSafetyValidation:  true,
		ProcessingLanguage:      DefaultLanguage,
		EmergencyResponseTarget: 5 * time.Second,
		MaxResponseTime:         30 * time.Second,
		TranslateTimeout:        5 * time.Second,
		LogWriteTimeout:         3 * time.Second,
		AlertTimeout:            10 * time.Second,
	}
}

// Deps are the collaborators of a Pipeline. Validator and Generator are
// required; everything else is optional.
type Deps struct {
	Validator  *safety.Validator
	Generator  *Generator
	Governor   *cost.Governor
	Translator translation.Translator
	Log        interactionlog.Log
	Alerts     AlertNotifier
	Audit      AuditRecorder
	Metrics    *metrics.TriageMetrics
	Database   Pinger
}

// Pipeline is the per-message triage state machine.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *logging.Logger

	startedAt   time.Time
	now         func() time.Time
	seq         atomic.Uint64
	requests    atomic.Uint64
	emergencies atomic.Uint64
	background  sync.WaitGroup
}

// NewPipeline wires a pipeline.
func NewPipeline(deps Deps, cfg Config, logger *logging.Logger) *Pipeline {
	if deps.Validator == nil {
		panic("triage: validator cannot be nil")
	}
	if deps.Generator == nil {
		panic("triage: generator cannot be nil")
	}
	if deps.Log == nil {
		deps.Log = interactionlog.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	def := DefaultConfig()
	if cfg.ProcessingLanguage == "" {
		cfg.ProcessingLanguage = def.ProcessingLanguage
	}
	if cfg.EmergencyResponseTarget <= 0 {
		cfg.EmergencyResponseTarget = def.EmergencyResponseTarget
	}
	if cfg.MaxResponseTime <= 0 {
		cfg.MaxResponseTime = def.MaxResponseTime
	}
	if cfg.TranslateTimeout <= 0 {
		cfg.TranslateTimeout = def.TranslateTimeout
	}
	if cfg.LogWriteTimeout <= 0 {
		cfg.LogWriteTimeout = def.LogWriteTimeout
	}
	if cfg.AlertTimeout <= 0 {
		cfg.AlertTimeout = def.AlertTimeout
	}
	return &Pipeline{
		deps:      deps,
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// run tracks the current stage of one request.
type run struct {
	requestID string
	msg       Message
	stage     Stage
	span      trace.Span
	logger    *logging.Logger
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	r.span.AddEvent(string(stage))
}

// ProcessMessage answers one message. It never returns nil and never panics.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg Message) (resp *ChatResponse) {
	start := p.now()
	requestID := p.nextRequestID(start)
	p.requests.Add(1)
	msg = msg.withDefaults()

	ctx, span := tracer.Start(ctx, "triage.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("afiyalink.request_id", requestID),
		attribute.String("afiyalink.language", msg.Language),
	)

	r := &run{
		requestID: requestID,
		msg:       msg,
		stage:     StageReceived,
		span:      span,
		logger:    p.logger.With("request_id", requestID),
	}
	r.logger.Info("processing message", "user_id", msg.UserID, "preview", preview(msg.Text))

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		err := fmt.Errorf("triage: panic in stage %s: %v", r.stage, rec)
		span.RecordError(err)
		r.logger.Error("triage failed", "stage", r.stage, "error", err)
		failedAt := r.stage
		r.enter(StageFailed)

		resp = errorResponse(requestID)
		resp.ResponseTime = p.now().Sub(start).Seconds()
		if failedAt != StageLogged {
			p.appendLog(ctx, r, resp)
		}
		p.deps.Metrics.ObserveRequest(string(resp.Intent), string(resp.RiskLevel))
		p.deps.Metrics.ObserveLatency("failed", resp.ResponseTime)
	}()

	assessment := p.deps.Validator.ValidateInput(msg.Text)
	r.enter(StageSafetyChecked)
	span.SetAttributes(attribute.String("afiyalink.safety_level", assessment.Level.String()))

	path := "normal"
	if assessment.EmergencyDetected {
		path = "emergency"
		r.enter(StageEmergencyPath)
		resp = p.handleEmergency(ctx, r, assessment, start)
	} else {
		r.enter(StageNormalPath)
		resp = p.handleNormal(ctx, r, assessment)
	}
	resp.RequestID = requestID
	resp.ResponseTime = p.now().Sub(start).Seconds()

	r.enter(StageLogged)
	p.appendLog(ctx, r, resp)
	r.enter(StageDone)

	span.SetAttributes(
		attribute.String("afiyalink.intent", string(resp.Intent)),
		attribute.String("afiyalink.risk_level", string(resp.RiskLevel)),
	)
	p.deps.Metrics.ObserveRequest(string(resp.Intent), string(resp.RiskLevel))
	p.deps.Metrics.ObserveLatency(path, resp.ResponseTime)
	return resp
}

func (p *Pipeline) handleEmergency(ctx context.Context, r *run, assessment safety.Assessment, start time.Time) *ChatResponse {
	p.emergencies.Add(1)
	r.logger.Error("EMERGENCY DETECTED", "user_id", r.msg.UserID, "warnings", assessment.Warnings)

	resp := &ChatResponse{
		Response:                  EmergencyText(r.msg.Region),
		Intent:                    IntentEmergency,
		Confidence:                1.0,
		RiskLevel:                 RiskCritical,
		EmergencyAlert:            true,
		RequiresHumanIntervention: true,
	}

	alert := notify.EmergencyAlert{
		RequestID:  r.requestID,
		UserID:     r.msg.UserID,
		Query:      r.msg.Text,
		Warnings:   assessment.Warnings,
		Region:     r.msg.Region,
		Language:   r.msg.Language,
		DetectedAt: start.UTC(),
	}
	p.goBackground(ctx, r, "alert", func(ctx context.Context) error {
		var errs []error
		if p.deps.Alerts != nil {
			errs = append(errs, p.deps.Alerts.NotifyEmergency(ctx, alert))
		}
		if p.deps.Audit != nil {
			errs = append(errs, p.deps.Audit.LogEmergencyDetected(ctx, r.requestID, r.msg.UserID, r.msg.Text, assessment.Warnings))
		}
		return errors.Join(errs...)
	})

	if elapsed := p.now().Sub(start); elapsed > p.cfg.EmergencyResponseTarget {
		r.logger.Warn("emergency response slower than target", "elapsed", elapsed, "target", p.cfg.EmergencyResponseTarget)
	}
	return resp
}

func (p *Pipeline) handleNormal(ctx context.Context, r *run, assessment safety.Assessment) *ChatResponse {
	msg := r.msg
	if assessment.Level == safety.LevelWarning && p.deps.Audit != nil {
		p.goBackground(ctx, r, "audit", func(ctx context.Context) error {
			return p.deps.Audit.LogHighRiskInput(ctx, r.requestID, msg.UserID, msg.Text, assessment.Warnings)
		})
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.MaxResponseTime)
	defer cancel()

	symptoms := ExtractSymptoms(msg.Text)
	intent := ClassifyIntent(msg.Text)

	resp, stages := p.deps.Generator.Generate(ctx, GenerateInput{
		RequestID:          r.requestID,
		Text:               msg.Text,
		Symptoms:           symptoms,
		Intent:             intent,
		Language:           msg.Language,
		CulturalBackground: msg.CulturalBackground,
	})
	r.enter(StageResponseGenerated)
	p.auditPromptGuard(ctx, r, stages)

	if resp.UsedAIModel != "" && p.cfg.EnableSafetyValidation {
		check := p.deps.Validator.CheckOutput(resp.Response)
		if !check.Safe {
			r.logger.Warn("AI response failed output validation", "model", resp.UsedAIModel, "reason", check.Reason)
			p.deps.Metrics.ObserveRejection(check.Reason)
			if p.deps.Audit != nil {
				model, text := resp.UsedAIModel, resp.Response
				p.goBackground(ctx, r, "audit", func(ctx context.Context) error {
					return p.deps.Audit.LogSafetyRejection(ctx, r.requestID, msg.UserID, model, check.Reason, text)
				})
			}
			resp = safeFallback()
		}
	}
	r.enter(StageOutputValidated)

	if resp.Intent == IntentEmergency {
		resp.RiskLevel = RiskCritical
		resp.RequiresHumanIntervention = true
		resp.Response += emergencyFooter
	}

	if isFaithTag(msg.CulturalBackground) {
		resp.Response = annotateCulture(resp.Response, symptoms, intent)
	}
	r.enter(StageCulturallyAnnotated)

	if msg.Language != p.cfg.ProcessingLanguage && p.deps.Translator != nil {
		resp.Response = p.translate(ctx, r, resp.Response)
	}
	r.enter(StageTranslated)
	return resp
}

func (p *Pipeline) translate(ctx context.Context, r *run, text string) string {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TranslateTimeout)
	defer cancel()
	translated, err := p.deps.Translator.Translate(ctx, text, p.cfg.ProcessingLanguage, r.msg.Language)
	p.deps.Metrics.ObserveSideEffect("translate", err)
	if err != nil {
		r.logger.Warn("translation failed, keeping original text", "language", r.msg.Language, "error", err)
		return text
	}
	if translated == "" {
		return text
	}
	return translated
}

func (p *Pipeline) auditPromptGuard(ctx context.Context, r *run, stages []StageResult) {
	for _, st := range stages {
		var blocked *PromptBlockedError
		if !errors.As(st.Err, &blocked) {
			continue
		}
		r.logger.Warn("prompt injection blocked", "score", blocked.Guard.Score, "reasons", blocked.Guard.Reasons)
		p.deps.Metrics.ObserveRejection("prompt_injection")
		if p.deps.Audit != nil {
			guard := blocked.Guard
			p.goBackground(ctx, r, "audit", func(ctx context.Context) error {
				return p.deps.Audit.LogPromptInjection(ctx, r.requestID, r.msg.UserID, guard.Score, guard.Reasons)
			})
		}
	}
}

// appendLog writes the interaction record. It cannot fail the request.
func (p *Pipeline) appendLog(ctx context.Context, r *run, resp *ChatResponse) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.LogWriteTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("interaction log panicked", "panic", fmt.Sprint(rec))
		}
	}()

	err := p.deps.Log.Append(ctx, interactionlog.Record{
		RequestID:      r.requestID,
		UserID:         r.msg.UserID,
		Query:          r.msg.Text,
		Response:       resp.Response,
		RiskLevel:      string(resp.RiskLevel),
		EmergencyAlert: resp.EmergencyAlert,
		Intent:         string(resp.Intent),
		CreatedAt:      p.now(),
	})
	p.deps.Metrics.ObserveSideEffect("log", err)
	if err != nil {
		r.logger.Error("failed to append interaction log", "error", err)
	}
}

// goBackground runs fn after the response is returned. The caller's
// cancellation does not reach fn; timeout does.
func (p *Pipeline) goBackground(ctx context.Context, r *run, kind string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.AlertTimeout)
	p.background.Add(1)
	go func() {
		defer p.background.Done()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background task panicked", "kind", kind, "panic", fmt.Sprint(rec))
			}
		}()
		err := fn(ctx)
		p.deps.Metrics.ObserveSideEffect(kind, err)
		if err != nil {
			r.logger.Error("background task failed", "kind", kind, "error", err)
		}
	}()
}

// Wait blocks until background alerts and audits have finished.
func (p *Pipeline) Wait() {
	p.background.Wait()
}

func (p *Pipeline) nextRequestID(now time.Time) string {
	return fmt.Sprintf("req_%d_%d", now.UnixMilli(), p.seq.Add(1))
}

func safeFallback() *ChatResponse {
	return &ChatResponse{
		Response:                  safeFallbackText,
		Intent:                    IntentSystemFallback,
		Confidence:                1.0,
		RiskLevel:                 RiskLow,
		RequiresHumanIntervention: true,
	}
}

func errorResponse(requestID string) *ChatResponse {
	return &ChatResponse{
		Response:                  errorText,
		Intent:                    IntentError,
		Confidence:                0,
		RiskLevel:                 RiskLow,
		RequiresHumanIntervention: true,
		RequestID:                 requestID,
	}
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= 50 {
		return text
	}
	return string(r[:50]) + "..."
}

// Health values reported by Status.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthCritical = "critical"
)

// StatusReport is the payload of the system status endpoint.
type StatusReport struct {
	SystemHealth       string    `json:"system_health"`
	UptimeHours        float64   `json:"uptime_hours"`
	TotalRequests      uint64    `json:"total_requests"`
	EmergencyResponses uint64    `json:"emergency_responses"`
	DailyAICost        float64   `json:"daily_ai_cost"`
	AIBudgetAction     string    `json:"ai_budget_action"`
	AIModelsAvailable  int       `json:"ai_models_available"`
	DatabaseStatus     string    `json:"database_status"`
	HeapAllocMB        float64   `json:"heap_alloc_mb"`
	Goroutines         int       `json:"goroutines"`
	LastCheck          time.Time `json:"last_check"`
}

// Status reports counters, spend and dependency health.
func (p *Pipeline) Status(ctx context.Context) StatusReport {
	now := p.now()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := StatusReport{
		SystemHealth:       HealthHealthy,
		UptimeHours:        now.Sub(p.startedAt).Hours(),
		TotalRequests:      p.requests.Load(),
		EmergencyResponses: p.emergencies.Load(),
		AIModelsAvailable:  p.deps.Generator.BackendCount(),
		DatabaseStatus:     HealthHealthy,
		HeapAllocMB:        float64(mem.HeapAlloc) / (1024 * 1024),
		Goroutines:         runtime.NumGoroutine(),
		LastCheck:          now.UTC(),
	}

	degraded := 0
	if p.deps.Governor != nil {
		st, err := p.deps.Governor.Status(ctx)
		report.DailyAICost = st.Spent
		report.AIBudgetAction = string(st.Action)
		if err != nil {
			p.logger.Warn("cost ledger unavailable", "error", err)
			degraded++
		}
	} else {
		report.AIBudgetAction = string(cost.ActionHalt)
	}

	if p.deps.Database != nil {
		if err := p.deps.Database.Ping(ctx); err != nil {
			p.logger.Warn("database ping failed", "error", err)
			report.DatabaseStatus = "unavailable"
			degraded++
		}
	}

	switch degraded {
	case 0:
	case 1:
		report.SystemHealth = HealthDegraded
	default:
		report.SystemHealth = HealthCritical
	}
	return report
}
