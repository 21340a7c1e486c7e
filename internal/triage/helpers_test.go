package triage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/afiyalink/afiyalink-assistant/internal/cost"
	"github.com/afiyalink/afiyalink-assistant/internal/interactionlog"
	"github.com/afiyalink/afiyalink-assistant/internal/knowledge"
	"github.com/afiyalink/afiyalink-assistant/internal/llm"
	"github.com/afiyalink/afiyalink-assistant/internal/notify"
	"github.com/afiyalink/afiyalink-assistant/internal/safety"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const disclaimedReply = "Rest and drink fluids. Please consult a doctor if it gets worse."

type fakeLookup struct {
	entries map[string]*knowledge.Entry
	err     error
	panics  bool
	calls   []string
}

func (f *fakeLookup) Find(_ context.Context, symptom string) (*knowledge.Entry, error) {
	if f.panics {
		panic("lookup exploded")
	}
	f.calls = append(f.calls, symptom)
	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.entries[symptom]; ok {
		return e, nil
	}
	return nil, knowledge.ErrNotFound
}

func seededLookup() *fakeLookup {
	entries := map[string]*knowledge.Entry{}
	for i := range knowledge.SeedEntries {
		e := knowledge.SeedEntries[i]
		entries[e.Symptom] = &e
	}
	return &fakeLookup{entries: entries}
}

type recordingLog struct {
	mu      sync.Mutex
	records []interactionlog.Record
	err     error
}

func (l *recordingLog) Append(_ context.Context, rec interactionlog.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return l.err
}

func (l *recordingLog) all() []interactionlog.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]interactionlog.Record(nil), l.records...)
}

type fakeTranslator struct {
	prefix string
	err    error
	calls  int
}

func (f *fakeTranslator) Translate(_ context.Context, text, source, target string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.prefix + "[" + source + "->" + target + "] " + text, nil
}

type fakeAlerts struct {
	mu     sync.Mutex
	alerts []notify.EmergencyAlert
}

func (f *fakeAlerts) NotifyEmergency(_ context.Context, alert notify.EmergencyAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAudit) add(kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, kind)
	return nil
}

func (f *fakeAudit) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeAudit) LogEmergencyDetected(context.Context, string, string, string, []string) error {
	return f.add("emergency")
}

func (f *fakeAudit) LogHighRiskInput(context.Context, string, string, string, []string) error {
	return f.add("high_risk")
}

func (f *fakeAudit) LogSafetyRejection(context.Context, string, string, string, string, string) error {
	return f.add("rejection")
}

func (f *fakeAudit) LogPromptInjection(context.Context, string, string, float64, []string) error {
	return f.add("injection")
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type failingLedger struct{}

func (failingLedger) Reserve(context.Context, float64, float64) (string, bool, error) {
	return "", false, errors.New("ledger down")
}
func (failingLedger) Settle(context.Context, string, float64, float64) error {
	return errors.New("ledger down")
}
func (failingLedger) Add(context.Context, float64) error { return errors.New("ledger down") }
func (failingLedger) Snapshot(context.Context) (cost.Snapshot, error) {
	return cost.Snapshot{}, errors.New("ledger down")
}

func stubBackend(name, text string, rate float64) (*llm.Backend, *llm.StubClient) {
	client := &llm.StubClient{Text: text}
	return &llm.Backend{Name: name, Client: client, Model: name + "-test", RatePerWord: rate}, client
}

// fixture is a fully wired pipeline over fakes.
type fixture struct {
	pipeline   *Pipeline
	governor   *cost.Governor
	lookup     *fakeLookup
	log        *recordingLog
	alerts     *fakeAlerts
	audit      *fakeAudit
	translator *fakeTranslator
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	backends    []*llm.Backend
	ceiling     float64
	maxCallCost float64
	cfg         Config
	validator   *safety.Validator
	translator  *fakeTranslator
	lookup      *fakeLookup
}

func withBackends(b ...*llm.Backend) fixtureOption {
	return func(c *fixtureConfig) { c.backends = b }
}

func withBudget(ceiling, maxCallCost float64) fixtureOption {
	return func(c *fixtureConfig) { c.ceiling, c.maxCallCost = ceiling, maxCallCost }
}

func withConfig(mut func(*Config)) fixtureOption {
	return func(c *fixtureConfig) { mut(&c.cfg) }
}

func withValidator(v *safety.Validator) fixtureOption {
	return func(c *fixtureConfig) { c.validator = v }
}

func withLookup(l *fakeLookup) fixtureOption {
	return func(c *fixtureConfig) { c.lookup = l }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	fc := &fixtureConfig{
		ceiling:     10,
		maxCallCost: 0.01,
		cfg:         DefaultConfig(),
		validator:   safety.NewValidator(),
		translator:  &fakeTranslator{},
		lookup:      seededLookup(),
	}
	for _, opt := range opts {
		opt(fc)
	}

	logger := logging.Discard()
	governor := cost.NewGovernor(cost.NewMemoryLedger(), fc.ceiling, logger)
	registry := llm.NewRegistry([]string{"gemini", "openai", "claude"}, fc.backends...)
	generator := NewGenerator(registry, governor, fc.lookup, GeneratorConfig{MaxCallCost: fc.maxCallCost}, nil, logger)

	f := &fixture{
		governor:   governor,
		lookup:     fc.lookup,
		log:        &recordingLog{},
		alerts:     &fakeAlerts{},
		audit:      &fakeAudit{},
		translator: fc.translator,
	}
	f.pipeline = NewPipeline(Deps{
		Validator:  fc.validator,
		Generator:  generator,
		Governor:   governor,
		Translator: f.translator,
		Log:        f.log,
		Alerts:     f.alerts,
		Audit:      f.audit,
		Database:   fakePinger{},
	}, fc.cfg, logger)
	return f
}

func (f *fixture) process(text string) *ChatResponse {
	return f.pipeline.ProcessMessage(context.Background(), Message{Text: text, UserID: "user-1"})
}
