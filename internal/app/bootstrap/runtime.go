package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/afiyalink/afiyalink-assistant/internal/compliance"
	appconfig "github.com/afiyalink/afiyalink-assistant/internal/config"
	"github.com/afiyalink/afiyalink-assistant/internal/cost"
	"github.com/afiyalink/afiyalink-assistant/internal/interactionlog"
	"github.com/afiyalink/afiyalink-assistant/internal/knowledge"
	"github.com/afiyalink/afiyalink-assistant/internal/llm"
	"github.com/afiyalink/afiyalink-assistant/internal/notify"
	"github.com/afiyalink/afiyalink-assistant/internal/observability/metrics"
	"github.com/afiyalink/afiyalink-assistant/internal/safety"
	"github.com/afiyalink/afiyalink-assistant/internal/store"
	"github.com/afiyalink/afiyalink-assistant/internal/translation"
	"github.com/afiyalink/afiyalink-assistant/internal/triage"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// Runtime is the wired triage stack shared by the API server and the lambda.
type Runtime struct {
	Pipeline     *triage.Pipeline
	Governor     *cost.Governor
	Registry     *llm.Registry
	Knowledge    *knowledge.SQLiteStore
	Interactions interactionlog.Log
	Reader       interactionlog.Reader
	Audit        *compliance.AuditService
	Translation  *translation.Service
	Metrics      *metrics.TriageMetrics

	closers []func() error
}

// Close releases every client the runtime opened, newest first.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runtime) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// BuildRuntime wires the triage pipeline from configuration. Optional
// integrations whose credentials are missing are left out; only the SQLite
// knowledge base is mandatory.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, reg prometheus.Registerer, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	if reg != nil {
		rt.Metrics = metrics.NewTriageMetrics(reg)
	}

	sqliteDB, err := store.NewDB(cfg.SQLitePath)
	if err != nil {
		return fail(fmt.Errorf("bootstrap: open sqlite: %w", err))
	}
	rt.onClose(sqliteDB.Close)

	rt.Knowledge = knowledge.NewSQLiteStore(sqliteDB)
	if err := rt.Knowledge.Seed(ctx); err != nil {
		return fail(fmt.Errorf("bootstrap: seed knowledge base: %w", err))
	}

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		rt.onClose(redisClient.Close)
	}

	ledger, err := BuildCostLedger(cfg, redisClient)
	if err != nil {
		return fail(err)
	}
	rt.Governor = cost.NewGovernor(ledger, cfg.DailyAICostLimit, logger)

	registry, closeBackends, err := BuildRegistry(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fail(err)
	}
	rt.onClose(closeBackends)
	rt.Registry = registry

	var lookup knowledge.Lookup = rt.Knowledge
	if redisClient != nil {
		lookup = knowledge.NewCachedLookup(rt.Knowledge, redisClient, cfg.KnowledgeCacheTTL, logger)
	}

	interactions, reader, err := BuildInteractionLog(ctx, cfg, sqliteDB, awsCfg, rt.onClose)
	if err != nil {
		return fail(err)
	}
	rt.Interactions = interactions
	rt.Reader = reader

	audit, err := BuildAuditService(cfg, rt.onClose)
	if err != nil {
		return fail(err)
	}
	rt.Audit = audit

	translationSvc, translator, err := BuildTranslation(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	rt.Translation = translationSvc

	generator := triage.NewGenerator(registry, rt.Governor, lookup, triage.GeneratorConfig{
		MaxCallCost: cfg.AIMaxCallCost,
		CallTimeout: cfg.AICallTimeout,
	}, rt.Metrics, logger)

	deps := triage.Deps{
		Validator: safety.NewValidator(safety.WithEmergencyDetection(cfg.EnableEmergencyDetection)),
		Generator: generator,
		Governor:  rt.Governor,
		Log:       interactions,
		Alerts:    BuildAlertService(cfg, awsCfg, logger),
		Metrics:   rt.Metrics,
		Database:  rt.Knowledge,
	}
	// Typed nils must stay out of the interfaces.
	if translator != nil {
		deps.Translator = translator
	}
	if audit != nil {
		deps.Audit = audit
	}

	rt.Pipeline = triage.NewPipeline(deps, triage.Config{
		EnableSafetyValidation:  cfg.EnableSafetyValidation,
		ProcessingLanguage:      cfg.ProcessingLanguage,
		EmergencyResponseTarget: cfg.EmergencyResponseTimeLimit,
		MaxResponseTime:         cfg.MaxResponseTime,
		TranslateTimeout:        cfg.TranslateTimeout,
		LogWriteTimeout:         cfg.LogWriteTimeout,
	}, logger)

	logger.Info("triage runtime ready",
		"ai_backends", registry.Names(),
		"interaction_log", cfg.InteractionLogBackend,
		"cost_ledger", cfg.CostLedgerBackend,
		"redis", redisClient != nil,
		"audit", audit != nil,
		"translation", translator != nil,
	)
	return rt, nil
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildCostLedger picks the daily spend ledger. The redis ledger needs a
// reachable client; asking for it without one is a startup error.
func BuildCostLedger(cfg *appconfig.Config, redisClient *redis.Client) (cost.Ledger, error) {
	switch cfg.CostLedgerBackend {
	case "", "memory":
		return cost.NewMemoryLedger(), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("bootstrap: COST_LEDGER_BACKEND=redis requires a reachable REDIS_ADDR")
		}
		return cost.NewRedisLedger(redisClient), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown cost ledger backend %q", cfg.CostLedgerBackend)
	}
}

// BuildInteractionLog opens the configured interaction log. The sqlite
// backend shares the knowledge base database.
func BuildInteractionLog(ctx context.Context, cfg *appconfig.Config, sqliteDB *sql.DB, awsCfg aws.Config, onClose func(func() error)) (interactionlog.Log, interactionlog.Reader, error) {
	switch cfg.InteractionLogBackend {
	case "", "sqlite":
		if sqliteDB == nil {
			return nil, nil, errors.New("bootstrap: sqlite interaction log requires a database")
		}
		l := interactionlog.NewSQLiteLog(sqliteDB)
		return l, l, nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, nil, errors.New("bootstrap: INTERACTION_LOG_BACKEND=postgres requires DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		if onClose != nil {
			onClose(func() error { pool.Close(); return nil })
		}
		l := interactionlog.NewPostgresLog(pool)
		return l, l, nil
	case "dynamodb":
		l := interactionlog.NewDynamoLog(newDynamoClient(awsCfg), cfg.InteractionLogTable)
		return l, l, nil
	case "none":
		return interactionlog.Nop{}, interactionlog.Nop{}, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown interaction log backend %q", cfg.InteractionLogBackend)
	}
}

// BuildAuditService returns the compliance trail, or nil when DATABASE_URL
// is unset.
func BuildAuditService(cfg *appconfig.Config, onClose func(func() error)) (*compliance.AuditService, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open audit database: %w", err)
	}
	if onClose != nil {
		onClose(db.Close)
	}
	return compliance.NewAuditService(db), nil
}

// BuildAlertService wires emergency paging. Email goes through the
// configured provider; the SQS fan-out is added when a queue URL is set.
func BuildAlertService(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *notify.AlertService {
	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			sender = s
		}
	case "ses":
		if s := notify.NewSESSender(newSESClient(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
		}, logger); s != nil {
			sender = s
		}
	}
	if sender == nil {
		if cfg.EmailProvider != "" && cfg.EmailProvider != "stub" {
			logger.Warn("email provider not configured, using stub", "provider", cfg.EmailProvider)
		}
		sender = notify.NewStubEmailSender(logger)
	}

	var queue notify.Publisher
	if url := strings.TrimSpace(cfg.EmergencyAlertQueueURL); url != "" {
		queue = notify.NewSQSPublisher(newSQSClient(awsCfg), url)
	}
	return notify.NewAlertService(sender, cfg.EmergencyAlertEmails, queue, logger)
}

// BuildTranslation returns the refine-and-translate service and the raw
// translator used for response localisation. The translator is nil when no
// Google key is configured.
func BuildTranslation(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*translation.Service, *translation.GoogleTranslator, error) {
	var translator *translation.GoogleTranslator
	if strings.TrimSpace(cfg.GoogleTranslateAPIKey) != "" {
		t, err := translation.NewGoogleTranslator(ctx, cfg.GoogleTranslateAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		translator = t
	}
	refiner := translation.NewRefiner(cfg.RefineAPIKey, cfg.RefineBaseURL, cfg.RefineModel, logger)

	var tr translation.Translator
	if translator != nil {
		tr = translator
	}
	return translation.NewService(refiner, tr, cfg.TranslateTimeout, logger), translator, nil
}
