package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Triage pipeline
	DailyAICostLimit           float64
	AIMaxCallCost              float64
	AIBackendOrder             []string
	AICallTimeout              time.Duration
	EmergencyResponseTimeLimit time.Duration
	MaxResponseTime            time.Duration
	EnableSafetyValidation     bool
	EnableEmergencyDetection   bool
	ProcessingLanguage         string
	LogWriteTimeout            time.Duration

	// AI backends. A backend is configured iff its credential is present.
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	BedrockModelID string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Storage
	SQLitePath            string
	DatabaseURL           string
	InteractionLogBackend string
	InteractionLogTable   string
	CostLedgerBackend     string
	RedisAddr             string
	RedisPassword         string
	RedisTLS              bool
	KnowledgeCacheTTL     time.Duration

	// Translation
	GoogleTranslateAPIKey string
	TranslateTimeout      time.Duration
	RefineAPIKey          string
	RefineBaseURL         string
	RefineModel           string

	// Emergency alerting
	EmailProvider          string
	SendGridAPIKey         string
	SendGridFromEmail      string
	SendGridFromName       string
	SESFromEmail           string
	EmergencyAlertEmails   []string
	EmergencyAlertQueueURL string

	// Archive
	ArchiveBucket string

	// HTTP
	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DailyAICostLimit:           getEnvAsFloat("DAILY_AI_COST_LIMIT", 10.0),
		AIMaxCallCost:              getEnvAsFloat("AI_MAX_CALL_COST", 0.01),
		AIBackendOrder:             getEnvAsList("AI_BACKEND_ORDER", []string{"gemini", "openai", "claude"}),
		AICallTimeout:              getEnvAsDuration("AI_CALL_TIMEOUT", 8*time.Second),
		EmergencyResponseTimeLimit: getEnvAsDuration("EMERGENCY_RESPONSE_TIME_LIMIT", 5*time.Second),
		MaxResponseTime:            getEnvAsDuration("MAX_RESPONSE_TIME", 30*time.Second),
		EnableSafetyValidation:     getEnvAsBool("ENABLE_SAFETY_VALIDATION", true),
		EnableEmergencyDetection:   getEnvAsBool("ENABLE_EMERGENCY_DETECTION", true),
		ProcessingLanguage:         strings.ToLower(getEnv("PROCESSING_LANGUAGE", "en")),
		LogWriteTimeout:            getEnvAsDuration("LOG_WRITE_TIMEOUT", 3*time.Second),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SQLitePath:            getEnv("SQLITE_PATH", "afiyalink.db"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		InteractionLogBackend: strings.ToLower(getEnv("INTERACTION_LOG_BACKEND", "sqlite")),
		InteractionLogTable:   getEnv("INTERACTION_LOG_TABLE", "afiyalink_interactions"),
		CostLedgerBackend:     strings.ToLower(getEnv("COST_LEDGER_BACKEND", "memory")),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisTLS:              getEnvAsBool("REDIS_TLS", false),
		KnowledgeCacheTTL:     getEnvAsDuration("KNOWLEDGE_CACHE_TTL", 15*time.Minute),

		GoogleTranslateAPIKey: getEnv("GOOGLE_TRANSLATE_API_KEY", ""),
		TranslateTimeout:      getEnvAsDuration("TRANSLATE_TIMEOUT", 5*time.Second),
		RefineAPIKey:          getEnv("REFINE_API_KEY", getEnv("OPENROUTER_API_KEY", "")),
		RefineBaseURL:         getEnv("REFINE_BASE_URL", "https://openrouter.ai/api/v1"),
		RefineModel:           getEnv("REFINE_MODEL", "deepseek/deepseek-r1"),

		EmailProvider:          strings.ToLower(getEnv("EMAIL_PROVIDER", "stub")),
		SendGridAPIKey:         getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:      getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:       getEnv("SENDGRID_FROM_NAME", "AfiyaLink Alerts"),
		SESFromEmail:           getEnv("SES_FROM_EMAIL", ""),
		EmergencyAlertEmails:   getEnvAsList("EMERGENCY_ALERT_EMAILS", nil),
		EmergencyAlertQueueURL: getEnv("EMERGENCY_ALERT_QUEUE_URL", ""),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
