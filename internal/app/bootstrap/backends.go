package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/afiyalink/afiyalink-assistant/internal/config"
	"github.com/afiyalink/afiyalink-assistant/internal/llm"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// BuildRegistry configures every AI backend whose credential is present and
// orders them by cfg.AIBackendOrder. The returned closer releases backend
// clients that hold connections.
func BuildRegistry(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*llm.Registry, func() error, error) {
	if logger == nil {
		logger = logging.Default()
	}
	var (
		backends []*llm.Backend
		closers  []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		client, err := llm.NewGeminiClient(ctx, key, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		closers = append(closers, client.Close)
		backends = append(backends, newBackend(llm.BackendGemini, client, client.Model()))
	}

	if key := strings.TrimSpace(cfg.OpenAIAPIKey); key != "" {
		client, err := llm.NewOpenAIClient(key, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		backends = append(backends, newBackend(llm.BackendOpenAI, client, client.Model()))
	}

	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		client := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), model)
		backends = append(backends, newBackend(llm.BackendClaude, client, model))
	}

	registry := llm.NewRegistry(cfg.AIBackendOrder, backends...)
	if registry.Len() == 0 {
		logger.Warn("no AI backends configured, answers come from the knowledge base and templates")
	}
	return registry, closeAll, nil
}

func newBackend(name string, client llm.Client, model string) *llm.Backend {
	return &llm.Backend{
		Name:        name,
		Client:      client,
		Model:       model,
		RatePerWord: llm.DefaultRates[name],
	}
}

func newDynamoClient(awsCfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg)
}

func newSESClient(awsCfg aws.Config) *sesv2.Client {
	return sesv2.NewFromConfig(awsCfg)
}

func newSQSClient(awsCfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(awsCfg)
}

// NewS3Client builds the archive bucket client. Path-style addressing is
// forced when an endpoint override (LocalStack) is in play.
func NewS3Client(awsCfg aws.Config, cfg *appconfig.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg != nil && strings.TrimSpace(cfg.AWSEndpointOverride) != "" {
			o.UsePathStyle = true
		}
	})
}
