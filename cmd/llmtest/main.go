// Command llmtest sends one triage prompt to every configured AI backend and
// reports latency, estimated cost and whether the reply would pass output
// validation. Useful when rotating keys or trying a new model.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/afiyalink/afiyalink-assistant/cmd/mainconfig"
	"github.com/afiyalink/afiyalink-assistant/internal/app/bootstrap"
	appconfig "github.com/afiyalink/afiyalink-assistant/internal/config"
	"github.com/afiyalink/afiyalink-assistant/internal/safety"
	"github.com/afiyalink/afiyalink-assistant/internal/triage"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const defaultQuestion = "I have had a mild headache and a slight fever since yesterday. What can I do at home?"

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New("warn")

	question := defaultQuestion
	if len(os.Args) > 1 {
		question = strings.Join(os.Args[1:], " ")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	registry, closeFn, err := bootstrap.BuildRegistry(ctx, cfg, awsCfg, logger)
	if err != nil {
		log.Fatalf("build registry: %v", err)
	}
	defer func() { _ = closeFn() }()

	backends := registry.AvailableInOrder()
	if len(backends) == 0 {
		fmt.Println("No AI backends configured. Set GEMINI_API_KEY, OPENAI_API_KEY or BEDROCK_MODEL_ID.")
		return
	}

	prompt := triage.BuildPrompt(question, cfg.ProcessingLanguage, "general")
	validator := safety.NewValidator()

	fmt.Printf("Prompt: %d words\n", len(strings.Fields(prompt)))
	for i, b := range backends {
		fmt.Printf("\n[%d] %s\n", i+1, b.Tag())

		callCtx, callCancel := context.WithTimeout(ctx, cfg.AICallTimeout)
		start := time.Now()
		out, err := b.Complete(callCtx, prompt, cfg.AIMaxCallCost)
		elapsed := time.Since(start)
		callCancel()

		if err != nil {
			fmt.Printf("    error after %v: %v\n", elapsed.Round(time.Millisecond), err)
			continue
		}
		check := validator.CheckOutput(out.Text)
		fmt.Printf("    %v, est. cost $%.6f, tokens in=%d out=%d\n",
			elapsed.Round(time.Millisecond), out.Cost, out.Usage.InputTokens, out.Usage.OutputTokens)
		if check.Safe {
			fmt.Println("    output validation: pass")
		} else {
			fmt.Printf("    output validation: FAIL (%s)\n", check.Reason)
		}
		fmt.Printf("    %s\n", indent(out.Text))
	}
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n    ")
}
