// Command chat-lambda serves the triage API from AWS Lambda behind an API
// Gateway HTTP API. The pipeline runs in-process; the interaction log and
// cost ledger should point at shared backends (dynamodb, redis) since the
// local SQLite file lives in /tmp and disappears with the container.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/afiyalink/afiyalink-assistant/cmd/mainconfig"
	"github.com/afiyalink/afiyalink-assistant/internal/api/router"
	"github.com/afiyalink/afiyalink-assistant/internal/app/bootstrap"
	appconfig "github.com/afiyalink/afiyalink-assistant/internal/config"
	"github.com/afiyalink/afiyalink-assistant/internal/triage"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const lambdaSQLitePath = "/tmp/afiyalink.db"

// routes reachable through the function URL; everything else is 404.
var routes = map[string]string{
	"/health":               http.MethodGet,
	"/api/v1/health-chat":   http.MethodPost,
	"/api/v1/emergency":     http.MethodPost,
	"/api/v1/system-status": http.MethodGet,
}

func main() {
	cfg := appconfig.Load()
	if strings.TrimSpace(os.Getenv("SQLITE_PATH")) == "" {
		cfg.SQLitePath = lambdaSQLitePath
	}
	// API Gateway throttles; the in-process limiter would be per container.
	cfg.RateLimitRPS = 0

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	rt, err := bootstrap.BuildRuntime(ctx, cfg, awsCfg, nil, logger)
	if err != nil {
		logger.Error("failed to build triage runtime", "error", err)
		os.Exit(1)
	}

	h := router.New(&router.Config{
		Logger: logger,
		Triage: triage.NewHandler(rt.Pipeline, logger),
	})
	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		resp, err := handle(ctx, h, evt)
		// Side effects must land before the container is frozen.
		rt.Pipeline.Wait()
		return resp, err
	})
}

func handle(ctx context.Context, h http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	allowed, ok := routes[path]
	if !ok {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}
	if method != allowed {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	target := path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}
	if ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP); ip != "" {
		req.Header.Set("X-Real-IP", ip)
	}
	if id := strings.TrimSpace(evt.RequestContext.RequestID); id != "" && req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", id)
	}

	w := &responseWriter{header: http.Header{}}
	h.ServeHTTP(w, req)

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: w.statusCode(),
		Body:       w.body.String(),
		Headers:    map[string]string{},
	}
	for k := range w.header {
		out.Headers[strings.ToLower(k)] = w.header.Get(k)
	}
	return out, nil
}

// responseWriter buffers a handler's output for the lambda response.
type responseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *responseWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}
