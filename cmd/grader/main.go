/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command grader grades student documents against reference solutions
// with a vision model.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chainguard.dev/refgrader/agents/agenttrace"
	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/judge"
	"chainguard.dev/refgrader/agents/metrics"
	"chainguard.dev/refgrader/grading/classify"
	"chainguard.dev/refgrader/grading/extract"
	"chainguard.dev/refgrader/grading/pipeline"
	"chainguard.dev/refgrader/grading/reference"
	"chainguard.dev/refgrader/grading/results"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
)

type config struct {
	Provider      string `env:"GRADER_PROVIDER"`
	Model         string `env:"GRADER_MODEL"`
	QwenURL       string `env:"GRADER_QWEN_URL,default=http://localhost:5000"`
	OpenAIBaseURL string `env:"GRADER_OPENAI_BASE_URL"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	Project         string `env:"GOOGLE_CLOUD_PROJECT"`
	Region          string `env:"GOOGLE_CLOUD_REGION"`

	ReferenceDB string `env:"GRADER_REFERENCE_DB,default=metadata_database.json"`
	ResultsDB   string `env:"GRADER_RESULTS_DB,default=grader.db"`

	Workers             int           `env:"GRADER_WORKERS,default=1"`
	CallTimeout         time.Duration `env:"GRADER_CALL_TIMEOUT,default=60s"`
	ConfidenceThreshold float64       `env:"GRADER_CONFIDENCE_THRESHOLD,default=0.6"`
	MinImageSize        int           `env:"GRADER_MIN_IMAGE_SIZE,default=100"`
	TopK                int           `env:"GRADER_TOP_K,default=1"`
	EvalSubdir          string        `env:"GRADER_EVAL_SUBDIR,default=evaluation_system_v2"`

	MetricsPort int `env:"METRICS_PORT,default=0"`
}

func (c *config) backend(vm *metrics.Vision) judge.BackendConfig {
	return judge.BackendConfig{
		Provider:        judge.Provider(c.Provider),
		Model:           c.Model,
		QwenURL:         c.QwenURL,
		OpenAIBaseURL:   c.OpenAIBaseURL,
		OpenAIAPIKey:    c.OpenAIAPIKey,
		AnthropicAPIKey: c.AnthropicAPIKey,
		GeminiAPIKey:    c.GeminiAPIKey,
		Project:         c.Project,
		Region:          c.Region,
		Metrics:         vm,
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	if cfg.MetricsPort > 0 {
		stop := serveMetrics(ctx, cfg.MetricsPort)
		defer stop()
	}

	if err := rootCommand(&cfg).ExecuteContext(ctx); err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
}

// serveMetrics exposes the Prometheus registry until the returned
// function is called.
func serveMetrics(ctx context.Context, port int) func() {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		clog.InfoContextf(ctx, "Serving metrics on port %d", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			clog.ErrorContextf(ctx, "metrics server failed: %v", err)
		}
	}()
	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
}

// components are the long-lived collaborators shared by the commands.
type components struct {
	exec       executor.Interface
	judge      *judge.Judge
	classifier *classify.Vision
	extractor  *extract.Extractor
}

func newComponents(ctx context.Context, cfg *config) (*components, error) {
	vm := metrics.NewVision(metrics.MeterName)
	vm.SetAttributeEnricher(agenttrace.EnrichAttributes)

	exec, err := judge.NewExecutor(ctx, cfg.backend(vm))
	if err != nil {
		return nil, fmt.Errorf("creating vision backend: %w", err)
	}
	return &components{
		exec:  exec,
		judge: judge.New(exec, judge.WithCallTimeout(cfg.CallTimeout)),
		classifier: classify.NewVision(exec,
			classify.WithThreshold(cfg.ConfidenceThreshold),
			classify.WithCallTimeout(cfg.CallTimeout),
		),
		extractor: extract.New(extract.WithMinSize(cfg.MinImageSize, cfg.MinImageSize)),
	}, nil
}

func (c *components) builder(cfg *config, opts ...reference.BuilderOption) *reference.Builder {
	opts = append([]reference.BuilderOption{reference.WithBuildWorkers(cfg.Workers)}, opts...)
	return reference.NewBuilder(c.extractor, c.classifier, c.judge, opts...)
}

// newEngine wires a pipeline.Engine. The stored reference database is
// required unless only custom references will be used.
func newEngine(ctx context.Context, cfg *config, c *components, customOnly bool, rec pipeline.Recorder) (*pipeline.Engine, error) {
	db, err := reference.Load(ctx, cfg.ReferenceDB)
	switch {
	case err != nil && !customOnly:
		return nil, fmt.Errorf("loading reference database: %w", err)
	case err != nil:
		clog.WarnContextf(ctx, "No stored reference database (%v); using custom references only", err)
		db = reference.NewDatabase()
	default:
		clog.InfoContextf(ctx, "Loaded %d references in %d categories from %s", db.Len(), len(db.Categories()), cfg.ReferenceDB)
	}

	evaluator := pipeline.NewEvaluator(c.classifier, c.judge,
		pipeline.WithTopK(cfg.TopK),
		pipeline.WithEvalSubdir(cfg.EvalSubdir),
	)
	p := pipeline.New(c.extractor, evaluator, pipeline.WithWorkers(cfg.Workers))

	opts := []pipeline.EngineOption{pipeline.WithBuilder(c.builder(cfg))}
	if rec != nil {
		opts = append(opts, pipeline.WithRecorder(rec))
	}
	return pipeline.NewEngine(ctx, c.exec, p, reference.NewStore(db), opts...)
}

func openResults(cfg *config) (*results.Store, error) {
	s, err := results.Open(cfg.ResultsDB)
	if err != nil {
		return nil, fmt.Errorf("opening results database %s: %w", cfg.ResultsDB, err)
	}
	return s, nil
}
