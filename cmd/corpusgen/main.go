// Package main is the entry point for the corpus generator.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/config"
	"github.com/capitalize-ai/corpus-generator/internal/conversation"
	"github.com/capitalize-ai/corpus-generator/internal/export"
	"github.com/capitalize-ai/corpus-generator/internal/handler"
	"github.com/capitalize-ai/corpus-generator/internal/llm"
	"github.com/capitalize-ai/corpus-generator/internal/model"
	natsclient "github.com/capitalize-ai/corpus-generator/internal/nats"
	"github.com/capitalize-ai/corpus-generator/internal/report"
	"github.com/capitalize-ai/corpus-generator/internal/scenario"
	"github.com/capitalize-ai/corpus-generator/internal/scheduler"
	"github.com/capitalize-ai/corpus-generator/internal/service"
	"github.com/capitalize-ai/corpus-generator/internal/stats"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
	"github.com/capitalize-ai/corpus-generator/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetGlobal(log)

	err = run(cfg, log)
	_ = log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "corpusgen: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.New().String()
	started := time.Now()
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = started.UnixNano()
	}
	log = log.WithRun(runID, seed, started)
	log.Info("starting corpus generation",
		zap.String("scenario_file", cfg.ScenarioFile),
		zap.String("output_dir", cfg.OutputDir),
		zap.Int("target", cfg.TargetCount),
	)

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "corpus-generator", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tracing.Shutdown(shutdownCtx, tp)
			}()
		}
	}

	// Scenarios
	set, err := scenario.Load(cfg.ScenarioFile)
	if err != nil {
		return err
	}
	filter, err := model.ParseFilter(cfg.ScenarioFilter)
	if err != nil {
		return err
	}
	scenarios := filter.Apply(set.Scenarios)
	if len(scenarios) == 0 {
		return fmt.Errorf("scenario filter %q matched no scenarios", filter)
	}
	chatFormat, err := model.ParseChatFormat(cfg.ChatFormat)
	if err != nil {
		return err
	}
	log.Info("scenarios loaded",
		zap.Int("defined", len(set.Scenarios)),
		zap.Int("selected", len(scenarios)),
		zap.String("filter", filter.String()),
		zap.String("chat_format", string(chatFormat)),
	)

	// Generation
	provider, err := llm.NewClient(llm.Provider(cfg.Provider), llm.ProviderConfig{
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AzureEndpoint:   cfg.AzureEndpoint,
		AzureAPIKey:     cfg.AzureAPIKey,
		AzureAPIVersion: cfg.AzureAPIVersion,
		AzureDeployment: cfg.AzureModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	modelName := cfg.Model
	if modelName == "" {
		if models := provider.Models(); len(models) > 0 {
			modelName = models[0]
		}
	}
	client := llm.NewRetryClient(provider, log, llm.WithMaxAttempts(cfg.MaxAttempts))
	generator := llm.NewGenerator(client, modelName, log)

	// Persistence
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	agg := stats.New()
	builder := conversation.NewBuilder(generator, set.Directory, log)
	opts := []service.Option{service.WithRunID(runID), service.WithSeed(seed)}

	var broker handler.ConnectionChecker
	var lister handler.ArtifactLister
	if cfg.NATSEnabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
			RunID:    runID,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			return fmt.Errorf("failed to ensure stream: %w", err)
		}
		opts = append(opts, service.WithPublisher(streamManager))
		broker, lister = natsClient, streamManager
	}

	realizer := service.NewRealizer(
		builder,
		export.NewEMLEncoder(cfg.OutputDir, seed, log),
		export.NewICSEncoder(cfg.OutputDir, log),
		export.NewSet(chatFormat, cfg.OutputDir, set.Directory, seed, log),
		agg,
		log,
		opts...,
	)
	sched := scheduler.New(realizer, scheduler.Config{
		Workers:       cfg.Workers,
		MaxIdlePasses: cfg.MaxIdlePasses,
		Seed:          seed,
	}, log)

	// Status server
	done := make(chan struct{})
	if cfg.StatusPort != "" {
		server := newStatusServer(cfg, handler.Run{
			ID:        runID,
			Target:    cfg.TargetCount,
			StartedAt: started,
			Done:      done,
		}, sched, agg, broker, lister, log)
		go func() {
			log.Info("status server listening", zap.String("port", cfg.StatusPort))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("status server forced to shutdown", zap.Error(err))
			}
		}()
	}

	result, runErr := sched.Run(ctx, scenarios, cfg.TargetCount)
	close(done)

	log.Info("generation finished",
		zap.Int("artifacts", result.Artifacts),
		zap.Int("passes", result.Passes),
		zap.Int("units", result.Units),
		zap.Int("failures", result.Failures),
		zap.Duration("elapsed", result.Elapsed),
		zap.Error(runErr),
	)

	// The report covers whatever was produced, even on a partial run.
	if err := report.Render(os.Stdout, agg.Snapshot(), report.Options{
		OutputDir: cfg.OutputDir,
		Filter:    filter,
	}); err != nil {
		log.Warn("failed to write report", zap.Error(err))
	}

	return runErr
}

func newStatusServer(
	cfg *config.Config,
	run handler.Run,
	progress handler.ProgressSource,
	agg *stats.Aggregator,
	broker handler.ConnectionChecker,
	lister handler.ArtifactLister,
	log *logger.Logger,
) *http.Server {
	progressHandler := handler.NewProgressHandler(run, progress, agg, log)
	routes := handler.RouterConfig{
		Health:            handler.NewHealthHandler(broker),
		Progress:          progressHandler,
		Stream:            handler.NewStreamHandler(progressHandler, time.Second, log),
		JWTSecret:         cfg.JWTSecret,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}
	if lister != nil {
		routes.Artifacts = handler.NewArtifactHandler(lister, log)
	}

	return &http.Server{
		Addr:        ":" + cfg.StatusPort,
		Handler:     handler.NewRouter(routes, log),
		ReadTimeout: cfg.ServerReadTimeout,
		// No write timeout: progress streams stay open for the whole run.
		IdleTimeout: 120 * time.Second,
	}
}
