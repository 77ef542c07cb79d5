package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/xfix/internal/api"
	"github.com/JakeFAU/xfix/internal/clipjot"
	"github.com/JakeFAU/xfix/internal/clock/system"
	"github.com/JakeFAU/xfix/internal/config"
	"github.com/JakeFAU/xfix/internal/enrich"
	"github.com/JakeFAU/xfix/internal/fetcher"
	collyfetcher "github.com/JakeFAU/xfix/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/xfix/internal/fetcher/headless"
	"github.com/JakeFAU/xfix/internal/id/uuid"
	"github.com/JakeFAU/xfix/internal/logging"
	"github.com/JakeFAU/xfix/internal/policy/ratelimit"
	"github.com/JakeFAU/xfix/internal/progress"
	"github.com/JakeFAU/xfix/internal/progress/sinks"
	"github.com/JakeFAU/xfix/internal/state"
	"github.com/JakeFAU/xfix/internal/storage/postgres"
	"github.com/JakeFAU/xfix/internal/worker"
)

const (
	startupCheckTimeout = 15 * time.Second
	ollamaTimeout       = 120 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// run wires the agent and blocks until it stops. Configuration, state and
// connectivity problems at startup are returned before the loop starts.
func run(parent context.Context, opts options) error {
	cfg, err := config.Load(opts.envFile, opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	verbose := cfg.LogVerbose || opts.verbose
	if opts.quiet {
		level = "warn"
		verbose = false
	}
	logger, err := logging.New(logging.Options{Level: level, Development: cfg.LogDevelopment})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	clock := system.New()
	runID, err := uuid.New().NewRunID()
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", runID.String()))

	st := state.New(cfg.StateFile, clock)
	if err := st.Load(); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if opts.fromStart {
		st.ClearCursor()
		logger.Info("ignoring saved cursor")
	}
	logger.Info("state loaded", zap.String("path", st.Path()), zap.String("summary", st.Summary()))

	limiter := ratelimit.New(ratelimit.Config{
		MinDelay:   cfg.MinDelay(),
		MaxDelay:   cfg.MaxDelay(),
		MaxBackoff: cfg.MaxBackoff(),
	})
	saved := st.Backoff()
	limiter.Restore(ratelimit.Backoff{
		Delay: time.Duration(saved.CurrentDelay * float64(time.Second)),
		Index: saved.FibonacciIndex,
	})

	ollama, err := enrich.NewOllamaClient(enrich.Config{
		Host:    cfg.OllamaHost,
		Model:   cfg.OllamaModel,
		Timeout: ollamaTimeout,
	}, nil)
	if err != nil {
		return fmt.Errorf("init ollama client: %w", err)
	}
	checkCtx, checkCancel := context.WithTimeout(ctx, startupCheckTimeout)
	err = ollama.CheckConnection(checkCtx)
	checkCancel()
	if err != nil {
		return fmt.Errorf("ollama startup check: %w", err)
	}
	logger.Info("ollama ready", zap.String("host", cfg.OllamaHost), zap.String("model", ollama.Model()))

	bookmarks, err := clipjot.New(clipjot.Config{
		BaseURL:     cfg.ClipjotAPIURL,
		Token:       cfg.ClipjotAPIToken,
		SyncTimeout: cfg.SyncTimeoutDuration(),
		EditRPS:     cfg.EditRPS,
	}, nil)
	if err != nil {
		return fmt.Errorf("init bookmark client: %w", err)
	}

	strategies, closeStrategies, err := buildStrategies(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStrategies()
	fetch := fetcher.New(fetcher.Config{Timeout: cfg.FetchTimeoutDuration()}, logger.Named("fetcher"), strategies...)
	logger.Info("fetch strategies", zap.Strings("order", fetch.Strategies()))

	hubSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress"))}
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hubSinks = append(hubSinks, promSink)

	var audit *postgres.AuditStore
	if cfg.AuditDSN != "" {
		audit, err = openAudit(ctx, cfg.AuditDSN)
		if err != nil {
			return err
		}
		defer audit.Close()
		hubSinks = append(hubSinks, sinks.NewStoreSink(audit, logger.Named("audit")))
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("hub")}, hubSinks...)

	orch, err := worker.New(worker.Deps{
		Bookmarks: bookmarks,
		Fetcher:   fetch,
		Enricher:  enrich.NewEnricher(ollama),
		Pacer:     limiter,
		State:     st,
		Emitter:   hub,
		Clock:     clock,
		RunID:     runID,
		Logger:    logger.Named("worker"),
	}, worker.Config{
		MaxAttempts:    cfg.MaxAttempts,
		SyncLimit:      cfg.SyncLimit,
		LoopErrorSleep: cfg.LoopErrorSleepDuration(),
		DryRun:         opts.dryRun,
		Verbose:        verbose,
	})
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	var srv *http.Server
	if cfg.AdminAddr != "" {
		deps := api.Deps{State: st, Loop: orch, Logger: logger.Named("api")}
		if audit != nil {
			deps.Audit = audit
		}
		srv = startAdmin(cfg.AdminAddr, api.NewServer(deps), logger)
	}

	stopSignals := handleSignals(orch, logger)
	defer stopSignals()

	runErr := orch.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin server shutdown error", zap.Error(err))
		}
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("progress hub close error", zap.Error(err))
	}
	return runErr
}

// buildStrategies returns the fetch chain in order: rich data API, embed
// API, direct page and, when enabled, a headless render.
func buildStrategies(cfg config.Config, logger *zap.Logger) ([]fetcher.Strategy, func(), error) {
	client := fetcher.NewHTTPClient(cfg.FetchTimeoutDuration())
	strategies := []fetcher.Strategy{
		fetcher.NewFxTwitter(client, ""),
		fetcher.NewOEmbed(client, ""),
		collyfetcher.New(collyfetcher.Config{Timeout: cfg.FetchTimeoutDuration()}),
	}
	if !cfg.FetchHeadless {
		return strategies, func() {}, nil
	}
	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		NavigationTimeout: cfg.FetchTimeoutDuration(),
	})
	if err != nil {
		logger.Warn("headless strategy disabled", zap.Error(err))
		return strategies, func() {}, nil
	}
	return append(strategies, headless), headless.Close, nil
}

func openAudit(ctx context.Context, dsn string) (*postgres.AuditStore, error) {
	audit, err := postgres.NewAuditStore(ctx, postgres.Config{DSN: dsn, MaxConns: 4})
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	if err := audit.Migrate(ctx); err != nil {
		audit.Close()
		return nil, err
	}
	return audit, nil
}

func startAdmin(addr string, server *api.Server, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("admin server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server error", zap.Error(err))
		}
	}()
	return srv
}

// shutdowner is satisfied by *worker.Orchestrator.
type shutdowner interface {
	Shutdown()
}

// handleSignals asks the loop to stop on the first SIGINT/SIGTERM and exits
// immediately, without a final save, on the second.
func handleSignals(target shutdowner, logger *zap.Logger) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		count := 0
		for {
			select {
			case sig := <-sigCh:
				count++
				if count > 1 {
					logger.Warn("second signal, exiting immediately", zap.String("signal", sig.String()))
					_ = logger.Sync()
					os.Exit(1)
				}
				logger.Info("shutdown requested, finishing current item", zap.String("signal", sig.String()))
				target.Shutdown()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
