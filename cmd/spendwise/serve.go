package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cache"
	"spendwise/internal/charts"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/engine"
	apphttp "spendwise/internal/http"
	"spendwise/internal/insights"
	"spendwise/internal/log"
	"spendwise/internal/notify"
	"spendwise/internal/sheets"
	gsheet "spendwise/internal/sheets/google"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cli.LoadAndValidateConfig(cfgFile)
			if err != nil {
				return err
			}
			logger, err := cli.SetupLogger(cfg)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).Create(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	broadcaster := notify.NewBroadcaster(50)
	eng := engine.New(res.Store,
		engine.WithLogger(logger.WithComponent(log.ComponentEngine).Logger),
		engine.WithNotifier(notify.Multi{notify.NewLog(logger.Logger), broadcaster}),
	)
	session := auth.NewSession()

	renderer := charts.NewRenderer(cfg.ChartCacheSize, cfg.ChartCacheTTL)
	janitor := cache.NewJanitor(logger.WithComponent(log.ComponentCharts).Logger, renderer.Cache())
	janitor.Start(cfg.ChartCacheTTL)
	defer janitor.Stop()

	insightsLogger := logger.WithComponent(log.ComponentInsights).Logger
	var gen insights.Generator
	if cfg.InsightsEnabled() {
		gemini, err := insights.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		defer gemini.Close()
		gen = gemini
		insightsLogger.Info("Insights enabled", "model", cfg.GeminiModel)
	}

	var sheetWriter sheets.RowWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.SheetsSpreadsheetID,
			CredentialsJSON: cfg.SheetsCredentialsJSON,
			CredentialsFile: cfg.SheetsCredentialsFile,
		})
		if err != nil {
			return err
		}
		sheetWriter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.SheetsSpreadsheetID)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Engine:      eng,
		Session:     session,
		Broadcaster: broadcaster,
		Charts:      renderer,
		Insights:    insights.New(gen, insightsLogger),
		Sheets:      sheetWriter,
		Logger:      logger,
		RateLimit:   cfg.RateLimit,
		Ready:       res.Ready,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting spendwise server",
			"port", cfg.Port,
			"backend", cfg.Backend,
			log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return eng.WatchSession(gctx, session)
	})
	if res.Feed != nil {
		feedLogger := logger.WithComponent(log.ComponentFeed).Logger
		g.Go(func() error {
			return runFeed(gctx, res.Feed, feedLogger)
		})
	}
	g.Go(func() error {
		return cli.GracefulShutdown(gctx, logger, cfg.ShutdownTimeout, srv.Shutdown)
	})

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}

type feedRunner interface {
	Run(ctx context.Context) error
}

// runFeed logs a failed change feed instead of stopping the server. Only
// cross-instance updates stop.
func runFeed(ctx context.Context, feed feedRunner, logger *slog.Logger) error {
	if err := feed.Run(ctx); err != nil {
		logger.Error("Change feed stopped", log.FieldError, err)
	}
	return nil
}
