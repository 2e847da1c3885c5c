package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/flyerflutter/dealcomb/app/api"
	"github.com/flyerflutter/dealcomb/app/area"
	"github.com/flyerflutter/dealcomb/app/cfg"
	"github.com/flyerflutter/dealcomb/app/database"
	"github.com/flyerflutter/dealcomb/app/deal"
	"github.com/flyerflutter/dealcomb/app/flipp"
	"github.com/flyerflutter/dealcomb/app/match"
	"github.com/flyerflutter/dealcomb/app/query"
	"github.com/flyerflutter/dealcomb/app/refresh"
	"github.com/flyerflutter/dealcomb/app/tasks"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Dealcomb server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)

	areas := area.NewConfigCache(appCfg.AreasDir)
	if err := areas.Run(); err != nil {
		slog.Error("Failed to load area configurations", "dir", appCfg.AreasDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Area configurations loaded", "count", areas.GetConfigCount())

	dealRepo := database.NewDealRepository(db, appCfg.FreshnessWindowDuration())
	areaRepo := database.NewAreaRepository(db)

	// One limiter for the whole process: every area shares the same
	// upstream origin.
	limiter := rate.NewLimiter(rate.Limit(appCfg.SourceRateLimit), 1)
	sourceClient := flipp.NewClient(&http.Client{}, limiter, flipp.Options{
		BaseURL:    appCfg.SourceBaseURL,
		UserAgent:  appCfg.UserAgent,
		Timeout:    time.Duration(appCfg.SourceTimeout) * time.Second,
		MaxRetries: appCfg.SourceMaxRetries,
	})

	coordinator := refresh.NewCoordinator(sourceClient, deal.NewNormalizer(), dealRepo, areaRepo, areas, refresh.Options{
		FreshnessWindow: appCfg.FreshnessWindowDuration(),
		FailureCooldown: appCfg.FailureCooldownDuration(),
	})

	scheduler := tasks.NewScheduler(areas, areaRepo, coordinator, dealRepo)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)

	dealService := query.NewService(dealRepo)
	comparator := match.NewComparator(dealRepo, appCfg.MatchThreshold)

	// No store locator provider ships with the server; deployments that
	// have one wire it here to enable distance annotation.
	handler := api.NewHandler(areas, coordinator, dealService, comparator, dealRepo, areaRepo, nil)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
