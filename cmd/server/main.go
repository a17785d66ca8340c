package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/phungthien97/portfolio-profit-maximizer/internal/cache"
	"github.com/phungthien97/portfolio-profit-maximizer/internal/config"
	"github.com/phungthien97/portfolio-profit-maximizer/internal/database"
	"github.com/phungthien97/portfolio-profit-maximizer/internal/modules/optimization"
	"github.com/phungthien97/portfolio-profit-maximizer/internal/scheduler"
	"github.com/phungthien97/portfolio-profit-maximizer/internal/server"
	"github.com/phungthien97/portfolio-profit-maximizer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Int("port", cfg.Port).
		Str("data_dir", cfg.DataDir).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting portfolio optimizer")

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "cache.db"),
		Name: "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	resultCache := cache.New(db.Conn(), time.Duration(cfg.CacheTTLHours)*time.Hour)

	service := optimization.NewService(resultCache, cfg.FrontierPoints, log)

	sched := scheduler.New(log)
	if err := sched.AddJob("@hourly", scheduler.NewCacheEvictionJob(resultCache, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache eviction job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:     log,
		Config:  cfg,
		Service: service,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("Server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
