package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/coupon"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/importer"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront coupon API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize coupon repository, evaluation engine and service
	couponRepo := repository.NewCouponRepository(pool, logger)
	engine := coupon.NewEngine(nil)
	couponService := service.NewCouponService(couponRepo, engine, logger, nil)

	// Run the bulk coupon import from S3 or the local file system before
	// serving traffic, so imported definitions are visible to requests.
	if cfg.Import.Enabled {
		if err := runImport(ctx, cfg, couponService, logger); err != nil {
			return fmt.Errorf("failed to import coupon definitions: %w", err)
		}
	}

	// Initialize HTTP handler and router
	couponHandler := handler.NewCouponHandler(couponService, logger)
	mux := router.New(couponHandler, cfg.Auth.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// runImport loads coupon definition files from S3 with a local file system
// fallback, or from the local file system alone when S3 is disabled.
func runImport(ctx context.Context, cfg *config.Config, store importer.CouponStore, logger zerolog.Logger) error {
	fileSource := importer.NewFileSource(logger)
	source := fileSource

	if cfg.S3.Enabled {
		s3Source, err := importer.NewS3Source(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 import source, falling back to local file system only")
		} else {
			source = importer.NewFallbackSource(s3Source, fileSource, cfg.S3.Prefix, logger)
		}
	} else {
		logger.Info().Msg("using local file system for coupon definition files (S3 disabled)")
	}

	result, err := importer.New(source, store, logger).Run(ctx, cfg.Import.Files)
	if err != nil {
		return err
	}

	logger.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("coupon definition import completed")

	return nil
}
