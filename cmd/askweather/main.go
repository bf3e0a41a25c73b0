package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/askweather/askweather/internal/api/http"
	"github.com/askweather/askweather/internal/cache"
	"github.com/askweather/askweather/internal/config"
	"github.com/askweather/askweather/internal/logger"
	"github.com/askweather/askweather/internal/pipeline"
	"github.com/askweather/askweather/internal/provider"
	"github.com/askweather/askweather/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.Env)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var providerOpts []provider.Option
	if cfg.GoogleGeocoderKey != "" {
		providerOpts = append(providerOpts,
			provider.WithGeocoder(provider.NewGoogleGeocoder(cfg.GoogleGeocoderKey, log)))
	}
	weatherProvider := provider.NewOpenMeteo(httpClient, log, providerOpts...)

	weatherCache := cache.New(cfg.CacheTTL)

	pipe := pipeline.New(weatherProvider, weatherCache, cfg.ProviderTimeout, log)

	// Periodic cache sweep; expiry-on-read stays the contract.
	sweep := scheduler.New(weatherCache, cfg.SweepInterval, log)
	if err := sweep.Start(); err != nil {
		log.Errorf("failed to start cache sweep: %v", err)
		os.Exit(1)
	}
	defer sweep.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "askweather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(pipeline.ErrorResponse{
				Error: pipeline.CodeInternalError,
				Hint:  err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "askweather",
		})
	})

	httpapi.RegisterRoutes(app, pipe, cfg.MaxQueryLength)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("fiber server stopped: %v", err)
		}
	}()
	log.Infof("askweather listening on :%s", cfg.Port)

	// Wait for termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}
