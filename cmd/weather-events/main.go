package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-events/internal/api/http"
	"github.com/i474232898/weather-events/internal/config"
	"github.com/i474232898/weather-events/internal/events"
	"github.com/i474232898/weather-events/internal/logger"
	"github.com/i474232898/weather-events/internal/scheduler"
	"github.com/i474232898/weather-events/internal/store"
	"github.com/i474232898/weather-events/internal/weather"
	"github.com/i474232898/weather-events/internal/weather/gfs"
	"github.com/i474232898/weather-events/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.New(cfg.LogLevel)
	defer func() { _ = lg.Sync() }()

	// Shared HTTP client for outbound provider calls.
	httpCfg := providers.HTTPClientConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: providers.DefaultBackoff,
		Timeout: cfg.HTTPTimeout,
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	provs := weather.Providers{
		Domestic:      providers.NewNWSProvider(providers.NWSConfig{HTTP: httpCfg, UserAgent: cfg.NWSUserAgent}, lg),
		International: providers.NewOpenMeteoProvider(providers.OpenMeteoConfig{HTTP: httpCfg}, lg),
		Fallback:      providers.NewOpenWeatherProvider(httpCfg, cfg.OpenWeatherAPIKey, "", lg),
	}

	var pruner scheduler.Pruner
	if cfg.GFSEnabled {
		cache, err := gfs.OpenCache(cfg.GFSCacheDir)
		if err != nil {
			lg.Warnw("grid cache unavailable, fetching uncached", "dir", cfg.GFSCacheDir, "error", err)
		} else {
			defer cache.Close()
			pruner = cache
		}
		// The grid client applies its own longer timeout.
		provs.Grid = gfs.NewClient(gfs.Config{HTTP: providers.HTTPClientConfig{Client: &http.Client{}}, Cache: cache}, lg)
	}

	// Core service orchestrating providers and store.
	service := weather.NewService(memStore, provs, lg)
	engine := events.NewEngine(cfg.EventFrequencyMultiplier, events.WithLogger(lg))

	sched := scheduler.New(scheduler.Config{
		PollInterval: cfg.PollInterval,
		TickInterval: cfg.TickInterval,
	}, cfg.Location, service, engine, pruner, lg)
	if err := sched.Start(); err != nil {
		lg.Fatalw("failed to start scheduler", "error", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-events",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          20 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "weather-events",
			"source":   service.LastSource(),
			"location": sched.Location(),
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Weather:  service,
		Tracker:  sched,
		Events:   engine,
		Geocoder: config.NewGeocoder(cfg.GeocoderAPIKey),
	})

	go func() {
		lg.Infow("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Errorw("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	lg.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Errorw("error during shutdown", "error", err)
	}
}
