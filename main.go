package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nijaru/yt-itinerary/config"
	"github.com/nijaru/yt-itinerary/handlers"
	"github.com/nijaru/yt-itinerary/itinerary"
	"github.com/nijaru/yt-itinerary/logger"
	"github.com/nijaru/yt-itinerary/metrics"
	"github.com/nijaru/yt-itinerary/middleware"
	"github.com/nijaru/yt-itinerary/retry"
	"github.com/nijaru/yt-itinerary/transcript"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()

	if err := config.ValidateConfig(cfg); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	log, err := logger.NewLogger(logger.Options{
		Level:  cfg.LogLevel,
		Dir:    cfg.LogDir,
		Format: cfg.LogFormat,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logger")
	}

	reg := metrics.New()

	// The proxy only applies to the primary source; mirrors are reached directly.
	proxyClient, err := transcript.NewProxyClient(cfg.ProxyURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to build proxy client")
	}
	resolver := transcript.NewResolver(
		transcript.NewYouTube(proxyClient),
		transcript.NewMirrors(cfg.Mirrors...),
		transcript.WithMirrorTimeout(cfg.MirrorTimeout),
		transcript.WithMetrics(reg),
		transcript.WithLogger(log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := itinerary.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize model client")
	}
	service := itinerary.NewService(model,
		itinerary.WithPolicy(retry.Policy{
			MaxAttempts:     cfg.LLMMaxAttempts,
			InitialInterval: cfg.LLMInitialBackoff,
			MaxInterval:     cfg.LLMMaxBackoff,
			Multiplier:      retry.DefaultPolicy.Multiplier,
		}),
		itinerary.WithMaxTranscriptChars(cfg.MaxTranscriptChars),
		itinerary.WithMetrics(reg),
		itinerary.WithLogger(log),
	)

	router := handlers.NewRouter(handlers.New(resolver, service, cfg.Version), handlers.RouterConfig{
		Logger:      log,
		Metrics:     reg,
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimitInterval, cfg.RateLimit),
		CORS:        middleware.DefaultCORSConfig(cfg.CORSOrigins),
		StaticDir:   cfg.StaticDir,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.ServerPort,
			"version": cfg.Version,
			"mirrors": len(cfg.Mirrors),
			"proxy":   cfg.ProxyURL != "",
			"model":   cfg.GeminiModel,
		}).Info("Listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Could not listen")
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down the server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("Server shutdown failed")
	}
}
