package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/engine"
	"server/internal/engine/diffusion"
	"server/internal/engine/openaiimg"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	saved, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open saved store")
	}
	generated, err := storage.NewFileStore(cfg.GeneratedPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open generated store")
	}

	gen, err := buildEngine(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct generative engine")
	}

	p := pipeline.New(saved, gen, cfg.PublicBaseURL+"/static/saved", &logger)
	app := handlers.NewApp(cfg, &logger, p, saved, generated)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("engine", cfg.EngineProvider).
			Str("saved", saved.BasePath()).
			Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildEngine constructs the configured generative backend once for the
// process lifetime and wraps it so concurrent calls serialize and every
// call carries a bounded timeout.
func buildEngine(cfg *infra.Config, logger *infra.Logger) (engine.Generative, error) {
	var gen engine.Generative
	switch cfg.EngineProvider {
	case infra.EngineProviderOpenAI:
		e, err := openaiimg.NewEngine(openaiimg.Options{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIImageModel,
			BaseURL: cfg.OpenAIBaseURL,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		gen = e
	default:
		c, err := diffusion.NewClient(diffusion.Options{
			BaseURL:        cfg.SDBaseURL,
			Steps:          cfg.SDSteps,
			Logger:         logger,
			RequestTimeout: cfg.EngineTimeout,
		})
		if err != nil {
			return nil, err
		}
		gen = c
	}
	return engine.NewSerialized(engine.WithTimeout(gen, cfg.EngineTimeout)), nil
}
