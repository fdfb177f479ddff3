// cmd/api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/briangreenhill/rinkjoin/internal/config"
	"github.com/briangreenhill/rinkjoin/internal/http/routes"
	"github.com/briangreenhill/rinkjoin/internal/providers"
	"github.com/briangreenhill/rinkjoin/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "rinkjoin-api").Logger()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	logger = logger.Level(cfg.Level())

	if cfg.HTTP.Tracing {
		shutdown, err := telemetry.InitTracer("rinkjoin-api", os.Stderr, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("init tracer")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	stack, err := providers.Setup(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("setup pipelines")
	}

	sink, err := providers.OpenSink(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("sink", cfg.Sink).Msg("open sink")
	}
	if sink != nil {
		defer func() { _ = sink.Close() }()
	}

	// Queue
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = client.Close() }()

	s := routes.New(routes.ServerOptions{Pipelines: stack.Pipelines, Jobs: client, Sink: sink, APIToken: cfg.Server.APIToken})

	var h http.Handler = s.Router
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	h = hlog.NewHandler(logger)(h)
	if cfg.HTTP.Tracing {
		h = otelhttp.NewHandler(h, "rinkjoin-api")
	}

	logger.Info().Str("port", cfg.Server.Port).Strs("pipelines", stack.Pipelines.List()).Msg("starting api")
	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
