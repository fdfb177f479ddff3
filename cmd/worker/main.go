package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/rinkjoin/internal/config"
	"github.com/briangreenhill/rinkjoin/internal/jobs"
	"github.com/briangreenhill/rinkjoin/internal/providers"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "rinkjoin-worker").Logger()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	logger = logger.Level(cfg.Level())

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
	} else {
		logger.Warn().Msg("no sink configured, run results will only be logged")
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency:    cfg.Server.WorkerConcurrency,
		StrictPriority: false,
		Queues: map[string]int{
			jobs.QueuePipelines: 10, // higher priority
			"default":           5,
		},
		Logger: asynqLogger{logger.With().Str("component", "asynq").Logger()},
	})
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskRunPipeline, jobs.NewHandler(stack.Pipelines, sink, logger))

	logger.Info().Int("concurrency", cfg.Server.WorkerConcurrency).Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

// asynqLogger routes asynq's logs through zerolog.
type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(sprint(args)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(sprint(args)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(sprint(args)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(sprint(args)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(sprint(args)) }

func sprint(args []any) string { return fmt.Sprint(args...) }
