package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/rinkjoin/etl"
	"github.com/briangreenhill/rinkjoin/export"
)

// Handler runs queued pipelines and saves their output to an optional sink.
type Handler struct {
	pipelines *etl.Registry
	sink      export.Sink
	logger    zerolog.Logger
}

func NewHandler(pipelines *etl.Registry, sink export.Sink, logger zerolog.Logger) *Handler {
	return &Handler{pipelines: pipelines, sink: sink, logger: logger}
}

// ProcessTask implements asynq.Handler. Pipeline failures are never
// retried; a failed save is returned as is.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p RunPipelinePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error().Err(err).Msg("bad payload")
		return fmt.Errorf("bad payload: %v: %w", err, asynq.SkipRetry)
	}
	runID, err := uuid.Parse(p.RunID)
	if err != nil {
		return fmt.Errorf("bad run id %q: %w", p.RunID, asynq.SkipRetry)
	}
	pl, ok := h.pipelines.Get(p.Handle)
	if !ok {
		return fmt.Errorf("unknown pipeline %q: %w", p.Handle, asynq.SkipRetry)
	}

	log := h.logger.With().Str("pipeline", p.Handle).Str("run_id", runID.String()).Logger()
	log.Info().Msg("run start")
	start := time.Now()

	out, err := pl.NewRunWithID(runID).Execute(ctx, p.Bindings)
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("run failed (dropping job)")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	log.Info().Dur("duration", time.Since(start)).Int("fields", out.Len()).Msg("run done")

	if h.sink == nil {
		return nil
	}
	if err := h.sink.Save(ctx, p.Handle, runID, out); err != nil {
		log.Error().Err(err).Msg("save failed")
		return err
	}
	return nil
}

var _ asynq.Handler = (*Handler)(nil)
