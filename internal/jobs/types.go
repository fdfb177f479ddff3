package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/briangreenhill/rinkjoin/record"
)

const (
	TaskRunPipeline = "pipeline:run"
	QueuePipelines  = "pipelines"
)

type RunPipelinePayload struct {
	RunID    string         `json:"run_id"`
	Handle   string         `json:"handle"`
	Bindings *record.Record `json:"bindings"`
}

// Enqueuer is the part of *asynq.Client the API needs.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewRunPipelineTask builds a single-attempt task on QueuePipelines.
func NewRunPipelineTask(p RunPipelinePayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TaskRunPipeline, b, asynq.MaxRetry(0), asynq.Queue(QueuePipelines)), nil
}
