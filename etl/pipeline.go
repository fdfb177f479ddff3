package etl

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/rinkjoin/outbound"
	"github.com/briangreenhill/rinkjoin/pathexpr"
	"github.com/briangreenhill/rinkjoin/record"
)

// State is the lifecycle of a Run.
type State int

const (
	Idle State = iota
	Running
	Projecting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Projecting:
		return "projecting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RunError is returned when a run fails. Err is the underlying cause, so
// errors.As finds *outbound.TransportError through it.
type RunError struct {
	Handle string
	RunID  uuid.UUID
	Unit   string // "api/endpoint"
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline %s run %s: %s: %v", e.Handle, e.RunID, e.Unit, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Pipeline is a validated, immutable pipeline. It is safe to start several
// runs concurrently.
type Pipeline struct {
	handle string
	units  []workUnit
	output []pathexpr.Rule
	logger zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by runs.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New validates def and binds its catalogs to dispatchers from reg.
func New(def Definition, reg *outbound.Registry, opts ...Option) (*Pipeline, error) {
	units, err := compile(def, reg)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		handle: def.Handle,
		units:  units,
		output: append([]pathexpr.Rule(nil), def.Output...),
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Handle returns the pipeline handle.
func (p *Pipeline) Handle() string { return p.handle }

// Units returns the work units in run order.
func (p *Pipeline) Units() []WorkUnitConfig {
	out := make([]WorkUnitConfig, len(p.units))
	for i, u := range p.units {
		out[i] = u.WorkUnitConfig
	}
	return out
}

// Run executes the pipeline once with a fresh Run.
func (p *Pipeline) Run(ctx context.Context, initial *record.Record) (*record.Record, error) {
	return p.NewRun().Execute(ctx, initial)
}

// NewRun prepares an idle run with a new ID.
func (p *Pipeline) NewRun() *Run {
	return p.NewRunWithID(uuid.New())
}

// NewRunWithID prepares an idle run with a caller-assigned ID, such as one
// handed out when the run was queued.
func (p *Pipeline) NewRunWithID(id uuid.UUID) *Run {
	return &Run{
		ID:       id,
		pipeline: p,
		logger:   p.logger.With().Str("pipeline", p.handle).Str("run_id", id.String()).Logger(),
	}
}

// Run is a single execution of a pipeline. It owns its context.
type Run struct {
	ID uuid.UUID

	pipeline *Pipeline
	logger   zerolog.Logger

	mu    sync.Mutex
	state State
	unit  int
}

// State returns the current state and, while running, the index of the work
// unit in flight.
func (r *Run) State() (State, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.unit
}

func (r *Run) transition(s State, unit int) {
	r.mu.Lock()
	r.state, r.unit = s, unit
	r.mu.Unlock()

	ev := r.logger.Debug().Str("state", s.String())
	if s == Running {
		ev = ev.Int("unit", unit).Str("endpoint", r.pipeline.units[unit].String())
	}
	ev.Msg("run state")
}

// Execute runs every work unit in order and returns the projected record.
// Any failed fetch or undecodable body stops the run with a *RunError and no
// record. A Run executes once.
func (r *Run) Execute(ctx context.Context, initial *record.Record) (*record.Record, error) {
	p := r.pipeline
	r.mu.Lock()
	if r.state != Idle {
		r.mu.Unlock()
		return nil, fmt.Errorf("run %s already %s", r.ID, r.state)
	}
	// Claimed under the lock so a concurrent Execute sees the run as started.
	r.state, r.unit = Running, 0
	r.mu.Unlock()

	execCtx := initial.Clone()
	r.logger.Info().Int("units", len(p.units)).Msg("run started")

	for i, u := range p.units {
		r.transition(Running, i)
		if err := r.step(ctx, u, execCtx); err != nil {
			r.transition(Failed, i)
			r.logger.Error().Err(err).Str("endpoint", u.String()).Msg("run failed")
			return nil, &RunError{Handle: p.handle, RunID: r.ID, Unit: u.String(), Err: err}
		}
	}

	r.transition(Projecting, len(p.units))
	out := execCtx
	if len(p.output) > 0 {
		out = pathexpr.Project(execCtx, p.output)
	}
	r.transition(Done, len(p.units))
	r.logger.Info().Int("fields", out.Len()).Msg("run complete")
	return out, nil
}

func (r *Run) step(ctx context.Context, u workUnit, execCtx *record.Record) error {
	params := bindings(execCtx, u.DependentParams)
	modifiers := bindings(execCtx, u.DependentModifiers)

	res, err := u.dispatcher.Fetch(ctx, outbound.Handle{Endpoint: u.endpoint}, params, modifiers)
	if err != nil {
		return err
	}

	parsed, err := record.Decode([]byte(res.Body))
	if err != nil {
		return fmt.Errorf("decode %s response: %w", res.URI, err)
	}
	for _, rule := range u.Rename {
		if !pathexpr.RenameInPlace(parsed, rule.Find, rule.Replace) {
			r.logger.Debug().Str("find", rule.Find).Str("endpoint", u.String()).Msg("rename path not found")
		}
	}
	execCtx.Merge(parsed)
	return nil
}

// bindings offers the whole context plus the declared aliases.
func bindings(execCtx *record.Record, deps []Dependency) *record.Record {
	b := execCtx.Clone()
	for _, d := range deps {
		if v, ok := execCtx.Get(d.ContextKey); ok {
			b.Set(d.Remote, v)
		}
	}
	return b
}
