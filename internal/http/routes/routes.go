package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/rinkjoin/etl"
	"github.com/briangreenhill/rinkjoin/export"
	"github.com/briangreenhill/rinkjoin/internal/http/middleware"
	"github.com/briangreenhill/rinkjoin/internal/jobs"
	"github.com/briangreenhill/rinkjoin/outbound"
	"github.com/briangreenhill/rinkjoin/record"
)

// formatParam selects the response encoding and is never a binding.
const formatParam = "format"

type Server struct {
	Router    *chi.Mux
	Pipelines *etl.Registry
	Jobs      jobs.Enqueuer // optional; nil disables POST .../jobs
	Sink      export.Sink   // optional; nil disables GET /runs/{runID}
}

type ServerOptions struct {
	Pipelines *etl.Registry
	Jobs      jobs.Enqueuer
	Sink      export.Sink
	APIToken  string // required as a bearer token on POST routes when set
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{Router: r, Pipelines: opts.Pipelines, Jobs: opts.Jobs, Sink: opts.Sink}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})

	r.Get("/pipelines", s.handleListPipelines)
	r.Get("/pipelines/{handle}", s.handleRunPipeline)
	r.With(middleware.RequireToken(opts.APIToken)).Post("/pipelines/{handle}/jobs", s.handleEnqueuePipeline)
	r.Get("/runs/{runID}", s.handleGetRun)

	return s
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"pipelines": s.Pipelines.List()})
}

func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Pipelines.Get(chi.URLParam(r, "handle"))
	if !ok {
		http.Error(w, "unknown pipeline", http.StatusNotFound)
		return
	}
	bindings, err := QueryBindings(r.URL.RawQuery)
	if err != nil {
		http.Error(w, "bad query: "+err.Error(), http.StatusBadRequest)
		return
	}

	run := p.NewRun()
	out, err := run.Execute(r.Context(), bindings)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("pipeline", p.Handle()).Msg("run failed")
		var te *outbound.TransportError
		if errors.As(err, &te) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get(formatParam) == "csv" {
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, out); err != nil {
			http.Error(w, "encode csv", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+p.Handle()+`.csv"`)
		_, _ = w.Write(buf.Bytes())
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"run_id": run.ID.String(), "record": out})
}

func (s *Server) handleEnqueuePipeline(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil {
		http.Error(w, "background runs are not configured", http.StatusServiceUnavailable)
		return
	}
	handle := chi.URLParam(r, "handle")
	if _, ok := s.Pipelines.Get(handle); !ok {
		http.Error(w, "unknown pipeline", http.StatusNotFound)
		return
	}

	bindings, err := QueryBindings(r.URL.RawQuery)
	if err != nil {
		http.Error(w, "bad query: "+err.Error(), http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		fromBody, err := record.Decode(body)
		if err != nil {
			http.Error(w, "body must be a JSON object", http.StatusBadRequest)
			return
		}
		bindings.Merge(fromBody)
	}

	runID := uuid.New()
	task, err := jobs.NewRunPipelineTask(jobs.RunPipelinePayload{RunID: runID.String(), Handle: handle, Bindings: bindings})
	if err != nil {
		http.Error(w, "build task", http.StatusInternalServerError)
		return
	}
	info, err := s.Jobs.Enqueue(task)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("pipeline", handle).Msg("enqueue failed")
		http.Error(w, "enqueue failed", http.StatusServiceUnavailable)
		return
	}
	hlog.FromRequest(r).Info().Str("pipeline", handle).Str("run_id", runID.String()).Str("task_id", info.ID).Msg("run queued")
	writeJSON(w, r, http.StatusAccepted, map[string]any{"run_id": runID.String(), "task_id": info.ID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.Sink == nil {
		http.Error(w, "no record sink configured", http.StatusServiceUnavailable)
		return
	}
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "bad run id", http.StatusBadRequest)
		return
	}
	saved, err := s.Sink.Load(r.Context(), runID)
	if errors.Is(err, export.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("load run")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"run_id":     saved.RunID.String(),
		"handle":     saved.Handle,
		"record":     saved.Record,
		"created_at": saved.CreatedAt,
	})
}

// QueryBindings turns a raw query string into bindings, keeping the order
// the keys appear in. The format parameter is skipped and a repeated key
// keeps its last value.
func QueryBindings(raw string) (*record.Record, error) {
	out := record.New()
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		if key == "" || key == formatParam {
			continue
		}
		out.Set(key, val)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}
