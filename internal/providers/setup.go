// Package providers wires the remote APIs, pipelines and sinks shared by the
// binaries.
package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/briangreenhill/rinkjoin/cache"
	"github.com/briangreenhill/rinkjoin/etl"
	"github.com/briangreenhill/rinkjoin/export"
	"github.com/briangreenhill/rinkjoin/internal/config"
	"github.com/briangreenhill/rinkjoin/internal/definitions"
	"github.com/briangreenhill/rinkjoin/nhl"
	"github.com/briangreenhill/rinkjoin/outbound"
)

// Stack is everything a binary needs to run pipelines.
type Stack struct {
	Transport outbound.Transport
	Outbound  *outbound.Registry
	Pipelines *etl.Registry
}

// Option adjusts Setup.
type Option func(*setupOptions)

type setupOptions struct {
	transport outbound.Transport
}

// WithTransport replaces the HTTP transport built from cfg.
func WithTransport(t outbound.Transport) Option {
	return func(o *setupOptions) { o.transport = t }
}

// NewTransport builds the outbound HTTP transport from cfg.
func NewTransport(cfg *config.Config) *outbound.HTTPTransport {
	opts := []outbound.HTTPOption{
		outbound.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		outbound.WithUserAgent(cfg.HTTP.UserAgent),
	}
	if cfg.HasOAuth() {
		opts = append(opts, outbound.WithClientCredentials(clientcredentials.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
			Scopes:       cfg.OAuth.Scopes,
		}))
	}
	if cfg.HTTP.Tracing {
		opts = append(opts, outbound.WithTracing())
	}
	return outbound.NewHTTPTransport(opts...)
}

// Setup creates the registries with the NHL pipelines and any pipelines from
// cfg.DefinitionsFile.
func Setup(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Stack, error) {
	var so setupOptions
	for _, o := range opts {
		o(&so)
	}
	transport := so.transport
	if transport == nil {
		transport = NewTransport(cfg)
	}

	reg := outbound.NewRegistry(cfg.CacheDir, transport,
		outbound.WithCacheOptions(cache.WithLogger(logger.With().Str("component", "cache").Logger())),
		outbound.WithDispatcherOptions(outbound.WithLogger(logger.With().Str("component", "dispatcher").Logger())),
	)
	pipelines := etl.NewRegistry()
	pipelineLog := etl.WithLogger(logger.With().Str("component", "etl").Logger())

	if err := nhl.Register(pipelines, reg, nhl.CatalogAt(cfg.NHLBaseURI), pipelineLog); err != nil {
		return nil, err
	}

	if cfg.DefinitionsFile != "" {
		set, err := definitions.Load(cfg.DefinitionsFile, nhl.Transforms())
		if err != nil {
			return nil, err
		}
		if err := set.Register(pipelines, reg, pipelineLog); err != nil {
			return nil, err
		}
		logger.Info().Str("file", cfg.DefinitionsFile).Int("pipelines", len(set.Pipelines)).Msg("loaded definitions")
	}

	return &Stack{Transport: transport, Outbound: reg, Pipelines: pipelines}, nil
}

// OpenSink opens the sink named by cfg.Sink, or returns nil for "none".
func OpenSink(ctx context.Context, cfg *config.Config) (export.Sink, error) {
	switch cfg.Sink {
	case config.SinkPostgres:
		return export.NewPostgresSink(ctx, cfg.DatabaseURL)
	case config.SinkSQLite:
		return export.NewSQLiteSink(cfg.SQLitePath)
	case config.SinkNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
