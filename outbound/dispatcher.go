package outbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/briangreenhill/rinkjoin/cache"
	"github.com/briangreenhill/rinkjoin/record"
)

// Result is the outcome of a Fetch.
type Result struct {
	URI        string
	Body       string
	StatusCode int
	Cached     bool // served from the cache without a network call
}

// Dispatcher binds one catalog to one cache and one transport.
type Dispatcher struct {
	catalog   *Catalog
	cache     cache.ReadWriter // optional; nil means no cache
	transport Transport
	logger    zerolog.Logger

	structuredKeys bool
	inflight       *singleflight.Group
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// withFlightGroup shares in-flight request collapsing with other dispatchers
// writing the same cache.
func withFlightGroup(g *singleflight.Group) DispatcherOption {
	return func(d *Dispatcher) { d.inflight = g }
}

// WithStructuredKeys keys the cache by endpoint and sorted bindings instead
// of the expanded request URI.
func WithStructuredKeys() DispatcherOption {
	return func(d *Dispatcher) { d.structuredKeys = true }
}

// NewDispatcher creates a dispatcher. store may be nil to disable caching.
func NewDispatcher(c *Catalog, store cache.ReadWriter, t Transport, opts ...DispatcherOption) (*Dispatcher, error) {
	if c == nil {
		return nil, &ValidationError{Scope: "dispatcher", Field: "catalog", Reason: "required"}
	}
	if t == nil {
		return nil, &ValidationError{Scope: "dispatcher " + c.Slug, Field: "transport", Reason: "required"}
	}
	d := &Dispatcher{
		catalog:   c,
		cache:     store,
		transport: t,
		logger:    zerolog.Nop(),
		inflight:  &singleflight.Group{},
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Catalog returns the bound catalog.
func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// ResolveEndpoint returns the endpoint ref points at.
func (d *Dispatcher) ResolveEndpoint(ref EndpointRef) (*Endpoint, error) {
	return d.catalog.Resolve(ref)
}

// Fetch performs a cache-first GET for the endpoint.
//
// A cache hit returns status 200 without touching the network. A miss calls
// the transport once; a successful body is stored under the cache key with
// the endpoint TTL. Transport failures and non-2xx statuses come back as
// *TransportError and are never cached.
func (d *Dispatcher) Fetch(ctx context.Context, ref EndpointRef, params, modifiers *record.Record) (*Result, error) {
	ep, err := d.catalog.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if ep.Method != http.MethodGet {
		return nil, &UnsupportedMethodError{Method: ep.Method, Endpoint: ep.Slug}
	}

	uri := BuildRequestURI(d.catalog, ep, params, modifiers)
	key := uri
	if d.structuredKeys {
		key = cache.StructuredKey(d.catalog.Slug, ep.Slug,
			stringMap(params, ep.AllowsParameter), stringMap(modifiers, ep.AllowsModifier))
	}

	log := d.logger.With().Str("api", d.catalog.Slug).Str("endpoint", ep.Slug).Str("uri", uri).Logger()

	if ep.Cacheable && d.cache != nil {
		if body, ok := d.cache.Lookup(key); ok {
			log.Debug().Msg("cache hit")
			return &Result{URI: uri, Body: body, StatusCode: http.StatusOK, Cached: true}, nil
		}
	}

	// The shared call must outlive any single caller; each caller stops
	// waiting on its own ctx instead.
	flight := d.inflight.DoChan(key, func() (any, error) {
		return d.send(context.WithoutCancel(ctx), ep, uri, key, log)
	})
	select {
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("stopped waiting for request")
		return nil, &TransportError{URI: uri, Err: ctx.Err()}
	case r := <-flight:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			log.Debug().Msg("joined in-flight request")
		}
		res := *r.Val.(*Result)
		return &res, nil
	}
}

func (d *Dispatcher) send(ctx context.Context, ep *Endpoint, uri, key string, log zerolog.Logger) (*Result, error) {
	log.Info().Msg("requesting")

	received := 0
	resp, err := d.transport.Send(ctx, Request{
		URI:    uri,
		Method: http.MethodGet,
		OnProgress: func(chunk []byte) {
			received += len(chunk)
			log.Trace().Int("bytes", received).Msg("receiving")
		},
	})
	if err != nil {
		var me *UnsupportedMethodError
		if errors.As(err, &me) {
			return nil, err
		}
		log.Warn().Err(err).Msg("request failed")
		return nil, &TransportError{URI: uri, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Int("status", resp.StatusCode).Msg("request failed")
		return nil, &TransportError{
			URI:        uri,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	log.Info().Int("status", resp.StatusCode).Int("bytes", len(resp.Body)).Msg("received")

	body := string(resp.Body)
	if ep.Cacheable && d.cache != nil {
		ttl := ep.TTLSeconds
		if ttl <= 0 {
			ttl = cache.DefaultTTL
		}
		if err := d.cache.Put(key, body, ttl); err != nil {
			log.Warn().Err(err).Msg("cache store failed")
		}
	}
	return &Result{URI: uri, Body: body, StatusCode: resp.StatusCode}, nil
}
