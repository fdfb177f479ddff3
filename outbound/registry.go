package outbound

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/briangreenhill/rinkjoin/cache"
)

// Registry hands out one Dispatcher per distinct catalog. Catalogs sharing a
// slug share one cache file and one set of in-flight requests, but each
// dispatcher resolves endpoints against the catalog it was built from.
type Registry struct {
	cacheDir  string
	transport Transport

	cacheOpts      []cache.Option
	dispatcherOpts []DispatcherOption

	mu          sync.Mutex
	dispatchers map[string]*Dispatcher // first dispatcher per slug
	byCatalog   map[string]*Dispatcher // keyed by catalogIdentity
	stores      map[string]*cache.Store
	flights     map[string]*singleflight.Group
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCacheOptions are passed to every cache.Open.
func WithCacheOptions(opts ...cache.Option) RegistryOption {
	return func(r *Registry) { r.cacheOpts = append(r.cacheOpts, opts...) }
}

// WithDispatcherOptions are passed to every NewDispatcher.
func WithDispatcherOptions(opts ...DispatcherOption) RegistryOption {
	return func(r *Registry) { r.dispatcherOpts = append(r.dispatcherOpts, opts...) }
}

// NewRegistry creates a registry. An empty cacheDir disables caching.
func NewRegistry(cacheDir string, t Transport, opts ...RegistryOption) *Registry {
	r := &Registry{
		cacheDir:    cacheDir,
		transport:   t,
		dispatchers: make(map[string]*Dispatcher),
		byCatalog:   make(map[string]*Dispatcher),
		stores:      make(map[string]*cache.Store),
		flights:     make(map[string]*singleflight.Group),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Dispatcher returns the dispatcher for c, opening the slug's cache on
// first use. An identical catalog gets the same dispatcher back; a catalog
// with the same slug and base URI but other endpoints gets its own
// dispatcher over the shared cache. A base URI or version that differs from
// the slug's first catalog is rejected.
func (r *Registry) Dispatcher(c *Catalog) (*Dispatcher, error) {
	if c == nil {
		return nil, &ValidationError{Scope: "registry", Field: "catalog", Reason: "required"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if first, ok := r.dispatchers[c.Slug]; ok {
		have := first.Catalog()
		if have.RequestBaseURI() != c.RequestBaseURI() {
			return nil, &ValidationError{
				Scope:  "registry",
				Field:  c.Slug,
				Reason: fmt.Sprintf("already registered with %s", have.RequestBaseURI()),
			}
		}
	}
	id := catalogIdentity(c)
	if d, ok := r.byCatalog[id]; ok {
		return d, nil
	}

	var store cache.ReadWriter
	if s, ok := r.stores[c.Slug]; ok {
		store = s
	} else if r.cacheDir != "" {
		s, err := cache.Open(r.cacheDir, c.Slug, r.cacheOpts...)
		if err != nil {
			return nil, fmt.Errorf("open cache for %s: %w", c.Slug, err)
		}
		r.stores[c.Slug] = s
		store = s
	}

	opts := append(append([]DispatcherOption(nil), r.dispatcherOpts...), withFlightGroup(r.flight(c.Slug)))
	d, err := NewDispatcher(c, store, r.transport, opts...)
	if err != nil {
		return nil, err
	}
	r.byCatalog[id] = d
	if _, ok := r.dispatchers[c.Slug]; !ok {
		r.dispatchers[c.Slug] = d
	}
	return d, nil
}

func (r *Registry) flight(slug string) *singleflight.Group {
	g, ok := r.flights[slug]
	if !ok {
		g = &singleflight.Group{}
		r.flights[slug] = g
	}
	return g
}

// catalogIdentity renders everything about c that changes how a request is
// built or cached. Endpoint declaration order does not matter.
func catalogIdentity(c *Catalog) string {
	eps := make([]string, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		eps = append(eps, strings.Join([]string{
			ep.Slug, ep.Path, ep.Method,
			strings.Join(ep.Parameters, ","),
			strings.Join(ep.Modifiers, ","),
			strconv.FormatBool(ep.Cacheable),
			strconv.Itoa(ep.TTLSeconds),
		}, "|"))
	}
	sort.Strings(eps)
	return c.Slug + "\n" + c.RequestBaseURI() + "\n" + strings.Join(eps, "\n")
}

// Register adds a dispatcher built elsewhere. It becomes the slug's primary
// dispatcher and is returned for identical catalogs.
func (r *Registry) Register(d *Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatchers[d.Catalog().Slug] = d
	r.byCatalog[catalogIdentity(d.Catalog())] = d
}

// Get returns the first dispatcher registered for slug.
func (r *Registry) Get(slug string) (*Dispatcher, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dispatchers[slug]
	return d, ok
}

// List returns the registered catalog slugs, sorted.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.dispatchers))
	for name := range r.dispatchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stores returns the cache stores opened so far, sorted by name.
func (r *Registry) Stores() []*cache.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*cache.Store, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
