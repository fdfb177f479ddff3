// Package outbound builds request URIs from endpoint catalogs and dispatches
// them through a response cache and a Transport.
package outbound

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// EndpointConfig describes one endpoint before validation.
type EndpointConfig struct {
	Slug       string   // unique within the catalog
	Path       string   // e.g. "teams/{id}/roster"
	Method     string   // defaults to GET
	Parameters []string // placeholder names allowed in Path
	Modifiers  []string // query modifiers allowed on the request
	Cacheable  bool
	TTLSeconds int // zero means cache.DefaultTTL
}

// CatalogConfig describes one remote API before validation.
type CatalogConfig struct {
	Slug      string
	BaseURI   string // no trailing slash, e.g. https://statsapi.web.nhl.com/api
	Version   string // may be empty
	Endpoints []EndpointConfig
}

// Endpoint is a validated endpoint owned by a Catalog.
type Endpoint struct {
	Slug       string
	Path       string
	Method     string
	Parameters []string
	Modifiers  []string
	Cacheable  bool
	TTLSeconds int

	params map[string]struct{}
	mods   map[string]struct{}
}

// AllowsParameter reports whether name is a declared path parameter.
func (e *Endpoint) AllowsParameter(name string) bool {
	return allows(e.params, e.Parameters, name)
}

// AllowsModifier reports whether name is a declared query modifier.
func (e *Endpoint) AllowsModifier(name string) bool {
	return allows(e.mods, e.Modifiers, name)
}

func allows(set map[string]struct{}, list []string, name string) bool {
	if set != nil {
		_, ok := set[name]
		return ok
	}
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

// Catalog is a validated, immutable set of endpoints under one base URI.
type Catalog struct {
	Slug    string
	BaseURI string
	Version string

	endpoints []*Endpoint
	bySlug    map[string]*Endpoint
}

var knownMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true,
	http.MethodPut: true, http.MethodPatch: true, http.MethodDelete: true,
}

// NewCatalog validates cfg. Nothing usable is returned on error.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	scope := "catalog " + cfg.Slug
	if strings.TrimSpace(cfg.Slug) == "" {
		return nil, &ValidationError{Scope: "catalog", Field: "slug", Reason: "required"}
	}
	if cfg.BaseURI == "" {
		return nil, &ValidationError{Scope: scope, Field: "base_uri", Reason: "required"}
	}
	if u, err := url.Parse(cfg.BaseURI); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ValidationError{Scope: scope, Field: "base_uri", Reason: fmt.Sprintf("not an absolute URI: %q", cfg.BaseURI)}
	}

	c := &Catalog{
		Slug:    cfg.Slug,
		BaseURI: strings.TrimSuffix(cfg.BaseURI, "/"),
		Version: strings.Trim(cfg.Version, "/"),
		bySlug:  make(map[string]*Endpoint, len(cfg.Endpoints)),
	}

	for i, ec := range cfg.Endpoints {
		field := fmt.Sprintf("endpoints[%d]", i)
		if ec.Slug == "" {
			return nil, &ValidationError{Scope: scope, Field: field + ".slug", Reason: "required"}
		}
		if _, dup := c.bySlug[ec.Slug]; dup {
			return nil, &ValidationError{Scope: scope, Field: field + ".slug", Reason: fmt.Sprintf("duplicate slug %q", ec.Slug)}
		}
		if ec.Path == "" {
			return nil, &ValidationError{Scope: scope, Field: field + ".path", Reason: "required"}
		}
		method := strings.ToUpper(ec.Method)
		if method == "" {
			method = http.MethodGet
		}
		if !knownMethods[method] {
			return nil, &ValidationError{Scope: scope, Field: field + ".method", Reason: fmt.Sprintf("invalid method %q", ec.Method)}
		}
		if ec.TTLSeconds < 0 {
			return nil, &ValidationError{Scope: scope, Field: field + ".ttl_seconds", Reason: "must not be negative"}
		}

		ep := &Endpoint{
			Slug:       ec.Slug,
			Path:       strings.TrimPrefix(ec.Path, "/"),
			Method:     method,
			Parameters: append([]string(nil), ec.Parameters...),
			Modifiers:  append([]string(nil), ec.Modifiers...),
			Cacheable:  ec.Cacheable,
			TTLSeconds: ec.TTLSeconds,
			params:     toSet(ec.Parameters),
			mods:       toSet(ec.Modifiers),
		}
		c.endpoints = append(c.endpoints, ep)
		c.bySlug[ep.Slug] = ep
	}
	return c, nil
}

func toSet(list []string) map[string]struct{} {
	s := make(map[string]struct{}, len(list))
	for _, v := range list {
		s[v] = struct{}{}
	}
	return s
}

// RequestBaseURI returns base + "/" + version + "/", or base + "/" when the
// catalog has no version.
func (c *Catalog) RequestBaseURI() string {
	if c.Version == "" {
		return c.BaseURI + "/"
	}
	return c.BaseURI + "/" + c.Version + "/"
}

// Endpoints returns the endpoints in declaration order.
func (c *Catalog) Endpoints() []*Endpoint {
	return append([]*Endpoint(nil), c.endpoints...)
}

// EndpointRef names an endpoint either by slug or by handle.
// Implementations: Slug, Handle.
type EndpointRef interface {
	endpointRef()
	String() string
}

// Slug refers to an endpoint by its slug.
type Slug string

func (Slug) endpointRef()     {}
func (s Slug) String() string { return string(s) }

// Handle refers to an endpoint by pointer. The pointer must be one the
// catalog handed out.
type Handle struct {
	Endpoint *Endpoint
}

func (Handle) endpointRef() {}

func (h Handle) String() string {
	if h.Endpoint == nil {
		return "<nil handle>"
	}
	return "handle:" + h.Endpoint.Slug
}

// Resolve returns the endpoint ref points at.
func (c *Catalog) Resolve(ref EndpointRef) (*Endpoint, error) {
	switch r := ref.(type) {
	case Slug:
		if ep, ok := c.bySlug[string(r)]; ok {
			return ep, nil
		}
	case Handle:
		for _, ep := range c.endpoints {
			if ep == r.Endpoint {
				return ep, nil
			}
		}
	}
	name := "<nil>"
	if ref != nil {
		name = ref.String()
	}
	return nil, &UnknownEndpointError{Catalog: c.Slug, Ref: name}
}
