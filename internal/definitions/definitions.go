// Package definitions loads catalogs and pipelines from a YAML file.
package definitions

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/briangreenhill/rinkjoin/etl"
	"github.com/briangreenhill/rinkjoin/outbound"
	"github.com/briangreenhill/rinkjoin/pathexpr"
)

type document struct {
	Catalogs  []catalogDoc  `koanf:"catalogs"`
	Pipelines []pipelineDoc `koanf:"pipelines"`
}

type catalogDoc struct {
	Slug      string        `koanf:"slug"`
	BaseURI   string        `koanf:"base_uri"`
	Version   string        `koanf:"version"`
	Endpoints []endpointDoc `koanf:"endpoints"`
}

type endpointDoc struct {
	Slug       string   `koanf:"slug"`
	Path       string   `koanf:"path"`
	Method     string   `koanf:"method"`
	Parameters []string `koanf:"parameters"`
	Modifiers  []string `koanf:"modifiers"`
	Cacheable  bool     `koanf:"cacheable"`
	TTLSeconds int      `koanf:"ttl_seconds"`
}

type pipelineDoc struct {
	Handle    string        `koanf:"handle"`
	Catalogs  []string      `koanf:"catalogs"`
	WorkUnits []workUnitDoc `koanf:"work_units"`
	Output    []ruleDoc     `koanf:"output"`
}

type workUnitDoc struct {
	API                string          `koanf:"api"`
	Endpoint           string          `koanf:"endpoint"`
	Priority           int             `koanf:"priority"`
	Rename             []ruleDoc       `koanf:"rename"`
	DependentParams    []dependencyDoc `koanf:"dependent_params"`
	DependentModifiers []dependencyDoc `koanf:"dependent_modifiers"`
}

type ruleDoc struct {
	Find      string `koanf:"find"`
	Replace   string `koanf:"replace"`
	Transform string `koanf:"transform"`
}

type dependencyDoc struct {
	Remote     string `koanf:"remote"`
	ContextKey string `koanf:"context_key"`
}

// Set is the content of a definitions file.
type Set struct {
	Catalogs  []outbound.CatalogConfig
	Pipelines []etl.Definition
}

// Load reads path and converts it into pipeline definitions. Output rules
// naming a transform are resolved against transforms.
func Load(path string, transforms *etl.Transforms) (*Set, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	var doc document
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return convert(doc, transforms)
}

func convert(doc document, transforms *etl.Transforms) (*Set, error) {
	set := &Set{}
	catalogs := make(map[string]outbound.CatalogConfig, len(doc.Catalogs))
	for _, cd := range doc.Catalogs {
		cc := outbound.CatalogConfig{Slug: cd.Slug, BaseURI: cd.BaseURI, Version: cd.Version}
		for _, ed := range cd.Endpoints {
			cc.Endpoints = append(cc.Endpoints, outbound.EndpointConfig{
				Slug:       ed.Slug,
				Path:       ed.Path,
				Method:     ed.Method,
				Parameters: ed.Parameters,
				Modifiers:  ed.Modifiers,
				Cacheable:  ed.Cacheable,
				TTLSeconds: ed.TTLSeconds,
			})
		}
		if _, dup := catalogs[cc.Slug]; dup {
			return nil, &outbound.ValidationError{Scope: "definitions", Field: "catalogs", Reason: fmt.Sprintf("duplicate catalog %q", cc.Slug)}
		}
		catalogs[cc.Slug] = cc
		set.Catalogs = append(set.Catalogs, cc)
	}

	for i, pd := range doc.Pipelines {
		scope := fmt.Sprintf("pipelines[%d]", i)
		def := etl.Definition{Handle: pd.Handle}
		for _, slug := range pd.Catalogs {
			cc, ok := catalogs[slug]
			if !ok {
				return nil, &outbound.ValidationError{Scope: scope, Field: "catalogs", Reason: fmt.Sprintf("unknown catalog %q", slug)}
			}
			def.Catalogs = append(def.Catalogs, cc)
		}
		for _, ud := range pd.WorkUnits {
			wu := etl.WorkUnitConfig{API: ud.API, Endpoint: ud.Endpoint, Priority: ud.Priority}
			for _, r := range ud.Rename {
				wu.Rename = append(wu.Rename, etl.RenameRule{Find: r.Find, Replace: r.Replace})
			}
			wu.DependentParams = dependencies(ud.DependentParams)
			wu.DependentModifiers = dependencies(ud.DependentModifiers)
			def.WorkUnits = append(def.WorkUnits, wu)
		}
		for j, rd := range pd.Output {
			rule := pathexpr.Rule{Find: rd.Find, Replace: rd.Replace}
			if rd.Transform != "" {
				fn, ok := transforms.Lookup(rd.Transform)
				if !ok {
					return nil, &outbound.ValidationError{
						Scope:  scope,
						Field:  fmt.Sprintf("output[%d].transform", j),
						Reason: fmt.Sprintf("unknown transform %q", rd.Transform),
					}
				}
				rule.Transform = fn
			}
			def.Output = append(def.Output, rule)
		}
		set.Pipelines = append(set.Pipelines, def)
	}
	return set, nil
}

func dependencies(docs []dependencyDoc) []etl.Dependency {
	if len(docs) == 0 {
		return nil
	}
	out := make([]etl.Dependency, len(docs))
	for i, d := range docs {
		out[i] = etl.Dependency{Remote: d.Remote, ContextKey: d.ContextKey}
	}
	return out
}

// Register builds every pipeline in the set and adds it to pipelines.
func (s *Set) Register(pipelines *etl.Registry, reg *outbound.Registry, opts ...etl.Option) error {
	for _, def := range s.Pipelines {
		p, err := etl.New(def, reg, opts...)
		if err != nil {
			return fmt.Errorf("build %s: %w", def.Handle, err)
		}
		pipelines.Register(p)
	}
	return nil
}
