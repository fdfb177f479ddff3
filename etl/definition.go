// Package etl runs pipelines: ordered work units that fetch from outbound
// dispatchers, merge each response into a shared context and project the
// result through path rules.
package etl

import (
	"fmt"
	"sort"

	"github.com/briangreenhill/rinkjoin/outbound"
	"github.com/briangreenhill/rinkjoin/pathexpr"
)

// RenameRule copies the value at Find to the top-level key Replace.
type RenameRule struct {
	Find    string
	Replace string
}

// Dependency binds the endpoint parameter or modifier Remote to the context
// value stored under ContextKey.
type Dependency struct {
	Remote     string
	ContextKey string
}

// WorkUnitConfig is one fetch-and-merge step.
type WorkUnitConfig struct {
	API      string // catalog slug
	Endpoint string // endpoint slug within the catalog
	Rename   []RenameRule
	Priority int // ascending; ties keep declaration order

	DependentParams    []Dependency
	DependentModifiers []Dependency
}

func (u WorkUnitConfig) String() string { return u.API + "/" + u.Endpoint }

// Definition describes a pipeline before validation.
type Definition struct {
	Handle    string
	Catalogs  []outbound.CatalogConfig
	WorkUnits []WorkUnitConfig
	Output    []pathexpr.Rule // empty returns the whole context
}

type workUnit struct {
	WorkUnitConfig
	dispatcher *outbound.Dispatcher
	endpoint   *outbound.Endpoint
}

func validationErr(scope, field, reason string) error {
	return &outbound.ValidationError{Scope: scope, Field: field, Reason: reason}
}

// compile validates def against reg and returns the work units in run order.
func compile(def Definition, reg *outbound.Registry) ([]workUnit, error) {
	scope := "pipeline " + def.Handle
	if def.Handle == "" {
		return nil, validationErr("pipeline", "handle", "required")
	}
	if reg == nil {
		return nil, validationErr(scope, "registry", "required")
	}
	if len(def.Catalogs) == 0 {
		return nil, validationErr(scope, "catalogs", "at least one catalog is required")
	}
	if len(def.WorkUnits) == 0 {
		return nil, validationErr(scope, "work_units", "at least one work unit is required")
	}

	dispatchers := make(map[string]*outbound.Dispatcher, len(def.Catalogs))
	for _, cc := range def.Catalogs {
		c, err := outbound.NewCatalog(cc)
		if err != nil {
			return nil, err
		}
		if _, dup := dispatchers[c.Slug]; dup {
			return nil, validationErr(scope, "catalogs", fmt.Sprintf("duplicate catalog %q", c.Slug))
		}
		d, err := reg.Dispatcher(c)
		if err != nil {
			return nil, err
		}
		dispatchers[c.Slug] = d
	}

	units := make([]workUnit, 0, len(def.WorkUnits))
	for i, uc := range def.WorkUnits {
		field := fmt.Sprintf("work_units[%d]", i)
		d, ok := dispatchers[uc.API]
		if !ok {
			return nil, validationErr(scope, field+".api", fmt.Sprintf("undeclared catalog %q", uc.API))
		}
		ep, err := d.ResolveEndpoint(outbound.Slug(uc.Endpoint))
		if err != nil {
			return nil, validationErr(scope, field+".endpoint", err.Error())
		}
		for j, r := range uc.Rename {
			if r.Find == "" || r.Replace == "" {
				return nil, validationErr(scope, fmt.Sprintf("%s.rename[%d]", field, j), "find and replace are required")
			}
		}
		for _, deps := range [][]Dependency{uc.DependentParams, uc.DependentModifiers} {
			for _, dep := range deps {
				if dep.Remote == "" || dep.ContextKey == "" {
					return nil, validationErr(scope, field, "dependencies need a remote name and a context key")
				}
			}
		}
		units = append(units, workUnit{WorkUnitConfig: uc, dispatcher: d, endpoint: ep})
	}

	for i, r := range def.Output {
		if r.Find == "" || r.Replace == "" {
			return nil, validationErr(scope, fmt.Sprintf("output[%d]", i), "find and replace are required")
		}
	}

	sort.SliceStable(units, func(i, j int) bool { return units[i].Priority < units[j].Priority })
	return units, nil
}
