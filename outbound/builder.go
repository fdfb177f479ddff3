package outbound

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/briangreenhill/rinkjoin/record"
)

// keepSubDelims restores the sub-delimiters list values use, such as
// expand=team.roster,person.names, after escaping.
var keepSubDelims = strings.NewReplacer("%2C", ",", "%3A", ":")

// BuildRequestURI expands ep against the catalog base URI.
//
// Every params key the endpoint declares replaces its literal {key} token;
// other keys are ignored and unfilled placeholders stay verbatim. Every
// modifiers key the endpoint declares is appended as key=value, in the
// modifiers' insertion order, "?" first and "&" after.
func BuildRequestURI(c *Catalog, ep *Endpoint, params, modifiers *record.Record) string {
	path := ep.Path
	for _, k := range params.Keys() {
		if !ep.AllowsParameter(k) {
			continue
		}
		v, _ := params.Get(k)
		path = strings.ReplaceAll(path, "{"+k+"}", keepSubDelims.Replace(url.PathEscape(stringify(v))))
	}

	var b strings.Builder
	b.WriteString(c.RequestBaseURI())
	b.WriteString(path)

	first := true
	for _, k := range modifiers.Keys() {
		if !ep.AllowsModifier(k) {
			continue
		}
		v, _ := modifiers.Get(k)
		if first {
			b.WriteByte('?')
			first = false
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(keepSubDelims.Replace(url.QueryEscape(stringify(v))))
	}
	return b.String()
}

// RequestURI resolves ref and builds its request URI.
func (c *Catalog) RequestURI(ref EndpointRef, params, modifiers *record.Record) (string, error) {
	ep, err := c.Resolve(ref)
	if err != nil {
		return "", err
	}
	return BuildRequestURI(c, ep, params, modifiers), nil
}

// stringify renders decoded JSON values for use in a URI. Numbers print
// without exponent or trailing zeros.
func stringify(v any) string {
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// stringMap flattens the allowed keys of r for structured cache keys.
func stringMap(r *record.Record, allowed func(string) bool) map[string]string {
	out := make(map[string]string)
	for _, k := range r.Keys() {
		if !allowed(k) {
			continue
		}
		v, _ := r.Get(k)
		out[k] = stringify(v)
	}
	return out
}
