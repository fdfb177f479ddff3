// Package pathexpr resolves dotted and bracketed paths such as
// "teams[0].venue.name" against decoded JSON and projects records through
// find/replace rules.
package pathexpr

import (
	"strconv"
	"strings"

	"github.com/briangreenhill/rinkjoin/record"
)

// Segments splits expr into path segments. Brackets are treated as dots and
// a leading dot is ignored, so "a[0][b]" and ".a.0.b" both give [a 0 b].
func Segments(expr string) []string {
	expr = strings.NewReplacer("[", ".", "]", "").Replace(expr)
	expr = strings.TrimPrefix(expr, ".")
	if expr == "" {
		return nil
	}
	return strings.Split(expr, ".")
}

// Resolve walks root along expr. It reports false when any segment is
// missing, an index is out of range, or an intermediate value is a scalar.
func Resolve(root any, expr string) (any, bool) {
	segs := Segments(expr)
	if len(segs) == 0 {
		return nil, false
	}
	cur := root
	for _, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, seg string) (any, bool) {
	switch node := cur.(type) {
	case *record.Record:
		return node.Get(seg)
	case map[string]any:
		v, ok := node[seg]
		return v, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(node) {
			return nil, false
		}
		return node[i], true
	default:
		return nil, false
	}
}

// RenameInPlace copies the value at find to the top-level key replace. The
// source is left in place. It reports whether find resolved.
func RenameInPlace(rec *record.Record, find, replace string) bool {
	v, ok := Resolve(rec, find)
	if !ok {
		return false
	}
	rec.Set(replace, v)
	return true
}
