package pathexpr

import "github.com/briangreenhill/rinkjoin/record"

// TransformFunc derives an output value. value is what the rule's find path
// resolved to, context is the whole execution context and partial is the
// output built so far.
type TransformFunc func(value any, context, partial *record.Record) any

// Rule maps a path in the context to a key in the output.
type Rule struct {
	Find      string
	Replace   string
	Transform TransformFunc // optional
}

// Project builds an output record by applying rules in order.
//
// A rule without a transform renames find to replace inside ctx and copies
// ctx[replace] to the output when present. A rule with a transform runs only
// when find resolves and stores the transform result under replace.
func Project(ctx *record.Record, rules []Rule) *record.Record {
	out := record.New()
	for _, r := range rules {
		if r.Transform != nil {
			v, ok := Resolve(ctx, r.Find)
			if !ok {
				continue
			}
			out.Set(r.Replace, r.Transform(v, ctx, out))
			continue
		}
		RenameInPlace(ctx, r.Find, r.Replace)
		if v, ok := ctx.Get(r.Replace); ok {
			out.Set(r.Replace, v)
		}
	}
	return out
}
