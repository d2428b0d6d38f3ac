package rset

import (
	"fmt"
	"log/slog"
)

// FormatResolver finds spec arrays referenced by numeric id inside one
// columnar payload. Payloads send each distinct spec array once as
// {f: id, s: [...]} and refer to it elsewhere as {f: id}.
//
// The payload is walked with an explicit stack that persists between calls:
// a lookup resumes the walk where the previous one stopped, and every pair
// passed along the way is memoized, so each node is visited at most once.
type FormatResolver struct {
	// Logger receives debug output; nil means slog.Default().
	Logger *slog.Logger

	root    any
	memo    map[int]*FieldSpecs
	stack   []any
	started bool
	visited int
}

func NewFormatResolver(payload any) *FormatResolver {
	return &FormatResolver{
		root: payload,
		memo: make(map[int]*FieldSpecs),
	}
}

// Register memoizes specs for id unless the id is already known, and
// returns the specs to use for id.
func (r *FormatResolver) Register(id int, specs *FieldSpecs) *FieldSpecs {
	if prev := r.memo[id]; prev != nil {
		return prev
	}
	r.memo[id] = specs
	return specs
}

// Resolve returns the spec array with the given id.
func (r *FormatResolver) Resolve(id int) (*FieldSpecs, error) {
	if specs := r.memo[id]; specs != nil {
		return specs, nil
	}
	if !r.started {
		r.started = true
		if r.root != nil {
			r.stack = append(r.stack, r.root)
		}
	}
	for len(r.stack) > 0 {
		n := len(r.stack) - 1
		node := r.stack[n]
		r.stack[n] = nil
		r.stack = r.stack[:n]
		r.visited++

		found, err := r.visit(node, id)
		if err != nil {
			return nil, err
		}
		if found {
			loggerOr(r.Logger).Debug("rset: format resolved", "id", id, "visited", r.visited, "pending", len(r.stack))
			return r.memo[id], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, id)
}

// visit memoizes a (f, s) pair held by node, pushes its children, and
// reports whether the pair had the wanted id.
func (r *FormatResolver) visit(node any, want int) (bool, error) {
	var found bool
	switch v := node.(type) {
	case []any:
		for i := len(v) - 1; i >= 0; i-- {
			r.push(v[i])
		}
	case map[string]any:
		if s, ok := v["s"]; ok {
			if id, ok := toInt(v["f"]); ok {
				if r.memo[id] == nil {
					specs, err := decodeFieldSpecs(s)
					if err != nil {
						return false, err
					}
					r.memo[id] = specs
				}
				found = id == want
			}
		}
		for k, child := range v {
			if k != "s" {
				r.push(child)
			}
		}
	case map[any]any:
		if m, ok := asStringMap(v); ok {
			return r.visit(m, want)
		}
	}
	return found, nil
}

func (r *FormatResolver) push(v any) {
	switch v.(type) {
	case []any, map[string]any, map[any]any:
		r.stack = append(r.stack, v)
	}
}

// specsOf returns the spec array for a columnar node {d, s?, f?}.
func (r *FormatResolver) specsOf(node map[string]any) (*FieldSpecs, error) {
	id, hasID := toInt(node["f"])
	if s, ok := node["s"]; ok && s != nil {
		if hasID {
			if specs := r.memo[id]; specs != nil {
				return specs, nil
			}
		}
		specs, err := decodeFieldSpecs(s)
		if err != nil {
			return nil, err
		}
		if hasID {
			specs = r.Register(id, specs)
		}
		return specs, nil
	}
	if hasID {
		return r.Resolve(id)
	}
	return nil, dataErrf("columnar", node, nil, "neither s nor f present")
}
