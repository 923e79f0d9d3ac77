// Package schema turns an OpenAPI-style description into self-contained
// JSON Schemas, one per entity, and applies per-stream patches to them.
package schema

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// ComponentsPrefix is where entity schemas live inside the description.
const ComponentsPrefix = "#/components/schemas/"

// Resolver dereferences entities out of the description held by a Cache.
type Resolver struct {
	cache *Cache
}

// NewResolver creates a resolver backed by cache.
func NewResolver(cache *Cache) *Resolver {
	if cache == nil {
		panic("schema cache cannot be nil")
	}
	return &Resolver{cache: cache}
}

// Pointer returns the JSON pointer an entity reference names. References
// that already are pointers are returned unchanged.
func Pointer(entityRef string) string {
	if strings.HasPrefix(entityRef, "#/") {
		return entityRef
	}
	return ComponentsPrefix + entityRef
}

// Resolve returns a schema for entityRef with every $ref replaced by its
// target, then applies patches in order. The returned map is owned by the
// caller; patches never reach the cached copy.
func (r *Resolver) Resolve(entityRef string, patches ...Patch) (map[string]any, error) {
	ptr := Pointer(entityRef)

	base, ok := r.cache.get(ptr)
	if !ok {
		target, err := lookup(r.cache.Document(), ptr)
		if err != nil {
			return nil, &ResolutionError{EntityRef: entityRef, Pointer: ptr, Err: err}
		}
		resolved, err := r.deref(target, []string{ptr})
		if err != nil {
			return nil, &ResolutionError{EntityRef: entityRef, Err: err}
		}
		m, ok := resolved.(map[string]any)
		if !ok {
			return nil, &ResolutionError{EntityRef: entityRef, Pointer: ptr,
				Err: fmt.Errorf("%w: target is %T, not an object schema", ErrNotFound, resolved)}
		}
		base = r.cache.put(ptr, m)
	}

	out := Clone(base)
	for _, p := range patches {
		if err := p.Apply(out); err != nil {
			return nil, &ResolutionError{EntityRef: entityRef, Err: fmt.Errorf("%s: %w", p, err)}
		}
	}
	return out, nil
}

// deref builds a fresh tree from node with references inlined. stack holds
// the pointers currently being expanded.
func (r *Resolver) deref(node any, stack []string) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		if ref, ok := n["$ref"].(string); ok {
			if !strings.HasPrefix(ref, "#") {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
			}
			if slices.Contains(stack, ref) {
				return nil, fmt.Errorf("%w: %s -> %s", ErrCircularRef, strings.Join(stack, " -> "), ref)
			}
			target, err := lookup(r.cache.Document(), ref)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ref, err)
			}
			resolved, err := r.deref(target, append(stack[:len(stack):len(stack)], ref))
			if err != nil {
				return nil, err
			}
			if len(n) == 1 {
				return resolved, nil
			}
			// Sibling keywords next to $ref override the target's.
			merged, ok := resolved.(map[string]any)
			if !ok {
				return resolved, nil
			}
			for k, v := range n {
				if k == "$ref" {
					continue
				}
				dv, err := r.deref(v, stack)
				if err != nil {
					return nil, err
				}
				merged[k] = dv
			}
			return merged, nil
		}

		out := make(map[string]any, len(n))
		for k, v := range n {
			dv, err := r.deref(v, stack)
			if err != nil {
				return nil, err
			}
			out[k] = dv
		}
		return out, nil

	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			dv, err := r.deref(v, stack)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil

	default:
		return n, nil
	}
}

// lookup follows a local JSON pointer ("#/a/b/0") through doc.
func lookup(doc map[string]any, ref string) (any, error) {
	if ref == "#" || ref == "#/" {
		return doc, nil
	}
	if !strings.HasPrefix(ref, "#/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}

	var cur any = doc
	for _, raw := range strings.Split(ref[2:], "/") {
		tok, err := url.PathUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pointer token %q", ErrNotFound, raw)
		}
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")

		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[tok]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
			}
			cur = c[idx]
		default:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
	}
	return cur, nil
}
