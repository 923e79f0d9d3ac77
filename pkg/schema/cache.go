package schema

import (
	"sync"
)

// Cache holds the API description for a run together with every entity
// already dereferenced from it. Entries are written once and never mutated;
// readers always receive deep copies.
type Cache struct {
	doc map[string]any

	mu       sync.RWMutex
	resolved map[string]map[string]any
}

// NewCache wraps a parsed API description document.
func NewCache(doc map[string]any) *Cache {
	return &Cache{
		doc:      doc,
		resolved: make(map[string]map[string]any),
	}
}

// Document returns the raw description. Callers must not modify it.
func (c *Cache) Document() map[string]any {
	return c.doc
}

// Len returns the number of cached entities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.resolved)
}

func (c *Cache) get(pointer string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.resolved[pointer]
	return s, ok
}

// put stores s unless another caller got there first, and returns the
// winning entry.
func (c *Cache) put(pointer string, s map[string]any) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.resolved[pointer]; ok {
		return existing
	}
	c.resolved[pointer] = s
	return s
}

// deepCopy clones maps and slices of a decoded JSON tree.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

// Clone returns a deep copy of a schema.
func Clone(s map[string]any) map[string]any {
	if s == nil {
		return nil
	}
	return deepCopy(s).(map[string]any)
}
