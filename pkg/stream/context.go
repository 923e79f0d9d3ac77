package stream

import (
	"strings"
)

// Context is an immutable, ordered mapping from placeholder name to value.
// The zero value is an empty Context ready to use.
type Context struct {
	keys   []string
	values []string
}

// NewContext builds a Context from alternating key/value pairs.
// A trailing key without a value is ignored.
func NewContext(pairs ...string) Context {
	var c Context
	for i := 0; i+1 < len(pairs); i += 2 {
		c = c.With(pairs[i], pairs[i+1])
	}
	return c
}

// With returns a new Context that carries key=value in addition to the
// receiver's bindings. Rebinding an existing key keeps its position.
// The receiver is never modified.
func (c Context) With(key, value string) Context {
	keys := make([]string, len(c.keys), len(c.keys)+1)
	values := make([]string, len(c.values), len(c.values)+1)
	copy(keys, c.keys)
	copy(values, c.values)

	for i, k := range keys {
		if k == key {
			values[i] = value
			return Context{keys: keys, values: values}
		}
	}

	return Context{keys: append(keys, key), values: append(values, value)}
}

// Get returns the value bound to key.
func (c Context) Get(key string) (string, bool) {
	for i, k := range c.keys {
		if k == key {
			return c.values[i], true
		}
	}
	return "", false
}

// Len returns the number of bindings.
func (c Context) Len() int {
	return len(c.keys)
}

// Keys returns the bound keys in insertion order.
func (c Context) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Each calls fn for every binding in insertion order.
func (c Context) Each(fn func(key, value string)) {
	for i, k := range c.keys {
		fn(k, c.values[i])
	}
}

// Map returns the bindings as a fresh map.
func (c Context) Map() map[string]string {
	out := make(map[string]string, len(c.keys))
	c.Each(func(k, v string) { out[k] = v })
	return out
}

// String renders the bindings as "k1=v1,k2=v2" for logging.
func (c Context) String() string {
	parts := make([]string, 0, len(c.keys))
	c.Each(func(k, v string) { parts = append(parts, k+"="+v) })
	return strings.Join(parts, ",")
}
