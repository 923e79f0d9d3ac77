package cache

import (
	"strings"
)

// KeyPrefix prefixes every Redis key written by this package.
const KeyPrefix = "coda"

// Key identifies one cached document.
type Key struct {
	// Namespace groups related documents, e.g. "openapi".
	Namespace string

	// URL is the document's source URL.
	URL string
}

// String generates a deterministic cache key string.
// Format: coda:namespace:host/path?query
//
// Example:
//
//	coda:openapi:coda.io/apis/v1/openapi.json
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if ns := strings.TrimSpace(k.Namespace); ns != "" {
		parts = append(parts, ns)
	}

	u := k.URL
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	u = strings.TrimRight(u, "/")
	if u != "" {
		parts = append(parts, u)
	}

	return strings.Join(parts, ":")
}
