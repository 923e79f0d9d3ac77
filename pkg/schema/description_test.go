package schema

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/coda-tap/pkg/cache"
	"github.com/Sternrassler/coda-tap/pkg/client"
)

type memoryStore struct {
	entries   map[string]*cache.Entry
	refreshed int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]*cache.Entry)}
}

func (m *memoryStore) Get(_ context.Context, key cache.Key) (*cache.Entry, error) {
	e, ok := m.entries[key.String()]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *e
	return &cp, nil
}

func (m *memoryStore) Set(_ context.Context, key cache.Key, entry *cache.Entry) error {
	m.entries[key.String()] = entry
	return nil
}

func (m *memoryStore) Refresh(_ context.Context, key cache.Key, newExpires time.Time) error {
	m.refreshed++
	m.entries[key.String()].Expires = newExpires
	return nil
}

func descriptionServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.Header().Set("Cache-Control", "max-age=300")
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "max-age=300")
		w.Write([]byte(testDescription))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoader_DownloadsAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := descriptionServer(t, &calls)
	store := newMemoryStore()

	doc, err := NewLoader(http.DefaultClient, srv.URL+"/openapi.json", store).Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, doc, "components")
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, store.entries, 1)

	// second load is served from the fresh cache entry
	_, err = NewLoader(http.DefaultClient, srv.URL+"/openapi.json", store).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoader_RevalidatesStaleEntry(t *testing.T) {
	var calls atomic.Int32
	srv := descriptionServer(t, &calls)
	url := srv.URL + "/openapi.json"

	store := newMemoryStore()
	key := cache.Key{Namespace: "openapi", URL: url}
	store.entries[key.String()] = &cache.Entry{
		Data:    []byte(testDescription),
		ETag:    `"v1"`,
		Expires: time.Now().Add(-time.Minute),
	}

	doc, err := NewLoader(http.DefaultClient, url, store).Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, doc, "components")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, store.refreshed)
	assert.False(t, store.entries[key.String()].IsExpired())
}

func TestLoader_WithoutStore(t *testing.T) {
	var calls atomic.Int32
	srv := descriptionServer(t, &calls)

	doc, err := NewLoader(http.DefaultClient, srv.URL, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", doc["openapi"])
}

func TestLoader_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewLoader(http.DefaultClient, srv.URL, nil).Load(context.Background())
	var he *client.HTTPError
	require.True(t, errors.As(err, &he), "expected HTTPError, got %v", err)
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
}

func TestLoader_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1,2,3]`))
	}))
	defer srv.Close()

	_, err := NewLoader(http.DefaultClient, srv.URL, nil).Load(context.Background())
	assert.ErrorContains(t, err, "not an object")
}

func TestNewLoader_DefaultURL(t *testing.T) {
	l := NewLoader(http.DefaultClient, "", nil)
	assert.Equal(t, DefaultDescriptionURL, l.url)
}
