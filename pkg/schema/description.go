package schema

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/coda-tap/pkg/cache"
	"github.com/Sternrassler/coda-tap/pkg/client"
)

// DefaultDescriptionURL is where Coda publishes its OpenAPI document.
const DefaultDescriptionURL = "https://coda.io/apis/v1/openapi.json"

// Doer executes HTTP requests. *client.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Store persists the description between runs. *cache.Manager satisfies it.
type Store interface {
	Get(ctx context.Context, key cache.Key) (*cache.Entry, error)
	Set(ctx context.Context, key cache.Key, entry *cache.Entry) error
	Refresh(ctx context.Context, key cache.Key, newExpires time.Time) error
}

// Loader downloads the API description, optionally through a Store.
type Loader struct {
	doer   Doer
	url    string
	store  Store
	logger zerolog.Logger
}

// NewLoader creates a loader for the description at url. store may be nil.
func NewLoader(doer Doer, url string, store Store) *Loader {
	if url == "" {
		url = DefaultDescriptionURL
	}
	return &Loader{
		doer:   doer,
		url:    url,
		store:  store,
		logger: log.With().Str("component", "description-loader").Logger(),
	}
}

// Load returns the parsed description document. A fresh cached copy is
// used as is; a stale one is revalidated with a conditional request.
func (l *Loader) Load(ctx context.Context) (map[string]any, error) {
	key := cache.Key{Namespace: "openapi", URL: l.url}

	var cached *cache.Entry
	if l.store != nil {
		entry, err := l.store.Get(ctx, key)
		switch {
		case err == nil:
			cached = entry
		case errors.Is(err, cache.ErrCacheMiss):
		default:
			l.logger.Warn().Err(err).Msg("Description cache read failed, downloading")
		}
	}

	if cached != nil && !cached.IsExpired() {
		l.logger.Debug().Str("url", l.url).Dur("ttl", cached.TTL()).Msg("Using cached API description")
		return parseDocument(cached.Data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create description request: %w", err)
	}
	if cached != nil && cached.CanRevalidate() {
		cache.AddConditionalHeaders(req, cached)
	}

	resp, err := l.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch api description: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		l.logger.Info().Str("url", l.url).Msg("API description not modified")
		if err := l.store.Refresh(ctx, key, cache.Freshness(resp.Header)); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to refresh cached description")
		}
		return parseDocument(cached.Data)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch api description: %w", client.NewHTTPError(resp))
	}

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, fmt.Errorf("read api description: %w", err)
	}

	doc, err := parseDocument(entry.Data)
	if err != nil {
		return nil, err
	}

	if l.store != nil {
		if err := l.store.Set(ctx, key, entry); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to cache API description")
		}
	}

	l.logger.Info().
		Str("url", l.url).
		Int("bytes", len(entry.Data)).
		Msg("Downloaded API description")

	return doc, nil
}

func parseDocument(data []byte) (map[string]any, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse api description: %w", err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse api description: top level is %T, not an object", v)
	}
	return doc, nil
}
