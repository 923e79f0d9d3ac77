package pagination

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/coda-tap/pkg/client"
)

// DefaultPageSize is the limit sent with every request.
const DefaultPageSize = 100

var (
	// ErrRepeatedToken is returned when the API hands back the token it was
	// just given, which would otherwise loop forever.
	ErrRepeatedToken = errors.New("continuation token repeated")

	// ErrTooManyPages is returned when Config.MaxPages is exceeded.
	ErrTooManyPages = errors.New("page limit exceeded")

	// ErrMalformedPage is returned when a page body has the wrong shape.
	ErrMalformedPage = errors.New("malformed page")
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coda_pages_fetched_total",
		Help: "Total number of pages fetched",
	})

	pageRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coda_page_records",
		Help:    "Number of records per fetched page",
		Buckets: []float64{0, 1, 10, 25, 50, 75, 100},
	})
)

// Config holds fetcher configuration.
type Config struct {
	// PageSize is sent as LimitParam on every request.
	PageSize int

	// RecordsPath is a JSONPath selecting the items of a page.
	RecordsPath string

	// TokenPath is a JSONPath selecting the continuation token.
	TokenPath string

	// LimitParam and TokenParam name the query parameters.
	LimitParam string
	TokenParam string

	// MaxPages bounds the pages fetched for one path. Zero means unbounded.
	MaxPages int
}

// DefaultConfig returns the configuration for the Coda API.
func DefaultConfig() Config {
	return Config{
		PageSize:    DefaultPageSize,
		RecordsPath: "$.items[*]",
		TokenPath:   "$.nextPageToken",
		LimitParam:  "limit",
		TokenParam:  "pageToken",
	}
}

// Getter issues GET requests relative to the API root. *client.Client
// satisfies it.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (*http.Response, error)
}

// Page is one fetch result.
type Page struct {
	Records   []map[string]any
	NextToken string
}

// HasMore reports whether another page follows.
func (p *Page) HasMore() bool {
	return p.NextToken != ""
}

// Fetcher fetches token-paginated collections.
type Fetcher struct {
	getter      Getter
	config      Config
	recordsExpr jp.Expr
	tokenExpr   jp.Expr
	logger      zerolog.Logger
}

// NewFetcher creates a fetcher. Zero fields of cfg take their defaults.
func NewFetcher(getter Getter, cfg Config) (*Fetcher, error) {
	if getter == nil {
		return nil, fmt.Errorf("getter is required")
	}

	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.RecordsPath == "" {
		cfg.RecordsPath = def.RecordsPath
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = def.TokenPath
	}
	if cfg.LimitParam == "" {
		cfg.LimitParam = def.LimitParam
	}
	if cfg.TokenParam == "" {
		cfg.TokenParam = def.TokenParam
	}

	recordsExpr, err := jp.ParseString(cfg.RecordsPath)
	if err != nil {
		return nil, fmt.Errorf("invalid records path '%s': %w", cfg.RecordsPath, err)
	}
	tokenExpr, err := jp.ParseString(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("invalid token path '%s': %w", cfg.TokenPath, err)
	}

	return &Fetcher{
		getter:      getter,
		config:      cfg,
		recordsExpr: recordsExpr,
		tokenExpr:   tokenExpr,
		logger:      log.With().Str("component", "paginator").Logger(),
	}, nil
}

// FetchPage fetches one page of path, continuing from token when non-empty.
func (f *Fetcher) FetchPage(ctx context.Context, path, token string) (*Page, error) {
	query := url.Values{}
	query.Set(f.config.LimitParam, strconv.Itoa(f.config.PageSize))
	if token != "" {
		query.Set(f.config.TokenParam, token)
	}

	resp, err := f.getter.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, client.NewHTTPError(resp)
	}
	defer resp.Body.Close()

	data, err := oj.Load(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPage, path, err)
	}

	items := f.recordsExpr.Get(data)
	page := &Page{Records: make([]map[string]any, 0, len(items))}
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s: item %d is %T", ErrMalformedPage, path, i, item)
		}
		page.Records = append(page.Records, rec)
	}

	switch tok := f.tokenExpr.First(data).(type) {
	case nil:
	case string:
		page.NextToken = tok
	default:
		return nil, fmt.Errorf("%w: %s: token is %T", ErrMalformedPage, path, tok)
	}

	pagesFetchedTotal.Inc()
	pageRecords.Observe(float64(len(page.Records)))

	return page, nil
}

// Records returns every record of path, page by page. The sequence ends
// after the first page without a continuation token, or with an error.
func (f *Fetcher) Records(ctx context.Context, path string) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		token := ""
		for pageNum := 1; ; pageNum++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if f.config.MaxPages > 0 && pageNum > f.config.MaxPages {
				yield(nil, fmt.Errorf("%w: %s after %d pages", ErrTooManyPages, path, f.config.MaxPages))
				return
			}

			page, err := f.FetchPage(ctx, path, token)
			if err != nil {
				yield(nil, err)
				return
			}

			f.logger.Debug().
				Str("path", path).
				Int("page", pageNum).
				Int("records", len(page.Records)).
				Bool("has_more", page.HasMore()).
				Msg("Fetched page")

			for _, rec := range page.Records {
				if !yield(rec, nil) {
					return
				}
			}

			if !page.HasMore() {
				return
			}
			if page.NextToken == token {
				yield(nil, fmt.Errorf("%w: %s: %q", ErrRepeatedToken, path, token))
				return
			}
			token = page.NextToken
		}
	}
}
