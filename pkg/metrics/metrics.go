// Package metrics exposes the tap's Prometheus metrics over HTTP.
// The metrics themselves are declared with promauto next to the code that
// updates them (client, cache, pagination, engine).
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is where promauto registers every tap metric.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Server exposes Handler on a listener for the lifetime of a run.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr, e.g. ":9102" or "127.0.0.1:0".
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		srv: &http.Server{Handler: Handler(), ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.ln)
	}()

	log.Info().Str("addr", s.Addr()).Msg("Serving metrics")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Metrics reference
//
// Requests (pkg/client):
//   - coda_requests_total{status} (Counter)
//   - coda_request_duration_seconds (Histogram), retries included
//   - coda_errors_total{class} (Counter): auth, client, rate_limit, server, network
//   - coda_retries_total{error_class} (Counter)
//   - coda_retry_backoff_seconds{error_class} (Histogram)
//   - coda_retry_exhausted_total{error_class} (Counter)
//
// API description cache (pkg/cache):
//   - coda_cache_hits_total{state} (Counter): fresh or stale
//   - coda_cache_misses_total (Counter)
//   - coda_cache_revalidations_total (Counter): 304 answers to conditional requests
//   - coda_cache_errors_total{operation} (Counter)
//
// Pagination (pkg/pagination):
//   - coda_pages_fetched_total (Counter)
//   - coda_page_records (Histogram)
//
// Runs (pkg/engine):
//   - coda_records_emitted_total{stream} (Counter)
//   - coda_records_dropped_total{stream} (Counter)
//   - coda_stream_failures_total{stream, error_class} (Counter)
//   - coda_run_duration_seconds{outcome} (Histogram): success, partial, failed
//
// Example queries:
//
//   # Records per stream in the last hour
//   sum by (stream) (increase(coda_records_emitted_total[1h]))
//
//   # Retry pressure from rate limiting
//   rate(coda_retries_total{error_class="rate_limit"}[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(coda_request_duration_seconds_bucket[5m]))
