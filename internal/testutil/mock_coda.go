// Package testutil provides testing utilities for the Coda tap.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// DescriptionPath is where the mock serves the API description.
const DescriptionPath = "/openapi.json"

// MockResponse defines a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockPage is one page of an explicitly paginated collection. Token is the
// continuation token returned with the page; empty ends the collection.
type MockPage struct {
	Items []map[string]any
	Token string
}

// RecordedRequest is one request seen by the mock.
type RecordedRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// MockCoda is a configurable mock Coda API server for testing.
type MockCoda struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockCoda creates a new mock Coda server.
func NewMockCoda() *MockCoda {
	mock := &MockCoda{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"statusCode":404,"statusMessage":"Not Found","message":"no such path %s"}`, r.URL.Path)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCoda) URL() string {
	return m.server.URL
}

// DescriptionURL returns the URL of the served API description.
func (m *MockCoda) DescriptionURL() string {
	return m.server.URL + DescriptionPath
}

// Close shuts down the mock server.
func (m *MockCoda) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockCoda) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCoda) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockCoda) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetDescription serves doc as the API description.
func (m *MockCoda) SetDescription(doc string) {
	m.SetResponse(DescriptionPath, MockResponse{
		StatusCode: http.StatusOK,
		Body:       doc,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// SetPages serves explicit pages for path. The first page answers a request
// without pageToken; page i answers the token carried by page i-1.
func (m *MockCoda) SetPages(path string, pages ...MockPage) {
	byToken := make(map[string]int, len(pages))
	for i := 1; i < len(pages); i++ {
		byToken[pages[i-1].Token] = i
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			i, ok := byToken[tok]
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]any{"message": "unknown pageToken " + tok})
				return
			}
			idx = i
		}
		writePage(w, pages[idx].Items, pages[idx].Token)
	})
}

// SetCollection serves items for path, split into pages by the request's
// limit parameter. Tokens are opaque offsets.
func (m *MockCoda) SetCollection(path string, items []map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = 25
		}
		offset := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			offset, err = strconv.Atoi(strings.TrimPrefix(tok, "offset-"))
			if err != nil || offset < 0 || offset > len(items) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad pageToken"})
				return
			}
		}

		end := offset + limit
		if end > len(items) {
			end = len(items)
		}
		next := ""
		if end < len(items) {
			next = "offset-" + strconv.Itoa(end)
		}
		writePage(w, items[offset:end], next)
	})
}

// Requests returns a copy of every recorded request.
func (m *MockCoda) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsFor returns the recorded requests for one path.
func (m *MockCoda) RequestsFor(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range m.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCoda) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Items builds n records {"id": prefix-i, "name": ...}.
func Items(prefix string, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"id":   fmt.Sprintf("%s-%d", prefix, i),
			"name": fmt.Sprintf("%s %d", prefix, i),
		}
	}
	return out
}

func writePage(w http.ResponseWriter, items []map[string]any, token string) {
	body := map[string]any{"items": items}
	if items == nil {
		body["items"] = []map[string]any{}
	}
	if token != "" {
		body["nextPageToken"] = token
		body["nextPageLink"] = "https://coda.io/apis/v1/next?pageToken=" + url.QueryEscape(token)
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
