package pagination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/coda-tap/internal/testutil"
	"github.com/Sternrassler/coda-tap/pkg/client"
)

func newCodaFetcher(t *testing.T, mock *testutil.MockCoda) *Fetcher {
	t.Helper()

	cfg := client.DefaultConfig("test-token", "coda-tap-test/1.0")
	cfg.BaseURL = mock.URL()
	cfg.Retry = client.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	f, err := NewFetcher(c, DefaultConfig())
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}
	return f
}

func collect(t *testing.T, f *Fetcher, path string) ([]map[string]any, error) {
	t.Helper()
	var out []map[string]any
	for rec, err := range f.Records(context.Background(), path) {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func TestRecords_TwoPages(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()

	mock.SetPages("/docs",
		testutil.MockPage{Items: testutil.Items("doc", 100), Token: "T1"},
		testutil.MockPage{Items: testutil.Items("tail", 3)},
	)

	records, err := collect(t, newCodaFetcher(t, mock), "/docs")
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 103 {
		t.Errorf("got %d records, want 103", len(records))
	}

	reqs := mock.RequestsFor("/docs")
	if len(reqs) != 2 {
		t.Fatalf("got %d requests, want 2", len(reqs))
	}
	if reqs[0].Query.Get("limit") != "100" || reqs[0].Query.Has("pageToken") {
		t.Errorf("first request query = %v", reqs[0].Query)
	}
	if reqs[1].Query.Get("pageToken") != "T1" || reqs[1].Query.Get("limit") != "100" {
		t.Errorf("second request query = %v", reqs[1].Query)
	}
	if got := reqs[0].Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q", got)
	}

	if records[0]["id"] != "doc-0" || records[102]["id"] != "tail-2" {
		t.Errorf("records out of order: first=%v last=%v", records[0]["id"], records[102]["id"])
	}
}

func TestRecords_SinglePageWithoutToken(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	mock.SetPages("/docs", testutil.MockPage{Items: testutil.Items("doc", 3)})

	records, err := collect(t, newCodaFetcher(t, mock), "/docs")
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 3 || mock.GetRequestCount() != 1 {
		t.Errorf("records=%d requests=%d, want 3 and 1", len(records), mock.GetRequestCount())
	}
}

func TestRecords_EmptyCollection(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	mock.SetPages("/docs", testutil.MockPage{})

	records, err := collect(t, newCodaFetcher(t, mock), "/docs")
	if err != nil || len(records) != 0 {
		t.Errorf("Records() = %d, %v; want 0, nil", len(records), err)
	}
}

func TestRecords_FollowsTokensAcrossManyPages(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	mock.SetCollection("/docs/d1/tables/t1/rows", testutil.Items("row", 1234))

	records, err := collect(t, newCodaFetcher(t, mock), "/docs/d1/tables/t1/rows")
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 1234 {
		t.Errorf("got %d records, want 1234", len(records))
	}
	if n := mock.GetRequestCount(); n != 13 {
		t.Errorf("got %d requests, want 13", n)
	}
}

func TestRecords_HTTPError(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	mock.SetResponse("/docs/missing/pages", testutil.MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"statusCode":404,"message":"Doc not found"}`,
	})

	_, err := collect(t, newCodaFetcher(t, mock), "/docs/missing/pages")

	var he *client.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.StatusCode != 404 || !strings.Contains(he.Body, "Doc not found") {
		t.Errorf("HTTPError = %+v", he)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("fetcher must not retry, got %d requests", mock.GetRequestCount())
	}
}

func TestRecords_ErrorMidway(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	calls := 0
	mock.SetHandler("/docs", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"items":[{"id":"a"}],"nextPageToken":"T1"}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	records, err := collect(t, newCodaFetcher(t, mock), "/docs")
	if len(records) != 1 {
		t.Errorf("got %d records before error, want 1", len(records))
	}
	var he *client.HTTPError
	if !errors.As(err, &he) || !he.Fatal() {
		t.Errorf("expected fatal HTTPError, got %v", err)
	}
}

func TestRecords_EarlyStopIssuesNoMoreRequests(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	mock.SetCollection("/docs", testutil.Items("doc", 500))

	f := newCodaFetcher(t, mock)
	n := 0
	for _, err := range f.Records(context.Background(), "/docs") {
		if err != nil {
			t.Fatal(err)
		}
		n++
		if n == 150 {
			break
		}
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("got %d requests, want 2", mock.GetRequestCount())
	}
}

func TestRecords_Cancelled(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	mock.SetCollection("/docs", testutil.Items("doc", 500))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newCodaFetcher(t, mock)

	var gotErr error
	n := 0
	for _, err := range f.Records(ctx, "/docs") {
		if err != nil {
			gotErr = err
			break
		}
		n++
		if n == 100 {
			cancel()
		}
	}

	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", gotErr)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("no request should follow cancellation, got %d", mock.GetRequestCount())
	}
}

func TestRecords_RepeatedToken(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	mock.SetHandler("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":"a"}],"nextPageToken":"SAME"}`))
	})

	_, err := collect(t, newCodaFetcher(t, mock), "/docs")
	if !errors.Is(err, ErrRepeatedToken) {
		t.Errorf("expected ErrRepeatedToken, got %v", err)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("got %d requests, want 2", mock.GetRequestCount())
	}
}

func TestRecords_MalformedBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"item not an object", `{"items":[1,2]}`},
		{"numeric token", `{"items":[],"nextPageToken":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCoda()
			defer mock.Close()
			mock.SetResponse("/docs", testutil.MockResponse{StatusCode: 200, Body: tt.body})

			_, err := collect(t, newCodaFetcher(t, mock), "/docs")
			if !errors.Is(err, ErrMalformedPage) {
				t.Errorf("expected ErrMalformedPage, got %v", err)
			}
		})
	}
}

// tokenGetter hands out a fresh token for the first n pages, then none.
type tokenGetter struct {
	n     int
	calls int
	seen  []string
}

func (g *tokenGetter) Get(_ context.Context, path string, query url.Values) (*http.Response, error) {
	g.calls++
	g.seen = append(g.seen, query.Get("pageToken"))
	body := `{"items":[{"id":"x"}]}`
	if g.calls <= g.n {
		body = fmt.Sprintf(`{"items":[{"id":"x"}],"nextPageToken":"tok-%d"}`, g.calls)
	}
	return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestRecords_TerminatesWhenTokenDisappears(t *testing.T) {
	g := &tokenGetter{n: 50}
	f, err := NewFetcher(g, Config{})
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	for _, err := range f.Records(context.Background(), "/anything") {
		if err != nil {
			t.Fatal(err)
		}
		count++
	}

	if count != 51 || g.calls != 51 {
		t.Errorf("records=%d calls=%d, want 51 each", count, g.calls)
	}
	if g.seen[0] != "" || g.seen[1] != "tok-1" || g.seen[50] != "tok-50" {
		t.Errorf("tokens sent = %v", g.seen[:3])
	}
}

func TestRecords_MaxPages(t *testing.T) {
	g := &tokenGetter{n: 1000}
	f, err := NewFetcher(g, Config{MaxPages: 5})
	if err != nil {
		t.Fatal(err)
	}

	var gotErr error
	for _, err := range f.Records(context.Background(), "/anything") {
		if err != nil {
			gotErr = err
		}
	}
	if !errors.Is(gotErr, ErrTooManyPages) || g.calls != 5 {
		t.Errorf("err=%v calls=%d", gotErr, g.calls)
	}
}

func TestNewFetcher_Validation(t *testing.T) {
	if _, err := NewFetcher(nil, DefaultConfig()); err == nil {
		t.Error("expected error for nil getter")
	}
	if _, err := NewFetcher(&tokenGetter{}, Config{RecordsPath: "$.items["}); err == nil {
		t.Error("expected error for invalid JSONPath")
	}
}

func TestFetchPage_CustomPaths(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	mock.SetResponse("/v2/things", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"data":{"results":[{"id":"a"},{"id":"b"}]},"meta":{"cursor":"C2"}}`,
	})

	cfg := client.DefaultConfig("t", "ua")
	cfg.BaseURL = mock.URL()
	c, _ := client.New(cfg)

	f, err := NewFetcher(c, Config{RecordsPath: "$.data.results[*]", TokenPath: "$.meta.cursor", TokenParam: "cursor"})
	if err != nil {
		t.Fatal(err)
	}

	page, err := f.FetchPage(context.Background(), "/v2/things", "C1")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Records) != 2 || page.NextToken != "C2" || !page.HasMore() {
		t.Errorf("page = %+v", page)
	}
	if q := mock.RequestsFor("/v2/things")[0].Query; q.Get("cursor") != "C1" || q.Get("limit") != "100" {
		t.Errorf("query = %v", q)
	}
}

func TestFetchPage_RejectsNonSuccessStatus(t *testing.T) {
	mock := testutil.NewMockCoda()
	defer mock.Close()
	mock.SetResponse("/docs", testutil.MockResponse{
		StatusCode: http.StatusMultipleChoices,
		Body:       `{"message":"multiple choices"}`,
	})

	_, err := newCodaFetcher(t, mock).FetchPage(context.Background(), "/docs", "")

	var he *client.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *client.HTTPError, got %v", err)
	}
	if he.StatusCode != http.StatusMultipleChoices || he.ErrorClass != client.ErrorClassClient {
		t.Errorf("status=%d class=%q", he.StatusCode, he.ErrorClass)
	}
	if !strings.Contains(he.Body, "multiple choices") {
		t.Errorf("body = %q", he.Body)
	}
}

// statusGetter answers every request with a fixed status and body.
type statusGetter struct {
	status int
	body   string
}

func (g statusGetter) Get(_ context.Context, _ string, _ url.Values) (*http.Response, error) {
	return &http.Response{StatusCode: g.status, Body: io.NopCloser(strings.NewReader(g.body))}, nil
}

func TestRecords_NonSuccessStatusEndsSequence(t *testing.T) {
	for _, status := range []int{http.StatusMultipleChoices, http.StatusNotModified, http.StatusNotFound} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			f, err := NewFetcher(statusGetter{status: status, body: `{"items":[{"id":"x"}]}`}, Config{})
			if err != nil {
				t.Fatal(err)
			}

			records, err := collect(t, f, "/anything")
			var he *client.HTTPError
			if !errors.As(err, &he) || he.StatusCode != status {
				t.Fatalf("expected HTTPError %d, got %v", status, err)
			}
			if len(records) != 0 {
				t.Errorf("got %d records from a %d page", len(records), status)
			}
		})
	}
}
