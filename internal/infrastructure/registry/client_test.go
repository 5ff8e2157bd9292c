package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"RegisterSync/internal/domain"
)

var testDay = time.Date(2024, time.March, 5, 15, 0, 0, 0, time.UTC)

func pageJSON(page, perPage, total, totalPages int) string {
	n := perPage
	if rest := total - (page-1)*perPage; rest < n {
		n = rest
	}
	if n < 0 {
		n = 0
	}
	records := make([]string, n)
	for i := range records {
		records[i] = fmt.Sprintf(`{"document_number":"%d-%d"}`, page, i)
	}
	return fmt.Sprintf(`{"count":%d,"total_pages":%d,"results":[%s]}`, total, totalPages, strings.Join(records, ","))
}

func newTestSession(t *testing.T, server *httptest.Server, perPage int) *Session {
	t.Helper()
	return NewSession(server.Client(), Options{
		BaseURL:   server.URL + "/api/v1/documents.json",
		UserAgent: "RegisterSync/test",
		PerPage:   perPage,
		Timeout:   2 * time.Second,
	}, nil)
}

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	u, err := buildPageURL("https://www.federalregister.gov/api/v1/documents.json", "2024-03-05", 3, 1000)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed.Host != "www.federalregister.gov" || parsed.Path != "/api/v1/documents.json" {
		t.Fatalf("unexpected url: %s", u)
	}

	q := parsed.Query()
	if q.Get("conditions[publication_date][is]") != "2024-03-05" {
		t.Fatalf("unexpected date param: %q", q.Get("conditions[publication_date][is]"))
	}
	if q.Get("per_page") != "1000" || q.Get("page") != "3" {
		t.Fatalf("unexpected paging params: %s", parsed.RawQuery)
	}
}

func TestFetchSnapshotPaginates(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("User-Agent") != "RegisterSync/test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(pageJSON(page, 1000, 2400, 3)))
	}))
	defer server.Close()

	snap := newTestSession(t, server, 1000).FetchSnapshot(context.Background(), testDay)

	if snap.Status != domain.SnapshotComplete || snap.Err != nil {
		t.Fatalf("expected complete snapshot, got %s (%v)", snap.Status, snap.Err)
	}
	if snap.Date != "2024-03-05" {
		t.Fatalf("unexpected date: %s", snap.Date)
	}
	if snap.Count != 2400 || len(snap.Results) != 2400 {
		t.Fatalf("expected 2400 records, got count=%d len=%d", snap.Count, len(snap.Results))
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("expected exactly 3 requests, got %d", got)
	}
	if string(snap.Results[0]) != `{"document_number":"1-0"}` {
		t.Fatalf("records not preserved in order: %s", snap.Results[0])
	}
	if string(snap.Results[2399]) != `{"document_number":"3-399"}` {
		t.Fatalf("last record out of order: %s", snap.Results[2399])
	}
}

func TestFetchSnapshotTotalPagesReadOnce(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		// Later pages advertise more pages; only the first answer counts.
		totalPages := 2
		if page > 1 {
			totalPages = 50
		}
		_, _ = w.Write([]byte(pageJSON(page, 2, 4, totalPages)))
	}))
	defer server.Close()

	snap := newTestSession(t, server, 2).FetchSnapshot(context.Background(), testDay)
	if snap.Count != 4 {
		t.Fatalf("expected 4 records, got %d", snap.Count)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestFetchSnapshotZeroPagesStops(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"count":0,"total_pages":0,"results":[]}`))
	}))
	defer server.Close()

	snap := newTestSession(t, server, 1000).FetchSnapshot(context.Background(), testDay)
	if snap.Count != 0 || snap.Status != domain.SnapshotComplete {
		t.Fatalf("expected empty complete snapshot, got count=%d status=%s", snap.Count, snap.Status)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected a single request, got %d", got)
	}
}

func TestFetchSnapshotStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{"total_pages":5,"results":[{"document_number":"a"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"total_pages":5,"results":[]}`))
	}))
	defer server.Close()

	snap := newTestSession(t, server, 1).FetchSnapshot(context.Background(), testDay)
	if snap.Count != 1 || snap.Partial() {
		t.Fatalf("expected 1 record complete, got %d partial=%v", snap.Count, snap.Partial())
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestFetchSnapshotMissingTotalPagesMeansOne(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"results":[{"document_number":"a"},{"document_number":"b"}]}`))
	}))
	defer server.Close()

	snap := newTestSession(t, server, 2).FetchSnapshot(context.Background(), testDay)
	if snap.Count != 2 || requests.Load() != 1 {
		t.Fatalf("expected 2 records in 1 request, got %d in %d", snap.Count, requests.Load())
	}
}

func TestFetchSnapshotPartialOnServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(pageJSON(page, 1000, 2400, 3)))
	}))
	defer server.Close()

	snap := newTestSession(t, server, 1000).FetchSnapshot(context.Background(), testDay)
	if !snap.Partial() {
		t.Fatalf("expected partial snapshot")
	}
	if snap.Count != 1000 {
		t.Fatalf("expected first page kept, got %d", snap.Count)
	}

	var pageErr *PageError
	if !errors.As(snap.Err, &pageErr) {
		t.Fatalf("expected PageError, got %T", snap.Err)
	}
	if pageErr.Page != 2 || pageErr.Kind != KindHTTP || !errors.Is(snap.Err, ErrStatus) {
		t.Fatalf("unexpected page error: %+v", pageErr)
	}
}

func TestFetchSnapshotAcceptsAnySuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = w.Write([]byte(`{"total_pages":1,"results":[{"document_number":"a"}]}`))
	}))
	defer server.Close()

	snap := newTestSession(t, server, 1000).FetchSnapshot(context.Background(), testDay)
	if snap.Partial() || snap.Count != 1 {
		t.Fatalf("expected complete snapshot with 1 record, got %+v", snap)
	}
}

func TestFetchSnapshotClientErrorIsPartial(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad conditions", http.StatusBadRequest)
	}))
	defer server.Close()

	snap := newTestSession(t, server, 1000).FetchSnapshot(context.Background(), testDay)
	var pageErr *PageError
	if !errors.As(snap.Err, &pageErr) || pageErr.Kind != KindHTTP || pageErr.Page != 1 {
		t.Fatalf("expected http failure on page 1, got %+v", snap.Err)
	}
}

func TestFetchSnapshotNullBodyIsPartial(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer server.Close()

	snap := newTestSession(t, server, 1000).FetchSnapshot(context.Background(), testDay)
	if !snap.Partial() || snap.Count != 0 || !errors.Is(snap.Err, ErrEmptyResponse) {
		t.Fatalf("expected empty partial snapshot, got %+v", snap)
	}
}

func TestFetchSnapshotMalformedBodyIsPartial(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	snap := newTestSession(t, server, 1000).FetchSnapshot(context.Background(), testDay)
	var pageErr *PageError
	if !errors.As(snap.Err, &pageErr) || pageErr.Kind != KindDecode {
		t.Fatalf("expected decode failure, got %v", snap.Err)
	}
}

func TestFetchSnapshotTimeoutIsPartial(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(pageJSON(1, 1, 2, 2)))
	}))
	defer server.Close()

	client := server.Client()
	client.Timeout = 100 * time.Millisecond
	session := NewSession(client, Options{BaseURL: server.URL, PerPage: 1}, nil)

	snap := session.FetchSnapshot(context.Background(), testDay)
	var pageErr *PageError
	if !errors.As(snap.Err, &pageErr) || pageErr.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %v", snap.Err)
	}
	if snap.Count != 1 {
		t.Fatalf("expected first page kept, got %d", snap.Count)
	}
}

func TestFetchSnapshotWaitsBetweenPages(t *testing.T) {
	t.Parallel()

	var last atomic.Int64
	var minGap atomic.Int64
	minGap.Store(int64(time.Hour))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UnixNano()
		if prev := last.Swap(now); prev != 0 && now-prev < minGap.Load() {
			minGap.Store(now - prev)
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(pageJSON(page, 1, 3, 3)))
	}))
	defer server.Close()

	session := NewSession(server.Client(), Options{BaseURL: server.URL, PerPage: 1, PageDelay: 30 * time.Millisecond}, nil)
	snap := session.FetchSnapshot(context.Background(), testDay)
	if snap.Count != 3 {
		t.Fatalf("expected 3 records, got %d", snap.Count)
	}
	if time.Duration(minGap.Load()) < 30*time.Millisecond {
		t.Fatalf("pages requested %v apart, want at least 30ms", time.Duration(minGap.Load()))
	}
}

func TestOpenRejectsInvalidBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewOpener(Options{BaseURL: "not a url"}, nil).Open(context.Background())
	if !errors.Is(err, ErrBaseURL) {
		t.Fatalf("expected ErrBaseURL, got %v", err)
	}
}
