package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/logging"
	"RegisterSync/internal/metrics"
	"RegisterSync/internal/ports"
)

const (
	dateLayout = "2006-01-02"
	dateParam  = "conditions[publication_date][is]"
)

// Options configures how pages are requested.
type Options struct {
	BaseURL   string
	UserAgent string
	PerPage   int
	Timeout   time.Duration
	PageDelay time.Duration
}

// Opener creates one HTTP session per fetch run.
type Opener struct {
	opts   Options
	logger *slog.Logger
}

var _ ports.RegistryOpener = (*Opener)(nil)

// NewOpener wires paging options; a zero PerPage defaults to 1000.
func NewOpener(opts Options, logger *slog.Logger) *Opener {
	if opts.PerPage <= 0 {
		opts.PerPage = 1000
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Opener{opts: opts, logger: logger}
}

// Open validates the endpoint and returns a session owning a fresh HTTP client.
func (o *Opener) Open(ctx context.Context) (ports.RegistrySession, error) {
	parsed, err := url.Parse(o.opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, o.opts.BaseURL)
	}

	client := &http.Client{Timeout: o.opts.Timeout}
	return NewSession(client, o.opts, o.logger), nil
}

// Session fetches daily snapshots over a shared HTTP client.
type Session struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

var _ ports.RegistrySession = (*Session)(nil)

// NewSession wraps an existing client.
func NewSession(client *http.Client, opts Options, logger *slog.Logger) *Session {
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 1000
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{client: client, opts: opts, logger: logger}
}

// Close releases idle connections held by the session.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}

type pageBody struct {
	Count      int               `json:"count"`
	TotalPages *int              `json:"total_pages"`
	Results    []json.RawMessage `json:"results"`
}

// FetchSnapshot walks every page for one publication date. It never fails:
// on error it returns what was accumulated with Status set to partial.
func (s *Session) FetchSnapshot(ctx context.Context, day time.Time) domain.Snapshot {
	date := day.Format(dateLayout)
	logger := s.logger.With("date", date)

	snap := domain.Snapshot{
		Date:    date,
		Status:  domain.SnapshotComplete,
		Results: []json.RawMessage{},
	}

	totalPages := 1
	for page := 1; ; page++ {
		if page > 1 {
			if err := sleep(ctx, s.opts.PageDelay); err != nil {
				return s.partial(logger, snap, &PageError{Page: page, Kind: KindCanceled, Err: err})
			}
		}

		body, err := s.fetchPage(ctx, date, page)
		if err != nil {
			kind := classify(ctx, err)
			metrics.RegistryPages.WithLabelValues(kind).Inc()
			return s.partial(logger, snap, &PageError{Page: page, Kind: kind, Err: err})
		}
		metrics.RegistryPages.WithLabelValues("ok").Inc()

		if page == 1 {
			if body.TotalPages != nil {
				totalPages = *body.TotalPages
			}
			if totalPages == 0 && len(body.Results) == 0 {
				logger.Info("no documents published")
				break
			}
		}

		snap.Pages = page
		logger.Debug("page fetched", "page", page, "total_pages", totalPages, "records", len(body.Results))

		if len(body.Results) == 0 {
			break
		}
		snap.Results = append(snap.Results, body.Results...)
		snap.Count = len(snap.Results)

		if page >= totalPages {
			break
		}
	}

	logger.Info("snapshot fetched", "count", snap.Count, "pages", snap.Pages)
	return snap
}

func (s *Session) partial(logger *slog.Logger, snap domain.Snapshot, err *PageError) domain.Snapshot {
	snap.Status = domain.SnapshotPartial
	snap.Err = err
	snap.Count = len(snap.Results)
	logger.Warn("fetch stopped early", "page", err.Page, "kind", err.Kind, "kept", snap.Count, "error", err.Err)
	return snap
}

func (s *Session) fetchPage(ctx context.Context, date string, page int) (*pageBody, error) {
	pageURL, err := buildPageURL(s.opts.BaseURL, date, page, s.opts.PerPage)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := s.client.Do(req)
	metrics.RegistryPageSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	var body *pageBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyResponse
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if body == nil {
		return nil, ErrEmptyResponse
	}

	return body, nil
}

func buildPageURL(base, date string, page, perPage int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBaseURL, err)
	}

	query := parsed.Query()
	query.Set(dateParam, date)
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
