// Package httpapi exposes canonical-store search over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/infrastructure/storage"
	"RegisterSync/internal/logging"
	"RegisterSync/internal/metrics"
	"RegisterSync/internal/usecase"
)

// Searcher answers filtered lookups.
type Searcher interface {
	Search(ctx context.Context, params domain.SearchParams) domain.SearchResponse
}

// DocumentGetter loads one document by number.
type DocumentGetter interface {
	Get(ctx context.Context, number string) (domain.Document, error)
}

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type server struct {
	log    *slog.Logger
	search Searcher
	docs   DocumentGetter
	db     Pinger
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the chi router with health, search and metrics endpoints.
func NewRouter(search Searcher, docs DocumentGetter, db Pinger, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	srv := &server{log: logger, search: search, docs: docs, db: db}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/documents", srv.handleSearch)
	r.Get("/documents/{number}", srv.handleGet)
	r.Handle("/metrics", metrics.Handler())
	return r
}

// NewServer wraps the router with the listener timeouts used in production.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := domain.SearchParams{
		Keywords:     q.Get("q"),
		DocumentType: q.Get("type"),
		StartDate:    q.Get("start"),
		EndDate:      q.Get("end"),
		AgencyName:   q.Get("agency"),
		Limit:        parseLimit(q.Get("limit")),
	}
	if _, err := usecase.CleanSearchParams(params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	resp := s.search.Search(ctx, params)
	if resp.Status == domain.SearchError {
		s.log.Error("search failed", slog.String("message", resp.Message))
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimSpace(chi.URLParam(r, "number"))
	doc, err := s.docs.Get(r.Context(), number)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "document not found"})
	case err != nil:
		s.log.Error("get document", slog.String("number", number), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func parseLimit(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return 0
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
