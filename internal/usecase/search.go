package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/logging"
	"RegisterSync/internal/normalize"
	"RegisterSync/internal/ports"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 100
	snippetRunes       = 280

	noResultsMessage = "No documents found matching the criteria."
)

// SearchService answers canonical-store lookups with documents or a marker.
type SearchService struct {
	repo   ports.DocumentRepository
	logger *slog.Logger
}

// NewSearchService wires the canonical store.
func NewSearchService(repo ports.DocumentRepository, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SearchService{repo: repo, logger: logger}
}

// Search never returns an error value; failures become an error marker.
func (s *SearchService) Search(ctx context.Context, params domain.SearchParams) domain.SearchResponse {
	params, err := CleanSearchParams(params)
	if err != nil {
		return domain.SearchResponse{Status: domain.SearchError, Message: err.Error()}
	}

	docs, err := s.repo.Search(ctx, params)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		return domain.SearchResponse{
			Status:  domain.SearchError,
			Message: fmt.Sprintf("error searching documents: %v", err),
		}
	}
	if len(docs) == 0 {
		return domain.SearchResponse{Status: domain.SearchNoResults, Message: noResultsMessage}
	}

	hits := make([]domain.SearchHit, 0, len(docs))
	for _, d := range docs {
		source := d.Excerpts
		if source == "" {
			source = d.Abstract
		}
		hits = append(hits, domain.SearchHit{Document: d, Snippet: normalize.Snippet(source, snippetRunes)})
	}
	return domain.SearchResponse{Status: domain.SearchOK, Documents: hits}
}

// CleanSearchParams trims filters, validates dates and clamps the limit.
func CleanSearchParams(params domain.SearchParams) (domain.SearchParams, error) {
	params.Keywords = strings.TrimSpace(params.Keywords)
	params.DocumentType = strings.TrimSpace(params.DocumentType)
	params.AgencyName = strings.TrimSpace(params.AgencyName)
	params.StartDate = strings.TrimSpace(params.StartDate)
	params.EndDate = strings.TrimSpace(params.EndDate)

	for _, d := range []string{params.StartDate, params.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d); err != nil {
			return params, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", d)
		}
	}
	if params.StartDate != "" && params.EndDate != "" && params.StartDate > params.EndDate {
		return params, fmt.Errorf("start date %s is after end date %s", params.StartDate, params.EndDate)
	}

	switch {
	case params.Limit <= 0:
		params.Limit = defaultSearchLimit
	case params.Limit > maxSearchLimit:
		params.Limit = maxSearchLimit
	}
	return params, nil
}
