package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/logging"
	"RegisterSync/internal/metrics"
	"RegisterSync/internal/normalize"
	"RegisterSync/internal/ports"
)

type fileOutcome int

const (
	fileMerged fileOutcome = iota
	fileSkipped
	fileFailed
)

func (o fileOutcome) String() string {
	switch o {
	case fileMerged:
		return "merged"
	case fileSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// FileSetProcessor merges every raw artifact into the canonical store.
type FileSetProcessor struct {
	store  ports.SnapshotStore
	repo   ports.DocumentRepository
	logger *slog.Logger
}

// NewFileSetProcessor wires the raw area to the canonical store.
func NewFileSetProcessor(store ports.SnapshotStore, repo ports.DocumentRepository, logger *slog.Logger) *FileSetProcessor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &FileSetProcessor{store: store, repo: repo, logger: logger}
}

// Run processes artifacts in name order. Failing files are logged and
// skipped; only an unusable store or raw area is returned as an error.
func (p *FileSetProcessor) Run(ctx context.Context) (domain.ProcessReport, error) {
	if err := p.repo.EnsureSchema(ctx); err != nil {
		return domain.ProcessReport{}, fmt.Errorf("prepare canonical store: %w", err)
	}

	names, err := p.store.List(ctx)
	if err != nil {
		return domain.ProcessReport{}, fmt.Errorf("list raw artifacts: %w", err)
	}
	p.logger.Info("process started", "files", len(names))

	var report domain.ProcessReport
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("process interrupted: %w", err)
		}

		outcome, submitted := p.processFile(ctx, name)
		metrics.ProcessFiles.WithLabelValues(outcome.String()).Inc()
		switch outcome {
		case fileSkipped:
			report.Skipped++
		case fileFailed:
			report.Failed++
		case fileMerged:
			if submitted > 0 {
				report.Files++
				report.Documents += submitted
				metrics.DocumentsSubmitted.Add(float64(submitted))
			}
		}
	}

	p.logger.Info("process finished",
		"documents", report.Documents,
		"files", report.Files,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}

type artifact struct {
	Date    string          `json:"date"`
	Results json.RawMessage `json:"results"`
}

func (p *FileSetProcessor) processFile(ctx context.Context, name string) (fileOutcome, int) {
	logger := p.logger.With("file", name)

	raw, err := p.store.Load(ctx, name)
	if err != nil {
		logger.Error("read artifact failed", "error", err)
		return fileFailed, 0
	}

	var top json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		logger.Error("parse artifact failed", "error", err)
		return fileFailed, 0
	}
	if !bytes.HasPrefix(bytes.TrimSpace(top), []byte("{")) {
		logger.Warn("artifact is not an object, skipping")
		return fileSkipped, 0
	}

	var art artifact
	if err := json.Unmarshal(top, &art); err != nil {
		logger.Error("parse artifact failed", "error", err)
		return fileFailed, 0
	}

	var records []json.RawMessage
	if len(art.Results) > 0 {
		if err := json.Unmarshal(art.Results, &records); err != nil {
			logger.Warn("results is not a list, skipping", "error", err)
			return fileSkipped, 0
		}
	}
	if len(records) == 0 {
		logger.Info("no results, skipping")
		return fileSkipped, 0
	}

	docs := make([]domain.Document, 0, len(records))
	for i, rec := range records {
		doc, err := normalize.Decode(rec)
		if err != nil {
			logger.Warn("record dropped", "index", i, "error", err)
			continue
		}
		if doc.DocumentNumber == "" {
			logger.Warn("record without document_number dropped", "index", i)
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		logger.Warn("no keyed records, skipping", "records", len(records))
		return fileSkipped, 0
	}

	res, err := p.repo.UpsertDocuments(ctx, docs)
	if err != nil {
		logger.Error("upsert failed", "documents", len(docs), "error", err)
		return fileFailed, 0
	}

	logger.Info("artifact merged", "submitted", res.Submitted, "rows_affected", res.RowsAffected)
	return fileMerged, res.Submitted
}
