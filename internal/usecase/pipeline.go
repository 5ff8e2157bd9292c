package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/logging"
	"RegisterSync/internal/metrics"
	"RegisterSync/internal/ports"
)

// FetchPhase downloads the trailing window into the raw area.
type FetchPhase interface {
	Run(ctx context.Context, windowDays int) (domain.FetchReport, error)
}

// ProcessPhase merges the raw area into the canonical store.
type ProcessPhase interface {
	Run(ctx context.Context) (domain.ProcessReport, error)
}

// PipelineDeps wires both phases and optional notification into the pipeline.
type PipelineDeps struct {
	Fetcher    FetchPhase
	Processor  ProcessPhase
	Notifier   ports.Notifier
	WindowDays int
	Logger     *slog.Logger
}

// Pipeline runs fetch then process, never interleaving them.
type Pipeline struct {
	fetcher    FetchPhase
	processor  ProcessPhase
	notifier   ports.Notifier
	windowDays int
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Pipeline{
		fetcher:    deps.Fetcher,
		processor:  deps.Processor,
		notifier:   deps.Notifier,
		windowDays: deps.WindowDays,
		logger:     deps.Logger,
	}
}

// WindowDays is the default window used by RunFull.
func (p *Pipeline) WindowDays() int {
	return p.windowDays
}

// RunFull executes both phases with the configured window.
func (p *Pipeline) RunFull(ctx context.Context) (domain.RunReport, error) {
	return p.Run(ctx, p.windowDays)
}

// Run executes fetch to completion, then process. A setup failure in
// either phase aborts the run.
func (p *Pipeline) Run(ctx context.Context, windowDays int) (domain.RunReport, error) {
	report := domain.RunReport{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", report.RunID)
	started := time.Now()

	logger.Info("pipeline started", "window_days", windowDays)

	fetchReport, err := p.fetcher.Run(ctx, windowDays)
	report.Fetch = fetchReport
	if err != nil {
		logger.Error("fetch phase failed, aborting", "error", err)
		metrics.Runs.WithLabelValues("fetch_failed").Inc()
		return report, fmt.Errorf("fetch phase: %w", err)
	}

	processReport, err := p.processor.Run(ctx)
	report.Process = processReport
	if err != nil {
		logger.Error("process phase failed, aborting", "error", err)
		metrics.Runs.WithLabelValues("process_failed").Inc()
		return report, fmt.Errorf("process phase: %w", err)
	}

	metrics.Runs.WithLabelValues("ok").Inc()
	metrics.LastSuccessfulRun.SetToCurrentTime()
	logger.Info("pipeline finished",
		"duration", time.Since(started).Round(time.Millisecond),
		"records_fetched", fetchReport.Records(),
		"documents", processReport.Documents,
		"files", processReport.Files)

	p.notify(ctx, logger, report)
	return report, nil
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, report domain.RunReport) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishReport(ctx, buildReportMessage(report)); err != nil {
		logger.Warn("run report not delivered", "error", err)
	}
}

func buildReportMessage(report domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Federal Register sync* `%s`\n", report.RunID)
	for _, d := range report.Fetch.Days {
		fmt.Fprintf(&b, "- %s: %s (%d)\n", d.Date, d.Status, d.Count)
	}
	fmt.Fprintf(&b, "Merged %d documents from %d files", report.Process.Documents, report.Process.Files)
	if report.Process.Failed > 0 {
		fmt.Fprintf(&b, ", %d files failed", report.Process.Failed)
	}
	return b.String()
}
