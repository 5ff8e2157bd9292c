package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/logging"
	"RegisterSync/internal/metrics"
	"RegisterSync/internal/ports"
)

const dateLayout = "2006-01-02"

// FetchOptions tunes the fetch phase. MaxConcurrent of zero means one worker per day.
type FetchOptions struct {
	MaxConcurrent int
	Location      *time.Location
	Now           func() time.Time
	Backend       string
}

// FetchOrchestrator downloads a trailing window of days into the raw area.
type FetchOrchestrator struct {
	opener        ports.RegistryOpener
	store         ports.SnapshotStore
	maxConcurrent int
	location      *time.Location
	now           func() time.Time
	backend       string
	logger        *slog.Logger
}

// NewFetchOrchestrator wires the registry and the raw area.
func NewFetchOrchestrator(opener ports.RegistryOpener, store ports.SnapshotStore, opts FetchOptions, logger *slog.Logger) *FetchOrchestrator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Backend == "" {
		opts.Backend = "fs"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &FetchOrchestrator{
		opener:        opener,
		store:         store,
		maxConcurrent: opts.MaxConcurrent,
		location:      opts.Location,
		now:           opts.Now,
		backend:       opts.Backend,
		logger:        logger,
	}
}

// WindowDates returns n consecutive calendar days ending on the day of now in loc, newest first.
func WindowDates(now time.Time, loc *time.Location, n int) []time.Time {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	days := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, today.AddDate(0, 0, -i))
	}
	return days
}

// Run fetches every day of the window concurrently and waits for all of them.
// Only setup problems are returned; per-day failures are in the report.
func (f *FetchOrchestrator) Run(ctx context.Context, windowDays int) (domain.FetchReport, error) {
	if windowDays < 1 {
		return domain.FetchReport{}, fmt.Errorf("%w: got %d", ErrInvalidWindow, windowDays)
	}

	days := WindowDates(f.now(), f.location, windowDays)
	f.logger.Info("fetch started",
		"from", days[len(days)-1].Format(dateLayout),
		"to", days[0].Format(dateLayout),
		"days", len(days))

	session, err := f.opener.Open(ctx)
	if err != nil {
		return domain.FetchReport{}, fmt.Errorf("open registry session: %w", err)
	}
	defer session.Close()

	size := f.maxConcurrent
	if size <= 0 || size > len(days) {
		size = len(days)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return domain.FetchReport{}, fmt.Errorf("create fetch pool: %w", err)
	}
	defer pool.Release()

	outcomes := make([]domain.DayOutcome, len(days))
	var wg sync.WaitGroup
	for i, day := range days {
		i, day := i, day
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = f.fetchDay(ctx, session, day)
		}); err != nil {
			wg.Done()
			outcomes[i] = domain.DayOutcome{
				Date:   day.Format(dateLayout),
				Status: domain.DayFailed,
				Err:    fmt.Errorf("submit fetch: %w", err),
			}
		}
	}
	wg.Wait()

	report := domain.FetchReport{Days: outcomes}
	for _, o := range outcomes {
		metrics.FetchDays.WithLabelValues(string(o.Status)).Inc()
	}
	f.logger.Info("fetch finished",
		"saved", report.Count(domain.DaySaved),
		"partial", report.Count(domain.DayPartial),
		"empty", report.Count(domain.DayEmpty),
		"failed", report.Count(domain.DayFailed),
		"records", report.Records())
	return report, nil
}

func (f *FetchOrchestrator) fetchDay(ctx context.Context, session ports.RegistrySession, day time.Time) (out domain.DayOutcome) {
	out.Date = day.Format(dateLayout)
	logger := f.logger.With("date", out.Date)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("fetch unit panicked", "panic", r)
			out.Status = domain.DayFailed
			out.Err = fmt.Errorf("fetch %s panicked: %v", out.Date, r)
		}
	}()

	snap := session.FetchSnapshot(ctx, day)
	out.Count = snap.Count
	out.Pages = snap.Pages

	if snap.Count == 0 {
		if snap.Partial() {
			logger.Warn("nothing retrieved", "error", snap.Err)
			out.Status = domain.DayFailed
			out.Err = snap.Err
			return out
		}
		logger.Info("nothing to save")
		out.Status = domain.DayEmpty
		return out
	}

	if err := f.store.Save(ctx, snap); err != nil {
		logger.Error("snapshot write failed", "count", snap.Count, "error", err)
		metrics.SnapshotWrites.WithLabelValues(f.backend, "error").Inc()
		out.Status = domain.DayFailed
		out.Err = err
		return out
	}
	metrics.SnapshotWrites.WithLabelValues(f.backend, "ok").Inc()

	if snap.Partial() {
		logger.Warn("partial snapshot saved", "count", snap.Count, "error", snap.Err)
		out.Status = domain.DayPartial
		out.Err = snap.Err
		return out
	}

	logger.Info("snapshot saved", "count", snap.Count, "pages", snap.Pages)
	out.Status = domain.DaySaved
	return out
}
