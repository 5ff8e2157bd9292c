package domain

import "encoding/json"

// SnapshotStatus marks whether every page for a date was retrieved.
type SnapshotStatus string

const (
	SnapshotComplete SnapshotStatus = "complete"
	SnapshotPartial  SnapshotStatus = "partial"
)

// Snapshot is the raw, unmodified result set for one publication date.
// Only Date, Count and Results are persisted.
type Snapshot struct {
	Date    string            `json:"date"`
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`

	Status SnapshotStatus `json:"-"`
	Pages  int            `json:"-"`
	Err    error          `json:"-"`
}

// Partial reports whether fetching stopped early.
func (s Snapshot) Partial() bool {
	return s.Status == SnapshotPartial
}

// DayStatus is the outcome of one fetch unit.
type DayStatus string

const (
	DaySaved   DayStatus = "saved"
	DayEmpty   DayStatus = "empty"
	DayPartial DayStatus = "partial"
	DayFailed  DayStatus = "failed"
)

// DayOutcome is what a fetch unit reports back to the orchestrator.
type DayOutcome struct {
	Date   string
	Status DayStatus
	Count  int
	Pages  int
	Err    error
}

// FetchReport aggregates the outcomes of one fetch phase.
type FetchReport struct {
	Days []DayOutcome
}

// Count returns how many days ended with the given status.
func (r FetchReport) Count(status DayStatus) int {
	n := 0
	for _, d := range r.Days {
		if d.Status == status {
			n++
		}
	}
	return n
}

// Records sums the records retrieved across all days.
func (r FetchReport) Records() int {
	n := 0
	for _, d := range r.Days {
		n += d.Count
	}
	return n
}

// ProcessReport aggregates the outcomes of one process phase.
type ProcessReport struct {
	Documents int
	Files     int
	Skipped   int
	Failed    int
}

// RunReport is the result of a full fetch-then-process run.
type RunReport struct {
	RunID   string
	Fetch   FetchReport
	Process ProcessReport
}
