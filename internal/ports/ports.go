package ports

import (
	"context"
	"time"

	"RegisterSync/internal/domain"
)

// RegistrySession fetches complete or partial snapshots for a single date.
type RegistrySession interface {
	FetchSnapshot(ctx context.Context, day time.Time) domain.Snapshot
	Close()
}

// RegistryOpener opens one session per fetch run.
type RegistryOpener interface {
	Open(ctx context.Context) (RegistrySession, error)
}

// SnapshotStore is the raw area holding one artifact per publication date.
type SnapshotStore interface {
	Save(ctx context.Context, snap domain.Snapshot) error
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, name string) ([]byte, error)
}

// UpsertResult reports a batch merge. Submitted is authoritative; RowsAffected is informational.
type UpsertResult struct {
	Submitted    int
	RowsAffected int64
}

// DocumentRepository is the canonical store keyed by document number.
type DocumentRepository interface {
	EnsureSchema(ctx context.Context) error
	UpsertDocuments(ctx context.Context, docs []domain.Document) (UpsertResult, error)
	Search(ctx context.Context, params domain.SearchParams) ([]domain.Document, error)
}

// Notifier streams run reports to Telegram or other channels.
type Notifier interface {
	PublishReport(ctx context.Context, report string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
