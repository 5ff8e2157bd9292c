package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"RegisterSync/internal/domain"
	"RegisterSync/internal/logging"
	"RegisterSync/internal/metrics"
	"RegisterSync/internal/ports"
)

//go:embed schema.sql
var schemaTemplate string

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var columns = []string{
	"document_number",
	"title",
	"type",
	"abstract",
	"publication_date",
	"html_url",
	"pdf_url",
	"public_inspection_pdf_url",
	"agency_name",
	"excerpts",
}

const (
	defaultTable     = "federal_documents"
	defaultBatchSize = 500
)

// Options tunes the canonical table.
type Options struct {
	Table     string
	BatchSize int
}

// Repository persists canonical documents into a SQL table keyed by document number.
type Repository struct {
	db        *sql.DB
	dialect   dialect
	table     string
	batchSize int
	upsertFor string
	logger    *slog.Logger
}

var _ ports.DocumentRepository = (*Repository)(nil)

// NewRepository wires a sql.DB opened with the given driver.
func NewRepository(db *sql.DB, driver string, opts Options, logger *slog.Logger) (*Repository, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if opts.Table == "" {
		opts.Table = defaultTable
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, opts.Table)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Repository{
		db:        db,
		dialect:   d,
		table:     opts.Table,
		batchSize: opts.BatchSize,
		upsertFor: conflictClause(),
		logger:    logger,
	}, nil
}

func conflictClause() string {
	sets := make([]string, 0, len(columns)-1)
	for _, col := range columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return "ON CONFLICT (document_number) DO UPDATE SET " + strings.Join(sets, ", ")
}

// EnsureSchema verifies connectivity and creates the table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", r.dialect.driver, err)
	}

	ddl := strings.ReplaceAll(schemaTemplate, "{{table}}", r.table)
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// UpsertDocuments merges docs by document number, overwriting every other column.
// Each chunk is its own autocommitted statement. Submitted is the number of
// documents handed in; RowsAffected is whatever the driver reports.
func (r *Repository) UpsertDocuments(ctx context.Context, docs []domain.Document) (ports.UpsertResult, error) {
	if len(docs) == 0 {
		return ports.UpsertResult{}, nil
	}

	started := time.Now()
	defer func() { metrics.UpsertSeconds.Observe(time.Since(started).Seconds()) }()

	var affected int64
	for start := 0; start < len(docs); start += r.batchSize {
		end := min(start+r.batchSize, len(docs))
		n, err := r.upsertChunk(ctx, lastWins(docs[start:end]))
		if err != nil {
			return ports.UpsertResult{}, fmt.Errorf("upsert documents %d-%d: %w", start, end, err)
		}
		affected += n
	}

	r.logger.Debug("documents upserted", "submitted", len(docs), "rows_affected", affected)
	return ports.UpsertResult{Submitted: len(docs), RowsAffected: affected}, nil
}

func (r *Repository) upsertChunk(ctx context.Context, chunk []domain.Document) (int64, error) {
	q := sq.Insert(r.table).
		Columns(columns...).
		PlaceholderFormat(r.dialect.placeholder)
	for _, d := range chunk {
		q = q.Values(
			d.DocumentNumber,
			nullable(d.Title),
			nullable(d.Type),
			nullable(d.Abstract),
			nullable(d.PublicationDate),
			nullable(d.HTMLURL),
			nullable(d.PDFURL),
			nullable(d.PublicInspectionPDFURL),
			nullable(d.AgencyName),
			nullable(d.Excerpts),
		)
	}

	query, args, err := q.Suffix(r.upsertFor).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build upsert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		r.logger.Debug("rows affected unavailable", "error", err)
		return 0, nil
	}
	return n, nil
}

// lastWins collapses duplicate keys inside one statement, keeping the later
// record at the position of the earlier one. Applying the result equals
// applying the input row by row.
func lastWins(docs []domain.Document) []domain.Document {
	index := make(map[string]int, len(docs))
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if i, ok := index[d.DocumentNumber]; ok {
			out[i] = d
			continue
		}
		index[d.DocumentNumber] = len(out)
		out = append(out, d)
	}
	return out
}

// Search returns documents matching every non-empty filter, newest first.
func (r *Repository) Search(ctx context.Context, params domain.SearchParams) ([]domain.Document, error) {
	q := sq.Select(columns...).
		From(r.table).
		PlaceholderFormat(r.dialect.placeholder)

	if kw := strings.TrimSpace(params.Keywords); kw != "" {
		q = q.Where(sq.Or{
			r.dialect.contains("title", kw),
			r.dialect.contains("abstract", kw),
			r.dialect.contains("excerpts", kw),
		})
	}
	if t := strings.TrimSpace(params.DocumentType); t != "" {
		q = q.Where(sq.Eq{"type": t})
	}
	if s := strings.TrimSpace(params.StartDate); s != "" {
		q = q.Where(sq.GtOrEq{"publication_date": s})
	}
	if e := strings.TrimSpace(params.EndDate); e != "" {
		q = q.Where(sq.LtOrEq{"publication_date": e})
	}
	if a := strings.TrimSpace(params.AgencyName); a != "" {
		q = q.Where(r.dialect.contains("agency_name", a))
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 5
	}
	q = q.OrderBy("publication_date DESC NULLS LAST", "document_number").Limit(uint64(limit))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return docs, nil
}

// Get loads a single document by its number.
func (r *Repository) Get(ctx context.Context, number string) (domain.Document, error) {
	query, args, err := sq.Select(columns...).
		From(r.table).
		Where(sq.Eq{"document_number": number}).
		PlaceholderFormat(r.dialect.placeholder).
		ToSql()
	if err != nil {
		return domain.Document{}, fmt.Errorf("build get: %w", err)
	}

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, ErrNotFound
	}
	return doc, err
}

// Count returns the number of canonical documents.
func (r *Repository) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(r.table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (domain.Document, error) {
	var (
		doc                                 domain.Document
		title, typ, abstract, published     sql.NullString
		htmlURL, pdfURL, inspection, agency sql.NullString
		excerpts                            sql.NullString
	)
	err := row.Scan(&doc.DocumentNumber, &title, &typ, &abstract, &published,
		&htmlURL, &pdfURL, &inspection, &agency, &excerpts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, err
		}
		return domain.Document{}, fmt.Errorf("scan document: %w", err)
	}

	doc.Title = title.String
	doc.Type = typ.String
	doc.Abstract = abstract.String
	doc.PublicationDate = dateOnly(published.String)
	doc.HTMLURL = htmlURL.String
	doc.PDFURL = pdfURL.String
	doc.PublicInspectionPDFURL = inspection.String
	doc.AgencyName = agency.String
	doc.Excerpts = excerpts.String
	return doc, nil
}

// dateOnly trims driver-specific time suffixes from DATE columns.
func dateOnly(v string) string {
	if len(v) > 10 {
		return v[:10]
	}
	return v
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
