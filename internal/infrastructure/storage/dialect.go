package storage

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type dialect struct {
	driver      string
	placeholder sq.PlaceholderFormat
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres:
		return dialect{driver: driver, placeholder: sq.Dollar}, nil
	case DriverSQLite:
		return dialect{driver: driver, placeholder: sq.Question}, nil
	}
	return dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
}

// contains is a case-insensitive substring match. SQLite LIKE already
// ignores ASCII case; Postgres needs ILIKE.
func (d dialect) contains(column, value string) sq.Sqlizer {
	pattern := "%" + value + "%"
	if d.driver == DriverPostgres {
		return sq.ILike{column: pattern}
	}
	return sq.Like{column: pattern}
}

// Open returns a pool for the given driver without contacting the server.
func Open(driver, dsn string) (*sql.DB, error) {
	if _, err := dialectFor(driver); err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
