package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/pkg/metrics"
)

// Dialect names a supported SQL flavor. Values double as database/sql
// driver names.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect validates a dialect name from configuration.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectSQLite, DialectPostgres:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
	}
}

const defaultSQLitePath = "applicantpool.db"

// The partial unique indexes back the engine's uniqueness invariant: a pool
// that somehow carries a duplicate strong key is rejected at save time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS applicants (
	seq INTEGER NOT NULL,
	pool_id TEXT PRIMARY KEY,
	phone TEXT NOT NULL,
	labor_id TEXT NOT NULL,
	full_name TEXT NOT NULL,
	name_key TEXT NOT NULL,
	position TEXT NOT NULL,
	application_date TEXT NOT NULL,
	extra TEXT NOT NULL,
	first_seen_at TEXT NOT NULL,
	last_updated_at TEXT NOT NULL,
	source_batches TEXT NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS applicants_phone_uq ON applicants (phone) WHERE phone <> ''`,
	`CREATE UNIQUE INDEX IF NOT EXISTS applicants_labor_id_uq ON applicants (labor_id) WHERE labor_id <> ''`,
}

const (
	selectAll = `SELECT pool_id, phone, labor_id, full_name, name_key, position, application_date,
	extra, first_seen_at, last_updated_at, source_batches FROM applicants ORDER BY seq`
	deleteAll = `DELETE FROM applicants`
	insertOne = `INSERT INTO applicants (seq, pool_id, phone, labor_id, full_name, name_key, position,
	application_date, extra, first_seen_at, last_updated_at, source_batches)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// SQLStore persists the pool as one row per applicant. Each Save rewrites
// the table inside a single transaction.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database. It performs no I/O; call Migrate
// before first use.
func NewSQLStore(db *sql.DB, opts ...Option) *SQLStore {
	s := &SQLStore{db: db, dialect: DialectSQLite}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSQL opens, pings and migrates a database for the given dialect.
// An empty sqlite DSN uses applicantpool.db in the working directory.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	switch dialect {
	case DialectSQLite:
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	case DialectPostgres:
		if dsn == "" {
			return nil, errors.New("postgres: empty dsn")
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One writer connection avoids SQLITE_BUSY between pooled conns.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	s := NewSQLStore(db, WithDialect(dialect))
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the table and indexes if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Load returns all records in saved order.
func (s *SQLStore) Load(ctx context.Context) (_ []model.ApplicantRecord, retErr error) {
	start := time.Now()
	defer func() { observe("load", start, retErr) }()

	rows, err := s.db.QueryContext(ctx, selectAll)
	if err != nil {
		return nil, fmt.Errorf("%w: select: %w", ErrLoad, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ApplicantRecord
	for rows.Next() {
		var (
			rec                   model.ApplicantRecord
			extra, batches        string
			firstSeen, lastUpdate string
		)
		if err := rows.Scan(&rec.PoolID, &rec.Phone, &rec.LaborID, &rec.FullName, &rec.NameKey,
			&rec.Position, &rec.ApplicationDate, &extra, &firstSeen, &lastUpdate, &batches); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrLoad, err)
		}
		if err := json.Unmarshal([]byte(extra), &rec.Extra); err != nil {
			return nil, fmt.Errorf("%w: decode extra of %s: %w", ErrLoad, rec.PoolID, err)
		}
		if err := json.Unmarshal([]byte(batches), &rec.SourceBatches); err != nil {
			return nil, fmt.Errorf("%w: decode batches of %s: %w", ErrLoad, rec.PoolID, err)
		}
		if rec.FirstSeenAt, err = time.Parse(time.RFC3339Nano, firstSeen); err != nil {
			return nil, fmt.Errorf("%w: first_seen_at of %s: %w", ErrLoad, rec.PoolID, err)
		}
		if rec.LastUpdatedAt, err = time.Parse(time.RFC3339Nano, lastUpdate); err != nil {
			return nil, fmt.Errorf("%w: last_updated_at of %s: %w", ErrLoad, rec.PoolID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrLoad, err)
	}
	return out, nil
}

// Save rewrites the table with recs in one transaction.
func (s *SQLStore) Save(ctx context.Context, recs []model.ApplicantRecord) (retErr error) {
	start := time.Now()
	defer func() { observe("save", start, retErr) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrSave, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, deleteAll); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrSave, err)
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(insertOne))
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", ErrSave, err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range recs {
		rec := &recs[i]
		extra, err := json.Marshal(rec.Extra)
		if err != nil {
			return fmt.Errorf("%w: encode extra of %s: %w", ErrSave, rec.PoolID, err)
		}
		batches, err := json.Marshal(rec.SourceBatches)
		if err != nil {
			return fmt.Errorf("%w: encode batches of %s: %w", ErrSave, rec.PoolID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, rec.PoolID, rec.Phone, rec.LaborID, rec.FullName, rec.NameKey,
			rec.Position, rec.ApplicationDate, string(extra),
			rec.FirstSeenAt.UTC().Format(time.RFC3339Nano),
			rec.LastUpdatedAt.UTC().Format(time.RFC3339Nano),
			string(batches)); err != nil {
			return fmt.Errorf("%w: insert %s: %w", ErrSave, rec.PoolID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrSave, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("repository", op)
	}
}
