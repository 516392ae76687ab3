package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	logx "zlogsql/pkg/logx"
)

// Record is one chat line on its way to a database row. Immutable value
// object; duplicates after a retry are acceptable (at-least-once).
type Record struct {
	Network string
	Buffer  string
	Nick    string
	Time    time.Time
	Line    string
}

// Store writes Records into per-network log tables over a single live
// connection. It is owned by exactly one goroutine at a time; it does no
// locking around the connection itself, only around the ensured-table set.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	prefix  string
	log     logx.Logger

	mu      sync.Mutex
	ensured map[string]struct{}
}

const openPingTimeout = 10 * time.Second

// Open dials the backend described by spec and bootstraps the default log
// table. The returned Store holds one connection; writes are serialized.
func Open(ctx context.Context, spec ConnSpec, prefix string, log logx.Logger) (*Store, error) {
	d, err := DialectFor(spec.Kind)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	if spec.Kind == KindSQLite {
		if dir := filepath.Dir(spec.Database); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqlx.Open(d.DriverName(), d.DataSourceName(spec))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", spec.Kind, err)
	}
	// A single writer needs a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if spec.Kind == KindSQLite {
		// Basic pragmas; SQLite prefers a small number of concurrent writers.
		_, _ = db.Exec("PRAGMA busy_timeout = 5000")
		_, _ = db.Exec("PRAGMA journal_mode = WAL")
		_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	}

	pctx, cancel := context.WithTimeout(ctx, openPingTimeout)
	err = db.PingContext(pctx)
	cancel()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", spec.Kind, err)
	}

	s := &Store{
		db:      db,
		dialect: d,
		prefix:  prefix,
		log:     log,
		ensured: make(map[string]struct{}),
	}

	// Schema bootstrap: make sure the default table exists before the first
	// record arrives.
	if err := s.ensureTable(ctx, TableName(prefix, "")); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// TableFor maps a network name to its logical table.
func (s *Store) TableFor(network string) string {
	return TableName(s.prefix, network)
}

// ensureTable issues CREATE TABLE IF NOT EXISTS the first time a logical
// table name is seen. Idempotent against an already-correct schema.
func (s *Store) ensureTable(ctx context.Context, table string) error {
	s.mu.Lock()
	_, done := s.ensured[table]
	s.mu.Unlock()
	if done {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.CreateTableSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	s.mu.Lock()
	s.ensured[table] = struct{}{}
	s.mu.Unlock()
	s.log.Debug("log table ready", logx.String("table", table))
	return nil
}

// InsertBatch persists a batch atomically: one transaction, all rows or
// none. Table creation happens before the transaction starts (MySQL DDL
// commits implicitly).
func (s *Store) InsertBatch(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	for _, r := range recs {
		if err := s.ensureTable(ctx, s.TableFor(r.Network)); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, r := range recs {
		_, err := tx.ExecContext(ctx, s.dialect.InsertSQL(s.TableFor(r.Network)),
			nullStr(r.Network), r.Buffer, nullStr(r.Nick), s.dialect.BindTime(r.Time), r.Line)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LogTables lists the tables this store's prefix owns.
func (s *Store) LogTables(ctx context.Context) ([]string, error) {
	query, args := s.dialect.ListTablesSQL(s.prefix)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if !s.ownsTable(name) {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// ownsTable reports whether name is the bare prefix table or one of its
// per-network tables. A shared database can hold unrelated tables that
// merely start with the prefix (logstash next to logs); pruning must never
// touch those.
func (s *Store) ownsTable(name string) bool {
	if name == s.prefix {
		return true
	}
	rest, ok := strings.CutPrefix(name, s.prefix+"_")
	if !ok || rest == "" {
		return false
	}
	return rest == sanitizeIdent(rest)
}

// PruneBefore deletes rows older than cutoff from every log table and
// returns the number of rows removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tables, err := s.LogTables(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, table := range tables {
		res, err := s.db.ExecContext(ctx, s.dialect.PruneSQL(table), s.dialect.BindTime(cutoff))
		if err != nil {
			return removed, fmt.Errorf("prune %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
	}
	return removed, nil
}

// likePrefix escapes LIKE wildcards in the configured prefix so an
// underscore in it matches literally. The dialect queries pair this with
// ESCAPE '!' (backslash escapes are not portable across the three engines).
func likePrefix(prefix string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(prefix) + "%"
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
