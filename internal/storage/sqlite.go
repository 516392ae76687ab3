package storage

import (
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

type sqliteDialect struct{}

// sqliteTimeLayout is fixed-width so stored timestamps compare
// lexicographically (prune cutoffs rely on this).
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

func (sqliteDialect) Kind() Kind         { return KindSQLite }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) DataSourceName(spec ConnSpec) string { return spec.Database }

func (sqliteDialect) CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS [%s](
  [id] INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
  [network] VARCHAR,
  [buffer] VARCHAR NOT NULL,
  [nick] VARCHAR,
  [timestamp] DATETIME NOT NULL,
  [line] TEXT)`, table)
}

func (sqliteDialect) InsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO [%s] ([network], [buffer], [nick], [timestamp], [line]) VALUES (?, ?, ?, ?, ?)", table)
}

func (sqliteDialect) ListTablesSQL(prefix string) (string, []any) {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ? ESCAPE '!'",
		[]any{likePrefix(prefix)}
}

func (sqliteDialect) PruneSQL(table string) string {
	return fmt.Sprintf("DELETE FROM [%s] WHERE [timestamp] < ?", table)
}

func (sqliteDialect) BindTime(t time.Time) any {
	return t.UTC().Format(sqliteTimeLayout)
}
