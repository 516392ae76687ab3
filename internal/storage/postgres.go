package storage

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (database/sql)
)

type postgresDialect struct{}

func (postgresDialect) Kind() Kind         { return KindPostgres }
func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) DataSourceName(spec ConnSpec) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(spec.User, spec.Password),
		Host:   net.JoinHostPort(spec.Host, strconv.Itoa(spec.Port)),
		Path:   "/" + spec.Database,
	}
	q := url.Values{}
	q.Set("connect_timeout", "10")
	u.RawQuery = q.Encode()
	return u.String()
}

func (postgresDialect) CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (
  "id" BIGSERIAL NOT NULL,
  "network" VARCHAR(128) DEFAULT NULL,
  "buffer" VARCHAR(255) NOT NULL,
  "nick" VARCHAR(128) DEFAULT NULL,
  "timestamp" TIMESTAMP WITH TIME ZONE NOT NULL,
  "line" TEXT,
  PRIMARY KEY (id)
)`, table)
}

func (postgresDialect) InsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO "%s" ("network", "buffer", "nick", "timestamp", "line") VALUES ($1, $2, $3, $4, $5)`, table)
}

func (postgresDialect) ListTablesSQL(prefix string) (string, []any) {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name LIKE $1 ESCAPE '!'",
		[]any{likePrefix(prefix)}
}

func (postgresDialect) PruneSQL(table string) string {
	return fmt.Sprintf(`DELETE FROM "%s" WHERE "timestamp" < $1`, table)
}

// timestamptz keeps the zone; bind as-is.
func (postgresDialect) BindTime(t time.Time) any { return t }
