package storage

import (
	"strings"
	"testing"
	"time"
)

func TestTableName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		network string
		want    string
	}{
		{"freenode", "logs_freenode"},
		{"Libera.Chat", "logs_libera_chat"},
		{"my net-1", "logs_my_net_1"},
		{"", "logs"},
		{"!!!", "logs"},
		{"_odd_", "logs_odd"},
	}
	for _, tt := range tests {
		if got := TableName("logs", tt.network); got != tt.want {
			t.Fatalf("TableName(logs, %q) = %q, want %q", tt.network, got, tt.want)
		}
	}
}

func TestDialectSQLShapes(t *testing.T) {
	t.Parallel()
	for _, kind := range []Kind{KindMySQL, KindPostgres, KindSQLite} {
		d, err := DialectFor(kind)
		if err != nil {
			t.Fatalf("DialectFor(%s): %v", kind, err)
		}

		ddl := d.CreateTableSQL("logs_x")
		if !strings.Contains(ddl, "IF NOT EXISTS") {
			t.Fatalf("%s DDL not idempotent: %q", kind, ddl)
		}
		// Column order is part of the cross-backend contract.
		for _, col := range []string{"network", "buffer", "nick", "timestamp", "line"} {
			if !strings.Contains(ddl, col) {
				t.Fatalf("%s DDL missing column %q", kind, col)
			}
		}

		ins := d.InsertSQL("logs_x")
		if kind == KindPostgres {
			if !strings.Contains(ins, "$5") {
				t.Fatalf("postgres insert should use $n placeholders: %q", ins)
			}
		} else if strings.Count(ins, "?") != 5 {
			t.Fatalf("%s insert should use 5 ? placeholders: %q", kind, ins)
		}

		if !strings.Contains(d.PruneSQL("logs_x"), "DELETE FROM") {
			t.Fatalf("%s prune SQL malformed: %q", kind, d.PruneSQL("logs_x"))
		}
	}
}

func TestDialectForUnknown(t *testing.T) {
	t.Parallel()
	if _, err := DialectFor(Kind("oracle")); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestSQLiteBindTimeOrdering(t *testing.T) {
	t.Parallel()
	d := sqliteDialect{}
	older := d.BindTime(time.Date(2024, 5, 1, 12, 0, 0, 5, time.UTC)).(string)
	newer := d.BindTime(time.Date(2024, 5, 1, 12, 0, 0, 999999999, time.UTC)).(string)
	if len(older) != len(newer) {
		t.Fatalf("bound timestamps must be fixed width: %q vs %q", older, newer)
	}
	if !(older < newer) {
		t.Fatalf("bound timestamps must order lexicographically: %q !< %q", older, newer)
	}
}

func TestMySQLDataSourceTimeouts(t *testing.T) {
	t.Parallel()
	dsn := mysqlDialect{}.DataSourceName(ConnSpec{
		Kind: KindMySQL, Host: "h", Port: 3306, User: "u", Password: "p", Database: "d",
	})
	for _, want := range []string{"timeout=10s", "readTimeout=30s", "writeTimeout=30s", "parseTime=true"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("mysql DSN missing %q: %q", want, dsn)
		}
	}
}
