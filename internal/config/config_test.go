package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "zlogsql.yaml", `
dsn: mysql://u:p@host/db
table_prefix: irc
queue:
  cap: 5000
  batch_size: 32
backoff:
  initial: 250ms
  max: 10s
shutdown_flush: 2s
retention:
  enabled: true
  max_age: 720h
  schedule: "0 3 * * *"
logging:
  level: debug
  console: true
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.DSN != "mysql://u:p@host/db" {
		t.Fatalf("DSN = %q", cfg.DSN)
	}
	if cfg.TablePrefixOrDefault() != "irc" {
		t.Fatalf("prefix = %q", cfg.TablePrefixOrDefault())
	}
	if cfg.QueueCap() != 5000 || cfg.Queue.BatchSize != 32 {
		t.Fatalf("queue = %+v", cfg.Queue)
	}
	if d, _ := cfg.BackoffInitial(); d != 250*time.Millisecond {
		t.Fatalf("backoff.initial = %v", d)
	}
	if d, _ := cfg.ShutdownFlushDur(); d != 2*time.Second {
		t.Fatalf("shutdown_flush = %v", d)
	}
	if cfg.Retention == nil || !cfg.Retention.Enabled || cfg.Retention.Schedule != "0 3 * * *" {
		t.Fatalf("retention = %+v", cfg.Retention)
	}
	if d, _ := cfg.RetentionMaxAge(); d != 720*time.Hour {
		t.Fatalf("retention.max_age = %v", d)
	}
	if !cfg.Logging.Console || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}

	// Get returns the committed config.
	if m.Get() != cfg {
		t.Fatal("Get returned a different config")
	}
}

func TestDefaultsWhenOmitted(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "zlogsql.yaml", "dsn: sqlite\n")

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.TablePrefixOrDefault() != "logs" {
		t.Fatalf("prefix default = %q", cfg.TablePrefixOrDefault())
	}
	if cfg.QueueCap() != 100000 {
		t.Fatalf("queue cap default = %d", cfg.QueueCap())
	}
	if d, _ := cfg.BackoffInitial(); d != 500*time.Millisecond {
		t.Fatalf("backoff.initial default = %v", d)
	}
	if d, _ := cfg.BackoffMax(); d != 30*time.Second {
		t.Fatalf("backoff.max default = %v", d)
	}
	if d, _ := cfg.ShutdownFlushDur(); d != 5*time.Second {
		t.Fatalf("shutdown_flush default = %v", d)
	}
}

func TestNegativeCapMeansUnbounded(t *testing.T) {
	t.Parallel()
	cfg := &Config{Queue: QueueConfig{Cap: -1}}
	if cfg.QueueCap() != 0 {
		t.Fatalf("QueueCap = %d, want 0 (unbounded)", cfg.QueueCap())
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "zlogsql.yaml", "dsn: sqlite\nbogus_field: 1\n")

	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestNonStringYAMLKeysRejected(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "zlogsql.yaml", "dsn: sqlite\n1: x\n")

	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("non-string mapping key accepted")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing dsn", Config{}},
		{"bad backoff", Config{DSN: "sqlite", Backoff: BackoffConfig{Initial: "soon"}}},
		{"negative backoff", Config{DSN: "sqlite", Backoff: BackoffConfig{Initial: "-5s"}}},
		{"bad shutdown flush", Config{DSN: "sqlite", ShutdownFlush: "never"}},
		{"bad retention age", Config{DSN: "sqlite", Retention: &RetentionConfig{MaxAge: "3 fortnights"}}},
		{"negative batch size", Config{DSN: "sqlite", Queue: QueueConfig{BatchSize: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("Validate accepted bad config")
			}
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	base := &Config{DSN: "sqlite", Logging: LoggingConfig{Level: "info"}}

	t.Run("logging only", func(t *testing.T) {
		next := &Config{DSN: "sqlite", Logging: LoggingConfig{Level: "debug"}}
		changed, _, restart := SummarizeConfigChange(base, next)
		if restart {
			t.Fatal("logging change should not require restart")
		}
		if len(changed) != 1 || changed[0] != "logging" {
			t.Fatalf("changed = %v", changed)
		}
	})

	t.Run("dsn requires restart", func(t *testing.T) {
		next := &Config{DSN: "postgres://u:p@h/db", Logging: LoggingConfig{Level: "info"}}
		changed, _, restart := SummarizeConfigChange(base, next)
		if !restart {
			t.Fatal("dsn change should require restart")
		}
		if len(changed) != 1 || changed[0] != "pipeline" {
			t.Fatalf("changed = %v", changed)
		}
	})

	t.Run("retention toggles", func(t *testing.T) {
		next := &Config{DSN: "sqlite", Logging: LoggingConfig{Level: "info"},
			Retention: &RetentionConfig{Enabled: true}}
		changed, _, restart := SummarizeConfigChange(base, next)
		if restart {
			t.Fatal("retention change should not require restart")
		}
		if len(changed) != 1 || changed[0] != "retention" {
			t.Fatalf("changed = %v", changed)
		}
	})

	t.Run("no change", func(t *testing.T) {
		changed, _, _ := SummarizeConfigChange(base, base)
		if len(changed) != 0 {
			t.Fatalf("changed = %v", changed)
		}
	})
}
