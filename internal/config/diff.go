package config

import (
	"reflect"
	"strings"

	logx "zlogsql/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes credentials),
// and (3) whether a restart is needed to apply all of the changes.
//
// The writer owns its connection spec and queue shape for the process
// lifetime, so changes to those sections only take effect on restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, bool) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 8)
	restart := false

	// Storage/pipeline (never log the DSN itself; it carries a password).
	if strings.TrimSpace(oldCfg.DSN) != strings.TrimSpace(newCfg.DSN) ||
		strings.TrimSpace(oldCfg.DataDir) != strings.TrimSpace(newCfg.DataDir) ||
		oldCfg.TablePrefixOrDefault() != newCfg.TablePrefixOrDefault() ||
		oldCfg.Queue != newCfg.Queue ||
		oldCfg.Backoff != newCfg.Backoff ||
		strings.TrimSpace(oldCfg.ShutdownFlush) != strings.TrimSpace(newCfg.ShutdownFlush) {
		changed = append(changed, "pipeline")
		restart = true
		attrs = append(attrs,
			logx.Bool("dsn_changed", strings.TrimSpace(oldCfg.DSN) != strings.TrimSpace(newCfg.DSN)),
			logx.String("table_prefix", newCfg.TablePrefixOrDefault()),
			logx.Int("queue.cap", newCfg.QueueCap()),
		)
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Retention
	if !reflect.DeepEqual(oldCfg.Retention, newCfg.Retention) {
		changed = append(changed, "retention")
		enabled := newCfg.Retention != nil && newCfg.Retention.Enabled
		attrs = append(attrs, logx.Bool("retention.enabled", enabled))
		if newCfg.Retention != nil {
			attrs = append(attrs, logx.String("retention.schedule", newCfg.Retention.Schedule))
		}
	}

	return changed, attrs, restart
}
