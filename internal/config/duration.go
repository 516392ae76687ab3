package config

import (
	"fmt"
	"strings"
	"time"
)

// parseDuration reads an optional Go duration string field. Empty (or an
// explicit zero) falls back to def; negative values are rejected. name is
// the config path used in error messages.
func parseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", name)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
