// Package retention deletes old log rows on a cron schedule.
//
// It dials its own short-lived connection for each run; the writer's
// connection stays exclusively with the writer.
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"zlogsql/internal/storage"
	logx "zlogsql/pkg/logx"
)

type Config struct {
	Enabled  bool
	MaxAge   time.Duration
	Schedule string // cron spec
}

const (
	defaultSchedule = "0 4 * * *"
	defaultMaxAge   = 90 * 24 * time.Hour
	runTimeout      = 5 * time.Minute
)

// DialFunc opens a store for one prune run.
type DialFunc func(ctx context.Context) (*storage.Store, error)

type Service struct {
	dial DialFunc
	log  logx.Logger

	mu   sync.Mutex
	cfg  Config
	cron *cron.Cron
}

func New(cfg Config, dial DialFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: withDefaults(cfg), dial: dial, log: log}
}

func withDefaults(cfg Config) Config {
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}
	return cfg
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Service) startLocked() error {
	if !s.cfg.Enabled {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, s.runOnce); err != nil {
		return fmt.Errorf("retention schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.cron = c
	s.log.Info("retention enabled",
		logx.String("schedule", s.cfg.Schedule), logx.Duration("max_age", s.cfg.MaxAge))
	return nil
}

// Stop waits for an in-flight run to finish. The wait happens outside
// s.mu: runOnce takes the same mutex, so holding it here would deadlock
// against a run that cron launched just before Stop.
func (s *Service) Stop() {
	if c := s.detach(); c != nil {
		<-c.Stop().Done()
	}
}

// detach removes the cron instance under the lock so callers can wait on
// it unlocked.
func (s *Service) detach() *cron.Cron {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cron
	s.cron = nil
	return c
}

// Apply swaps the retention config at runtime (schedule changes restart
// the cron entry).
func (s *Service) Apply(cfg Config) error {
	if c := s.detach(); c != nil {
		<-c.Stop().Done()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = withDefaults(cfg)
	return s.startLocked()
}

func (s *Service) runOnce() {
	s.mu.Lock()
	maxAge := s.cfg.MaxAge
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	st, err := s.dial(ctx)
	if err != nil {
		s.log.Warn("retention run skipped, database unreachable", logx.Err(err))
		return
	}
	defer st.Close()

	cutoff := time.Now().Add(-maxAge)
	removed, err := st.PruneBefore(ctx, cutoff)
	if err != nil {
		s.log.Warn("retention prune failed", logx.Err(err), logx.Int64("removed", removed))
		return
	}
	s.log.Info("retention prune done", logx.Int64("removed", removed), logx.Time("cutoff", cutoff))
}
