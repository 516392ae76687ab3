// Package app wires the daemon together: config, logging, the write
// pipeline and retention.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"

	"zlogsql/internal/config"
	"zlogsql/internal/pipeline"
	"zlogsql/internal/retention"
	"zlogsql/internal/storage"
	logx "zlogsql/pkg/logx"
	"zlogsql/pkg/zlog"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	logSvc *logx.Service
	log    logx.Logger

	queue  *pipeline.Queue
	writer *pipeline.Writer
	module *zlog.Module
	ret    *retention.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
	cfgCh  chan *config.Config
}

// New loads and validates the configuration and builds the pipeline.
// A malformed DSN is fatal here, reported once; everything after this
// point recovers by itself.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(cfg.LogxConfig())
	log = log.With(logx.String("comp", "app"))

	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		if err := c.Validate(); err != nil {
			return err
		}
		_, err := storage.ParseDSN(c.DSN, c.DataDir)
		return err
	})

	// The ConnSpec is resolved once and owned by the writer from here on.
	spec, err := storage.ParseDSN(cfg.DSN, cfg.DataDir)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	prefix := cfg.TablePrefixOrDefault()
	backoffInitial, _ := cfg.BackoffInitial()
	backoffMax, _ := cfg.BackoffMax()
	shutdownFlush, _ := cfg.ShutdownFlushDur()

	storeLog := logSvc.Logger().With(logx.String("comp", "storage"))
	dial := func(ctx context.Context) (*storage.Store, error) {
		return storage.Open(ctx, spec, prefix, storeLog)
	}

	queue := pipeline.NewQueue(cfg.QueueCap())
	writer := pipeline.NewWriter(queue,
		func(ctx context.Context) (pipeline.Sink, error) { return dial(ctx) },
		pipeline.Config{
			BatchSize:      cfg.Queue.BatchSize,
			BackoffInitial: backoffInitial,
			BackoffMax:     backoffMax,
			ShutdownFlush:  shutdownFlush,
		},
		logSvc.Logger().With(logx.String("comp", "writer")))

	ret := retention.New(retentionConfig(cfg), dial,
		logSvc.Logger().With(logx.String("comp", "retention")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		logSvc:  logSvc,
		log:     log,
		queue:   queue,
		writer:  writer,
		module:  zlog.New(queue),
		ret:     ret,
	}, nil
}

// Module returns the producer-facing hook surface.
func (a *App) Module() *zlog.Module { return a.module }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.writer.Start(runCtx)
	if err := a.ret.Start(); err != nil {
		cancel()
		a.writer.Stop()
		return err
	}

	// Config hot-reload: logging and retention apply live; pipeline
	// changes need a restart.
	a.cfgCh = a.cfgm.Subscribe(2)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx)
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("pipeline started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) reloadLoop(ctx context.Context) {
	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgCh:
			if !ok {
				return
			}
			changed, attrs, restart := config.SummarizeConfigChange(prev, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("config reloaded", append(attrs, logx.Any("sections", changed))...)

			a.logSvc.Apply(cfg.LogxConfig())
			if err := a.ret.Apply(retentionConfig(cfg)); err != nil {
				a.log.Warn("retention config rejected", logx.Err(err))
			}
			if restart {
				a.log.Warn("pipeline config changed; restart required to apply")
			}
			prev = cfg
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.ret.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	// Bounded final flush happens inside the writer.
	a.writer.Stop()
	a.wg.Wait()
	if a.cfgCh != nil {
		a.cfgm.Unsubscribe(a.cfgCh)
	}

	a.log.Info("pipeline stopped", logx.Int("discarded", a.queue.Len()))
	return a.logSvc.Close()
}

func retentionConfig(cfg *config.Config) retention.Config {
	if cfg.Retention == nil {
		return retention.Config{}
	}
	maxAge, _ := cfg.RetentionMaxAge()
	return retention.Config{
		Enabled:  cfg.Retention.Enabled,
		MaxAge:   maxAge,
		Schedule: cfg.Retention.Schedule,
	}
}
