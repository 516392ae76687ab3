package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"zlogsql/internal/storage"
	logx "zlogsql/pkg/logx"
)

// Sink is where drained batches go. Production uses storage.Store; tests
// inject fakes.
type Sink interface {
	InsertBatch(ctx context.Context, recs []storage.Record) error
	Close() error
}

// DialFunc opens a fresh sink. It is called from the writer goroutine only,
// on startup and after every connection reset.
type DialFunc func(ctx context.Context) (Sink, error)

type Config struct {
	// BatchSize caps how many records one transaction carries.
	BatchSize int

	// BackoffInitial/BackoffMax bound the reconnect delay. The delay
	// doubles on consecutive failures and resets on success.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// ShutdownFlush bounds the best-effort final drain on Stop().
	ShutdownFlush time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.ShutdownFlush <= 0 {
		c.ShutdownFlush = 5 * time.Second
	}
	return c
}

type connState int

const (
	stateDisconnected connState = iota
	stateConnected
	stateBackoff
)

// Writer is the single background consumer. All connection state lives in
// the writer goroutine; producers only ever touch the queue.
type Writer struct {
	cfg   Config
	queue *Queue
	dial  DialFunc
	log   logx.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	// Throttles for repeated operational messages during an outage.
	failLog rate.Sometimes
	dropLog rate.Sometimes

	// Owned by the run goroutine.
	sink        Sink
	state       connState
	delay       time.Duration
	down        bool
	seenDropped uint64
}

func NewWriter(queue *Queue, dial DialFunc, cfg Config, log logx.Logger) *Writer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Writer{
		cfg:     cfg.withDefaults(),
		queue:   queue,
		dial:    dial,
		log:     log,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		failLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
		dropLog: rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// Start launches the writer goroutine.
func (w *Writer) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the writer, waits for the bounded final flush and returns.
// Records still queued after the flush window are discarded (the queue is
// process-local by design).
func (w *Writer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.doneCh)

	for !w.stopping(ctx) {
		switch w.state {
		case stateDisconnected:
			w.connect(ctx)
		case stateBackoff:
			w.sleep(ctx, w.delay)
			w.state = stateDisconnected
		case stateConnected:
			w.drain(ctx)
		}
	}

	w.finalFlush()
}

func (w *Writer) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

func (w *Writer) connect(ctx context.Context) {
	sink, err := w.dial(ctx)
	if err != nil {
		w.noteFailure("database unreachable", err)
		return
	}
	w.sink = sink
	w.state = stateConnected
	w.delay = 0
	if w.down {
		w.down = false
		w.log.Info("database connection restored", logx.Int("queued", w.queue.Len()))
	} else {
		w.log.Info("database connected")
	}
}

// drain moves batches from the queue into the sink until stopped or the
// sink fails. On failure the whole batch goes back to the head of the
// queue and the connection is treated as suspect.
func (w *Writer) drain(ctx context.Context) {
	for {
		w.reportDrops()

		batch := w.queue.DequeueBatch(w.cfg.BatchSize)
		if batch == nil {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-w.queue.Wake():
				continue
			}
		}

		if err := w.sink.InsertBatch(ctx, batch); err != nil {
			w.queue.RequeueFront(batch)
			_ = w.sink.Close()
			w.sink = nil
			w.noteFailure("insert failed, batch requeued", err, logx.Int("batch", len(batch)))
			return
		}
	}
}

// noteFailure records a connection-class failure and schedules the next
// reconnect attempt with capped exponential backoff.
func (w *Writer) noteFailure(msg string, err error, fields ...logx.Field) {
	if w.delay <= 0 {
		w.delay = w.cfg.BackoffInitial
	} else {
		w.delay *= 2
		if w.delay > w.cfg.BackoffMax {
			w.delay = w.cfg.BackoffMax
		}
	}
	w.state = stateBackoff
	w.down = true

	fields = append(fields, logx.Err(err), logx.Duration("retry_in", w.delay), logx.Int("queued", w.queue.Len()))
	w.failLog.Do(func() {
		w.log.Error(msg, fields...)
	})
}

func (w *Writer) reportDrops() {
	d := w.queue.Dropped()
	if d == w.seenDropped {
		return
	}
	n := d - w.seenDropped
	w.seenDropped = d
	w.dropLog.Do(func() {
		w.log.Warn("queue over capacity, oldest records dropped", logx.Uint64("dropped", n), logx.Uint64("dropped_total", d))
	})
}

func (w *Writer) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	tmr := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !tmr.Stop() {
			<-tmr.C
		}
		return false
	case <-w.stopCh:
		if !tmr.Stop() {
			<-tmr.C
		}
		return false
	case <-tmr.C:
		return true
	}
}

// finalFlush makes one bounded attempt to persist whatever is still queued
// before shutdown. Not guaranteed to succeed.
func (w *Writer) finalFlush() {
	defer func() {
		if w.sink != nil {
			_ = w.sink.Close()
			w.sink = nil
		}
	}()

	if w.queue.Len() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownFlush)
	defer cancel()

	if w.sink == nil {
		sink, err := w.dial(ctx)
		if err != nil {
			w.log.Warn("final flush skipped, database unreachable", logx.Err(err), logx.Int("discarded", w.queue.Len()))
			return
		}
		w.sink = sink
	}

	for {
		batch := w.queue.DequeueBatch(w.cfg.BatchSize)
		if batch == nil {
			w.log.Debug("queue flushed on shutdown")
			return
		}
		if err := w.sink.InsertBatch(ctx, batch); err != nil {
			w.queue.RequeueFront(batch)
			w.log.Warn("final flush aborted", logx.Err(err), logx.Int("discarded", w.queue.Len()))
			return
		}
	}
}
