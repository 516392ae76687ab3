package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"zlogsql/internal/storage"
	logx "zlogsql/pkg/logx"
)

// fakeSink records inserted batches and can be scripted to fail.
type fakeSink struct {
	mu     sync.Mutex
	rows   []storage.Record
	failN  int // fail the next N InsertBatch calls wholesale
	closed int
}

func (f *fakeSink) InsertBatch(_ context.Context, recs []storage.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("insert boom")
	}
	f.rows = append(f.rows, recs...)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSink) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.Line
	}
	return out
}

// fakeDialer hands out a sink, or refuses while "down".
type fakeDialer struct {
	mu    sync.Mutex
	sink  *fakeSink
	down  bool
	calls int
}

func (d *fakeDialer) dial(context.Context) (Sink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.down {
		return nil, errors.New("dial refused")
	}
	return d.sink, nil
}

func (d *fakeDialer) setDown(down bool) {
	d.mu.Lock()
	d.down = down
	d.mu.Unlock()
}

func testConfig() Config {
	return Config{
		BatchSize:      8,
		BackoffInitial: 2 * time.Millisecond,
		BackoffMax:     10 * time.Millisecond,
		ShutdownFlush:  time.Second,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestWriterPersistsInOrder(t *testing.T) {
	t.Parallel()
	q := NewQueue(0)
	d := &fakeDialer{sink: &fakeSink{}}
	w := NewWriter(q, d.dial, testConfig(), logx.Nop())

	w.Start(context.Background())
	defer w.Stop()

	const n = 50
	for i := 0; i < n; i++ {
		q.Enqueue(rec(fmt.Sprintf("m%d", i)))
	}

	waitFor(t, 2*time.Second, func() bool { return len(d.sink.snapshot()) == n })
	got := d.sink.snapshot()
	for i := 0; i < n; i++ {
		if got[i] != fmt.Sprintf("m%d", i) {
			t.Fatalf("position %d: got %q", i, got[i])
		}
	}
}

func TestWriterSurvivesOutage(t *testing.T) {
	t.Parallel()
	q := NewQueue(0)
	d := &fakeDialer{sink: &fakeSink{}, down: true}
	w := NewWriter(q, d.dial, testConfig(), logx.Nop())

	w.Start(context.Background())
	defer w.Stop()

	const n = 100
	for i := 0; i < n; i++ {
		q.Enqueue(rec(fmt.Sprintf("m%d", i)))
	}

	// While the database is down everything stays queued.
	waitFor(t, time.Second, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.calls >= 2
	})
	if got := len(d.sink.snapshot()); got != 0 {
		t.Fatalf("%d rows persisted during outage", got)
	}
	if q.Len() != n {
		t.Fatalf("queue Len = %d during outage, want %d", q.Len(), n)
	}

	d.setDown(false)
	waitFor(t, 2*time.Second, func() bool { return len(d.sink.snapshot()) == n })
	got := d.sink.snapshot()
	for i := 0; i < n; i++ {
		if got[i] != fmt.Sprintf("m%d", i) {
			t.Fatalf("position %d after recovery: got %q", i, got[i])
		}
	}
}

func TestWriterRequeuesFailedBatch(t *testing.T) {
	t.Parallel()
	q := NewQueue(0)
	sink := &fakeSink{failN: 1}
	d := &fakeDialer{sink: sink}
	w := NewWriter(q, d.dial, testConfig(), logx.Nop())

	w.Start(context.Background())
	defer w.Stop()

	const n = 5
	for i := 0; i < n; i++ {
		q.Enqueue(rec(fmt.Sprintf("m%d", i)))
	}

	// First attempt fails wholesale; after reconnect the same batch lands
	// exactly once, in order.
	waitFor(t, 2*time.Second, func() bool { return len(sink.snapshot()) == n })
	got := sink.snapshot()
	for i := 0; i < n; i++ {
		if got[i] != fmt.Sprintf("m%d", i) {
			t.Fatalf("position %d after retry: got %q", i, got[i])
		}
	}

	sink.mu.Lock()
	closed := sink.closed
	sink.mu.Unlock()
	if closed == 0 {
		t.Fatal("sink not reset after failed insert")
	}
}

func TestEnqueueStaysFastDuringOutage(t *testing.T) {
	t.Parallel()
	q := NewQueue(0)
	d := &fakeDialer{down: true}
	w := NewWriter(q, d.dial, testConfig(), logx.Nop())

	w.Start(context.Background())
	defer w.Stop()

	start := time.Now()
	for i := 0; i < 10000; i++ {
		q.Enqueue(rec("x"))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("10k enqueues took %v with database down", elapsed)
	}
}

func TestWriterFlushesOnStop(t *testing.T) {
	t.Parallel()
	q := NewQueue(0)
	d := &fakeDialer{sink: &fakeSink{}}
	w := NewWriter(q, d.dial, testConfig(), logx.Nop())

	w.Start(context.Background())
	const n = 5
	for i := 0; i < n; i++ {
		q.Enqueue(rec(fmt.Sprintf("m%d", i)))
	}
	w.Stop()

	if got := len(d.sink.snapshot()); got != n {
		t.Fatalf("%d rows persisted after Stop, want %d", got, n)
	}
	if q.Len() != 0 {
		t.Fatalf("queue Len = %d after Stop", q.Len())
	}
}

func TestWriterStopDuringOutageDiscards(t *testing.T) {
	t.Parallel()
	q := NewQueue(0)
	d := &fakeDialer{down: true}
	cfg := testConfig()
	cfg.ShutdownFlush = 50 * time.Millisecond
	w := NewWriter(q, d.dial, cfg, logx.Nop())

	w.Start(context.Background())
	q.Enqueue(rec("doomed"))

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return during outage")
	}
}
