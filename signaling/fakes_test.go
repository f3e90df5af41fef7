package signaling

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	done    bool
	stopped bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.done && !c.now.Before(t.at) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of armed timers.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.stopped = true
	return true
}

// testLoop stands in for the client event loop.
type testLoop struct {
	events chan func()
}

func newTestLoop() *testLoop {
	return &testLoop{events: make(chan func(), 64)}
}

func (l *testLoop) post(f func()) {
	l.events <- f
}

// runNext waits for and runs one posted event.
func (l *testLoop) runNext(t *testing.T) {
	t.Helper()
	select {
	case f := <-l.events:
		f()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

// assertIdle fails if an event is posted within a short window.
func (l *testLoop) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case <-l.events:
		t.Fatal("unexpected event posted")
	case <-time.After(50 * time.Millisecond):
	}
}

type dialResult struct {
	conn Conn
	err  error
}

// fakeDialer hands out queued results, one per Dial call.
type fakeDialer struct {
	mu       sync.Mutex
	results  chan dialResult
	attempts int
	urls     []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{results: make(chan dialResult, 16)}
}

func (d *fakeDialer) succeed(conn Conn) { d.results <- dialResult{conn: conn} }

func (d *fakeDialer) fail() { d.results <- dialResult{err: errors.New("connection refused")} }

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.attempts++
	d.urls = append(d.urls, url)
	d.mu.Unlock()

	select {
	case r := <-d.results:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// fakeConn is an in-memory Conn. Frames pushed to in are read; closing
// ends the reader with io.EOF.
type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	written  [][]byte
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteFrame(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}
