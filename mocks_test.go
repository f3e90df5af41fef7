package softphone

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/softphone/signaling"
)

// mockConn is an in-memory signaling.Conn.
type mockConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newMockConn() *mockConn {
	return &mockConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *mockConn) ReadFrame() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *mockConn) WriteFrame(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *mockConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// push delivers a frame from the server.
func (c *mockConn) push(frame string) {
	c.in <- []byte(frame)
}

// frames decodes every frame the client has written.
func (c *mockConn) frames(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.written))
	for _, w := range c.written {
		var m map[string]any
		if err := json.Unmarshal(w, &m); err != nil {
			t.Fatalf("client wrote invalid JSON %q: %v", w, err)
		}
		out = append(out, m)
	}
	return out
}

// mockDialer hands out queued connections and refuses when none is queued.
type mockDialer struct {
	mu    sync.Mutex
	conns []*mockConn
	urls  []string
}

func (d *mockDialer) queue(conn *mockConn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, conn)
}

func (d *mockDialer) Dial(ctx context.Context, url string) (signaling.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *mockDialer) dialedURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// stubClock records timers and fires them only on demand.
type stubClock struct {
	mu     sync.Mutex
	timers []*stubTimer
}

type stubTimer struct {
	clock *stubClock
	f     func()
	done  bool
}

func (c *stubClock) Now() time.Time { return time.Unix(0, 0) }

func (c *stubClock) AfterFunc(d time.Duration, f func()) signaling.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &stubTimer{clock: c, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *stubTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// pending returns the number of armed timers.
func (c *stubClock) pending() int {
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

// fire runs every armed timer.
func (c *stubClock) fire() {
	c.mu.Lock()
	var due []*stubTimer
	for _, t := range c.timers {
		if !t.done {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// pump iterates the client until cond holds or the test times out.
func pump(t *testing.T, c *Client, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		c.Iterate()
		time.Sleep(time.Millisecond)
	}
}
