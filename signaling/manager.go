package signaling

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultReconnectDelay is the fixed wait before redialing after a drop.
	DefaultReconnectDelay = 5 * time.Second
	// DefaultDialTimeout bounds a single connection attempt.
	DefaultDialTimeout = 10 * time.Second
)

// Config configures a Manager.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
}

// Manager owns the connection to the signaling server.
//
// States move Disconnected -> Connecting -> Connected -> Disconnected. A
// failed dial or an unexpected close returns to Disconnected, fires the
// disconnect callback and schedules exactly one redial after the
// reconnect delay. Scheduling a redial cancels any pending one.
//
// Manager is confined to the client event loop. Dials and reads run on
// helper goroutines and hand their results back through the post function;
// the reconnect timer does the same. Results from a superseded connection
// are discarded.
type Manager struct {
	url            string
	reconnectDelay time.Duration
	dialTimeout    time.Duration

	dialer Dialer
	clock  Clock
	post   func(func())

	state      State
	conn       Conn
	generation uint64
	cancelDial context.CancelFunc
	wanted     bool

	retry    Timer
	retrySeq uint64

	stateCallback      func(State)
	frameCallback      func(Frame)
	connectedCallback  func()
	disconnectCallback func(error)
}

// NewManager creates a disconnected manager. post must run the given
// function on the event loop goroutine.
func NewManager(cfg Config, dialer Dialer, post func(func())) (*Manager, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}
	if dialer == nil {
		return nil, ErrNilDialer
	}
	if post == nil {
		return nil, ErrNilPost
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.ReconnectDelay < 0 {
		return nil, ErrInvalidDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	return &Manager{
		url:            cfg.URL,
		reconnectDelay: cfg.ReconnectDelay,
		dialTimeout:    cfg.DialTimeout,
		dialer:         dialer,
		clock:          SystemClock{},
		post:           post,
		state:          StateDisconnected,
	}, nil
}

// SetClock replaces the clock used for the reconnect timer.
func (m *Manager) SetClock(clock Clock) {
	if clock == nil {
		clock = SystemClock{}
	}
	m.clock = clock
}

// SetURL changes the server URL used by the next dial.
func (m *Manager) SetURL(url string) error {
	if url == "" {
		return ErrEmptyURL
	}
	m.url = url
	return nil
}

// URL returns the configured server URL.
func (m *Manager) URL() string {
	return m.url
}

// OnStateChange sets the callback invoked on every state change.
func (m *Manager) OnStateChange(callback func(State)) {
	m.stateCallback = callback
}

// OnFrame sets the callback for decoded inbound frames.
func (m *Manager) OnFrame(callback func(Frame)) {
	m.frameCallback = callback
}

// OnConnected sets the callback invoked each time a connection opens,
// after the state becomes Connected.
func (m *Manager) OnConnected(callback func()) {
	m.connectedCallback = callback
}

// OnDisconnected sets the callback invoked when a dial fails or an open
// connection closes unexpectedly. The error wraps ErrConnectionLost.
func (m *Manager) OnDisconnected(callback func(error)) {
	m.disconnectCallback = callback
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.state
}

// RetryPending reports whether a redial is scheduled.
func (m *Manager) RetryPending() bool {
	return m.retry != nil
}

// Connect starts connecting and keeps the connection up until Disconnect.
// It is a no-op while connecting or connected.
func (m *Manager) Connect() {
	m.wanted = true
	if m.state != StateDisconnected {
		return
	}
	m.cancelRetry()
	m.dial()
}

// Disconnect closes the connection and cancels any pending redial.
func (m *Manager) Disconnect() {
	m.wanted = false
	m.cancelRetry()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.generation++
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Disconnect",
		"url":      m.url,
	}).Info("Disconnected from signaling server")
	m.setState(StateDisconnected)
}

// Send writes a frame to the server. A write failure closes the
// connection; the reader then reports the drop.
func (m *Manager) Send(data []byte) error {
	if m.state != StateConnected || m.conn == nil {
		return ErrNotConnected
	}
	if err := m.conn.WriteFrame(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Send",
			"error":    err.Error(),
		}).Warn("Frame write failed, closing connection")
		m.conn.Close()
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

func (m *Manager) dial() {
	m.generation++
	gen := m.generation
	url := m.url
	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	m.cancelDial = cancel

	logrus.WithFields(logrus.Fields{
		"function":   "dial",
		"url":        url,
		"generation": gen,
	}).Info("Connecting to signaling server")
	m.setState(StateConnecting)

	go func() {
		conn, err := m.dialer.Dial(ctx, url)
		cancel()
		m.post(func() { m.dialFinished(gen, conn, err) })
	}()
}

func (m *Manager) dialFinished(gen uint64, conn Conn, err error) {
	if gen != m.generation {
		if conn != nil {
			conn.Close()
		}
		return
	}
	m.cancelDial = nil

	if err != nil {
		m.lost("dial", fmt.Errorf("%w: %v", ErrConnectionLost, err))
		return
	}

	m.conn = conn
	m.cancelRetry()
	logrus.WithFields(logrus.Fields{
		"function": "dialFinished",
		"url":      m.url,
	}).Info("Connected to signaling server")
	m.setState(StateConnected)

	go m.readLoop(gen, conn)

	if m.connectedCallback != nil {
		m.connectedCallback()
	}
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadFrame()
		if err != nil {
			m.post(func() { m.readFailed(gen, err) })
			return
		}
		m.post(func() { m.handleFrame(gen, data) })
	}
}

func (m *Manager) handleFrame(gen uint64, data []byte) {
	if gen != m.generation {
		return
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleFrame",
			"size":     len(data),
			"error":    err.Error(),
		}).Warn("Dropping malformed frame")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "handleFrame",
		"kind":     frame.Kind.String(),
		"from":     frame.From,
	}).Debug("Received frame")

	if m.frameCallback != nil {
		m.frameCallback(frame)
	}
}

func (m *Manager) readFailed(gen uint64, err error) {
	if gen != m.generation {
		return
	}
	m.lost("readLoop", fmt.Errorf("%w: %v", ErrConnectionLost, err))
}

// lost moves to Disconnected after a failure and arms the redial.
func (m *Manager) lost(function string, err error) {
	m.generation++
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}

	logrus.WithFields(logrus.Fields{
		"function": function,
		"url":      m.url,
		"error":    err.Error(),
	}).Warn("Signaling connection lost")
	m.setState(StateDisconnected)

	if m.disconnectCallback != nil {
		m.disconnectCallback(err)
	}
	if m.wanted && m.state == StateDisconnected {
		m.scheduleRetry()
	}
}

func (m *Manager) scheduleRetry() {
	m.cancelRetry()
	m.retrySeq++
	seq := m.retrySeq

	logrus.WithFields(logrus.Fields{
		"function": "scheduleRetry",
		"delay":    m.reconnectDelay.String(),
	}).Info("Scheduling reconnect")

	m.retry = m.clock.AfterFunc(m.reconnectDelay, func() {
		m.post(func() { m.retryFired(seq) })
	})
}

func (m *Manager) retryFired(seq uint64) {
	if seq != m.retrySeq || m.retry == nil {
		return
	}
	m.retry = nil
	if !m.wanted || m.state != StateDisconnected {
		return
	}
	m.dial()
}

func (m *Manager) cancelRetry() {
	if m.retry == nil {
		return
	}
	m.retry.Stop()
	m.retry = nil
	m.retrySeq++
}

func (m *Manager) setState(next State) {
	if m.state == next {
		return
	}
	m.state = next
	if m.stateCallback != nil {
		m.stateCallback(next)
	}
}
