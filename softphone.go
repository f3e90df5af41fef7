package softphone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/softphone/call"
	"github.com/opd-ai/softphone/conversation"
	"github.com/opd-ai/softphone/roster"
	"github.com/opd-ai/softphone/signaling"
)

// LocalSender is the sender recorded for messages typed by the local user.
const LocalSender = "Me"

// eventQueueSize bounds events posted from helper goroutines.
const eventQueueSize = 256

// RosterCallback is called after every roster replacement.
type RosterCallback func(snapshot roster.Snapshot)

// CallStateCallback is called after every call state transition.
type CallStateCallback func(info call.Info)

// ConnectionStateCallback is called when the server connection changes state.
type ConnectionStateCallback func(state signaling.State)

// MessageCallback is called when a chat message from a peer is stored.
type MessageCallback func(peer roster.PeerID, message conversation.Message)

// WarningCallback receives soft warnings to surface to the user.
type WarningCallback func(err error)

// Client owns the roster, call session, conversation store and server
// connection of one signed-in user.
//
// Client is driven by a single event loop: call Iterate repeatedly (or Run)
// from one goroutine and make every other call from that same goroutine.
// Callbacks are invoked on the loop goroutine. Post is the only method safe
// to call from other goroutines.
type Client struct {
	options *Options

	roster   *roster.Model
	session  *call.Session
	store    *conversation.Store
	signaler *signaling.Manager

	credentials *Credentials

	events   chan func()
	done     chan struct{}
	killOnce sync.Once

	rosterCallback     RosterCallback
	callStateCallback  CallStateCallback
	connectionCallback ConnectionStateCallback
	messageCallback    MessageCallback
	warningCallback    WarningCallback
}

// New creates a new Client with the given options. A nil options uses
// NewOptions.
func New(options *Options) (*Client, error) {
	if options == nil {
		options = NewOptions()
	}
	if err := options.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Options validation failed")
		return nil, err
	}

	c := &Client{
		options: options,
		roster:  roster.NewModel(),
		events:  make(chan func(), eventQueueSize),
		done:    make(chan struct{}),
	}

	store, err := newStore(options)
	if err != nil {
		return nil, err
	}
	c.store = store

	session, err := call.NewSession(c.roster, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create call session: %w", err)
	}
	c.session = session

	dialer := options.Dialer
	if dialer == nil {
		dialer = signaling.NewWebSocketDialer()
	}
	mgr, err := signaling.NewManager(signaling.Config{
		URL:            options.ServerURL,
		ReconnectDelay: options.ReconnectDelay,
		DialTimeout:    options.DialTimeout,
	}, dialer, c.Post)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	if options.Clock != nil {
		mgr.SetClock(options.Clock)
	}
	c.signaler = mgr

	c.wire()

	logrus.WithFields(logrus.Fields{
		"function":   "New",
		"server_url": options.ServerURL,
		"data_dir":   options.DataDir,
		"encrypted":  options.HistoryPassphrase != "",
	}).Info("Client created")
	return c, nil
}

func newStore(options *Options) (*conversation.Store, error) {
	backend, err := conversation.NewFileBackend(options.DataDir)
	if err != nil {
		return nil, err
	}
	store, err := conversation.NewStore(backend)
	if err != nil {
		return nil, err
	}
	if options.HistoryPassphrase != "" {
		sealer, err := conversation.NewSecretboxSealer([]byte(options.HistoryPassphrase), options.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history encryption: %w", err)
		}
		store.SetSealer(sealer)
	}
	return store, nil
}

func (c *Client) wire() {
	c.roster.OnChange(func(snapshot roster.Snapshot) {
		if c.rosterCallback != nil {
			c.rosterCallback(snapshot)
		}
	})
	c.session.OnStateChange(func(info call.Info) {
		if c.callStateCallback != nil {
			c.callStateCallback(info)
		}
	})
	c.store.OnWarning(func(err error) {
		if c.warningCallback != nil {
			c.warningCallback(err)
		}
	})
	c.signaler.OnStateChange(func(state signaling.State) {
		if c.connectionCallback != nil {
			c.connectionCallback(state)
		}
	})
	c.signaler.OnConnected(c.handleConnected)
	c.signaler.OnDisconnected(c.handleDisconnected)
	c.signaler.OnFrame(c.handleFrame)
}

// OnRosterChange sets the callback for roster replacements.
func (c *Client) OnRosterChange(callback RosterCallback) {
	c.rosterCallback = callback
}

// OnCallState sets the callback for call state transitions.
func (c *Client) OnCallState(callback CallStateCallback) {
	c.callStateCallback = callback
}

// OnConnectionState sets the callback for connection state changes.
func (c *Client) OnConnectionState(callback ConnectionStateCallback) {
	c.connectionCallback = callback
}

// OnMessage sets the callback for incoming chat messages.
func (c *Client) OnMessage(callback MessageCallback) {
	c.messageCallback = callback
}

// OnWarning sets the callback for soft warnings such as history that could
// not be saved.
func (c *Client) OnWarning(callback WarningCallback) {
	c.warningCallback = callback
}

// Post queues f to run on the event loop. It is safe to call from any
// goroutine and blocks while the queue is full. After Kill, f is dropped.
func (c *Client) Post(f func()) {
	if !c.IsRunning() {
		return
	}
	select {
	case c.events <- f:
	case <-c.done:
	}
}

// Iterate runs every event queued so far and returns.
func (c *Client) Iterate() {
	for n := len(c.events); n > 0; n-- {
		select {
		case f := <-c.events:
			f()
		case <-c.done:
			return
		}
	}
}

// Run processes events until ctx is cancelled or Kill is called.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case f := <-c.events:
			f()
		}
	}
}

// IterationInterval returns the recommended interval between iterations.
func (c *Client) IterationInterval() time.Duration {
	return c.options.IterationInterval
}

// IsRunning reports whether Kill has not been called.
func (c *Client) IsRunning() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Done returns a channel that is closed once Kill is called.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Kill disconnects and stops the client. Queued events are discarded.
func (c *Client) Kill() {
	c.killOnce.Do(func() {
		c.credentials = nil
		c.session.Reset()
		c.signaler.Disconnect()
		close(c.done)
		logrus.WithField("function", "Kill").Info("Client stopped")
	})
}

// SignIn validates creds, points the connection at the given server and
// connects. A login frame is sent on every successful connect until Logout.
func (c *Client) SignIn(creds Credentials) error {
	if err := creds.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SignIn",
			"username": creds.Username,
			"error":    err.Error(),
		}).Warn("Sign-in rejected")
		return err
	}

	url := creds.ServerURL(c.options.ServerURL)
	if c.signaler.State() != signaling.StateDisconnected {
		// Leaving the current server ends its call and drops its roster.
		c.session.Reset()
		c.signaler.Disconnect()
		c.roster.Clear()
	}
	if err := c.signaler.SetURL(url); err != nil {
		return err
	}
	c.credentials = &creds

	logrus.WithFields(logrus.Fields{
		"function": "SignIn",
		"username": creds.Username,
		"url":      url,
	}).Info("Signing in")
	c.signaler.Connect()
	return nil
}

// Connect connects to the configured server without signing in.
func (c *Client) Connect() {
	c.signaler.Connect()
}

// Logout drops any call, clears the roster and disconnects without
// scheduling a reconnect.
func (c *Client) Logout() {
	c.credentials = nil
	c.session.Reset()
	c.signaler.Disconnect()
	c.roster.Clear()
	logrus.WithField("function", "Logout").Info("Logged out")
}

// Username returns the signed-in user, or "" before SignIn.
func (c *Client) Username() string {
	if c.credentials == nil {
		return ""
	}
	return c.credentials.Username
}

// Roster returns the current roster snapshot.
func (c *Client) Roster() roster.Snapshot {
	return c.roster.Snapshot()
}

// BindPeer returns an action for a roster row that re-resolves id each
// time it runs. See roster.Model.Bind.
func (c *Client) BindPeer(id roster.PeerID, fn func(roster.Entry)) func() bool {
	return c.roster.Bind(id, fn)
}

// CallInfo returns the current call session.
func (c *Client) CallInfo() call.Info {
	return c.session.Info()
}

// ConnectionState returns the server connection state.
func (c *Client) ConnectionState() signaling.State {
	return c.signaler.State()
}

// Call dials peer.
func (c *Client) Call(peer roster.PeerID) error {
	return c.session.Dial(peer)
}

// StartConference starts a conference with the given participants.
func (c *Client) StartConference(participants []roster.PeerID) error {
	return c.session.StartConference(participants)
}

// Accept answers the ringing call.
func (c *Client) Accept() error {
	return c.session.Accept()
}

// Reject declines the ringing call.
func (c *Client) Reject() error {
	return c.session.Reject()
}

// Cancel withdraws the outgoing call.
func (c *Client) Cancel() error {
	return c.session.Cancel()
}

// Hangup ends the active call or leaves the conference.
func (c *Client) Hangup() error {
	return c.session.Hangup()
}

// SendMessage stores body in the conversation with peer and sends it.
// Surrounding whitespace is trimmed first, so a blank body is rejected with
// limits.ErrMessageEmpty.
// The message is kept even when it cannot be sent; the send error is then
// returned with the updated record.
func (c *Client) SendMessage(peer roster.PeerID, body string) (conversation.Record, error) {
	body = strings.TrimSpace(body)
	rec, err := c.store.Append(peer, LocalSender, body)
	if err != nil {
		return conversation.Record{}, err
	}

	data, err := signaling.EncodeMessage(peer, body)
	if err != nil {
		return rec, fmt.Errorf("send message to %q: %w", peer, err)
	}
	if err := c.signaler.Send(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SendMessage",
			"peer":     peer,
			"error":    err.Error(),
		}).Warn("Message stored but not sent")
		return rec, fmt.Errorf("send message to %q: %w", peer, err)
	}
	return rec, nil
}

// History returns the conversation with peer.
func (c *Client) History(peer roster.PeerID) (conversation.Record, error) {
	return c.store.Load(peer)
}

// ClearHistory empties the conversation with peer.
func (c *Client) ClearHistory(peer roster.PeerID) error {
	return c.store.Clear(peer)
}

// ExportHistory writes the conversation with peer to w.
func (c *Client) ExportHistory(peer roster.PeerID, w io.Writer) error {
	return c.store.Export(peer, w)
}

// SendSignal delivers a call-control signal to the server.
func (c *Client) SendSignal(sig call.Signal) error {
	data, err := signaling.EncodeSignal(sig)
	if err != nil {
		return err
	}
	return c.signaler.Send(data)
}

func (c *Client) handleConnected() {
	if c.credentials == nil {
		return
	}
	data, err := signaling.EncodeLogin(c.credentials.Username, c.credentials.Password)
	if err == nil {
		err = c.signaler.Send(data)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleConnected",
			"username": c.credentials.Username,
			"error":    err.Error(),
		}).Error("Failed to send login")
	}
}

func (c *Client) handleDisconnected(err error) {
	logrus.WithFields(logrus.Fields{
		"function": "handleDisconnected",
		"error":    err.Error(),
	}).Info("Connection lost, clearing roster and call")
	c.session.Reset()
	c.roster.Clear()
}

func (c *Client) handleFrame(frame signaling.Frame) {
	var err error
	switch frame.Kind {
	case signaling.FrameRoster:
		c.roster.Replace(frame.Roster)
		return
	case signaling.FrameIncoming:
		err = c.session.RemoteIncoming(frame.From, frame.CallID)
	case signaling.FrameAccepted:
		err = c.session.RemoteAccepted(frame.From, frame.CallID)
	case signaling.FrameRejected:
		err = c.session.RemoteRejected(frame.From, frame.CallID)
	case signaling.FrameEnded:
		err = c.session.RemoteEnded(frame.From, frame.CallID)
	case signaling.FrameMessage:
		c.receiveMessage(frame.From, frame.Body)
		return
	}

	if err != nil {
		level := logrus.WarnLevel
		if errors.Is(err, call.ErrSessionBusy) {
			level = logrus.InfoLevel
		}
		logrus.WithFields(logrus.Fields{
			"function": "handleFrame",
			"kind":     frame.Kind.String(),
			"from":     frame.From,
			"call_id":  frame.CallID,
			"error":    err.Error(),
		}).Log(level, "Call event not applied")
	}
}

func (c *Client) receiveMessage(from roster.PeerID, body string) {
	rec, err := c.store.Append(from, string(from), body)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "receiveMessage",
			"from":     from,
			"error":    err.Error(),
		}).Warn("Dropping incoming message")
		return
	}
	if c.messageCallback != nil {
		c.messageCallback(from, rec.Messages[len(rec.Messages)-1])
	}
}
