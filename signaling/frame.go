package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/softphone/call"
	"github.com/opd-ai/softphone/limits"
	"github.com/opd-ai/softphone/roster"
)

// FrameKind identifies a decoded inbound frame.
type FrameKind uint8

const (
	// FrameRoster is a whole-list roster snapshot.
	FrameRoster FrameKind = iota + 1
	// FrameIncoming is a call offer from a peer.
	FrameIncoming
	// FrameAccepted means the callee answered our call.
	FrameAccepted
	// FrameRejected means the callee declined our call.
	FrameRejected
	// FrameEnded means the peer hung up.
	FrameEnded
	// FrameMessage is a chat message from a peer.
	FrameMessage
)

var frameTypes = map[string]FrameKind{
	"incoming": FrameIncoming,
	"accepted": FrameAccepted,
	"rejected": FrameRejected,
	"ended":    FrameEnded,
	"message":  FrameMessage,
}

// String returns the wire name of the frame kind.
func (k FrameKind) String() string {
	if k == FrameRoster {
		return "roster"
	}
	for name, kind := range frameTypes {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Frame is a decoded inbound frame. Roster is set for FrameRoster; the
// other kinds carry From and, depending on kind, CallID or Body.
type Frame struct {
	Kind   FrameKind
	Roster []roster.Entry
	From   roster.PeerID
	CallID string
	Body   string
}

type rosterElement struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type inboundMessage struct {
	Type   string `json:"type"`
	From   string `json:"from"`
	CallID string `json:"call_id"`
	Body   string `json:"body"`
}

type outboundMessage struct {
	Type         string          `json:"type"`
	To           roster.PeerID   `json:"to,omitempty"`
	CallID       string          `json:"call_id,omitempty"`
	Participants []roster.PeerID `json:"participants,omitempty"`
	Username     string          `json:"username,omitempty"`
	Password     string          `json:"password,omitempty"`
	Body         string          `json:"body,omitempty"`
}

// DecodeFrame parses an inbound frame. A JSON array is a roster snapshot;
// a JSON object is a signaling message selected by its "type" field.
// Anything else returns an error wrapping ErrMalformedFrame.
func DecodeFrame(data []byte) (Frame, error) {
	if err := limits.ValidateFrame(data); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		return decodeRoster(trimmed)
	case len(trimmed) > 0 && trimmed[0] == '{':
		return decodeMessage(trimmed)
	default:
		return Frame{}, fmt.Errorf("%w: not a JSON array or object", ErrMalformedFrame)
	}
}

func decodeRoster(data []byte) (Frame, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return Frame{}, fmt.Errorf("%w: roster: %v", ErrMalformedFrame, err)
	}

	entries := make([]roster.Entry, 0, len(elements))
	for i, raw := range elements {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '"' {
			var name string
			if err := json.Unmarshal(raw, &name); err != nil {
				return Frame{}, fmt.Errorf("%w: roster element %d: %v", ErrMalformedFrame, i, err)
			}
			if name == "" {
				skipEmptyName(i)
				continue
			}
			entries = append(entries, roster.Entry{ID: roster.PeerID(name), Presence: roster.PresenceOffline})
			continue
		}

		if len(raw) == 0 || raw[0] != '{' {
			return Frame{}, fmt.Errorf("%w: roster element %d is not an object", ErrMalformedFrame, i)
		}
		var el rosterElement
		if err := json.Unmarshal(raw, &el); err != nil {
			return Frame{}, fmt.Errorf("%w: roster element %d: %v", ErrMalformedFrame, i, err)
		}
		if el.Name == "" {
			skipEmptyName(i)
			continue
		}
		presence, ok := roster.ParsePresence(el.Status)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"function": "DecodeFrame",
				"peer":     el.Name,
				"status":   el.Status,
			}).Warn("Unknown presence status")
		}
		entries = append(entries, roster.Entry{ID: roster.PeerID(el.Name), Presence: presence})
	}

	return Frame{Kind: FrameRoster, Roster: entries}, nil
}

func skipEmptyName(index int) {
	logrus.WithFields(logrus.Fields{
		"function": "DecodeFrame",
		"index":    index,
	}).Warn("Skipping roster element without a name")
}

func decodeMessage(data []byte) (Frame, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	kind, ok := frameTypes[msg.Type]
	if !ok {
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, msg.Type)
	}
	if msg.From == "" {
		return Frame{}, fmt.Errorf("%w: %s without sender", ErrMalformedFrame, msg.Type)
	}
	return Frame{
		Kind:   kind,
		From:   roster.PeerID(msg.From),
		CallID: msg.CallID,
		Body:   msg.Body,
	}, nil
}

// EncodeLogin builds the login frame sent after every successful connect.
func EncodeLogin(username, password string) ([]byte, error) {
	return json.Marshal(outboundMessage{Type: "login", Username: username, Password: password})
}

// EncodeSignal builds a call-control frame.
func EncodeSignal(sig call.Signal) ([]byte, error) {
	name := sig.Kind.String()
	if name == "unknown" {
		return nil, fmt.Errorf("encode signal: unknown kind %d", sig.Kind)
	}
	msg := outboundMessage{Type: name, To: sig.To, CallID: sig.CallID}
	if sig.Kind == call.SignalConference || sig.To == "" {
		msg.To = ""
		msg.Participants = sig.Participants
	}
	return json.Marshal(msg)
}

// EncodeMessage builds an outgoing chat frame.
func EncodeMessage(to roster.PeerID, body string) ([]byte, error) {
	return json.Marshal(outboundMessage{Type: "message", To: to, Body: body})
}
