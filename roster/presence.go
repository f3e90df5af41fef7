package roster

// Presence represents a peer's reachability as reported by the server.
type Presence uint8

const (
	// PresenceUnknown is reported for status values the client does not
	// recognise. It is the zero value.
	PresenceUnknown Presence = iota
	// PresenceOnline means the peer is signed in and reachable.
	PresenceOnline
	// PresenceOffline means the peer is not signed in.
	PresenceOffline
	// PresenceBusy means the peer is signed in but in a call or unavailable.
	PresenceBusy
)

// String returns the wire name of the presence value.
func (p Presence) String() string {
	switch p {
	case PresenceOnline:
		return "Online"
	case PresenceOffline:
		return "Offline"
	case PresenceBusy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// Color returns the indicator colour a presentation layer should use.
func (p Presence) Color() string {
	switch p {
	case PresenceOnline:
		return "green"
	case PresenceOffline:
		return "red"
	case PresenceBusy:
		return "yellow"
	default:
		return "gray"
	}
}

// ParsePresence maps a wire status to a Presence. The boolean is false when
// the status is not one of Online, Offline or Busy, in which case
// PresenceUnknown is returned.
func ParsePresence(status string) (Presence, bool) {
	switch status {
	case "Online":
		return PresenceOnline, true
	case "Offline":
		return PresenceOffline, true
	case "Busy":
		return PresenceBusy, true
	default:
		return PresenceUnknown, false
	}
}
