package signaling

// State represents the connection to the signaling server.
type State uint8

const (
	// StateDisconnected means no connection and no dial in progress.
	StateDisconnected State = iota
	// StateConnecting means a dial is in progress.
	StateConnecting
	// StateConnected means frames can be sent and received.
	StateConnected
)

// String returns the status text shown to the user.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}
