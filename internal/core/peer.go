package core

import "github.com/hearthchat/hearth/internal/domain"

// ConnState is the lifecycle of one peer media connection.
type ConnState int

const (
	ConnNew ConnState = iota
	ConnConnecting
	ConnConnected
	// ConnDisconnected is transient: the path may self-heal, no action
	// is taken beyond logging.
	ConnDisconnected
	ConnFailed
	ConnClosed
)

// MarshalJSON renders the state name for the status API.
func (s ConnState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s ConnState) String() string {
	switch s {
	case ConnNew:
		return "new"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

// Terminal reports whether the connection can never carry media again.
func (s ConnState) Terminal() bool {
	return s == ConnFailed || s == ConnClosed
}

// PeerConnectionInfo is a read-only view of one remote participant's
// connection, keyed by the ephemeral peer id. The stable user id is the
// secondary index used to detect and retire duplicates across reconnects.
type PeerConnectionInfo struct {
	PeerID domain.PeerID `json:"peer_id"`
	UserID domain.UserID `json:"user_id"`
	State  ConnState     `json:"state"`
}
