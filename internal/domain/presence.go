package domain

// PresenceRecord is one remote user's presence inside one room scope.
// Updated by full snapshot (replace all records for a key) or by delta
// (single-user toggle).
type PresenceRecord struct {
	RoomKey   SigningKey `json:"room_key"`
	UserID    UserID     `json:"user_id"`
	Online    bool       `json:"online"`
	ActiveKey SigningKey `json:"active_room_key,omitempty"`
	InVoice   bool       `json:"in_voice"`
}

// PresenceLevel is the derived UI state for one user in one room.
type PresenceLevel int

const (
	PresenceOffline PresenceLevel = iota
	PresenceOnline
	PresenceActive
	PresenceInCall
)

func (l PresenceLevel) String() string {
	switch l {
	case PresenceOnline:
		return "online"
	case PresenceActive:
		return "active"
	case PresenceInCall:
		return "in-call"
	default:
		return "offline"
	}
}

// Level collapses the raw online/active/in-voice signals into the single
// value the UI renders.
func (p PresenceRecord) Level() PresenceLevel {
	switch {
	case !p.Online:
		return PresenceOffline
	case p.InVoice:
		return PresenceInCall
	case p.ActiveKey == p.RoomKey:
		return PresenceActive
	default:
		return PresenceOnline
	}
}
