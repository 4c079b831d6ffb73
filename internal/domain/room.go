package domain

type (
	RoomID   string
	ServerID string

	// SigningKey is the public signing key that identifies a room scope on
	// the signaling relay. Presence and hint gossip is addressed by it.
	SigningKey string
)

// Room is one voice/text room inside a server.
type Room struct {
	ID       RoomID
	ServerID ServerID
	Name     string
}

// Server is a "house": a membership scope owning rooms and a signing key.
type Server struct {
	ID         ServerID
	SigningKey SigningKey
	Name       string
	Rooms      []Room
	Members    []UserID
}

// VoiceSession is the local participant's current voice context. It exists
// only while joined and is destroyed on leave or teardown.
type VoiceSession struct {
	RoomID   RoomID   `json:"room_id"`
	ServerID ServerID `json:"server_id"`
	PeerID   PeerID   `json:"peer_id"`
	Muted    bool     `json:"muted"`
}
