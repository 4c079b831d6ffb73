// Package protocol defines the JSON envelopes exchanged with the signaling
// relay. Every message carries a "type" discriminator; one WebSocket
// multiplexes voice negotiation, room registration and presence/profile
// gossip.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/hearthchat/hearth/internal/domain"
)

const (
	TypeVoiceRegister   = "voice_register"
	TypeVoiceRegistered = "voice_registered"
	TypeVoicePeerJoined = "voice_peer_joined"
	TypeVoicePeerLeft   = "voice_peer_left"
	TypeVoiceOffer      = "voice_offer"
	TypeVoiceAnswer     = "voice_answer"
	TypeVoiceCandidate  = "voice_candidate"
	TypeVoiceUnregister = "voice_unregister"

	TypeRegister    = "register"
	TypeHintUpdated = "hint_updated"

	TypePresenceHello    = "presence_hello"
	TypePresenceSnapshot = "presence_snapshot"
	TypePresenceUpdate   = "presence_update"
	TypeVoicePresence    = "voice_presence_update"

	TypeProfileAnnounce = "profile_announce"
	TypeProfileHello    = "profile_hello"
	TypeProfileUpdate   = "profile_update"
	TypeProfileSnapshot = "profile_snapshot"
)

// PeerInfo pairs the ephemeral routing id with the stable account id.
type PeerInfo struct {
	PeerID domain.PeerID `json:"peer_id"`
	UserID domain.UserID `json:"user_id"`
}

// VoiceRegister announces the local session to a voice room.
type VoiceRegister struct {
	Type     string          `json:"type"`
	RoomID   domain.RoomID   `json:"room_id"`
	ServerID domain.ServerID `json:"server_id"`
	PeerID   domain.PeerID   `json:"peer_id"`
	UserID   domain.UserID   `json:"user_id"`
}

// VoiceRegistered is the relay's reply: the current room roster. The local
// session offers to every listed peer.
type VoiceRegistered struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"room_id"`
	Peers  []PeerInfo    `json:"peers"`
}

type VoicePeerJoined struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"room_id"`
	PeerID domain.PeerID `json:"peer_id"`
	UserID domain.UserID `json:"user_id"`
}

type VoicePeerLeft struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"room_id"`
	PeerID domain.PeerID `json:"peer_id"`
	UserID domain.UserID `json:"user_id"`
}

// VoiceOffer / VoiceAnswer carry an SDP addressed to one remote peer.
type VoiceOffer struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"room_id"`
	FromPeer domain.PeerID `json:"from_peer"`
	FromUser domain.UserID `json:"from_user"`
	ToPeer   domain.PeerID `json:"to_peer"`
	SDP      string        `json:"sdp"`
}

type VoiceAnswer struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"room_id"`
	FromPeer domain.PeerID `json:"from_peer"`
	FromUser domain.UserID `json:"from_user"`
	ToPeer   domain.PeerID `json:"to_peer"`
	SDP      string        `json:"sdp"`
}

// VoiceCandidate carries one discovered network path for a pending
// negotiation, addressed to a specific remote peer.
type VoiceCandidate struct {
	Type          string        `json:"type"`
	RoomID        domain.RoomID `json:"room_id"`
	FromPeer      domain.PeerID `json:"from_peer"`
	ToPeer        domain.PeerID `json:"to_peer"`
	Candidate     string        `json:"candidate"`
	SDPMid        string        `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16        `json:"sdpMLineIndex,omitempty"`
}

// VoiceUnregister is the best-effort leave notice.
type VoiceUnregister struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"room_id"`
	PeerID domain.PeerID `json:"peer_id"`
}

// Register subscribes the link to broadcasts for one room scope.
type Register struct {
	Type          string            `json:"type"`
	RoomID        domain.RoomID     `json:"room_id"`
	PeerID        domain.PeerID     `json:"peer_id"`
	SigningPubkey domain.SigningKey `json:"signing_pubkey"`
}

// HintUpdated notifies that the encrypted room hint for a scope changed
// (key rotation, membership change). Holders of the matching key re-import.
type HintUpdated struct {
	Type          string            `json:"type"`
	SigningPubkey domain.SigningKey `json:"signing_pubkey"`
}

// PresenceHello names every room scope the local identity belongs to and
// which one is focused.
type PresenceHello struct {
	Type           string              `json:"type"`
	UserID         domain.UserID       `json:"user_id"`
	SigningPubkeys []domain.SigningKey `json:"signing_pubkeys"`
	ActivePubkey   domain.SigningKey   `json:"active_signing_pubkey,omitempty"`
}

// PresenceEntry is one user's state inside a PresenceSnapshot.
type PresenceEntry struct {
	UserID       domain.UserID     `json:"user_id"`
	Online       bool              `json:"online"`
	ActivePubkey domain.SigningKey `json:"active_signing_pubkey,omitempty"`
}

// PresenceSnapshot replaces all presence records for one room scope.
type PresenceSnapshot struct {
	Type          string            `json:"type"`
	SigningPubkey domain.SigningKey `json:"signing_pubkey"`
	Users         []PresenceEntry   `json:"users"`
}

// PresenceUpdate patches a single user's presence in one room scope.
type PresenceUpdate struct {
	Type          string            `json:"type"`
	SigningPubkey domain.SigningKey `json:"signing_pubkey"`
	UserID        domain.UserID     `json:"user_id"`
	Online        bool              `json:"online"`
	ActivePubkey  domain.SigningKey `json:"active_signing_pubkey,omitempty"`
}

// VoicePresenceUpdate gossips whether a user is in a voice room, so
// co-members who are not joined can render call indicators.
type VoicePresenceUpdate struct {
	Type          string            `json:"type"`
	SigningPubkey domain.SigningKey `json:"signing_pubkey"`
	UserID        domain.UserID     `json:"user_id"`
	RoomID        domain.RoomID     `json:"room_id"`
	InVoice       bool              `json:"in_voice"`
}

// ProfileEntry is the wire form of a display profile.
type ProfileEntry struct {
	UserID       domain.UserID `json:"user_id"`
	DisplayName  string        `json:"display_name"`
	RealName     string        `json:"real_name,omitempty"`
	ShowRealName bool          `json:"show_real_name"`
	Revision     uint64        `json:"rev"`
}

// ProfileAnnounce advertises the local profile to every room scope the
// identity belongs to.
type ProfileAnnounce struct {
	Type string `json:"type"`
	ProfileEntry
	SigningPubkeys []domain.SigningKey `json:"signing_pubkeys"`
}

// ProfileHello requests profiles for known co-members of one scope.
type ProfileHello struct {
	Type          string            `json:"type"`
	SigningPubkey domain.SigningKey `json:"signing_pubkey"`
	UserIDs       []domain.UserID   `json:"user_ids"`
}

type ProfileUpdate struct {
	Type    string       `json:"type"`
	Profile ProfileEntry `json:"profile"`
}

type ProfileSnapshot struct {
	Type     string         `json:"type"`
	Profiles []ProfileEntry `json:"profiles"`
}

// Encode marshals any envelope to its wire form.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}

// Decode inspects the discriminator and unmarshals into the matching
// envelope struct. Unknown types return an error so callers can log and
// drop them.
func Decode(data []byte) (any, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode envelope head: %w", err)
	}

	var v any
	switch head.Type {
	case TypeVoiceRegistered:
		v = &VoiceRegistered{}
	case TypeVoicePeerJoined:
		v = &VoicePeerJoined{}
	case TypeVoicePeerLeft:
		v = &VoicePeerLeft{}
	case TypeVoiceOffer:
		v = &VoiceOffer{}
	case TypeVoiceAnswer:
		v = &VoiceAnswer{}
	case TypeVoiceCandidate:
		v = &VoiceCandidate{}
	case TypeHintUpdated:
		v = &HintUpdated{}
	case TypePresenceSnapshot:
		v = &PresenceSnapshot{}
	case TypePresenceUpdate:
		v = &PresenceUpdate{}
	case TypeVoicePresence:
		v = &VoicePresenceUpdate{}
	case TypeProfileUpdate:
		v = &ProfileUpdate{}
	case TypeProfileSnapshot:
		v = &ProfileSnapshot{}
	case TypeProfileHello:
		v = &ProfileHello{}
	case TypeProfileAnnounce:
		v = &ProfileAnnounce{}
	default:
		return nil, fmt.Errorf("unknown envelope type %q", head.Type)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return v, nil
}
