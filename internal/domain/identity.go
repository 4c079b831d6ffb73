// Package domain contains entities without behavior beyond simple
// validation and merge rules.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type (
	// UserID is the stable account identifier. It never changes while the
	// process is running and survives signaling reconnects.
	UserID string

	// PeerID is the ephemeral routing identifier for one signaling
	// session. A fresh one is minted on every (re)connect so stale
	// sessions cannot shadow new ones.
	PeerID string
)

// NewPeerID mints a fresh ephemeral peer identifier.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

// Identity is the local account as supplied by the storage backend.
type Identity struct {
	UserID      UserID `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// NewIdentity avoids ad-hoc struct literals in adapters.
func NewIdentity(userID UserID, displayName string) (*Identity, error) {
	if displayName == "" {
		return nil, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Identity{UserID: userID, DisplayName: displayName}, nil
}
