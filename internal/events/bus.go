// Package events is the in-process notification bus between the engine and
// the UI layer. It replaces ambient global events with explicit typed
// observers passed into constructors.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hearthchat/hearth/internal/core"
	"github.com/hearthchat/hearth/internal/domain"
)

// Event is one of the typed notification structs below.
type Event any

// RoomsUpdated fires after a hint import changed the local room/server list.
type RoomsUpdated struct{}

// RoomRemoved fires after a room scope was removed locally.
type RoomRemoved struct {
	Key domain.SigningKey
}

// ActiveRoomChanged fires when the focused room changes.
type ActiveRoomChanged struct {
	Key domain.SigningKey
}

// ProfileUpdated fires after a profile merge changed a stored record.
type ProfileUpdated struct {
	UserID domain.UserID
}

// PresenceChanged fires after a presence snapshot or delta was applied.
type PresenceChanged struct {
	Key domain.SigningKey
}

// PeerStateChanged surfaces per-peer connection status for optional UI
// display. It never gates overall voice functionality.
type PeerStateChanged struct {
	PeerID domain.PeerID
	UserID domain.UserID
	State  core.ConnState
}

const subBuffer = 16

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// that falls behind loses events (the engine re-announces idempotent state,
// so observers converge anyway).
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and a cancel func. Cancel is
// idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, subBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			log.Debug().Str("module", "events").Type("event", e).Msg("subscriber behind, event dropped")
		}
	}
}
