// Package gossip keeps room registration, presence and profiles in sync
// over the signaling link. All of it is eventually-consistent: idempotent
// announcements are repeated periodically instead of acknowledged, and
// profile records merge last-writer-wins by revision.
package gossip

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthchat/hearth/internal/backend"
	"github.com/hearthchat/hearth/internal/core"
	"github.com/hearthchat/hearth/internal/domain"
	"github.com/hearthchat/hearth/internal/events"
	"github.com/hearthchat/hearth/internal/protocol"
)

// Sync owns the subscription set and the shared presence/profile maps.
// Every mutation goes through its mutex; the UI reads copies.
type Sync struct {
	backend backend.Commander
	bus     *events.Bus

	mu       sync.RWMutex
	ident    domain.Identity
	local    domain.ProfileRecord
	subs     map[domain.SigningKey]domain.Server
	active   domain.SigningKey
	presence map[domain.SigningKey]map[domain.UserID]domain.PresenceRecord
	profiles map[domain.UserID]domain.ProfileRecord
	link     core.SignalSender
	peerID   domain.PeerID

	helloReplies *replyLimiter
}

func NewSync(cmd backend.Commander, bus *events.Bus) *Sync {
	return &Sync{
		backend:      cmd,
		bus:          bus,
		subs:         make(map[domain.SigningKey]domain.Server),
		presence:     make(map[domain.SigningKey]map[domain.UserID]domain.PresenceRecord),
		profiles:     make(map[domain.UserID]domain.ProfileRecord),
		helloReplies: newReplyLimiter(10, time.Minute),
	}
}

// Announce refreshes the subscription set from the backend and (re)sends
// the full registration bundle on the given link: one Register per room of
// interest, a PresenceHello naming every scope, and the profile
// announce/hello pair. Called on every (re)connect and by the re-announce
// ticker; the server treats all of it as idempotent state.
func (s *Sync) Announce(ctx context.Context, link core.SignalSender, peerID domain.PeerID) error {
	ident, err := s.backend.Identity(ctx)
	if err != nil {
		return err
	}
	servers, err := s.backend.ListServers(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ident = *ident
	s.link = link
	s.peerID = peerID
	if s.local.UserID == "" {
		s.local = domain.ProfileRecord{UserID: ident.UserID, DisplayName: ident.DisplayName, Revision: 1}
	}
	s.subs = make(map[domain.SigningKey]domain.Server, len(servers))
	for _, sv := range servers {
		s.subs[sv.SigningKey] = sv
	}
	keys := s.scopeKeysLocked()
	active := s.active
	local := s.local
	subs := s.subs
	s.mu.Unlock()

	for _, sv := range subs {
		for _, room := range sv.Rooms {
			_ = link.TrySend(protocol.Register{
				Type:          protocol.TypeRegister,
				RoomID:        room.ID,
				PeerID:        peerID,
				SigningPubkey: sv.SigningKey,
			})
		}
	}

	_ = link.TrySend(protocol.PresenceHello{
		Type:           protocol.TypePresenceHello,
		UserID:         ident.UserID,
		SigningPubkeys: keys,
		ActivePubkey:   active,
	})

	_ = link.TrySend(protocol.ProfileAnnounce{
		Type:           protocol.TypeProfileAnnounce,
		ProfileEntry:   toEntry(local),
		SigningPubkeys: keys,
	})
	for _, sv := range subs {
		_ = link.TrySend(protocol.ProfileHello{
			Type:          protocol.TypeProfileHello,
			SigningPubkey: sv.SigningKey,
			UserIDs:       sv.Members,
		})
	}

	log.Info().Str("module", "gossip").Int("scopes", len(keys)).Msg("announced registration bundle")
	return nil
}

// Dropped clears the link reference after a socket drop.
func (s *Sync) Dropped() {
	s.mu.Lock()
	s.link = nil
	s.mu.Unlock()
}

// Run re-announces on a fixed period while a link is available. This is the
// reliability mechanism for fire-and-forget gossip.
func (s *Sync) Run(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			link, peerID := s.link, s.peerID
			s.mu.RUnlock()
			if link == nil {
				continue
			}
			if err := s.Announce(ctx, link, peerID); err != nil {
				log.Warn().Err(err).Str("module", "gossip").Msg("periodic re-announce failed")
			}
		}
	}
}

// SetActive changes the focused room scope and gossips the change.
func (s *Sync) SetActive(key domain.SigningKey) {
	s.mu.Lock()
	s.active = key
	ident := s.ident
	keys := s.scopeKeysLocked()
	link := s.link
	s.mu.Unlock()

	s.bus.Publish(events.ActiveRoomChanged{Key: key})
	if link != nil {
		_ = link.TrySend(protocol.PresenceHello{
			Type:           protocol.TypePresenceHello,
			UserID:         ident.UserID,
			SigningPubkeys: keys,
			ActivePubkey:   key,
		})
	}
}

// RemoveScope drops a room scope locally. The removal wins over any
// in-flight hint update for the same key: both paths serialize on s.mu and
// a hint for an unsubscribed key is skipped, so a removed scope cannot be
// reimported by stale gossip.
func (s *Sync) RemoveScope(key domain.SigningKey) {
	s.mu.Lock()
	delete(s.subs, key)
	delete(s.presence, key)
	if s.active == key {
		s.active = ""
	}
	s.mu.Unlock()
	s.bus.Publish(events.RoomRemoved{Key: key})
	log.Info().Str("module", "gossip").Str("key", string(key)).Msg("scope removed")
}

// SetLocalProfile bumps the local revision and gossips the new profile.
func (s *Sync) SetLocalProfile(displayName, secondaryName string, showSecondary bool) {
	s.mu.Lock()
	s.local.DisplayName = displayName
	s.local.SecondaryName = secondaryName
	s.local.ShowSecondary = showSecondary
	s.local.Revision++
	local := s.local
	keys := s.scopeKeysLocked()
	link := s.link
	s.mu.Unlock()

	if link != nil {
		_ = link.TrySend(protocol.ProfileAnnounce{
			Type:           protocol.TypeProfileAnnounce,
			ProfileEntry:   toEntry(local),
			SigningPubkeys: keys,
		})
	}
}

// EmitVoicePresence gossips whether the local user is in a voice room, so
// co-members who are not joined can render call indicators.
func (s *Sync) EmitVoicePresence(serverID domain.ServerID, roomID domain.RoomID, inVoice bool) {
	s.mu.RLock()
	link := s.link
	ident := s.ident
	var key domain.SigningKey
	for _, sv := range s.subs {
		if sv.ID == serverID {
			key = sv.SigningKey
			break
		}
	}
	s.mu.RUnlock()
	if link == nil || key == "" {
		return
	}
	_ = link.TrySend(protocol.VoicePresenceUpdate{
		Type:          protocol.TypeVoicePresence,
		SigningPubkey: key,
		UserID:        ident.UserID,
		RoomID:        roomID,
		InVoice:       inVoice,
	})
}

// Scopes is a copy of the current subscription keys.
func (s *Sync) Scopes() []domain.SigningKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopeKeysLocked()
}

// Servers is a copy of the subscribed server entries.
func (s *Sync) Servers() []domain.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Server, 0, len(s.subs))
	for _, sv := range s.subs {
		out = append(out, sv)
	}
	return out
}

// PresenceView copies every presence record, one slice per call.
func (s *Sync) PresenceView() []domain.PresenceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PresenceRecord
	for _, byUser := range s.presence {
		for _, rec := range byUser {
			out = append(out, rec)
		}
	}
	return out
}

// ProfilesView copies every stored profile record.
func (s *Sync) ProfilesView() []domain.ProfileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProfileRecord, 0, len(s.profiles))
	for _, rec := range s.profiles {
		out = append(out, rec)
	}
	return out
}

// Profile returns the stored record for one user.
func (s *Sync) Profile(userID domain.UserID) (domain.ProfileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.profiles[userID]
	return rec, ok
}

func (s *Sync) scopeKeysLocked() []domain.SigningKey {
	keys := make([]domain.SigningKey, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	return keys
}

func toEntry(p domain.ProfileRecord) protocol.ProfileEntry {
	return protocol.ProfileEntry{
		UserID:       p.UserID,
		DisplayName:  p.DisplayName,
		RealName:     p.SecondaryName,
		ShowRealName: p.ShowSecondary,
		Revision:     p.Revision,
	}
}

func fromEntry(e protocol.ProfileEntry) domain.ProfileRecord {
	return domain.ProfileRecord{
		UserID:        e.UserID,
		DisplayName:   e.DisplayName,
		SecondaryName: e.RealName,
		ShowSecondary: e.ShowRealName,
		Revision:      e.Revision,
	}
}
