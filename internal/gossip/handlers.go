package gossip

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/hearthchat/hearth/internal/backend"
	"github.com/hearthchat/hearth/internal/domain"
	"github.com/hearthchat/hearth/internal/events"
	"github.com/hearthchat/hearth/internal/protocol"
)

// HandleMessage consumes gossip envelopes. Returns false for messages that
// belong to another concern (voice negotiation), so the session router can
// pass them on.
func (s *Sync) HandleMessage(ctx context.Context, v any) bool {
	switch m := v.(type) {
	case *protocol.HintUpdated:
		s.handleHint(ctx, m)
	case *protocol.PresenceSnapshot:
		s.handlePresenceSnapshot(m)
	case *protocol.PresenceUpdate:
		s.handlePresenceUpdate(m)
	case *protocol.VoicePresenceUpdate:
		s.handleVoicePresence(m)
	case *protocol.ProfileUpdate:
		s.mergeProfiles([]protocol.ProfileEntry{m.Profile})
	case *protocol.ProfileSnapshot:
		s.mergeProfiles(m.Profiles)
	case *protocol.ProfileAnnounce:
		s.mergeProfiles([]protocol.ProfileEntry{m.ProfileEntry})
	case *protocol.ProfileHello:
		s.handleProfileHello(m)
	default:
		return false
	}
	return true
}

// handleHint re-imports the encrypted room hint for a scope. A hint for a
// scope we are not subscribed to is skipped: either we never held the key
// (expected for foreign rooms) or the scope was just removed locally and
// must not be reimported by stale gossip.
func (s *Sync) handleHint(ctx context.Context, m *protocol.HintUpdated) {
	s.mu.RLock()
	_, subscribed := s.subs[m.SigningPubkey]
	s.mu.RUnlock()
	if !subscribed {
		log.Debug().Str("module", "gossip").Str("key", string(m.SigningPubkey)).Msg("hint for unsubscribed scope, skipped")
		return
	}

	sv, err := s.backend.ImportHint(ctx, m.SigningPubkey)
	if err != nil {
		if err == backend.ErrNoKey {
			log.Debug().Str("module", "gossip").Str("key", string(m.SigningPubkey)).Msg("no key for hint, skipped")
			return
		}
		log.Warn().Err(err).Str("module", "gossip").Str("key", string(m.SigningPubkey)).Msg("hint import failed")
		return
	}

	s.mu.Lock()
	// Re-check: the scope may have been removed while the import ran.
	if _, still := s.subs[m.SigningPubkey]; !still {
		s.mu.Unlock()
		log.Debug().Str("module", "gossip").Str("key", string(m.SigningPubkey)).Msg("scope removed during import, discarding")
		return
	}
	s.subs[m.SigningPubkey] = *sv
	s.mu.Unlock()

	s.bus.Publish(events.RoomsUpdated{})
	log.Info().Str("module", "gossip").Str("key", string(m.SigningPubkey)).Msg("hint imported")
}

// handlePresenceSnapshot replaces every record for one scope.
func (s *Sync) handlePresenceSnapshot(m *protocol.PresenceSnapshot) {
	s.mu.Lock()
	if _, subscribed := s.subs[m.SigningPubkey]; !subscribed {
		s.mu.Unlock()
		return
	}
	byUser := make(map[domain.UserID]domain.PresenceRecord, len(m.Users))
	for _, u := range m.Users {
		byUser[u.UserID] = domain.PresenceRecord{
			RoomKey:   m.SigningPubkey,
			UserID:    u.UserID,
			Online:    u.Online,
			ActiveKey: u.ActivePubkey,
		}
	}
	s.presence[m.SigningPubkey] = byUser
	s.mu.Unlock()
	s.bus.Publish(events.PresenceChanged{Key: m.SigningPubkey})
}

// handlePresenceUpdate patches one user in one scope.
func (s *Sync) handlePresenceUpdate(m *protocol.PresenceUpdate) {
	s.mu.Lock()
	if _, subscribed := s.subs[m.SigningPubkey]; !subscribed {
		s.mu.Unlock()
		return
	}
	byUser := s.presence[m.SigningPubkey]
	if byUser == nil {
		byUser = make(map[domain.UserID]domain.PresenceRecord)
		s.presence[m.SigningPubkey] = byUser
	}
	rec := byUser[m.UserID]
	rec.RoomKey = m.SigningPubkey
	rec.UserID = m.UserID
	rec.Online = m.Online
	rec.ActiveKey = m.ActivePubkey
	if !m.Online {
		rec.InVoice = false
	}
	byUser[m.UserID] = rec
	s.mu.Unlock()
	s.bus.Publish(events.PresenceChanged{Key: m.SigningPubkey})
}

func (s *Sync) handleVoicePresence(m *protocol.VoicePresenceUpdate) {
	s.mu.Lock()
	if _, subscribed := s.subs[m.SigningPubkey]; !subscribed {
		s.mu.Unlock()
		return
	}
	byUser := s.presence[m.SigningPubkey]
	if byUser == nil {
		byUser = make(map[domain.UserID]domain.PresenceRecord)
		s.presence[m.SigningPubkey] = byUser
	}
	rec := byUser[m.UserID]
	rec.RoomKey = m.SigningPubkey
	rec.UserID = m.UserID
	rec.InVoice = m.InVoice
	if m.InVoice {
		rec.Online = true
	}
	byUser[m.UserID] = rec
	s.mu.Unlock()
	s.bus.Publish(events.PresenceChanged{Key: m.SigningPubkey})
}

// mergeProfiles applies the revision rule to each incoming record.
func (s *Sync) mergeProfiles(entries []protocol.ProfileEntry) {
	var changed []domain.UserID
	s.mu.Lock()
	for _, e := range entries {
		if e.UserID == "" || e.UserID == s.ident.UserID {
			continue
		}
		stored, ok := s.profiles[e.UserID]
		if !ok {
			stored = domain.ProfileRecord{UserID: e.UserID}
		}
		if stored.Merge(fromEntry(e)) {
			s.profiles[e.UserID] = stored
			changed = append(changed, e.UserID)
		}
	}
	s.mu.Unlock()
	for _, uid := range changed {
		s.bus.Publish(events.ProfileUpdated{UserID: uid})
	}
}

// handleProfileHello answers a co-member's profile request with the local
// profile when it names us.
func (s *Sync) handleProfileHello(m *protocol.ProfileHello) {
	s.mu.RLock()
	link := s.link
	local := s.local
	me := s.ident.UserID
	s.mu.RUnlock()
	if link == nil {
		return
	}
	for _, uid := range m.UserIDs {
		if uid == me {
			if !s.helloReplies.Allow(m.SigningPubkey) {
				log.Debug().Str("module", "gossip").Str("key", string(m.SigningPubkey)).Msg("profile hello reply rate limited")
				return
			}
			_ = link.TrySend(protocol.ProfileUpdate{
				Type:    protocol.TypeProfileUpdate,
				Profile: toEntry(local),
			})
			return
		}
	}
}
