package gossip

import (
	"context"
	"sync"
	"testing"

	"github.com/hearthchat/hearth/internal/backend"
	"github.com/hearthchat/hearth/internal/domain"
	"github.com/hearthchat/hearth/internal/events"
	"github.com/hearthchat/hearth/internal/protocol"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []any
}

func (f *fakeSender) TrySend(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeSender) Close() {}

func (f *fakeSender) countType(match func(any) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.sent {
		if match(v) {
			n++
		}
	}
	return n
}

func newTestSync(t *testing.T) (*Sync, *backend.Static, *fakeSender) {
	t.Helper()
	cmd := backend.NewStatic(
		domain.Identity{UserID: "local", DisplayName: "Local"},
		[]domain.Server{{
			ID:         "srv1",
			SigningKey: "K",
			Name:       "house",
			Rooms: []domain.Room{
				{ID: "room1", ServerID: "srv1", Name: "general"},
				{ID: "room2", ServerID: "srv1", Name: "random"},
			},
			Members: []domain.UserID{"local", "u1"},
		}},
	)
	s := NewSync(cmd, events.NewBus())
	link := &fakeSender{}
	if err := s.Announce(context.Background(), link, "peer-1"); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	return s, cmd, link
}

func TestAnnounceSendsRegistrationBundle(t *testing.T) {
	_, _, link := newTestSync(t)

	if n := link.countType(func(v any) bool { _, ok := v.(protocol.Register); return ok }); n != 2 {
		t.Errorf("sent %d Register, want one per room (2)", n)
	}
	if n := link.countType(func(v any) bool { _, ok := v.(protocol.PresenceHello); return ok }); n != 1 {
		t.Errorf("sent %d PresenceHello, want 1", n)
	}
	if n := link.countType(func(v any) bool { _, ok := v.(protocol.ProfileAnnounce); return ok }); n != 1 {
		t.Errorf("sent %d ProfileAnnounce, want 1", n)
	}
	if n := link.countType(func(v any) bool { _, ok := v.(protocol.ProfileHello); return ok }); n != 1 {
		t.Errorf("sent %d ProfileHello, want 1", n)
	}
}

func TestRoomRemovalWinsOverInflightHint(t *testing.T) {
	s, cmd, _ := newTestSync(t)
	ctx := context.Background()

	s.RemoveScope("K")

	// The hint was already in flight when the room was removed; it must
	// not reimport the scope even though the backend still holds the key.
	if _, err := cmd.ImportHint(ctx, "K"); err != nil {
		t.Fatalf("backend should still hold the key: %v", err)
	}
	s.HandleMessage(ctx, &protocol.HintUpdated{Type: protocol.TypeHintUpdated, SigningPubkey: "K"})

	for _, key := range s.Scopes() {
		if key == "K" {
			t.Fatal("removed scope reappeared after in-flight hint update")
		}
	}
}

func TestHintForUnknownScopeIsSilentlySkipped(t *testing.T) {
	s, _, _ := newTestSync(t)
	// Not an error path: we simply don't hold keys for foreign rooms.
	s.HandleMessage(context.Background(), &protocol.HintUpdated{Type: protocol.TypeHintUpdated, SigningPubkey: "foreign"})
	if len(s.Scopes()) != 1 {
		t.Fatalf("scopes changed by foreign hint: %v", s.Scopes())
	}
}

func TestHintImportRefreshesServer(t *testing.T) {
	s, cmd, _ := newTestSync(t)
	cmd.PutServer(domain.Server{
		ID:         "srv1",
		SigningKey: "K",
		Name:       "renamed house",
		Rooms:      []domain.Room{{ID: "room1", ServerID: "srv1", Name: "general"}},
	})

	s.HandleMessage(context.Background(), &protocol.HintUpdated{Type: protocol.TypeHintUpdated, SigningPubkey: "K"})

	for _, sv := range s.Servers() {
		if sv.SigningKey == "K" {
			if sv.Name != "renamed house" {
				t.Fatalf("server not refreshed: %+v", sv)
			}
			return
		}
	}
	t.Fatal("scope K missing after hint import")
}

func TestPresenceSnapshotThenDelta(t *testing.T) {
	s, _, _ := newTestSync(t)
	ctx := context.Background()

	s.HandleMessage(ctx, &protocol.PresenceSnapshot{
		Type:          protocol.TypePresenceSnapshot,
		SigningPubkey: "K",
		Users:         []protocol.PresenceEntry{{UserID: "u1", Online: true}},
	})
	s.HandleMessage(ctx, &protocol.PresenceUpdate{
		Type:          protocol.TypePresenceUpdate,
		SigningPubkey: "K",
		UserID:        "u1",
		Online:        false,
	})

	records := s.PresenceView()
	if len(records) != 1 {
		t.Fatalf("have %d records, want 1", len(records))
	}
	if rec := records[0]; rec.UserID != "u1" || rec.Online {
		t.Fatalf("u1 should be offline for K, got %+v", rec)
	}
}

func TestPresenceSnapshotReplacesScope(t *testing.T) {
	s, _, _ := newTestSync(t)
	ctx := context.Background()

	s.HandleMessage(ctx, &protocol.PresenceSnapshot{
		Type:          protocol.TypePresenceSnapshot,
		SigningPubkey: "K",
		Users: []protocol.PresenceEntry{
			{UserID: "u1", Online: true},
			{UserID: "u2", Online: true},
		},
	})
	s.HandleMessage(ctx, &protocol.PresenceSnapshot{
		Type:          protocol.TypePresenceSnapshot,
		SigningPubkey: "K",
		Users:         []protocol.PresenceEntry{{UserID: "u2", Online: true}},
	})

	records := s.PresenceView()
	if len(records) != 1 || records[0].UserID != "u2" {
		t.Fatalf("snapshot did not replace scope records: %+v", records)
	}
}

func TestVoicePresenceMarksInCall(t *testing.T) {
	s, _, _ := newTestSync(t)
	s.HandleMessage(context.Background(), &protocol.VoicePresenceUpdate{
		Type:          protocol.TypeVoicePresence,
		SigningPubkey: "K",
		UserID:        "u1",
		RoomID:        "room1",
		InVoice:       true,
	})
	records := s.PresenceView()
	if len(records) != 1 || !records[0].InVoice {
		t.Fatalf("voice presence not applied: %+v", records)
	}
	if lvl := records[0].Level(); lvl != domain.PresenceInCall {
		t.Errorf("level = %v, want in-call", lvl)
	}
}

func TestProfileMergeByRevision(t *testing.T) {
	s, _, _ := newTestSync(t)
	ctx := context.Background()

	s.HandleMessage(ctx, &protocol.ProfileUpdate{
		Type:    protocol.TypeProfileUpdate,
		Profile: protocol.ProfileEntry{UserID: "u1", DisplayName: "Ada", Revision: 5},
	})
	s.HandleMessage(ctx, &protocol.ProfileUpdate{
		Type:    protocol.TypeProfileUpdate,
		Profile: protocol.ProfileEntry{UserID: "u1", DisplayName: "Eve", Revision: 3},
	})

	rec, ok := s.Profile("u1")
	if !ok {
		t.Fatal("profile missing")
	}
	if rec.Revision != 5 || rec.DisplayName != "Ada" {
		t.Fatalf("stale revision applied: %+v", rec)
	}
}

func TestProfileHelloAnswersWithLocalProfile(t *testing.T) {
	s, _, link := newTestSync(t)
	before := link.countType(func(v any) bool { _, ok := v.(protocol.ProfileUpdate); return ok })

	s.HandleMessage(context.Background(), &protocol.ProfileHello{
		Type:          protocol.TypeProfileHello,
		SigningPubkey: "K",
		UserIDs:       []domain.UserID{"someone", "local"},
	})

	after := link.countType(func(v any) bool { _, ok := v.(protocol.ProfileUpdate); return ok })
	if after != before+1 {
		t.Fatalf("ProfileHello naming us must be answered once, sent %d", after-before)
	}
}
