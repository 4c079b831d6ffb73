// Package voice is the peer-mesh engine: it keeps one direct media
// connection per remote participant of the joined room, negotiated over the
// signaling link and keyed by ephemeral peer id.
package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthchat/hearth/internal/audio"
	"github.com/hearthchat/hearth/internal/backend"
	"github.com/hearthchat/hearth/internal/core"
	"github.com/hearthchat/hearth/internal/domain"
	"github.com/hearthchat/hearth/internal/events"
	"github.com/hearthchat/hearth/internal/gossip"
	"github.com/hearthchat/hearth/internal/protocol"
	"github.com/hearthchat/hearth/internal/signal"
)

// Options wires the manager's collaborators and policies.
type Options struct {
	SignalingURL   string
	ReconnectDelay time.Duration
	AnnouncePeriod time.Duration

	AudioCfg    audio.Config
	OpenCapture audio.CaptureOpener
	Output      audio.OutputSelector

	// MediaFactory mints one media connection per remote peer.
	MediaFactory func(peer domain.PeerID) (core.MediaConnection, error)
}

// peerEntry is one remote participant's connection, primary-keyed by the
// ephemeral peer id. The byUser secondary index enforces the supersession
// rule: at most one non-terminal connection per stable user id.
type peerEntry struct {
	info   core.PeerConnectionInfo
	conn   core.MediaConnection
	cancel context.CancelFunc
}

// Manager owns the VoiceSession and the active peer set. All map mutation
// happens under mu; connection teardown runs outside it so pion callbacks
// cannot deadlock against the handler path.
type Manager struct {
	opts    Options
	backend backend.Commander
	gossip  *gossip.Sync
	bus     *events.Bus

	mu       sync.Mutex
	ident    *domain.Identity
	session  *domain.VoiceSession
	link     core.SignalSender
	pipeline *audio.Pipeline
	peers    map[domain.PeerID]*peerEntry
	byUser   map[domain.UserID]domain.PeerID

	runCtx context.Context
	cancel context.CancelFunc
	sup    *signal.Supervisor

	// NewSupervisor is replaceable in tests.
	newSupervisor func(url string, delay time.Duration) *signal.Supervisor
}

func NewManager(opts Options, cmd backend.Commander, sync *gossip.Sync, bus *events.Bus) *Manager {
	return &Manager{
		opts:          opts,
		backend:       cmd,
		gossip:        sync,
		bus:           bus,
		peers:         make(map[domain.PeerID]*peerEntry),
		byUser:        make(map[domain.UserID]domain.PeerID),
		newSupervisor: signal.NewSupervisor,
	}
}

// JoinVoice enters the given room. If a session already exists it is left
// first. Capture acquisition and configuration are validated before any
// socket or peer connection is created, so a failed join leaves no state
// behind.
func (m *Manager) JoinVoice(ctx context.Context, roomID domain.RoomID, serverID domain.ServerID) (*domain.VoiceSession, error) {
	m.LeaveVoice()

	if m.opts.SignalingURL == "" {
		return nil, ErrNoSignaling
	}

	ident, err := m.backend.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	m.mu.Lock()
	m.ident = ident
	m.runCtx, m.cancel = context.WithCancel(context.Background())
	if err := m.ensurePipelineLocked(ctx); err != nil {
		m.cancel()
		m.runCtx, m.cancel = nil, nil
		m.mu.Unlock()
		return nil, err
	}

	m.session = &domain.VoiceSession{
		RoomID:   roomID,
		ServerID: serverID,
		PeerID:   domain.NewPeerID(),
	}
	m.sup = m.newSupervisor(m.opts.SignalingURL, m.opts.ReconnectDelay)
	runCtx := m.runCtx
	sess := *m.session
	m.mu.Unlock()

	go m.sup.Run(runCtx, m)
	go m.gossip.Run(runCtx, m.opts.AnnouncePeriod)

	log.Info().Str("module", "voice").Str("room", string(roomID)).
		Str("peer", string(sess.PeerID)).Msg("joining voice")
	return &sess, nil
}

// ensurePipelineLocked lazily acquires local capture, recreating the
// pipeline when the previous capture track has ended.
func (m *Manager) ensurePipelineLocked(ctx context.Context) error {
	if m.pipeline != nil && !m.pipeline.Ended() {
		return nil
	}
	if m.opts.OpenCapture == nil {
		return ErrAudioUnavailable
	}
	src, err := m.opts.OpenCapture(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	p, err := audio.NewPipeline(m.opts.AudioCfg, src, nil)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	m.pipeline = p
	if m.runCtx != nil {
		go p.Run(m.runCtx)
	}
	return nil
}

// LeaveVoice is idempotent: with no active session it does nothing and
// performs no teardown calls. Otherwise it sends the best-effort
// unregister notice, tears down every peer connection, stops capture and
// closes the socket. It always succeeds locally.
func (m *Manager) LeaveVoice() {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	sess := *m.session
	link := m.link
	pipeline := m.pipeline
	cancel := m.cancel
	dead := m.clearPeersLocked()
	m.session = nil
	m.link = nil
	m.sup = nil
	m.cancel = nil
	m.mu.Unlock()

	if link != nil {
		// Best effort: the socket may already be gone.
		_ = link.TrySend(protocol.VoiceUnregister{
			Type:   protocol.TypeVoiceUnregister,
			RoomID: sess.RoomID,
			PeerID: sess.PeerID,
		})
	}
	m.gossip.EmitVoicePresence(sess.ServerID, sess.RoomID, false)

	cancel()
	for _, e := range dead {
		e.cancel()
		e.conn.Close()
	}
	if pipeline != nil {
		pipeline.Stop()
	}
	if link != nil {
		link.Close()
	}
	log.Info().Str("module", "voice").Str("room", string(sess.RoomID)).Msg("left voice")
}

// SetMuted toggles the local mute flag; the shared track stays attached.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return
	}
	m.session.Muted = muted
	if m.pipeline != nil {
		m.pipeline.SetMuted(muted)
	}
}

// Session returns a copy of the active voice session, or nil.
func (m *Manager) Session() *domain.VoiceSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	sess := *m.session
	return &sess
}

// Peers is a snapshot of the active peer connection set.
func (m *Manager) Peers() []core.PeerConnectionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.PeerConnectionInfo, 0, len(m.peers))
	for _, e := range m.peers {
		out = append(out, e.info)
	}
	return out
}

// LinkState exposes the supervisor's reconnect position for the status API.
func (m *Manager) LinkState() signal.LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sup == nil {
		return signal.StateIdle
	}
	return m.sup.State()
}

// OnOpen implements signal.Session. Called on every successful (re)connect:
// the ephemeral peer id is regenerated so the relay and peers can tell the
// new session from the old one, then the registration bundle and the voice
// register are sent.
func (m *Manager) OnOpen(link core.SignalSender) error {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return fmt.Errorf("no voice session")
	}
	m.session.PeerID = domain.NewPeerID()
	m.link = link
	sess := *m.session
	ident := *m.ident
	runCtx := m.runCtx
	m.mu.Unlock()

	if err := m.gossip.Announce(runCtx, link, sess.PeerID); err != nil {
		return fmt.Errorf("announce: %w", err)
	}
	if err := link.TrySend(protocol.VoiceRegister{
		Type:     protocol.TypeVoiceRegister,
		RoomID:   sess.RoomID,
		ServerID: sess.ServerID,
		PeerID:   sess.PeerID,
		UserID:   ident.UserID,
	}); err != nil {
		return fmt.Errorf("voice register: %w", err)
	}
	m.gossip.EmitVoicePresence(sess.ServerID, sess.RoomID, true)
	log.Info().Str("module", "voice").Str("peer", string(sess.PeerID)).Msg("registered on signaling")
	return nil
}

// OnDropped implements signal.Session: the socket died, so every peer
// connection is torn down unconditionally before the reconnect delay.
// Signaling state does not survive a drop and the remote sides may proceed
// as if still connected.
func (m *Manager) OnDropped() {
	m.mu.Lock()
	dead := m.clearPeersLocked()
	m.link = nil
	m.mu.Unlock()

	m.gossip.Dropped()
	for _, e := range dead {
		e.cancel()
		e.conn.Close()
	}
	if len(dead) > 0 {
		log.Warn().Str("module", "voice").Int("peers", len(dead)).Msg("signaling dropped, tore down all peer connections")
	}
}

// clearPeersLocked empties both indexes and returns the removed entries for
// teardown outside the lock.
func (m *Manager) clearPeersLocked() []*peerEntry {
	dead := make([]*peerEntry, 0, len(m.peers))
	for _, e := range m.peers {
		dead = append(dead, e)
	}
	m.peers = make(map[domain.PeerID]*peerEntry)
	m.byUser = make(map[domain.UserID]domain.PeerID)
	return dead
}

var _ signal.Session = (*Manager)(nil)
