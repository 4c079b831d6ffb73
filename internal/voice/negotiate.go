package voice

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hearthchat/hearth/internal/audio"
	"github.com/hearthchat/hearth/internal/core"
	"github.com/hearthchat/hearth/internal/domain"
	"github.com/hearthchat/hearth/internal/events"
	"github.com/hearthchat/hearth/internal/protocol"
)

// HandleMessage implements signal.Handler. Dispatch is sequential in
// arrival order for the whole link; gossip messages are consumed first,
// everything else is voice negotiation.
func (m *Manager) HandleMessage(v any) {
	m.mu.Lock()
	runCtx := m.runCtx
	m.mu.Unlock()
	if runCtx == nil {
		return
	}
	if m.gossip.HandleMessage(runCtx, v) {
		return
	}

	switch msg := v.(type) {
	case *protocol.VoiceRegistered:
		m.onRoster(msg)
	case *protocol.VoicePeerJoined:
		// Informational only. Connection setup waits for the new peer's
		// offer, so an old connection is never closed before its
		// replacement exists.
		log.Info().Str("module", "voice").Str("peer", string(msg.PeerID)).
			Str("user", string(msg.UserID)).Msg("peer joined room")
	case *protocol.VoicePeerLeft:
		m.removePeer(msg.PeerID, "peer left")
	case *protocol.VoiceOffer:
		m.onOffer(msg)
	case *protocol.VoiceAnswer:
		m.onAnswer(msg)
	case *protocol.VoiceCandidate:
		m.onCandidate(msg)
	default:
		log.Warn().Str("module", "voice").Type("envelope", v).Msg("unhandled envelope")
	}
}

// onRoster handles the relay's reply to VoiceRegister: one connection and
// one outbound offer per existing occupant.
func (m *Manager) onRoster(msg *protocol.VoiceRegistered) {
	sess := m.Session()
	if sess == nil || msg.RoomID != sess.RoomID {
		return
	}

	for _, pi := range msg.Peers {
		if pi.PeerID == sess.PeerID {
			continue
		}
		if err := m.connectPeer(pi, true); err != nil {
			log.Error().Err(err).Str("module", "voice").Str("peer", string(pi.PeerID)).Msg("roster peer setup failed")
		}
	}
}

// onOffer accepts an inbound offer. A peer id we already know gets the
// offer applied on its existing connection is not expected from the relay;
// a new peer id for a known user supersedes the old connection first.
func (m *Manager) onOffer(msg *protocol.VoiceOffer) {
	sess := m.Session()
	if sess == nil || msg.ToPeer != sess.PeerID {
		return
	}
	pi := protocol.PeerInfo{PeerID: msg.FromPeer, UserID: msg.FromUser}
	entry, err := m.ensurePeer(pi)
	if err != nil {
		log.Error().Err(err).Str("module", "voice").Str("peer", string(pi.PeerID)).Msg("offer peer setup failed")
		return
	}

	answer, err := entry.conn.ApplyOfferCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  msg.SDP,
	})
	if err != nil {
		m.abandonPeer(pi.PeerID, fmt.Errorf("%w: apply offer: %v", ErrNegotiation, err))
		return
	}

	m.trySend(protocol.VoiceAnswer{
		Type:     protocol.TypeVoiceAnswer,
		RoomID:   sess.RoomID,
		FromPeer: sess.PeerID,
		FromUser: m.userID(),
		ToPeer:   pi.PeerID,
		SDP:      answer.SDP,
	})
}

func (m *Manager) onAnswer(msg *protocol.VoiceAnswer) {
	sess := m.Session()
	if sess == nil || msg.ToPeer != sess.PeerID {
		return
	}
	m.mu.Lock()
	entry := m.peers[msg.FromPeer]
	m.mu.Unlock()
	if entry == nil {
		log.Warn().Str("module", "voice").Str("peer", string(msg.FromPeer)).Msg("answer for unknown peer")
		return
	}
	if err := entry.conn.ApplyAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  msg.SDP,
	}); err != nil {
		m.abandonPeer(msg.FromPeer, fmt.Errorf("%w: apply answer: %v", ErrNegotiation, err))
	}
}

func (m *Manager) onCandidate(msg *protocol.VoiceCandidate) {
	sess := m.Session()
	if sess == nil || msg.ToPeer != sess.PeerID {
		return
	}
	m.mu.Lock()
	entry := m.peers[msg.FromPeer]
	m.mu.Unlock()
	if entry == nil {
		log.Debug().Str("module", "voice").Str("peer", string(msg.FromPeer)).Msg("candidate for unknown peer")
		return
	}
	ci := webrtc.ICECandidateInit{Candidate: msg.Candidate}
	if msg.SDPMid != "" {
		mid := msg.SDPMid
		ci.SDPMid = &mid
	}
	idx := msg.SDPMLineIndex
	ci.SDPMLineIndex = &idx
	if err := entry.conn.AddICECandidate(ci); err != nil {
		// A bad candidate does not doom the connection; others may land.
		log.Warn().Err(err).Str("module", "voice").Str("peer", string(msg.FromPeer)).Msg("add candidate failed")
	}
}

// connectPeer builds a connection for pi and, when offer is set, sends the
// initial offer. Applies the supersession rule first.
func (m *Manager) connectPeer(pi protocol.PeerInfo, offer bool) error {
	entry, err := m.ensurePeer(pi)
	if err != nil {
		return err
	}
	if !offer {
		return nil
	}
	sess := m.Session()
	if sess == nil {
		return nil
	}
	sdp, err := entry.conn.CreateAndSetOffer()
	if err != nil {
		m.abandonPeer(pi.PeerID, fmt.Errorf("%w: create offer: %v", ErrNegotiation, err))
		return nil
	}
	m.trySend(protocol.VoiceOffer{
		Type:     protocol.TypeVoiceOffer,
		RoomID:   sess.RoomID,
		FromPeer: sess.PeerID,
		FromUser: m.userID(),
		ToPeer:   pi.PeerID,
		SDP:      sdp.SDP,
	})
	return nil
}

// ensurePeer returns the entry for pi, creating connection, callbacks and
// local track attachment on first sight. A different peer id already held
// by the same user is retired first: the newer ephemeral id always wins.
func (m *Manager) ensurePeer(pi protocol.PeerInfo) (*peerEntry, error) {
	m.mu.Lock()
	if old, ok := m.byUser[pi.UserID]; ok && old != pi.PeerID {
		m.mu.Unlock()
		m.removePeer(old, "superseded by newer session")
		m.mu.Lock()
	}
	if e, ok := m.peers[pi.PeerID]; ok {
		m.mu.Unlock()
		return e, nil
	}
	if err := m.ensurePipelineLocked(m.runCtx); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	track := m.pipeline.Track()
	runCtx := m.runCtx
	m.mu.Unlock()

	conn, err := m.opts.MediaFactory(pi.PeerID)
	if err != nil {
		return nil, fmt.Errorf("%w: new connection: %v", ErrNegotiation, err)
	}

	peerCtx, peerCancel := context.WithCancel(runCtx)
	entry := &peerEntry{
		info:   core.PeerConnectionInfo{PeerID: pi.PeerID, UserID: pi.UserID, State: core.ConnNew},
		conn:   conn,
		cancel: peerCancel,
	}

	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		m.forwardCandidate(pi.PeerID, ci)
	})
	conn.OnStateChange(func(st core.ConnState) {
		m.onPeerState(pi.PeerID, pi.UserID, st)
	})
	conn.OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		sink := audio.NewRemoteSink(pi.PeerID, track, m.opts.Output)
		go sink.Run(peerCtx)
	})

	if err := conn.Start(peerCtx); err != nil {
		peerCancel()
		conn.Close()
		return nil, fmt.Errorf("%w: start: %v", ErrNegotiation, err)
	}
	// The track is shared read-only; the connection never owns it.
	if _, err := conn.AddLocalTrack(track); err != nil {
		peerCancel()
		conn.Close()
		return nil, fmt.Errorf("%w: attach local track: %v", ErrNegotiation, err)
	}

	m.mu.Lock()
	m.peers[pi.PeerID] = entry
	m.byUser[pi.UserID] = pi.PeerID
	m.mu.Unlock()

	log.Info().Str("module", "voice").Str("peer", string(pi.PeerID)).
		Str("user", string(pi.UserID)).Msg("peer connection created")
	return entry, nil
}

// forwardCandidate sends one discovered local path to the remote peer.
func (m *Manager) forwardCandidate(to domain.PeerID, ci webrtc.ICECandidateInit) {
	sess := m.Session()
	if sess == nil {
		return
	}
	out := protocol.VoiceCandidate{
		Type:      protocol.TypeVoiceCandidate,
		RoomID:    sess.RoomID,
		FromPeer:  sess.PeerID,
		ToPeer:    to,
		Candidate: ci.Candidate,
	}
	if ci.SDPMid != nil {
		out.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		out.SDPMLineIndex = *ci.SDPMLineIndex
	}
	m.trySend(out)
}

// onPeerState mirrors connection-state transitions into the peer info.
// Terminal states remove the peer; disconnected is logged only because the
// path may self-heal.
func (m *Manager) onPeerState(peerID domain.PeerID, userID domain.UserID, st core.ConnState) {
	m.mu.Lock()
	entry, ok := m.peers[peerID]
	if ok {
		entry.info.State = st
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	m.bus.Publish(events.PeerStateChanged{PeerID: peerID, UserID: userID, State: st})
	switch {
	case st.Terminal():
		m.removePeer(peerID, "connection "+st.String())
	case st == core.ConnDisconnected:
		log.Warn().Str("module", "voice").Str("peer", string(peerID)).Msg("peer disconnected, waiting for self-heal")
	}
}

// removePeer tears one connection down and drops both index entries.
func (m *Manager) removePeer(peerID domain.PeerID, reason string) {
	m.mu.Lock()
	entry, ok := m.peers[peerID]
	if ok {
		delete(m.peers, peerID)
		if m.byUser[entry.info.UserID] == peerID {
			delete(m.byUser, entry.info.UserID)
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	entry.cancel()
	entry.conn.Close()
	log.Info().Str("module", "voice").Str("peer", string(peerID)).Str("reason", reason).Msg("peer connection removed")
}

// abandonPeer is removePeer for negotiation failures: the error is logged,
// the one peer is dropped, the session continues.
func (m *Manager) abandonPeer(peerID domain.PeerID, err error) {
	log.Error().Err(err).Str("module", "voice").Str("peer", string(peerID)).Msg("abandoning peer")
	m.removePeer(peerID, "negotiation error")
}

func (m *Manager) trySend(v any) {
	m.mu.Lock()
	link := m.link
	m.mu.Unlock()
	if link == nil {
		return
	}
	if err := link.TrySend(v); err != nil {
		log.Warn().Err(err).Str("module", "voice").Msg("signal send failed")
	}
}

func (m *Manager) userID() domain.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ident == nil {
		return ""
	}
	return m.ident.UserID
}
