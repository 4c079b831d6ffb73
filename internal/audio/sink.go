package audio

import (
	"context"
	"errors"
	"io"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hearthchat/hearth/internal/domain"
)

// OutputDevice is a playable audio output. The device selected in settings
// is resolved through an OutputSelector so a device switch takes effect for
// every active sink without renegotiation.
type OutputDevice interface {
	WriteFrame(pcm []int16) error
	Close() error
}

// OutputSelector returns the currently selected output device.
type OutputSelector func() OutputDevice

// RemoteSink drains one remote audio track into the selected output device.
// One sink exists per connected peer; it dies with the peer connection.
type RemoteSink struct {
	peerID domain.PeerID
	track  *webrtc.TrackRemote
	out    OutputSelector
}

func NewRemoteSink(peerID domain.PeerID, track *webrtc.TrackRemote, out OutputSelector) *RemoteSink {
	return &RemoteSink{peerID: peerID, track: track, out: out}
}

// Run reads RTP until the track or ctx ends. Decode errors for single
// packets are dropped; the stream keeps going.
func (s *RemoteSink) Run(ctx context.Context) {
	log.Info().Str("module", "audio").Str("peer", string(s.peerID)).
		Str("codec", s.track.Codec().MimeType).Msg("remote audio started")
	for {
		if ctx.Err() != nil {
			return
		}
		pkt, _, err := s.track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("module", "audio").Str("peer", string(s.peerID)).Msg("remote track read")
			}
			return
		}
		dev := s.out()
		if dev == nil {
			continue
		}
		if err := dev.WriteFrame(MuLawDecode(pkt.Payload)); err != nil {
			log.Debug().Err(err).Str("module", "audio").Str("peer", string(s.peerID)).Msg("output write")
		}
	}
}
