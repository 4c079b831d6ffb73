package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection abstracts one direct media connection to a remote peer.
// Implemented by the pion-backed adapter; faked in tests.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close stops all underlying media resources. Safe to call twice.
	Close()
	IsClosed() bool

	// CreateAndSetOffer produces the local offer SDP (gathering complete).
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	// ApplyAnswer installs the remote answer for a previously sent offer.
	ApplyAnswer(webrtc.SessionDescription) error
	// ApplyOfferCreateAnswer installs a remote offer and produces the
	// local answer SDP (gathering complete).
	ApplyOfferCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// AddICECandidate applies a remote path candidate.
	AddICECandidate(webrtc.ICECandidateInit) error

	// OnICECandidate sets a callback for newly gathered local candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback invoked when a remote media track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// OnStateChange sets a callback for peer connection state transitions.
	OnStateChange(func(ConnState))

	// AddLocalTrack attaches the shared local audio track. The track is
	// owned by the audio pipeline, never by the connection.
	AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
}

// MediaFactory builds a fresh MediaConnection for one remote peer.
type MediaFactory func() (MediaConnection, error)
