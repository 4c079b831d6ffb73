package voice

import "errors"

var (
	// ErrAudioUnavailable means local capture could not be acquired.
	// Fatal for JoinVoice; the user has to act (grant permission, plug in
	// a device) and retry.
	ErrAudioUnavailable = errors.New("audio capture unavailable")

	// ErrNoSignaling means no signaling endpoint is configured.
	ErrNoSignaling = errors.New("no signaling endpoint configured")

	// ErrNegotiation wraps a per-peer offer/answer/candidate failure.
	// Never fatal for the session: the one peer connection is abandoned,
	// the rest are untouched.
	ErrNegotiation = errors.New("negotiation failed")
)
