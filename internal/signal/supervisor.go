package signal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthchat/hearth/internal/core"
)

// LinkState is the supervisor's position in its reconnect cycle.
type LinkState int32

const (
	StateIdle LinkState = iota
	StateConnecting
	StateOpen
	StateWaiting
)

func (s LinkState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateWaiting:
		return "waiting"
	default:
		return "idle"
	}
}

// Session is what the supervisor keeps alive across socket drops.
type Session interface {
	Handler
	// OnOpen is called after each successful dial, before any message is
	// dispatched. The session regenerates its ephemeral identity and
	// re-registers here. Returning an error closes the link and retries.
	OnOpen(link core.SignalSender) error
	// OnDropped is called after an open link dies, before the reconnect
	// delay. Signaling state is not assumed to survive a drop: the
	// session must tear down every peer connection here.
	OnDropped()
}

// Dialer is injectable for tests.
type Dialer func(ctx context.Context, url string) (*Link, error)

// Supervisor drives the fixed-delay reconnect loop:
//
//	Idle -> Connecting -> Open -> (close) -> Waiting -> Connecting ...
//
// The delay is constant. The loop runs until ctx is canceled by an
// explicit leave.
type Supervisor struct {
	url   string
	delay time.Duration
	dial  Dialer
	state atomic.Int32
}

func NewSupervisor(url string, delay time.Duration) *Supervisor {
	return &Supervisor{url: url, delay: delay, dial: Dial}
}

// SetDialer overrides the dial function. Test hook.
func (s *Supervisor) SetDialer(d Dialer) { s.dial = d }

func (s *Supervisor) State() LinkState {
	return LinkState(s.state.Load())
}

func (s *Supervisor) setState(st LinkState) {
	s.state.Store(int32(st))
}

// Run blocks until ctx is canceled, keeping one link alive for sess.
func (s *Supervisor) Run(ctx context.Context, sess Session) {
	defer s.setState(StateIdle)
	for {
		s.setState(StateConnecting)
		link, err := s.dial(ctx, s.url)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("url", s.url).Msg("dial failed")
		} else {
			s.setState(StateOpen)
			if err := sess.OnOpen(link); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("session open failed")
				link.Close()
			} else {
				link.Run(ctx, sess)
			}
			// The remote side cannot be told we are gone and may proceed
			// as if connected: every peer connection is invalid now.
			sess.OnDropped()
		}

		if ctx.Err() != nil {
			return
		}
		s.setState(StateWaiting)
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return
		}
	}
}
