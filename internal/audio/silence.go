package audio

import (
	"context"
	"io"
	"sync"
	"time"
)

// SilenceSource is a paced capture source producing silent frames. It keeps
// the pipeline and track clocks honest when no real input device is wired.
// TODO: replace in cmd/hearth with the capture source exposed by the
// desktop shell once its device bridge lands.
type SilenceSource struct {
	sampleRate int
	channels   int
	frame      time.Duration

	mu     sync.Mutex
	ticker *time.Ticker
	closed bool
}

var _ CaptureSource = (*SilenceSource)(nil)

func NewSilenceSource(sampleRate, channels int, frame time.Duration) *SilenceSource {
	return &SilenceSource{
		sampleRate: sampleRate,
		channels:   channels,
		frame:      frame,
		ticker:     time.NewTicker(frame),
	}
}

func (s *SilenceSource) ReadFrame(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Frame{}, io.EOF
	}
	tick := s.ticker.C
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case _, ok := <-tick:
		if !ok {
			return Frame{}, io.EOF
		}
	}
	n := s.sampleRate * s.channels * int(s.frame) / int(time.Second)
	return Frame{PCM: make([]int16, n), Duration: s.frame}, nil
}

func (s *SilenceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.ticker.Stop()
	}
	return nil
}
