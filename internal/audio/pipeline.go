// Package audio is the local capture pipeline and remote playback sink.
// The pipeline owns the single local track shared read-only by every peer
// connection; no peer connection may stop it.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// Frame is one block of raw capture samples.
type Frame struct {
	PCM      []int16
	Duration time.Duration
}

// CaptureSource yields capture frames from the local input device.
// ReadFrame returns io.EOF once the device track has ended; the voice
// manager then recreates the pipeline with a fresh source.
type CaptureSource interface {
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// CaptureOpener acquires a capture source. Acquisition can fail (no device,
// permission denied); that failure is fatal for joining voice.
type CaptureOpener func(ctx context.Context) (CaptureSource, error)

// Config mirrors config.AudioConfig without importing it, keeping the
// package free of the viper layer.
type Config struct {
	SampleRate    int
	Channels      int
	Gain          float64
	GateThreshold float64
}

// Pipeline reads capture frames, applies gain and the noise gate, encodes,
// and feeds the shared local track. Mute forces the gate closed without
// detaching the track from any peer connection.
type Pipeline struct {
	cfg    Config
	source CaptureSource
	enc    Encoder
	track  *webrtc.TrackLocalStaticSample

	muted atomic.Bool
	ended atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewPipeline builds a pipeline over an acquired capture source. A nil
// encoder selects G.711 mu-law.
func NewPipeline(cfg Config, source CaptureSource, enc Encoder) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New("nil capture source")
	}
	if enc == nil {
		enc = MuLawEncoder{}
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:  enc.MimeType(),
			ClockRate: uint32(cfg.SampleRate),
			Channels:  uint16(cfg.Channels),
		},
		"audio", "hearth-mic",
	)
	if err != nil {
		return nil, fmt.Errorf("create local track: %w", err)
	}
	return &Pipeline{
		cfg:    cfg,
		source: source,
		enc:    enc,
		track:  track,
		stop:   make(chan struct{}),
	}, nil
}

// Track is the shared local audio track. Callers attach it read-only.
func (p *Pipeline) Track() webrtc.TrackLocal { return p.track }

func (p *Pipeline) SetMuted(m bool) { p.muted.Store(m) }
func (p *Pipeline) Muted() bool     { return p.muted.Load() }

// Ended reports that the capture source has stopped producing frames and
// the pipeline must be recreated before the next join.
func (p *Pipeline) Ended() bool { return p.ended.Load() }

// Stop halts the pump and releases the capture device. Idempotent.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		if err := p.source.Close(); err != nil {
			log.Warn().Err(err).Str("module", "audio").Msg("capture close")
		}
		p.ended.Store(true)
	})
}

// Run pumps frames until the source ends, Stop is called, or ctx dies.
func (p *Pipeline) Run(ctx context.Context) {
	defer p.ended.Store(true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}
		frame, err := p.source.ReadFrame(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("module", "audio").Msg("capture read")
			}
			return
		}
		p.process(frame.PCM)
		sample := media.Sample{Duration: frame.Duration}
		sample.Data, err = p.enc.Encode(frame.PCM)
		if err != nil {
			log.Error().Err(err).Str("module", "audio").Msg("encode frame")
			continue
		}
		if err := p.track.WriteSample(sample); err != nil {
			log.Warn().Err(err).Str("module", "audio").Msg("write sample")
		}
	}
}

// process applies the gate and gain in place. Gated or muted frames become
// silence; writing silence instead of skipping keeps the track clock
// advancing.
func (p *Pipeline) process(pcm []int16) {
	if p.muted.Load() || rms(pcm) < p.cfg.GateThreshold {
		for i := range pcm {
			pcm[i] = 0
		}
		return
	}
	if p.cfg.Gain == 1.0 {
		return
	}
	for i, s := range pcm {
		v := float64(s) * p.cfg.Gain
		switch {
		case v > math.MaxInt16:
			pcm[i] = math.MaxInt16
		case v < math.MinInt16:
			pcm[i] = math.MinInt16
		default:
			pcm[i] = int16(v)
		}
	}
}

// rms is the normalized (0..1) root mean square level of a frame.
func rms(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		f := float64(s) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
