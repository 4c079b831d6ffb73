package audio

import (
	"math"
	"testing"
	"time"
)

func testPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := NewPipeline(cfg, NewSilenceSource(cfg.SampleRate, cfg.Channels, 20*time.Millisecond), nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func TestGateSilencesQuietFrames(t *testing.T) {
	p := testPipeline(t, Config{SampleRate: 8000, Channels: 1, Gain: 1.0, GateThreshold: 0.05})

	quiet := []int16{100, -100, 50, -50}
	p.process(quiet)
	for i, s := range quiet {
		if s != 0 {
			t.Fatalf("quiet[%d] = %d, want 0 (gated)", i, s)
		}
	}

	loud := []int16{8000, -8000, 8000, -8000}
	p.process(loud)
	if loud[0] == 0 {
		t.Fatal("loud frame was gated")
	}
}

func TestMuteForcesGateClosed(t *testing.T) {
	p := testPipeline(t, Config{SampleRate: 8000, Channels: 1, Gain: 1.0, GateThreshold: 0})
	p.SetMuted(true)

	frame := []int16{8000, -8000}
	p.process(frame)
	if frame[0] != 0 || frame[1] != 0 {
		t.Fatalf("muted frame not silenced: %v", frame)
	}
}

func TestGainAppliesWithClipping(t *testing.T) {
	p := testPipeline(t, Config{SampleRate: 8000, Channels: 1, Gain: 2.0, GateThreshold: 0})

	frame := []int16{1000, -1000, 30000, math.MinInt16}
	p.process(frame)
	if frame[0] != 2000 || frame[1] != -2000 {
		t.Errorf("gain not applied: %v", frame[:2])
	}
	if frame[2] != math.MaxInt16 {
		t.Errorf("positive overflow not clipped: %d", frame[2])
	}
	if frame[3] != math.MinInt16 {
		t.Errorf("negative overflow not clipped: %d", frame[3])
	}
}

func TestMuLawRoundTripIsClose(t *testing.T) {
	samples := []int16{0, 1000, -1000, 12345, -12345, 32000, -32000}
	enc := MuLawEncoder{}
	data, err := enc.Encode(samples)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded := MuLawDecode(data)
	for i, want := range samples {
		got := decoded[i]
		// mu-law is lossy; error grows with amplitude but stays small
		// relative to the sample value.
		diff := math.Abs(float64(got) - float64(want))
		tolerance := math.Max(64, math.Abs(float64(want))*0.06)
		if diff > tolerance {
			t.Errorf("sample %d: %d -> %d (diff %.0f > %.0f)", i, want, got, diff, tolerance)
		}
	}
}

func TestRMSRange(t *testing.T) {
	if got := rms(nil); got != 0 {
		t.Errorf("rms(nil) = %v", got)
	}
	full := []int16{math.MaxInt16, math.MaxInt16}
	if got := rms(full); got < 0.99 || got > 1.01 {
		t.Errorf("rms(full scale) = %v, want ~1", got)
	}
}
