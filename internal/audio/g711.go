package audio

import "github.com/pion/webrtc/v4"

// Encoder turns raw PCM frames into track payloads.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
	MimeType() string
}

// MuLawEncoder is G.711 mu-law: one byte per sample, no state. The default
// codec for the shared local track.
type MuLawEncoder struct{}

func (MuLawEncoder) MimeType() string { return webrtc.MimeTypePCMU }

const (
	muLawBias = 0x84
	muLawClip = 32635
)

func (MuLawEncoder) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = muLawCompress(s)
	}
	return out, nil
}

func muLawCompress(sample int16) byte {
	sign := byte(0)
	v := int32(sample)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias
	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(v>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}

// MuLawDecode expands mu-law payload bytes back to PCM for playback.
func MuLawDecode(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = muLawExpand(b)
	}
	return out
}

func muLawExpand(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	v := (int32(mantissa)<<3 + muLawBias) << exponent
	v -= muLawBias
	if sign != 0 {
		v = -v
	}
	return int16(v)
}
