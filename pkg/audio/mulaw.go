package audio

import (
	"errors"
	"math"
)

// Telephony narrow-band format: mono mu-law at 8kHz, 20ms frames.
const (
	SampleRate      = 8000
	FrameDurationMS = 20
	SamplesPerFrame = SampleRate * FrameDurationMS / 1000
)

var ErrEmptyFrame = errors.New("empty audio frame")

// DecodeMuLaw expands a mu-law payload into linear 16-bit PCM samples.
// Every byte value is a valid mu-law code, so the only malformed input
// is an empty payload.
func DecodeMuLaw(raw []byte) ([]int16, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyFrame
	}
	pcm := make([]int16, len(raw))
	for i, b := range raw {
		pcm[i] = muLawToLinear(b)
	}
	return pcm, nil
}

func muLawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant) << 3) + 0x84
	value <<= uint(exp)
	value -= 0x84
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// RMS returns the root-mean-square amplitude of a PCM frame.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
