package vad

import "github.com/voxhall/frontdesk/pkg/audio"

type Config struct {
	// RMSThreshold is the loudness above which a frame counts as speech.
	RMSThreshold float64 `mapstructure:"rms_threshold"`
	// SpeechFrames is the number of consecutive loud frames that makes
	// speech sustained (10 frames is ~200ms at 20ms/frame).
	SpeechFrames int `mapstructure:"speech_frames"`
	// SilenceReset is how many quiet frames a sustained run survives
	// before it breaks.
	SilenceReset int `mapstructure:"silence_reset"`
}

func (c Config) withDefaults() Config {
	if c.RMSThreshold <= 0 {
		c.RMSThreshold = 500
	}
	if c.SpeechFrames <= 0 {
		c.SpeechFrames = 10
	}
	if c.SilenceReset <= 0 {
		c.SilenceReset = 5
	}
	return c
}

// Detector classifies sustained speech from per-frame loudness using
// hysteresis counters. Isolated loud frames are treated as line noise,
// not speech onset. O(1) per frame, no buffering.
type Detector struct {
	cfg           Config
	speechFrames  int
	silenceFrames int
}

func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Observe feeds one decoded PCM frame and reports whether speech is
// sustained as of this frame. Onset needs SpeechFrames consecutive loud
// frames; once sustained, the run survives up to SilenceReset quiet
// frames before it breaks.
func (d *Detector) Observe(samples []int16) bool {
	if audio.RMS(samples) > d.cfg.RMSThreshold {
		d.speechFrames++
		d.silenceFrames = 0
	} else {
		d.silenceFrames++
		if d.speechFrames < d.cfg.SpeechFrames || d.silenceFrames > d.cfg.SilenceReset {
			d.speechFrames = 0
		}
	}
	return d.speechFrames >= d.cfg.SpeechFrames
}

// Reset clears the hysteresis counters for a fresh detection window.
func (d *Detector) Reset() {
	d.speechFrames = 0
	d.silenceFrames = 0
}
