// Package vad implements a simple energy-based Voice Activity Detector for
// mono or interleaved-stereo int16 PCM audio at 48 kHz, 960-sample (20 ms)
// frames.
//
// The detector classifies each frame as speech or silence by comparing the
// frame RMS level against a threshold. A configurable "hangover" counter
// keeps the detector in the active (send) state for a fixed number of
// frames after the last speech frame, preventing abrupt cut-offs mid-word
// or between words.
package vad

import "math"

const (
	// DefaultThreshold is the RMS level (in raw int16 sample units) below
	// which a frame is treated as silence.
	DefaultThreshold = float64(200.0)

	// DefaultHangover is the number of silent frames to keep sending after
	// speech ends (200 ms at 20 ms / frame). Prevents clipping word endings.
	DefaultHangover = 10
)

// VAD is a voice activity detector over raw int16 PCM. Zero value is not
// usable; use New().
type VAD struct {
	threshold float64
	hangover  int // configured hangover ceiling in frames
	remaining int // frames left in current hangover
	enabled   bool
}

// New returns a VAD with DefaultThreshold and DefaultHangover, enabled by
// default.
func New() *VAD {
	return &VAD{
		threshold: DefaultThreshold,
		hangover:  DefaultHangover,
		enabled:   true,
	}
}

// SetEnabled enables or disables the VAD. When disabled, ShouldSend always
// returns true (pass-through mode).
func (v *VAD) SetEnabled(enabled bool) {
	v.enabled = enabled
	if !enabled {
		v.remaining = 0
	}
}

// Enabled reports whether the VAD is currently enabled.
func (v *VAD) Enabled() bool { return v.enabled }

// ShouldSend reports whether a frame with the given RMS energy should be
// transmitted, and updates the hangover state accordingly.
func (v *VAD) ShouldSend(rms float64) bool {
	if !v.enabled {
		return true
	}
	if rms >= v.threshold {
		v.remaining = v.hangover // voice — reset hangover
		return true
	}
	if v.remaining > 0 {
		v.remaining-- // in hangover — still send
		return true
	}
	return false // pure silence
}

// Reset clears the hangover counter without changing other settings.
func (v *VAD) Reset() { v.remaining = 0 }

// Remaining returns the number of hangover frames left.
func (v *VAD) Remaining() int { return v.remaining }

// RMS returns the root-mean-square of an int16 PCM frame. An empty buffer
// counts as silence (RMS 0).
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
