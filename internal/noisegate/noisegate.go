// Package noisegate implements a hard noise gate for interleaved S16 PCM
// audio.
//
// Frames with RMS below the configured threshold are zeroed out entirely.
// The gate runs ahead of VAD in the capture path: it cleans the signal
// before VAD decides whether to transmit it at all. A short hold period
// keeps the gate from chopping speech during brief pauses between words.
package noisegate

import "wtalk/internal/vad"

const (
	// DefaultThreshold is the RMS level below which audio is gated, in the
	// same int16 PCM units as vad.DefaultThreshold.
	DefaultThreshold = float64(80.0)

	// DefaultHold is the number of frames the gate stays open after the
	// signal drops below threshold (200ms at 20ms/frame).
	DefaultHold = 10
)

// Gate is a hard noise gate that zeroes frames below a threshold.
type Gate struct {
	threshold float64
	hold      int
	remaining int
	enabled   bool
	open      bool
}

// New returns a Gate with DefaultThreshold and DefaultHold, disabled by
// default — the gate is optional pre-VAD conditioning, not part of the
// default capture path.
func New() *Gate {
	return &Gate{
		threshold: DefaultThreshold,
		hold:      DefaultHold,
		enabled:   false,
	}
}

// SetEnabled enables or disables the gate. When disabled, Process is a no-op.
func (g *Gate) SetEnabled(enabled bool) {
	g.enabled = enabled
	if !enabled {
		g.remaining = 0
		g.open = false
	}
}

// Enabled reports whether the gate is currently enabled.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// SetThreshold sets the RMS gate threshold directly, in int16 PCM units.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0 {
		threshold = 0
	}
	g.threshold = threshold
}

// Threshold returns the current RMS threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// IsOpen reports whether the gate is currently passing audio.
func (g *Gate) IsOpen() bool {
	return g.open
}

// Process applies the gate to frame in-place. If the frame's RMS is below
// the threshold and the hold period has expired, the frame is zeroed.
// Returns the frame RMS before gating, for level meters.
func (g *Gate) Process(frame []int16) float64 {
	rms := vad.RMS(frame)

	if !g.enabled {
		g.open = true
		return rms
	}

	if rms >= g.threshold {
		g.remaining = g.hold
		g.open = true
		return rms
	}

	if g.remaining > 0 {
		g.remaining--
		g.open = true
		return rms
	}

	for i := range frame {
		frame[i] = 0
	}
	g.open = false
	return rms
}

// Reset clears the hold counter without changing settings.
func (g *Gate) Reset() {
	g.remaining = 0
	g.open = false
}
