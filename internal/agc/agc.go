// Package agc implements a simple software Automatic Gain Control processor
// for interleaved S16 PCM audio at 48kHz, 960-sample-per-channel (20ms)
// frames.
//
// The AGC continuously monitors the short-term RMS of each frame and adjusts
// a multiplicative gain toward a desired target level using independent
// attack/release time constants. Gain is clamped to [MinGain, MaxGain] to
// keep silence amplification bounded.
package agc

import "wtalk/internal/vad"

const (
	// DefaultTarget is the desired RMS level, in int16 PCM units.
	DefaultTarget = 3000.0

	// MinGain limits attenuation of loud signals to at most 20 dB.
	MinGain = 0.1
	// MaxGain allows up to +20 dB of amplification.
	MaxGain = 10.0

	// AttackCoeff controls how quickly gain is reduced when level exceeds
	// target. Higher means faster attack.
	AttackCoeff = 0.80
	// ReleaseCoeff controls how quickly gain recovers after a loud
	// transient. Slower than attack to avoid pumping artefacts.
	ReleaseCoeff = 0.02

	// minRMS suppresses gain updates on silent frames.
	minRMS = 30.0
)

// AGC is a single-stream automatic gain control processor. Zero value is
// not usable; use New().
type AGC struct {
	target float64
	gain   float64
}

// New returns an AGC with DefaultTarget and unity gain. The AGC has no
// enabled state of its own; the capture path calls Process only when AGC
// is switched on there, which it is not by default.
func New() *AGC {
	return &AGC{target: DefaultTarget, gain: 1.0}
}

// SetTarget sets the desired RMS level directly, in int16 PCM units.
func (a *AGC) SetTarget(target float64) {
	if target < 0 {
		target = 0
	}
	a.target = target
}

// Process applies gain to frame in-place and updates the gain estimate.
func (a *AGC) Process(frame []int16) []int16 {
	if len(frame) == 0 {
		return frame
	}

	rms := vad.RMS(frame)

	for i, s := range frame {
		v := float64(s) * a.gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		frame[i] = int16(v)
	}

	if rms < minRMS {
		return frame
	}

	desired := a.target / rms
	if desired < MinGain {
		desired = MinGain
	} else if desired > MaxGain {
		desired = MaxGain
	}

	var coeff float64
	if desired < a.gain {
		coeff = AttackCoeff
	} else {
		coeff = ReleaseCoeff
	}
	a.gain = a.gain + coeff*(desired-a.gain)

	return frame
}

// Gain returns the current linear gain multiplier.
func (a *AGC) Gain() float64 { return a.gain }

// Reset resets the gain to unity without changing the target.
func (a *AGC) Reset() { a.gain = 1.0 }
