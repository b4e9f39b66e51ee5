package agc

import "testing"

func constFrame(n int, amp int16) []int16 {
	f := make([]int16, n)
	for i := range f {
		f[i] = amp
	}
	return f
}

func TestNewDefaults(t *testing.T) {
	a := New()
	if a.Gain() != 1.0 {
		t.Fatalf("expected unity gain, got %v", a.Gain())
	}
	if a.target != DefaultTarget {
		t.Fatalf("expected DefaultTarget, got %v", a.target)
	}
}

func TestProcessEmptyFrameNoop(t *testing.T) {
	a := New()
	out := a.Process(nil)
	if out != nil {
		t.Fatal("expected nil passthrough")
	}
}

func TestProcessQuietFrameSkipsGainUpdate(t *testing.T) {
	a := New()
	frame := constFrame(8, 1)
	a.Process(frame)
	if a.Gain() != 1.0 {
		t.Fatalf("expected gain unchanged on near-silence, got %v", a.Gain())
	}
}

func TestProcessLoudFrameReducesGain(t *testing.T) {
	a := New()
	frame := constFrame(8, 20000)
	a.Process(frame)
	if a.Gain() >= 1.0 {
		t.Fatalf("expected gain reduced for loud frame, got %v", a.Gain())
	}
}

func TestProcessQuietLoudFrameIncreasesGain(t *testing.T) {
	a := New()
	frame := constFrame(8, 100)
	a.Process(frame)
	if a.Gain() <= 1.0 {
		t.Fatalf("expected gain increased for quiet-but-above-floor frame, got %v", a.Gain())
	}
}

func TestGainClampedToMax(t *testing.T) {
	a := New()
	for i := 0; i < 1000; i++ {
		a.Process(constFrame(8, 40))
	}
	if a.Gain() > MaxGain {
		t.Fatalf("gain exceeded MaxGain: %v", a.Gain())
	}
}

func TestResetRestoresUnityGain(t *testing.T) {
	a := New()
	a.Process(constFrame(8, 20000))
	a.Reset()
	if a.Gain() != 1.0 {
		t.Fatalf("expected unity gain after reset, got %v", a.Gain())
	}
}
