package noisegate

import "testing"

func loudFrame(n int, amp int16) []int16 {
	f := make([]int16, n)
	for i := range f {
		if i%2 == 0 {
			f[i] = amp
		} else {
			f[i] = -amp
		}
	}
	return f
}

func TestDisabledPassesThrough(t *testing.T) {
	g := New()
	frame := loudFrame(8, 5)
	rms := g.Process(frame)
	if rms == 0 {
		t.Fatal("expected nonzero RMS")
	}
	for _, s := range frame {
		if s == 0 {
			t.Fatal("disabled gate must not zero the frame")
		}
	}
	if !g.IsOpen() {
		t.Fatal("disabled gate should report open")
	}
}

func TestEnabledGatesQuietFrame(t *testing.T) {
	g := New()
	g.SetEnabled(true)
	frame := loudFrame(8, 1)

	for i := 0; i < DefaultHold+1; i++ {
		frame = loudFrame(8, 1)
		g.Process(frame)
	}

	for _, s := range frame {
		if s != 0 {
			t.Fatal("expected frame to be zeroed after hold expires")
		}
	}
	if g.IsOpen() {
		t.Fatal("expected gate to be closed")
	}
}

func TestLoudFramePassesAndResetsHold(t *testing.T) {
	g := New()
	g.SetEnabled(true)
	loud := loudFrame(8, 10000)
	g.Process(loud)
	if !g.IsOpen() {
		t.Fatal("expected gate open for loud frame")
	}
	if loud[0] == 0 {
		t.Fatal("loud frame must not be zeroed")
	}
}

func TestReset(t *testing.T) {
	g := New()
	g.SetEnabled(true)
	g.Process(loudFrame(8, 10000))
	g.Reset()
	if g.IsOpen() {
		t.Fatal("expected gate closed after reset")
	}
}
