package audioio

import "testing"

func TestFloatToS16RoundTrip(t *testing.T) {
	src := []float32{0, 0.5, -0.5, 1, -1}
	dst := make([]byte, len(src)*2)
	floatToS16(src, dst)

	back := make([]float32, len(src))
	s16ToFloat(dst, back)

	for i := range src {
		diff := src[i] - back[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.01 {
			t.Errorf("sample %d: got %f, want ~%f", i, back[i], src[i])
		}
	}
}

func TestFloatToS16Clamps(t *testing.T) {
	src := []float32{2.0, -2.0}
	dst := make([]byte, 4)
	floatToS16(src, dst)

	back := make([]float32, 2)
	s16ToFloat(dst, back)
	if back[0] <= 0.9 {
		t.Errorf("expected clamped positive sample near 1.0, got %f", back[0])
	}
	if back[1] >= -0.9 {
		t.Errorf("expected clamped negative sample near -1.0, got %f", back[1])
	}
}

func TestFrameSizeConstants(t *testing.T) {
	if FrameFrames != 1920 {
		t.Errorf("FrameFrames: got %d, want 1920", FrameFrames)
	}
	if FrameBytes != 3840 {
		t.Errorf("FrameBytes: got %d, want 3840", FrameBytes)
	}
}
