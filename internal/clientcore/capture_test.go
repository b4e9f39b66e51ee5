package clientcore

import (
	"context"
	"encoding/binary"
	"testing"
	"time"
)

// stepCapture produces one PCM block per call to Produce, blocking until
// the test explicitly releases the next frame via step. This keeps frame
// production in lock-step with the test instead of racing ahead of
// assertions at native CPU speed, the way a real blocking audio device
// would pace the loop in wall-clock time.
type stepCapture struct {
	step    chan int16
	closeCh chan struct{}
}

func newStepCapture() *stepCapture {
	return &stepCapture{step: make(chan int16), closeCh: make(chan struct{})}
}

func (s *stepCapture) Produce(out []byte) error {
	select {
	case v := <-s.step:
		for i := 0; i < len(out); i += 2 {
			binary.LittleEndian.PutUint16(out[i:], uint16(v))
		}
		return nil
	case <-s.closeCh:
		return errClosed
	}
}

func (s *stepCapture) Close() error {
	close(s.closeCh)
	return nil
}

var errClosed = &captureClosedErr{}

type captureClosedErr struct{}

func (*captureClosedErr) Error() string { return "stepCapture closed" }

// fakeEncoder returns a 1-byte stand-in payload; the capture path never
// inspects its contents.
type fakeEncoder struct{}

func (fakeEncoder) Encode(pcm []int16) ([]byte, error) {
	return []byte{1}, nil
}

func newTestCaptureTask(t *testing.T) (*CaptureTask, *stepCapture, chan Message, chan Message) {
	t.Helper()
	out := make(chan Message, 256)
	in := make(chan Message, 8)
	cap := newStepCapture()
	t.Cleanup(func() { cap.Close() })
	task := NewCaptureTask(cap, fakeEncoder{}, out, in, nil)
	return task, cap, out, in
}

func recvWithTimeout(t *testing.T, ch chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for capture message")
		return Message{}
	}
}

func expectNone(t *testing.T, ch chan Message, within time.Duration) {
	t.Helper()
	select {
	case m := <-ch:
		t.Fatalf("expected no message, got %+v", m)
	case <-time.After(within):
	}
}

// TestSilenceSuppressionScenario reproduces spec scenario 1: 30 frames of
// RMS 0 after the initial hangover drains yield zero Audio emissions and a
// TransmitAudio(false) once per suppressed frame.
func TestSilenceSuppressionScenario(t *testing.T) {
	task, cap, out, _ := newTestCaptureTask(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Run(ctx)

	audioCount, falseCount := 0, 0
	for i := 0; i < 30; i++ {
		cap.step <- 0
		msg := recvWithTimeout(t, out)
		switch msg.Kind {
		case KindAudio:
			audioCount++
		case KindTransmitAudio:
			if !msg.Active {
				falseCount++
			}
		}
	}
	if audioCount != 0 {
		t.Fatalf("expected 0 Audio emissions for pure silence, got %d", audioCount)
	}
	if falseCount != 30 {
		t.Fatalf("expected 30 TransmitAudio(false), got %d", falseCount)
	}
}

// TestVoiceBurstScenario reproduces spec scenario 2: 5 voice frames (RMS
// 5000) then 20 silent frames yield 5+10=15 Audio emissions, with
// TransmitAudio(true) preceding the first one.
func TestVoiceBurstScenario(t *testing.T) {
	task, cap, out, _ := newTestCaptureTask(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Run(ctx)

	audioCount := 0
	sawTransmitTrueFirst := false

	for i := 0; i < 5; i++ {
		cap.step <- 5000
		// Each voice frame produces TransmitAudio(true) then Audio.
		m1 := recvWithTimeout(t, out)
		m2 := recvWithTimeout(t, out)
		if m1.Kind == KindTransmitAudio && m1.Active && audioCount == 0 {
			sawTransmitTrueFirst = true
		}
		if m2.Kind == KindAudio {
			audioCount++
		}
	}
	for i := 0; i < 20; i++ {
		cap.step <- 0
		msg := recvWithTimeout(t, out)
		if msg.Kind == KindAudio {
			audioCount++
		}
	}
	if audioCount != 15 {
		t.Fatalf("expected 15 Audio emissions, got %d", audioCount)
	}
	if !sawTransmitTrueFirst {
		t.Fatal("expected TransmitAudio(true) before the first Audio emission")
	}
}

// TestMuteToggleLatency reproduces spec scenario 6: once ToggleMute is
// drained by the control intake at the top of a loop iteration, the
// capture task emits no further Audio from that iteration onward, until
// toggled again.
func TestMuteToggleLatency(t *testing.T) {
	task, cap, out, in := newTestCaptureTask(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Run(ctx)

	// One voice frame while unmuted: TransmitAudio(true), Audio.
	cap.step <- 5000
	recvWithTimeout(t, out)
	recvWithTimeout(t, out)

	// Queue the toggle. The capture loop pulls a PCM block every
	// iteration regardless of mute state, so the very next iteration (B)
	// may race the toggle and still come through unmuted — that's the
	// "within one frame" slack the spec allows. But since sending
	// ToggleMute happens-before sending B's step, which happens-before
	// Produce(B) returns, which happens-before B's processing finishes,
	// which happens-before drainControl for iteration C runs, iteration C
	// is *guaranteed* to observe the toggle. Drain B's (uncertain) output,
	// then assert C and D are silent.
	in <- ToggleMute()
	cap.step <- 5000 // iteration B: may or may not already be muted
	drainUpTo(out, 2, 50*time.Millisecond)
	cap.step <- 5000 // iteration C: guaranteed muted
	expectNone(t, out, 100*time.Millisecond)
	cap.step <- 5000 // iteration D: still muted
	expectNone(t, out, 100*time.Millisecond)

	// Toggle back on, by the same happens-before argument iteration F
	// (two steps later) is guaranteed unmuted.
	in <- ToggleMute()
	cap.step <- 5000 // iteration E: may or may not already be unmuted
	drainUpTo(out, 2, 50*time.Millisecond)
	cap.step <- 5000 // iteration F: guaranteed unmuted
	m1 := recvWithTimeout(t, out)
	m2 := recvWithTimeout(t, out)
	if m1.Kind != KindTransmitAudio || !m1.Active || m2.Kind != KindAudio {
		t.Fatalf("expected TransmitAudio(true)+Audio after unmute, got %+v %+v", m1, m2)
	}
}

// drainUpTo reads at most n messages from ch, stopping early once within
// is elapsed with nothing more arriving. Used for loop iterations whose
// mute state is racing a just-sent toggle and may legitimately produce
// either zero or a full TransmitAudio+Audio pair.
func drainUpTo(ch chan Message, n int, within time.Duration) {
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(within):
			return
		}
	}
}
