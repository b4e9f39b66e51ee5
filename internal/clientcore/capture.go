package clientcore

import (
	"context"
	"log/slog"
	"time"

	"wtalk/internal/agc"
	"wtalk/internal/audioio"
	"wtalk/internal/codec"
	"wtalk/internal/noisegate"
	"wtalk/internal/vad"
)

// frameDuration is the wall-clock duration of one audio frame.
const frameDuration = 20 * time.Millisecond

// CaptureTask owns the capture source and runs the capture/encode path
// described in §4.3: non-blocking control drain, pull one PCM block, mute
// handling, optional gate/AGC conditioning, VAD with hangover, encode, emit.
type CaptureTask struct {
	cap audioio.Capture
	enc codec.Encoder
	out chan<- Message // to coordinator
	in  <-chan Message // ToggleMute from coordinator

	muted bool
	vad   *vad.VAD

	// gate and agcProc are optional pre-VAD conditioning stages (§9
	// ADDED), both disabled by default; enabling them does not alter the
	// VAD's own threshold/hangover behavior, only the signal it sees.
	gate       *noisegate.Gate
	agcProc    *agc.AGC
	agcEnabled bool

	log *slog.Logger
}

// NewCaptureTask constructs a CaptureTask. out is the coordinator's inbound
// channel; in is the coordinator's capture-directed channel (carries
// ToggleMute). The gate and AGC conditioning stages are constructed
// disabled, matching their own package defaults; enable them with
// SetGateEnabled/SetAGCEnabled.
func NewCaptureTask(cap audioio.Capture, enc codec.Encoder, out chan<- Message, in <-chan Message, logger *slog.Logger) *CaptureTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureTask{
		cap:     cap,
		enc:     enc,
		out:     out,
		in:      in,
		vad:     vad.New(),
		gate:    noisegate.New(),
		agcProc: agc.New(),
		log:     logger.With("component", "capture"),
	}
}

// SetGateEnabled toggles the pre-VAD noise gate.
func (c *CaptureTask) SetGateEnabled(enabled bool) { c.gate.SetEnabled(enabled) }

// SetAGCEnabled toggles the pre-VAD automatic gain control stage. AGC has
// no enable/disable switch of its own (unity gain is a no-op), so this
// just skips the Process call entirely when off.
func (c *CaptureTask) SetAGCEnabled(enabled bool) { c.agcEnabled = enabled }

// Run executes the capture/encode loop until ctx is cancelled or the
// capture device fails. A capture error terminates the task and is
// surfaced to the coordinator as a disconnect event.
func (c *CaptureTask) Run(ctx context.Context) {
	pcmBytes := make([]byte, audioio.FrameBytes)
	pcm := make([]int16, audioio.FrameFrames)

	for {
		if ctx.Err() != nil {
			return
		}

		// 1. Control intake: non-blocking drain.
		c.drainControl()

		// 2. Pull one PCM block.
		if err := c.cap.Produce(pcmBytes); err != nil {
			c.log.Warn("capture error, disconnecting", "err", err)
			c.emit(ctx, Disconnect())
			return
		}

		// 3. Muted: pace and skip.
		if c.muted {
			select {
			case <-time.After(frameDuration):
			case <-ctx.Done():
				return
			}
			continue
		}

		bytesToSamples(pcmBytes, pcm)

		// 3b. Optional pre-VAD conditioning (§9 ADDED): gate then AGC, both
		// off by default so the default capture path matches the spec
		// exactly.
		c.gate.Process(pcm)
		if c.agcEnabled {
			c.agcProc.Process(pcm)
		}

		// 4. VAD.
		rms := vad.RMS(pcm)
		if !c.vad.ShouldSend(rms) {
			c.emit(ctx, TransmitAudio(false))
			continue
		}

		// 5. Encode and emit.
		encoded, err := c.enc.Encode(pcm)
		if err != nil {
			c.log.Warn("encode error, dropping frame", "err", err)
			continue
		}
		c.emit(ctx, TransmitAudio(true))
		c.emit(ctx, AudioMsg(encoded))
	}
}

func (c *CaptureTask) drainControl() {
	for {
		select {
		case msg := <-c.in:
			if msg.Kind == KindToggleMute {
				c.muted = !c.muted
			}
		default:
			return
		}
	}
}

// emit sends msg to the coordinator, respecting ctx cancellation instead of
// relying on a closed channel to signal shutdown (the idiomatic Go
// equivalent of the spec's "closed channel is fatal for this task").
func (c *CaptureTask) emit(ctx context.Context, msg Message) {
	select {
	case c.out <- msg:
	case <-ctx.Done():
	}
}

// bytesToSamples reinterprets a native-endian S16 byte block as int16
// samples. Valid on little-endian hosts, which is what S16NE means on
// every platform this system targets; see the design notes on the
// zero-copy PCM view.
func bytesToSamples(b []byte, out []int16) {
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
}
