package clientcore

import (
	"context"
	"log/slog"
	"time"

	"wtalk/internal/audioio"
	"wtalk/internal/codec"
)

// PlaybackTask owns the playback sink and runs the receive/decode path
// described in §4.4: RecvAudio decodes and plays unless deafened,
// ToggleDeafen flips the local flag, everything else is ignored. No
// jitter buffer is maintained — frames are played in arrival order.
type PlaybackTask struct {
	sink audioio.Playback
	dec  codec.Decoder
	in   <-chan Message // ToPlayback from coordinator

	deafened bool
	log      *slog.Logger
}

// NewPlaybackTask constructs a PlaybackTask.
func NewPlaybackTask(sink audioio.Playback, dec codec.Decoder, in <-chan Message, logger *slog.Logger) *PlaybackTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaybackTask{sink: sink, dec: dec, in: in, log: logger.With("component", "playback")}
}

// Run executes the playback loop until ctx is cancelled or in is closed.
func (p *PlaybackTask) Run(ctx context.Context) {
	pcm := make([]int16, audioio.FrameFrames)
	pcmBytes := make([]byte, audioio.FrameBytes)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.in:
			if !ok {
				return
			}
			switch msg.Kind {
			case KindToggleDeafen:
				p.deafened = !p.deafened
			case KindRecvAudio:
				p.play(msg.Audio, pcm, pcmBytes)
			}
		}
	}
}

func (p *PlaybackTask) play(opus []byte, pcm []int16, pcmBytes []byte) {
	if p.deafened {
		time.Sleep(frameDuration)
		return
	}
	n, err := p.dec.Decode(opus, pcm)
	if err != nil {
		p.log.Warn("decode error, dropping frame", "err", err)
		return
	}
	samplesToBytes(pcm[:n*audioio.Channels], pcmBytes)
	if err := p.sink.Consume(pcmBytes); err != nil {
		p.log.Warn("playback error", "err", err)
	}
}

// samplesToBytes reinterprets int16 samples as native-endian S16 bytes.
func samplesToBytes(in []int16, out []byte) {
	for i, s := range in {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
}
