// Package audioio adapts the platform audio device API (PortAudio) to the
// fixed-size-block capture/playback contract described in the external
// interfaces section: a capture source yields fixed-size PCM blocks, a
// playback sink accepts fixed-size PCM blocks, and failure is the only
// signal that the device is gone. When a shared *aec.AEC is supplied to
// both OpenCapture and OpenPlayback, capture frames are echo-cancelled
// against what was just sent to the speakers.
package audioio

import (
	"errors"
	"log/slog"

	"github.com/gordonklaus/portaudio"

	"wtalk/internal/aec"
)

// Audio frame parameters, shared by capture, codec, and playback.
const (
	SampleRate   = 48000
	Channels     = 2
	FrameSamples = 960                        // samples per channel per frame
	FrameFrames  = FrameSamples * Channels     // interleaved samples per frame (1920)
	FrameBytes   = FrameFrames * 2             // bytes per frame, S16 (3840)
)

// ErrDeviceGone is returned by Produce/Consume once the underlying stream
// has been closed or PortAudio reports it unusable.
var ErrDeviceGone = errors.New("audioio: device gone")

// Capture yields one fixed-size PCM block per call. Produce blocks until a
// full frame (FrameBytes) has been captured.
type Capture interface {
	Produce(out []byte) error
	Close() error
}

// Playback accepts one fixed-size PCM block per call.
type Playback interface {
	Consume(in []byte) error
	Close() error
}

// Init wraps portaudio.Initialize. Must be called once before opening any
// stream and matched by a Terminate call at process exit.
func Init() error { return portaudio.Initialize() }

// Terminate wraps portaudio.Terminate.
func Terminate() error { return portaudio.Terminate() }

// Device describes one input or output device, for listing/selection.
type Device struct {
	Index int
	Name  string
}

// ListInputDevices returns every device with at least one input channel.
func ListInputDevices() ([]Device, error) {
	return listDevices(func(d *portaudio.DeviceInfo) bool { return d.MaxInputChannels > 0 })
}

// ListOutputDevices returns every device with at least one output channel.
func ListOutputDevices() ([]Device, error) {
	return listDevices(func(d *portaudio.DeviceInfo) bool { return d.MaxOutputChannels > 0 })
}

func listDevices(match func(*portaudio.DeviceInfo) bool) ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var out []Device
	for i, d := range devices {
		if match(d) {
			out = append(out, Device{Index: i, Name: d.Name})
		}
	}
	return out, nil
}

// captureStream adapts a portaudio input stream to Capture. PortAudio
// delivers float32 samples; Produce converts to the S16 native-endian wire
// format the rest of the system expects.
type captureStream struct {
	stream *portaudio.Stream
	buf    []float32
	aec    *aec.AEC
	closed bool
	log    *slog.Logger
}

// playbackStream adapts a portaudio output stream to Playback.
type playbackStream struct {
	stream *portaudio.Stream
	buf    []float32
	aec    *aec.AEC
	closed bool
	log    *slog.Logger
}

// OpenCapture opens an input stream on the device at deviceIndex (-1 for
// the system default) and returns a Capture reading FrameBytes blocks. If
// canceller is non-nil, every captured frame is run through it before S16
// conversion; pair it with the same canceller passed to OpenPlayback so the
// far-end reference lines up with what's actually on the speakers.
func OpenCapture(deviceIndex int, canceller *aec.AEC, logger *slog.Logger) (Capture, error) {
	dev, err := resolveInputDevice(deviceIndex)
	if err != nil {
		return nil, err
	}
	buf := make([]float32, FrameFrames)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      SampleRate,
		FramesPerBuffer: FrameSamples,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return &captureStream{stream: stream, buf: buf, aec: canceller, log: namedLogger(logger, "capture")}, nil
}

// OpenPlayback opens an output stream on the device at deviceIndex (-1 for
// the system default) and returns a Playback writing FrameBytes blocks. If
// canceller is non-nil, every played frame is fed to it as the far-end echo
// reference.
func OpenPlayback(deviceIndex int, canceller *aec.AEC, logger *slog.Logger) (Playback, error) {
	dev, err := resolveOutputDevice(deviceIndex)
	if err != nil {
		return nil, err
	}
	buf := make([]float32, FrameFrames)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: Channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      SampleRate,
		FramesPerBuffer: FrameSamples,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return &playbackStream{stream: stream, buf: buf, aec: canceller, log: namedLogger(logger, "playback")}, nil
}

func namedLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}

func resolveInputDevice(idx int) (*portaudio.DeviceInfo, error) {
	if idx < 0 {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if idx >= len(devices) {
		return portaudio.DefaultInputDevice()
	}
	return devices[idx], nil
}

func resolveOutputDevice(idx int) (*portaudio.DeviceInfo, error) {
	if idx < 0 {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if idx >= len(devices) {
		return portaudio.DefaultOutputDevice()
	}
	return devices[idx], nil
}

// Produce blocks until one FrameBytes block of S16 native-endian stereo PCM
// has been captured, writing it into out. len(out) must equal FrameBytes.
func (c *captureStream) Produce(out []byte) error {
	if c.closed {
		return ErrDeviceGone
	}
	if len(out) != FrameBytes {
		return errors.New("audioio: Produce requires a FrameBytes-sized buffer")
	}
	if err := c.stream.Read(); err != nil {
		c.log.Warn("capture read failed", "err", err)
		return ErrDeviceGone
	}
	if c.aec != nil {
		c.aec.Process(c.buf)
	}
	floatToS16(c.buf, out)
	return nil
}

func (c *captureStream) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.stream.Stop()
	return c.stream.Close()
}

// Consume hands one FrameBytes block of S16 native-endian stereo PCM to the
// speaker queue.
func (p *playbackStream) Consume(in []byte) error {
	if p.closed {
		return ErrDeviceGone
	}
	if len(in) != FrameBytes {
		return errors.New("audioio: Consume requires a FrameBytes-sized buffer")
	}
	s16ToFloat(in, p.buf)
	if p.aec != nil {
		p.aec.FeedFarEnd(p.buf)
	}
	if err := p.stream.Write(); err != nil {
		p.log.Warn("playback write failed", "err", err)
		return ErrDeviceGone
	}
	return nil
}

func (p *playbackStream) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.stream.Stop()
	return p.stream.Close()
}

// floatToS16 converts normalized float32 samples to S16 native-endian bytes.
func floatToS16(src []float32, dst []byte) {
	for i, s := range src {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767)
		dst[2*i] = byte(v)
		dst[2*i+1] = byte(v >> 8)
	}
}

// s16ToFloat converts S16 native-endian bytes to normalized float32 samples.
func s16ToFloat(src []byte, dst []float32) {
	for i := range dst {
		v := int16(src[2*i]) | int16(src[2*i+1])<<8
		dst[i] = float32(v) / 32768.0
	}
}
