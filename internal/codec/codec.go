// Package codec adapts the Opus voice codec (gopkg.in/hraban/opus.v2) to
// the spec's Encode/Decode contract: an opaque encoder/decoder pair over
// 20 ms stereo 48 kHz frames.
package codec

import (
	"gopkg.in/hraban/opus.v2"
)

const (
	sampleRate = 48000
	channels   = 2

	// frameSamples is samples per channel per frame (960 = 20 ms @ 48kHz).
	frameSamples = 960

	// maxPacketBytes bounds a single encoded Opus frame; used to size the
	// scratch buffer passed to the encoder.
	maxPacketBytes = 1275

	// defaultBitrate is the initial Opus target bitrate in bits/s.
	defaultBitrate = 32000
)

// Encoder turns PCM frames into opaque Opus byte frames.
type Encoder interface {
	// Encode encodes one frame of 1920 interleaved int16 samples (960
	// samples per channel, stereo) into an opaque byte slice.
	Encode(pcm []int16) ([]byte, error)
}

// Decoder turns opaque Opus byte frames back into PCM. Decoding may be
// invoked on malformed input; on failure the caller should log and skip
// the frame rather than tear down its task (§7 kind 4).
type Decoder interface {
	// Decode decodes data into out, a 1920-sample buffer, and returns the
	// number of samples per channel written.
	Decode(data []byte, out []int16) (int, error)
}

// opusEncoder wraps *opus.Encoder to satisfy Encoder.
type opusEncoder struct {
	enc *opus.Encoder
	buf []byte
}

// opusDecoder wraps *opus.Decoder to satisfy Decoder.
type opusDecoder struct {
	dec *opus.Decoder
}

// NewEncoder constructs an Opus encoder configured for voice at the
// frame parameters used throughout this system.
func NewEncoder() (Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	enc.SetBitrate(defaultBitrate)
	enc.SetDTX(true)
	enc.SetInBandFEC(true)
	return &opusEncoder{enc: enc, buf: make([]byte, maxPacketBytes)}, nil
}

// NewDecoder constructs an Opus decoder matching NewEncoder's parameters.
func NewDecoder() (Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &opusDecoder{dec: dec}, nil
}

func (e *opusEncoder) Encode(pcm []int16) ([]byte, error) {
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}

func (d *opusDecoder) Decode(data []byte, out []int16) (int, error) {
	return d.dec.Decode(data, out)
}
