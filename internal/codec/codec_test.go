package codec

import "testing"

// fakeCodec is a round-trip-free stand-in satisfying Encoder/Decoder,
// exercising only the interface contract — real Opus encode/decode needs
// the platform's libopus and no test here exercises it; higher-level tests
// substitute fakes through these interfaces.
type fakeCodec struct{}

func (fakeCodec) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, len(pcm)/2)
	for i := range out {
		out[i] = byte(pcm[i*2])
	}
	return out, nil
}

func (fakeCodec) Decode(data []byte, out []int16) (int, error) {
	n := len(data)
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = int16(data[i])
	}
	return n, nil
}

func TestEncoderDecoderInterfaceShape(t *testing.T) {
	var enc Encoder = fakeCodec{}
	var dec Decoder = fakeCodec{}

	pcm := make([]int16, frameSamples*channels)
	for i := range pcm {
		pcm[i] = int16(i % 100)
	}

	encoded, err := enc.Encode(pcm)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := make([]int16, frameSamples*channels)
	n, err := dec.Decode(encoded, out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("decoded sample count: got %d, want %d", n, len(encoded))
	}
}
