// Package protocol implements the wire codec shared by the relay and the
// client: a tagged, length-delimited envelope carrying audio frames,
// membership events, and control messages over a single UDP datagram.
package protocol

import (
	"encoding/binary"
	"net/netip"
)

// Kind identifies a decoded Message's variant.
type Kind byte

const (
	KindUnknown Kind = iota
	KindAudio
	KindAudioFrom
	KindPing
	KindHello
	KindNewClient
	KindDeleteClient
	KindBye
)

// MaxPayload is the largest opus payload the codec guarantees room for.
// 3840 bytes is one raw 20 ms stereo S16 frame; opus output is always far
// smaller, but callers sizing fixed buffers can rely on this bound.
const MaxPayload = 3840

// MaxDatagram is the largest encoded datagram the codec will ever produce:
// MaxPayload plus the largest envelope (tag + address form).
const MaxDatagram = MaxPayload + 32

// Message is the tagged union described in the data model: Audio, AudioFrom,
// Ping, Hello, NewClient, DeleteClient, Bye, or Unknown.
type Message struct {
	Kind Kind

	// Addr is populated for AudioFrom, Hello, NewClient, DeleteClient.
	// For Hello it is advisory only — see the open question in the design
	// notes: the relay never trusts a self-reported address for routing.
	Addr netip.AddrPort

	// Payload carries the opus bytes for Audio/AudioFrom, or the raw bytes
	// that failed to decode for Unknown.
	Payload []byte
}

// Audio builds an Audio message carrying an encoded opus frame.
func Audio(opus []byte) Message { return Message{Kind: KindAudio, Payload: opus} }

// AudioFrom builds an AudioFrom message, stamping the originator's address.
func AudioFrom(addr netip.AddrPort, opus []byte) Message {
	return Message{Kind: KindAudioFrom, Addr: addr, Payload: opus}
}

// Ping builds a Ping message.
func Ping() Message { return Message{Kind: KindPing} }

// Hello builds a Hello message. addr is advisory; see the open question.
func Hello(addr netip.AddrPort) Message { return Message{Kind: KindHello, Addr: addr} }

// NewClientMsg builds a NewClient membership notification.
func NewClientMsg(addr netip.AddrPort) Message {
	return Message{Kind: KindNewClient, Addr: addr}
}

// DeleteClientMsg builds a DeleteClient membership notification.
func DeleteClientMsg(addr netip.AddrPort) Message {
	return Message{Kind: KindDeleteClient, Addr: addr}
}

// Bye builds a Bye message.
func Bye() Message { return Message{Kind: KindBye} }

// unknownOf copies b (decode never aliases the caller's receive buffer for
// an Unknown message, since that buffer is reused on the next recv).
func unknownOf(b []byte) Message {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Message{Kind: KindUnknown, Payload: cp}
}

// addrForm is the tag byte distinguishing the two address encodings.
const (
	addrFormV4 = 0
	addrFormV6 = 1
)

// Encode serializes msg to a byte slice suitable for one UDP datagram.
// Total and infallible for the defined variants: Encode never returns an
// error, and an Unknown message (which should never be constructed by a
// caller — it's decode's error sink) encodes as its raw payload verbatim.
func Encode(msg Message) []byte {
	switch msg.Kind {
	case KindAudio:
		out := make([]byte, 1+len(msg.Payload))
		out[0] = byte(KindAudio)
		copy(out[1:], msg.Payload)
		return out
	case KindAudioFrom:
		head := encodeAddr(msg.Addr)
		out := make([]byte, 1+len(head)+len(msg.Payload))
		out[0] = byte(KindAudioFrom)
		n := copy(out[1:], head)
		copy(out[1+n:], msg.Payload)
		return out
	case KindPing:
		return []byte{byte(KindPing)}
	case KindHello:
		head := encodeAddr(msg.Addr)
		out := make([]byte, 1+len(head))
		out[0] = byte(KindHello)
		copy(out[1:], head)
		return out
	case KindNewClient:
		head := encodeAddr(msg.Addr)
		out := make([]byte, 1+len(head))
		out[0] = byte(KindNewClient)
		copy(out[1:], head)
		return out
	case KindDeleteClient:
		head := encodeAddr(msg.Addr)
		out := make([]byte, 1+len(head))
		out[0] = byte(KindDeleteClient)
		copy(out[1:], head)
		return out
	case KindBye:
		return []byte{byte(KindBye)}
	default:
		return append([]byte(nil), msg.Payload...)
	}
}

// encodeAddr writes a netip.AddrPort as [form:1][addr bytes][port:2].
func encodeAddr(a netip.AddrPort) []byte {
	ip := a.Addr()
	if ip.Is4() {
		b := ip.As4()
		out := make([]byte, 1+4+2)
		out[0] = addrFormV4
		copy(out[1:5], b[:])
		binary.BigEndian.PutUint16(out[5:7], a.Port())
		return out
	}
	b := ip.As16()
	out := make([]byte, 1+16+2)
	out[0] = addrFormV6
	copy(out[1:17], b[:])
	binary.BigEndian.PutUint16(out[17:19], a.Port())
	return out
}

// decodeAddr reads an address written by encodeAddr, returning the number
// of bytes consumed and ok=false if b is too short or the form is invalid.
func decodeAddr(b []byte) (netip.AddrPort, int, bool) {
	if len(b) < 1 {
		return netip.AddrPort{}, 0, false
	}
	switch b[0] {
	case addrFormV4:
		if len(b) < 1+4+2 {
			return netip.AddrPort{}, 0, false
		}
		var a4 [4]byte
		copy(a4[:], b[1:5])
		port := binary.BigEndian.Uint16(b[5:7])
		return netip.AddrPortFrom(netip.AddrFrom4(a4), port), 7, true
	case addrFormV6:
		if len(b) < 1+16+2 {
			return netip.AddrPort{}, 0, false
		}
		var a16 [16]byte
		copy(a16[:], b[1:17])
		port := binary.BigEndian.Uint16(b[17:19])
		return netip.AddrPortFrom(netip.AddrFrom16(a16), port), 19, true
	default:
		return netip.AddrPort{}, 0, false
	}
}

// Decode parses a raw datagram into a Message. It never panics and never
// returns an error: malformed, truncated, unknown-tag, or empty input all
// yield a Kind: KindUnknown message carrying a copy of the input bytes.
func Decode(b []byte) Message {
	if len(b) == 0 {
		return unknownOf(b)
	}

	switch Kind(b[0]) {
	case KindAudio:
		return Message{Kind: KindAudio, Payload: clone(b[1:])}
	case KindAudioFrom:
		addr, n, ok := decodeAddr(b[1:])
		if !ok {
			return unknownOf(b)
		}
		return Message{Kind: KindAudioFrom, Addr: addr, Payload: clone(b[1+n:])}
	case KindPing:
		return Message{Kind: KindPing}
	case KindHello:
		addr, _, ok := decodeAddr(b[1:])
		if !ok {
			return unknownOf(b)
		}
		return Message{Kind: KindHello, Addr: addr}
	case KindNewClient:
		addr, _, ok := decodeAddr(b[1:])
		if !ok {
			return unknownOf(b)
		}
		return Message{Kind: KindNewClient, Addr: addr}
	case KindDeleteClient:
		addr, _, ok := decodeAddr(b[1:])
		if !ok {
			return unknownOf(b)
		}
		return Message{Kind: KindDeleteClient, Addr: addr}
	case KindBye:
		return Message{Kind: KindBye}
	default:
		return unknownOf(b)
	}
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
