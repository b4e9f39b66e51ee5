// Package clientcore implements the client's concurrency core: the five
// long-lived tasks (capture, playback, net_in, net_out, coordinator) and
// the internal message type that connects them.
package clientcore

import "net/netip"

// Kind identifies a ClientMessage variant — the internal counterpart to
// the wire protocol's Kind, used on the channel mesh between tasks.
type Kind int

const (
	KindConnect Kind = iota
	KindDisconnect
	KindAudio         // outbound: encoded frame ready to send
	KindRecvAudio     // inbound: encoded frame received from a peer
	KindToggleMute
	KindToggleDeafen
	KindTransmitAudio // local sending-audio indicator, for the UI
	KindNewClient
	KindDeleteClient
	KindExit
)

// Message is the internal tagged union routed by the coordinator.
type Message struct {
	Kind Kind

	// Audio carries the encoded opus payload for KindAudio/KindRecvAudio.
	Audio []byte

	// Addr is the peer address for KindRecvAudio/KindNewClient/KindDeleteClient.
	Addr netip.AddrPort

	// Active is the boolean payload for KindTransmitAudio.
	Active bool
}

func Connect() Message      { return Message{Kind: KindConnect} }
func Disconnect() Message   { return Message{Kind: KindDisconnect} }
func ToggleMute() Message   { return Message{Kind: KindToggleMute} }
func ToggleDeafen() Message { return Message{Kind: KindToggleDeafen} }
func Exit() Message         { return Message{Kind: KindExit} }

func AudioMsg(opus []byte) Message { return Message{Kind: KindAudio, Audio: opus} }

func RecvAudio(opus []byte, addr netip.AddrPort) Message {
	return Message{Kind: KindRecvAudio, Audio: opus, Addr: addr}
}

func TransmitAudio(active bool) Message {
	return Message{Kind: KindTransmitAudio, Active: active}
}

func NewClient(addr netip.AddrPort) Message {
	return Message{Kind: KindNewClient, Addr: addr}
}

func DeleteClient(addr netip.AddrPort) Message {
	return Message{Kind: KindDeleteClient, Addr: addr}
}
