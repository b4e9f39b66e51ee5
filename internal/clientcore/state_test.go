package clientcore

import (
	"net/netip"
	"testing"
	"time"
)

func TestApplyConnectDisconnect(t *testing.T) {
	s := NewState()
	if !s.Apply(Connect()) {
		t.Fatal("expected Connect to change state")
	}
	if !s.Connected {
		t.Fatal("expected Connected true")
	}
	if s.Apply(Connect()) {
		t.Fatal("expected duplicate Connect to be a no-op")
	}
	if !s.Apply(Disconnect()) {
		t.Fatal("expected Disconnect to change state")
	}
	if s.Connected {
		t.Fatal("expected Connected false")
	}
}

func TestApplyTransmitAudioDedup(t *testing.T) {
	s := NewState()
	if !s.Apply(TransmitAudio(true)) {
		t.Fatal("expected first TransmitAudio(true) to change state")
	}
	if s.Apply(TransmitAudio(true)) {
		t.Fatal("expected repeated TransmitAudio(true) to be a no-op")
	}
	if !s.Apply(TransmitAudio(false)) {
		t.Fatal("expected TransmitAudio(false) to change state")
	}
}

func TestApplyRecvAudioCreatesUserAndMarksSpeaking(t *testing.T) {
	s := NewState()
	addr := netip.MustParseAddrPort("10.0.0.5:4000")
	if !s.Apply(RecvAudio([]byte{1, 2}, addr)) {
		t.Fatal("expected RecvAudio to change state")
	}
	u, ok := s.Users[addr]
	if !ok {
		t.Fatal("expected user entry to be created")
	}
	if !u.IsSpeaking || !u.HasSpoken {
		t.Fatalf("expected IsSpeaking and HasSpoken set, got %+v", u)
	}
}

func TestApplyNewClientDeleteClient(t *testing.T) {
	s := NewState()
	addr := netip.MustParseAddrPort("10.0.0.6:4001")

	if !s.Apply(NewClient(addr)) {
		t.Fatal("expected NewClient to change state")
	}
	if s.Apply(NewClient(addr)) {
		t.Fatal("expected duplicate NewClient to be a no-op")
	}
	if _, ok := s.Users[addr]; !ok {
		t.Fatal("expected user present after NewClient")
	}

	if !s.Apply(DeleteClient(addr)) {
		t.Fatal("expected DeleteClient to change state")
	}
	if _, ok := s.Users[addr]; ok {
		t.Fatal("expected user removed after DeleteClient")
	}
	if s.Apply(DeleteClient(addr)) {
		t.Fatal("expected DeleteClient on an absent user to be a no-op")
	}
}

func TestAgeSpeakingClearsStaleFlag(t *testing.T) {
	s := NewState()
	addr := netip.MustParseAddrPort("10.0.0.7:4002")
	s.Apply(RecvAudio(nil, addr))

	if s.AgeSpeaking(time.Now()) {
		t.Fatal("expected no change immediately after RecvAudio")
	}
	if changed := s.AgeSpeaking(time.Now().Add(speakingTimeout + time.Millisecond)); !changed {
		t.Fatal("expected AgeSpeaking to clear the stale flag")
	}
	if s.Users[addr].IsSpeaking {
		t.Fatal("expected IsSpeaking cleared")
	}
}
