package clientcore

import (
	"net/netip"
	"time"
)

// State is the UI-visible client state described in the data model: it is
// created on startup and mutated only by the coordinator task (connection
// and audio flags, membership) and the UI task (mute/deafen/exit flags).
// Other consumers read it via the channel messages that update it, never
// by reaching into a shared struct.
type State struct {
	Connected    bool
	SendingAudio bool
	Mute         bool
	Deafen       bool
	Exit         bool

	Users map[netip.AddrPort]*UserEntry
}

// UserEntry is one peer in the user list.
type UserEntry struct {
	Addr       netip.AddrPort
	IsSpeaking bool
	LastSpoke  time.Time
	HasSpoken  bool
}

// NewState returns an empty, disconnected State.
func NewState() *State {
	return &State{Users: make(map[netip.AddrPort]*UserEntry)}
}

// speakingTimeout is how long a peer's is_speaking flag is held after its
// most recent RecvAudio, per §4.7 step 3.
const speakingTimeout = 500 * time.Millisecond

// Apply mutates s in response to one coordinator message, returning true
// if anything visibly changed (the caller uses this to decide whether a
// redraw is warranted).
func (s *State) Apply(msg Message) bool {
	switch msg.Kind {
	case KindConnect:
		if s.Connected {
			return false
		}
		s.Connected = true
		return true
	case KindDisconnect:
		if !s.Connected {
			return false
		}
		s.Connected = false
		return true
	case KindTransmitAudio:
		if s.SendingAudio == msg.Active {
			return false
		}
		s.SendingAudio = msg.Active
		return true
	case KindRecvAudio:
		u, ok := s.Users[msg.Addr]
		if !ok {
			u = &UserEntry{Addr: msg.Addr}
			s.Users[msg.Addr] = u
		}
		u.IsSpeaking = true
		u.HasSpoken = true
		u.LastSpoke = time.Now()
		return true
	case KindNewClient:
		if _, ok := s.Users[msg.Addr]; ok {
			return false
		}
		s.Users[msg.Addr] = &UserEntry{Addr: msg.Addr}
		return true
	case KindDeleteClient:
		if _, ok := s.Users[msg.Addr]; !ok {
			return false
		}
		delete(s.Users, msg.Addr)
		return true
	default:
		return false
	}
}

// AgeSpeaking clears is_speaking for any user whose last RecvAudio is older
// than speakingTimeout, per §4.7 step 3. Returns true if anything changed.
func (s *State) AgeSpeaking(now time.Time) bool {
	changed := false
	for _, u := range s.Users {
		if u.IsSpeaking && now.Sub(u.LastSpoke) > speakingTimeout {
			u.IsSpeaking = false
			changed = true
		}
	}
	return changed
}
