// Package relay implements the central UDP reflector: a membership
// registry with per-peer liveness tracking and O(N) audio fan-out.
package relay

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"wtalk/internal/protocol"
)

// sweepInterval is how often (in datagrams processed) the relay checks for
// idle peers. sweepIdleTimeout is how long a peer may stay silent before
// being evicted. Both values are pinned from the original reference
// server's check_counter/last_active cadence (100 datagrams, 500 seconds).
const (
	sweepInterval    = 100
	sweepIdleTimeout = 500 * time.Second
)

// DefaultAddr is the fixed bind address for the relay.
const DefaultAddr = "0.0.0.0:1234"

// member is one membership-table entry.
type member struct {
	addr       netip.AddrPort
	lastActive time.Time
}

// Server is a single-loop UDP relay. Not safe for concurrent use beyond
// calling Run once; all state is private to the loop goroutine.
type Server struct {
	addr string
	log  *slog.Logger

	conn    *net.UDPConn
	members map[netip.AddrPort]*member
	counter int

	// ready is closed once the socket is bound, letting tests (and anyone
	// else starting Run in a goroutine) learn the OS-assigned address.
	ready chan struct{}
}

// New returns a Server bound to addr (use DefaultAddr for the spec's fixed
// port). The socket is not opened until Run is called.
func New(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		log:     logger.With("component", "relay"),
		members: make(map[netip.AddrPort]*member),
		ready:   make(chan struct{}),
	}
}

// Run opens the UDP socket and processes datagrams synchronously, one at a
// time, until ctx is cancelled. Receive errors are logged and the loop
// continues. Binding failure is an init failure (§7 kind 1): it is returned to the caller,
// who is expected to treat it as fatal.
func (s *Server) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	defer conn.Close()
	close(s.ready)

	s.log.Info("listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		conn.Close() // unblocks the blocking ReadFromUDP below
	}()

	buf := make([]byte, protocol.MaxDatagram)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Per-datagram receive error (§7 kind 2): logged, loop continues.
			s.log.Warn("receive error", "err", err)
			continue
		}

		sender, ok := netip.AddrFromSlice(raddr.IP.To4())
		if !ok {
			if ip16, ok16 := netip.AddrFromSlice(raddr.IP.To16()); ok16 {
				sender = ip16
			} else {
				s.log.Warn("unrepresentable sender address", "addr", raddr.String())
				continue
			}
		}
		senderAddr := netip.AddrPortFrom(sender, uint16(raddr.Port))

		isNew := s.touch(senderAddr)

		s.counter++
		if s.counter >= sweepInterval {
			s.sweep()
			s.counter = 0
		}

		msg := protocol.Decode(buf[:n])
		s.dispatch(msg, senderAddr, isNew)
	}
}

// touch refreshes or creates the membership entry for addr and reports
// whether the entry was newly created.
func (s *Server) touch(addr netip.AddrPort) bool {
	now := time.Now()
	if m, ok := s.members[addr]; ok {
		m.lastActive = now
		return false
	}
	s.members[addr] = &member{addr: addr, lastActive: now}
	s.log.Info("new client", "addr", addr)
	return true
}

// sweep removes members idle beyond sweepIdleTimeout, sending a best-effort
// Bye to each removed peer and a DeleteClient notification to everyone else.
func (s *Server) sweep() {
	now := time.Now()
	var stale []netip.AddrPort
	for addr, m := range s.members {
		if now.Sub(m.lastActive) >= sweepIdleTimeout {
			stale = append(stale, addr)
		}
	}
	for _, addr := range stale {
		s.removeMember(addr)
	}
	if len(stale) > 0 {
		s.log.Debug("idle sweep", "removed", len(stale), "remaining", len(s.members))
	}
}

// dispatch routes a decoded message per the §4.2 table.
func (s *Server) dispatch(msg protocol.Message, sender netip.AddrPort, isNew bool) {
	switch msg.Kind {
	case protocol.KindAudio:
		s.fanOutAudio(sender, msg.Payload)
	case protocol.KindHello:
		s.handleHello(sender, isNew)
	case protocol.KindBye:
		s.removeMember(sender)
	case protocol.KindPing:
		s.log.Debug("ping", "addr", sender)
	case protocol.KindUnknown:
		s.log.Warn("unknown datagram", "addr", sender, "len", len(msg.Payload))
	case protocol.KindAudioFrom, protocol.KindNewClient, protocol.KindDeleteClient:
		// The relay is the sole authoritative source of these; a client
		// sending one is ignored.
	}
}

// fanOutAudio rewrites an Audio datagram to AudioFrom and sends it to every
// registered peer except the sender. O(N) send calls.
func (s *Server) fanOutAudio(sender netip.AddrPort, opus []byte) {
	out := protocol.Encode(protocol.AudioFrom(sender, opus))
	for addr := range s.members {
		if addr == sender {
			continue
		}
		s.sendTo(addr, out)
	}
}

// handleHello echoes Hello back to the sender, then — only if this
// datagram created a new membership entry — announces the new peer to
// everyone else and announces every existing peer to the new one.
func (s *Server) handleHello(sender netip.AddrPort, isNew bool) {
	s.sendTo(sender, protocol.Encode(protocol.Hello(sender)))

	if !isNew {
		return
	}
	newClientMsg := protocol.Encode(protocol.NewClientMsg(sender))
	for addr := range s.members {
		if addr == sender {
			continue
		}
		s.sendTo(addr, newClientMsg)
		s.sendTo(sender, protocol.Encode(protocol.NewClientMsg(addr)))
	}
}

// removeMember evicts addr (if present) and notifies: the evicted peer
// gets a best-effort Bye, every remaining peer gets a DeleteClient.
func (s *Server) removeMember(addr netip.AddrPort) {
	if _, ok := s.members[addr]; !ok {
		return
	}
	delete(s.members, addr)
	s.log.Info("removed client", "addr", addr)

	s.sendTo(addr, protocol.Encode(protocol.Bye()))

	del := protocol.Encode(protocol.DeleteClientMsg(addr))
	for peer := range s.members {
		s.sendTo(peer, del)
	}
}

// sendTo is a best-effort send: failures are logged but never evict the
// target and never abort the caller's fan-out loop (§7 kind 3).
func (s *Server) sendTo(addr netip.AddrPort, data []byte) {
	udpAddr := net.UDPAddrFromAddrPort(addr)
	if _, err := s.conn.WriteToUDP(data, udpAddr); err != nil {
		s.log.Warn("send error", "addr", addr, "err", err)
	}
}

// MemberCount returns the number of currently registered peers. Exposed for
// tests and diagnostics.
func (s *Server) MemberCount() int { return len(s.members) }

// LocalAddr blocks until the socket is bound and returns its address.
// Intended for tests that bind to an ephemeral port (":0").
func (s *Server) LocalAddr() *net.UDPAddr {
	<-s.ready
	return s.conn.LocalAddr().(*net.UDPAddr)
}
