package clientcore

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"wtalk/internal/protocol"
)

// udpPair opens two loopback UDP sockets connected to each other, the way
// relay_test.go's testPeer harness exercises the relay over real sockets.
func udpPair(t *testing.T) (a, b *net.UDPConn) {
	t.Helper()
	la, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen a: %v", err)
	}
	lb, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen b: %v", err)
	}
	t.Cleanup(func() { la.Close(); lb.Close() })

	// Free both ports, then bind each dialled socket to one of them so that
	// each socket's remote endpoint is the other socket.
	laAddr := la.LocalAddr().(*net.UDPAddr)
	lbAddr := lb.LocalAddr().(*net.UDPAddr)
	la.Close()
	lb.Close()

	aConn, err := net.DialUDP("udp", laAddr, lbAddr)
	if err != nil {
		t.Fatalf("dial a->b: %v", err)
	}
	bConn, err := net.DialUDP("udp", lbAddr, laAddr)
	if err != nil {
		t.Fatalf("dial b->a: %v", err)
	}
	return aConn, bConn
}

func TestNetOutTaskSendsEncodedMessages(t *testing.T) {
	a, b := udpPair(t)
	defer a.Close()
	defer b.Close()

	in := make(chan protocol.Message, 4)
	task := NewNetOutTask(a, in, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Run(ctx)

	in <- protocol.Ping()

	b.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, protocol.MaxDatagram)
	n, err := b.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := protocol.Decode(buf[:n])
	if got.Kind != protocol.KindPing {
		t.Fatalf("got kind %v, want Ping", got.Kind)
	}
}

func TestNetOutTaskSendsByeOnCancel(t *testing.T) {
	a, b := udpPair(t)
	defer a.Close()
	defer b.Close()

	in := make(chan protocol.Message)
	task := NewNetOutTask(a, in, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go task.Run(ctx)
	cancel()

	b.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, protocol.MaxDatagram)
	n, err := b.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := protocol.Decode(buf[:n])
	if got.Kind != protocol.KindBye {
		t.Fatalf("got kind %v, want Bye", got.Kind)
	}
}

func TestNetInTaskTranslatesMessages(t *testing.T) {
	a, b := udpPair(t)
	defer a.Close()
	defer b.Close()

	out := make(chan Message, 4)
	task := NewNetInTask(a, out, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Run(ctx)

	peerAddr := netip.MustParseAddrPort(b.LocalAddr().String())
	b.Write(protocol.Encode(protocol.AudioFrom(peerAddr, []byte{9, 9})))

	select {
	case msg := <-out:
		if msg.Kind != KindRecvAudio {
			t.Fatalf("got kind %v, want RecvAudio", msg.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for translated RecvAudio")
	}
}

func TestNetInTaskIgnoresUnknown(t *testing.T) {
	a, b := udpPair(t)
	defer a.Close()
	defer b.Close()

	out := make(chan Message, 4)
	task := NewNetInTask(a, out, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Run(ctx)

	b.Write([]byte{0xFF, 0xFF, 0xFF})

	select {
	case msg := <-out:
		t.Fatalf("expected no translated message for an unknown datagram, got %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}
