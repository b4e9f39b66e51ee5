package clientcore

import (
	"context"
	"log/slog"
	"net"
	"time"

	"wtalk/internal/protocol"
)

// NetOutTask reads wire Messages from an outbound channel, encodes and
// sends each one over a UDP socket already connected to the relay.
type NetOutTask struct {
	conn *net.UDPConn
	in   <-chan protocol.Message
	log  *slog.Logger
}

func NewNetOutTask(conn *net.UDPConn, in <-chan protocol.Message, logger *slog.Logger) *NetOutTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetOutTask{conn: conn, in: in, log: logger.With("component", "net_out")}
}

// Run sends every message it receives until ctx is cancelled, then makes a
// best-effort attempt to notify the relay with Bye before returning.
func (t *NetOutTask) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			t.conn.Write(protocol.Encode(protocol.Bye()))
			return
		case msg, ok := <-t.in:
			if !ok {
				t.conn.Write(protocol.Encode(protocol.Bye()))
				return
			}
			if _, err := t.conn.Write(protocol.Encode(msg)); err != nil {
				t.log.Warn("send error", "err", err)
			}
		}
	}
}

// NetInTask blocks on datagram receive, decodes, translates into the
// internal ClientMessage space, and forwards to the coordinator per the
// §4.5 translation table.
type NetInTask struct {
	conn *net.UDPConn
	out  chan<- Message
	log  *slog.Logger
}

func NewNetInTask(conn *net.UDPConn, out chan<- Message, logger *slog.Logger) *NetInTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetInTask{conn: conn, out: out, log: logger.With("component", "net_in")}
}

// Run executes the receive loop until ctx is cancelled or the socket is
// closed by the caller (the idiomatic way to unblock a blocking Read).
func (t *NetInTask) Run(ctx context.Context) {
	// Unblock a pending Read once ctx is cancelled, without closing the
	// socket that net_out still uses for its final Bye.
	go func() {
		<-ctx.Done()
		t.conn.SetReadDeadline(time.Now())
	}()

	buf := make([]byte, protocol.MaxDatagram)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warn("receive error", "err", err)
			continue
		}

		msg := protocol.Decode(buf[:n])
		var out Message
		switch msg.Kind {
		case protocol.KindAudioFrom:
			out = RecvAudio(msg.Payload, msg.Addr)
		case protocol.KindNewClient:
			out = NewClient(msg.Addr)
		case protocol.KindDeleteClient:
			out = DeleteClient(msg.Addr)
		case protocol.KindHello:
			out = Connect()
		default:
			continue
		}

		select {
		case t.out <- out:
		case <-ctx.Done():
			return
		}
	}
}
