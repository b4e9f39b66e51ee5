// Package coordinator implements the single routing task that owns the
// client's routing matrix, as described in §4.6.
package coordinator

import (
	"context"
	"log/slog"
	"net/netip"

	"wtalk/internal/clientcore"
	"wtalk/internal/protocol"
)

// Coordinator owns the exhaustive routing table between capture, playback,
// net_in, net_out, and the UI. It is the only task that sees every
// producer's messages and the only place cross-channel dependencies are
// serialized.
type Coordinator struct {
	// In receives ClientMessage from all producers: capture, net_in, UI.
	In chan clientcore.Message

	// ToCapture carries ToggleMute.
	ToCapture chan clientcore.Message
	// ToPlayback carries ToggleDeafen and RecvAudio.
	ToPlayback chan clientcore.Message
	// ToUI carries connection, audio-activity, membership, and speaking events.
	ToUI chan clientcore.Message
	// ToNetOut carries outbound Audio, Hello, Bye.
	ToNetOut chan protocol.Message

	log *slog.Logger
}

// chanBuf is the per-channel buffer depth. On backpressure only the
// UI-bound audio-activity events (RecvAudio, TransmitAudio) are dropped,
// see toUI; every other send, including audio frames bound for playback
// and net_out, blocks until there is room or ctx is cancelled.
const chanBuf = 64

// New constructs a Coordinator with all channels allocated.
func New(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		In:         make(chan clientcore.Message, chanBuf),
		ToCapture:  make(chan clientcore.Message, chanBuf),
		ToPlayback: make(chan clientcore.Message, chanBuf),
		ToUI:       make(chan clientcore.Message, chanBuf),
		ToNetOut:   make(chan protocol.Message, chanBuf),
		log:        logger.With("component", "coordinator"),
	}
}

// helloRedundancy is the number of Hello messages sent at startup to mask
// UDP loss (the relay's Hello handling is idempotent on the
// already-registered path, so duplicates are safe).
const helloRedundancy = 3

// Run sends the startup Hello burst, then routes messages from In per the
// table in §4.6 until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	for i := 0; i < helloRedundancy; i++ {
		c.sendNetOut(ctx, protocol.Hello(netip.AddrPort{}))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.In:
			if msg.Kind == clientcore.KindExit {
				return
			}
			c.route(ctx, msg)
		}
	}
}

func (c *Coordinator) route(ctx context.Context, msg clientcore.Message) {
	switch msg.Kind {
	case clientcore.KindConnect:
		c.toUI(ctx, msg)

	case clientcore.KindAudio:
		c.toUI(ctx, clientcore.TransmitAudio(true))
		c.sendNetOut(ctx, protocol.Audio(msg.Audio))

	case clientcore.KindRecvAudio:
		c.toPlayback(ctx, msg)
		// The UI only needs the source address for the speaking
		// indicator — strip the encoded bytes before forwarding.
		c.toUI(ctx, clientcore.RecvAudio(nil, msg.Addr))

	case clientcore.KindToggleMute:
		c.toCapture(ctx, msg)

	case clientcore.KindToggleDeafen:
		c.toPlayback(ctx, msg)

	case clientcore.KindTransmitAudio:
		c.toUI(ctx, msg)

	case clientcore.KindNewClient:
		c.toUI(ctx, msg)

	case clientcore.KindDeleteClient:
		c.toUI(ctx, msg)
	}
}

func (c *Coordinator) toCapture(ctx context.Context, msg clientcore.Message) {
	select {
	case c.ToCapture <- msg:
	case <-ctx.Done():
	}
}

func (c *Coordinator) toPlayback(ctx context.Context, msg clientcore.Message) {
	select {
	case c.ToPlayback <- msg:
	case <-ctx.Done():
	}
}

// toUI forwards msg to the UI, preferring a non-blocking send. Audio
// activity events (RecvAudio, TransmitAudio) are not control messages, so
// they are dropped rather than block the router when the UI falls behind;
// everything else blocks (bounded by ctx) to guarantee control delivery.
func (c *Coordinator) toUI(ctx context.Context, msg clientcore.Message) {
	select {
	case c.ToUI <- msg:
		return
	default:
	}

	if msg.Kind == clientcore.KindRecvAudio || msg.Kind == clientcore.KindTransmitAudio {
		return
	}

	select {
	case c.ToUI <- msg:
	case <-ctx.Done():
	}
}

func (c *Coordinator) sendNetOut(ctx context.Context, msg protocol.Message) {
	select {
	case c.ToNetOut <- msg:
	case <-ctx.Done():
	}
}
