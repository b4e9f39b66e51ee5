// Command wtalk is a low-latency, many-to-many voice conferencing tool: a
// single binary that runs either as the central UDP relay (--server) or as
// a client (the default), selected by CLI flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"wtalk/internal/aec"
	"wtalk/internal/audioio"
	"wtalk/internal/clientcore"
	"wtalk/internal/codec"
	"wtalk/internal/config"
	"wtalk/internal/coordinator"
	"wtalk/internal/relay"
	"wtalk/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("wtalk", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	server := fs.Bool("server", false, "run as the relay")
	client := fs.Bool("client", false, "run as a client (default)")
	ip := fs.String("ip", "kopatz.dev:1234", "relay address for client mode")
	noTUI := fs.Bool("no-tui", false, "disable the terminal UI; client logs to stderr instead")
	help := fs.Bool("h", false, "print usage and exit")
	fs.BoolVar(help, "help", false, "print usage and exit")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help {
		printUsage(fs)
		return 0
	}
	if *server && *client {
		fmt.Fprintln(os.Stderr, "wtalk: --server and --client are mutually exclusive")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *server {
		return runServer(ctx)
	}
	return runClient(ctx, *ip, *noTUI)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "wtalk: low-latency many-to-many voice conferencing")
	fmt.Fprintln(os.Stderr)
	fs.PrintDefaults()
}

// runServer runs the relay role: §4.2's single synchronous receive loop
// bound to DefaultAddr, stopped on SIGINT/SIGTERM.
func runServer(ctx context.Context) int {
	logger := newLogger(false)
	srv := relay.New(relay.DefaultAddr, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("relay exited", "err", err)
		return 1
	}
	return 0
}

// runClient wires the five long-lived client tasks plus the optional UI
// task described in §2 and §4, and blocks until shutdown.
func runClient(parent context.Context, relayAddr string, noTUI bool) int {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cfg := config.Load()
	if relayAddr == "kopatz.dev:1234" && cfg.ServerAddr != "" {
		relayAddr = cfg.ServerAddr
	}
	logger := newLogger(!noTUI)

	udpAddr, err := net.ResolveUDPAddr("udp", relayAddr)
	if err != nil {
		log.Printf("wtalk: resolve relay address: %v", err)
		return 1
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		log.Printf("wtalk: dial relay: %v", err)
		return 1
	}
	defer conn.Close()

	if err := audioio.Init(); err != nil {
		log.Printf("wtalk: init audio: %v", err)
		return 1
	}
	defer audioio.Terminate()

	// Shared echo canceller: the capture stream processes each frame against
	// whatever the playback stream most recently fed it as a far-end
	// reference. Constructed disabled (§9 ADDED, optional): the default
	// capture path runs no echo cancellation, matching the spec's Non-goals.
	canceller := aec.New(audioio.FrameFrames)

	capDevice, err := audioio.OpenCapture(cfg.InputDeviceID, canceller, logger)
	if err != nil {
		log.Printf("wtalk: open capture device: %v", err)
		return 1
	}
	defer capDevice.Close()

	playDevice, err := audioio.OpenPlayback(cfg.OutputDeviceID, canceller, logger)
	if err != nil {
		log.Printf("wtalk: open playback device: %v", err)
		return 1
	}
	defer playDevice.Close()

	enc, err := codec.NewEncoder()
	if err != nil {
		log.Printf("wtalk: init encoder: %v", err)
		return 1
	}
	dec, err := codec.NewDecoder()
	if err != nil {
		log.Printf("wtalk: init decoder: %v", err)
		return 1
	}

	coord := coordinator.New(logger)

	capTask := clientcore.NewCaptureTask(capDevice, enc, coord.In, coord.ToCapture, logger)
	playTask := clientcore.NewPlaybackTask(playDevice, dec, coord.ToPlayback, logger)
	netOut := clientcore.NewNetOutTask(conn, coord.ToNetOut, logger)
	netIn := clientcore.NewNetInTask(conn, coord.In, logger)

	var wg sync.WaitGroup
	wg.Add(5)
	go func() { defer wg.Done(); coord.Run(ctx) }()
	go func() { defer wg.Done(); capTask.Run(ctx) }()
	go func() { defer wg.Done(); playTask.Run(ctx) }()
	go func() { defer wg.Done(); netOut.Run(ctx) }()
	go func() { defer wg.Done(); netIn.Run(ctx) }()

	cfg.ServerAddr = relayAddr
	config.Save(cfg)

	if noTUI {
		<-ctx.Done()
		wg.Wait()
		return 0
	}

	model := ui.New(coord.ToUI, coord.In)
	p := tea.NewProgram(model)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, uiErr := p.Run()
	// The UI owns the terminal until it quits (either the user pressed q,
	// or ctx was cancelled by a signal). Either way the task goroutines
	// need ctx cancelled before we wait for them, since a plain "q" quit
	// leaves ctx live otherwise.
	cancel()
	wg.Wait()
	if uiErr != nil {
		logger.Error("ui exited", "err", uiErr)
		return 1
	}
	return 0
}

// newLogger builds the structured logger described in §7 ADDED: when the
// TUI is enabled, logging is silenced to keep the screen clean; otherwise
// it writes to stderr, level-filtered by WTALK_LOG.
func newLogger(tuiEnabled bool) *slog.Logger {
	if tuiEnabled {
		return slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	level := parseLevel(os.Getenv("WTALK_LOG"))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
