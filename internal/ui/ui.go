// Package ui implements the terminal UI described in §4.7: a status band
// (connected/mute/deafen/transmitting badges) over a user list (speaking
// entries highlighted), driven by coordinator events and a 100ms tick.
package ui

import (
	"net/netip"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wtalk/internal/clientcore"
)

const tickInterval = 100 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	speakStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// tickMsg drives the 100ms redraw/poll cadence from §4.7.
type tickMsg time.Time

// coordMsg wraps one message drained from the coordinator's ToUI channel.
type coordMsg clientcore.Message

// Model is the bubbletea Model for the client's terminal UI. It owns a
// clientcore.State and mirrors §4.7's tick loop: drain pending coordinator
// messages, poll for a key, age out stale speaking flags, redraw only if
// something changed.
type Model struct {
	state *clientcore.State

	fromCoordinator <-chan clientcore.Message
	toCoordinator   chan<- clientcore.Message

	width int
}

// New constructs a Model. fromCoordinator is the coordinator's ToUI
// channel; toCoordinator is the coordinator's In channel, used to send
// ToggleMute/ToggleDeafen/Exit.
func New(fromCoordinator <-chan clientcore.Message, toCoordinator chan<- clientcore.Message) Model {
	return Model{
		state:           clientcore.NewState(),
		fromCoordinator: fromCoordinator,
		toCoordinator:   toCoordinator,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), waitForCoordinator(m.fromCoordinator))
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitForCoordinator returns a command that resolves to the next message
// from the coordinator, re-issued after each delivery so the Update loop
// keeps draining without blocking the tick cadence.
func waitForCoordinator(ch <-chan clientcore.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return coordMsg(msg)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case coordMsg:
		m.state.Apply(clientcore.Message(msg))
		return m, waitForCoordinator(m.fromCoordinator)

	case tickMsg:
		m.state.AgeSpeaking(time.Time(msg))
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "m", "M":
			m.state.Mute = !m.state.Mute
			return m, m.sendCmd(clientcore.ToggleMute())
		case "d", "D":
			m.state.Deafen = !m.state.Deafen
			return m, m.sendCmd(clientcore.ToggleDeafen())
		case "q", "Q", "ctrl+c":
			m.state.Exit = true
			return m, tea.Batch(m.sendCmd(clientcore.Exit()), tea.Quit)
		}
		return m, nil
	}
	return m, nil
}

// sendCmd delivers msg to the coordinator as a tea.Cmd, run by bubbletea on
// its own goroutine rather than inline in Update. The coordinator's inbound
// channel is bounded (§5 resource policy), but control messages like
// ToggleMute and Exit must never be the ones dropped, so this blocks on the
// send instead of racing a non-blocking default case — acceptable because
// the coordinator only ever blocks here behind its own bounded fan-out, not
// indefinitely.
func (m Model) sendCmd(msg clientcore.Message) tea.Cmd {
	return func() tea.Msg {
		m.toCoordinator <- msg
		return nil
	}
}

func (m Model) View() string {
	status := m.renderStatus()
	users := m.renderUsers()
	return lipgloss.JoinVertical(lipgloss.Left, status, users)
}

func (m Model) renderStatus() string {
	parts := []string{titleStyle.Render("wtalk")}

	if m.state.Connected {
		parts = append(parts, okStyle.Render("Connected"))
	} else {
		parts = append(parts, badStyle.Render("Disconnected"))
	}

	if m.state.Mute {
		parts = append(parts, warnStyle.Render("Muted"))
	}
	if m.state.Deafen {
		parts = append(parts, warnStyle.Render("Deafened"))
	}

	if m.state.SendingAudio {
		parts = append(parts, okStyle.Render("Sending"))
	} else {
		parts = append(parts, dimStyle.Render("Not sending"))
	}

	line := lipgloss.JoinHorizontal(lipgloss.Top, joinWithSep(parts, "  |  ")...)
	help := dimStyle.Render("m: mute   d: deafen   q: quit")
	return borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, line, help))
}

func joinWithSep(parts []string, sep string) []string {
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			out = append(out, sep)
		}
		out = append(out, p)
	}
	return out
}

func (m Model) renderUsers() string {
	addrs := make([]netip.AddrPort, 0, len(m.state.Users))
	for a := range m.state.Users {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].String() < addrs[j].String() })

	if len(addrs) == 0 {
		return borderStyle.Render(dimStyle.Render("no peers connected"))
	}

	lines := make([]string, 0, len(addrs))
	for _, a := range addrs {
		u := m.state.Users[a]
		label := a.String()
		if u.IsSpeaking {
			lines = append(lines, speakStyle.Render("● "+label+" speaking"))
		} else {
			lines = append(lines, dimStyle.Render("  "+label))
		}
	}
	return borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
