package ingest

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/logsink/internal/logtypes"
)

// TUIModel is the bubbletea model for the live serve dashboard.
type TUIModel struct {
	store  *Store
	stats  *Stats
	listen string
	path   string

	prev     Snapshot
	curr     Snapshot
	lastTick time.Time

	entriesPerSec float64
	bytesPerSec   float64
	prevBytes     int64

	lines       []logtypes.Entry
	ringVersion int

	width  int
	height int
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// NewTUIModel creates a TUI model wired to the pipeline data sources.
func NewTUIModel(store *Store, stats *Stats, listen, path string) TUIModel {
	return TUIModel{
		store:  store,
		stats:  stats,
		listen: listen,
		path:   path,
		width:  80,
		height: 24,
	}
}

// Init starts the tick timer.
func (m TUIModel) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		now := time.Time(msg)
		m.prev = m.curr
		m.curr = m.stats.Snapshot(m.store.Rotator().Size(), m.store.Ring().Len())

		bytes := m.store.BytesAppended()
		if !m.lastTick.IsZero() {
			elapsed := now.Sub(m.lastTick).Seconds()
			if elapsed > 0 {
				m.entriesPerSec = float64(m.curr.EntriesReceived-m.prev.EntriesReceived) / elapsed
				m.bytesPerSec = float64(bytes-m.prevBytes) / elapsed
			}
		}
		m.lastTick = now
		m.prevBytes = bytes

		if v := m.store.Ring().Version(); v != m.ringVersion {
			m.lines = m.store.Snapshot()
			m.ringVersion = v
		}
		return m, tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the dashboard: header, stats columns, recent entries.
func (m TUIModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf(" logsink | syslog %s | %s", m.listen, m.path)))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render(" Received:    "))
	b.WriteString(fmt.Sprintf("%d (%s/s)\n", m.curr.EntriesReceived, formatRate(m.entriesPerSec)))
	b.WriteString(labelStyle.Render(" Bytes/sec:   "))
	b.WriteString(fmt.Sprintf("%s\n", FormatBytes(int64(m.bytesPerSec))))
	b.WriteString(labelStyle.Render(" Active file: "))
	b.WriteString(fmt.Sprintf("%s\n", FormatBytes(m.curr.ActiveFileSize)))
	b.WriteString(labelStyle.Render(" Ring:        "))
	b.WriteString(fmt.Sprintf("%d entries\n", m.curr.RingEntries))
	b.WriteString(labelStyle.Render(" Write errors:"))
	if m.curr.WriteErrors > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf(" %d", m.curr.WriteErrors)))
		b.WriteString("\n")
	} else {
		b.WriteString(" 0\n")
	}

	b.WriteString(boldStyle.Render(" Top senders"))
	b.WriteString("\n")
	limit := 3
	if len(m.curr.Sources) < limit {
		limit = len(m.curr.Sources)
	}
	for i := 0; i < limit; i++ {
		s := m.curr.Sources[i]
		b.WriteString(fmt.Sprintf(" %-24s %d\n", s.Addr, s.Count))
	}
	for i := limit; i < 3; i++ {
		b.WriteString("\n")
	}

	b.WriteString(sepStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	paneH := m.height - 12
	if paneH < 1 {
		paneH = 1
	}
	start := len(m.lines) - paneH
	if start < 0 {
		start = 0
	}
	for _, entry := range m.lines[start:] {
		line := fmt.Sprintf("%s [%s] %s",
			entry.Timestamp.Format(logtypes.TimeLayout), entry.Source, entry.Message)
		if len(line) > m.width {
			line = line[:m.width]
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

// styles
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle   = lipgloss.NewStyle().Bold(true)
	sepStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func formatRate(r float64) string {
	switch {
	case r >= 1_000_000:
		return fmt.Sprintf("%.1fM", r/1_000_000)
	case r >= 1_000:
		return fmt.Sprintf("%.1fK", r/1_000)
	default:
		return fmt.Sprintf("%.0f", r)
	}
}

// FormatBytes renders a byte count in human units.
func FormatBytes(b int64) string {
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.1f TB", float64(b)/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
