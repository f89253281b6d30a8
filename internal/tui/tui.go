// Package tui provides a Bubble Tea live dashboard for ferryctl's
// stats and inspect commands. TUI mode is opt-in only (--tui) and
// read-only: it shares the same admin-socket data as the plain
// renderer and adds nothing a non-interactive caller could not see.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/ferryq/internal/journal"
)

// RefreshFunc re-fetches the current stat lines for a dashboard tick.
type RefreshFunc func() ([]journal.Stat, error)

const tickInterval = time.Second

type tickMsg time.Time

type statsMsg struct {
	stats []journal.Stat
	err   error
}

// model is the Bubble Tea model backing the live dashboard.
type model struct {
	title    string
	refresh  RefreshFunc
	stats    []journal.Stat
	err      error
	quitting bool
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetch, tick())
}

func (m model) fetch() tea.Msg {
	stats, err := m.refresh()
	return statsMsg{stats: stats, err: err}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

var quitKey = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.fetch, tick())
	case statsMsg:
		m.stats = msg.stats
		m.err = msg.err
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(ErrorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	} else if len(m.stats) == 0 {
		b.WriteString(MutedStyle.Render("(no stats)"))
		b.WriteString("\n")
	} else {
		for _, s := range m.stats {
			b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(s.Key+":"), ValueStyle.Render(s.Value)))
		}
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to quit"))
	return b.String()
}

// Run starts the live dashboard for title, calling refresh once a
// second until the user quits.
func Run(title string, refresh RefreshFunc) error {
	m := model{title: title, refresh: refresh}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
