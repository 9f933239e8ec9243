package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/theSadeQ/dip-smc-pso/internal/pso"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

type statsMsg pso.IterStats
type doneMsg struct{}

// TuneModel is the live view of a tuning session. It consumes iteration
// stats from a channel fed by the tuner's OnIteration callback; closing
// the channel ends the program.
type TuneModel struct {
	controller string
	maxIters   int
	stats      <-chan pso.IterStats

	history []float64
	latest  pso.IterStats
	have    bool
	fatal   int
	width   int
}

func NewTuneModel(controller string, maxIters int, stats <-chan pso.IterStats) TuneModel {
	return TuneModel{
		controller: controller,
		maxIters:   maxIters,
		stats:      stats,
		history:    make([]float64, 0, maxIters),
		width:      80,
	}
}

func (m TuneModel) Init() tea.Cmd { return m.wait() }

func (m TuneModel) wait() tea.Cmd {
	return func() tea.Msg {
		st, ok := <-m.stats
		if !ok {
			return doneMsg{}
		}
		return statsMsg(st)
	}
}

func (m TuneModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case statsMsg:
		m.latest = pso.IterStats(msg)
		m.have = true
		m.history = append(m.history, m.latest.BestCost)
		if m.latest.FatalOnly {
			m.fatal++
		}
		return m, m.wait()
	case doneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m TuneModel) View() string {
	var b strings.Builder
	b.WriteString(cyan.Render(fmt.Sprintf("tuning %s", m.controller)))
	b.WriteString("\n\n")

	if !m.have {
		b.WriteString(dim.Render("waiting for first iteration..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  iteration  %s\n",
		dim.Render(fmt.Sprintf("%d / %d", m.latest.Iter+1, m.maxIters))))
	b.WriteString(fmt.Sprintf("  best cost  %s\n", green.Render(fmt.Sprintf("%.4g", m.latest.BestCost))))
	b.WriteString(fmt.Sprintf("  mean cost  %s\n", dim.Render(fmt.Sprintf("%.4g", m.latest.MeanCost))))
	if m.fatal > 0 {
		b.WriteString(fmt.Sprintf("  %s\n",
			yellow.Render(fmt.Sprintf("%d iterations with every particle unstable", m.fatal))))
	}
	b.WriteString("\n")

	if len(m.history) >= 2 {
		graphWidth := m.width - 12
		if graphWidth > 60 {
			graphWidth = 60
		}
		if graphWidth > 10 {
			b.WriteString(asciigraph.Plot(m.history,
				asciigraph.Height(10),
				asciigraph.Width(graphWidth),
				asciigraph.Offset(4),
			))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}
