package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"variants/internal/processor"
)

// Model renders live generate progress. The bar tracks sources whose
// variants have all been settled; created, skipped and failed are counted
// per variant.
type Model struct {
	updates  <-chan processor.ProgressUpdate
	widths   int
	started  time.Time
	width    int
	sources  int
	created  int
	skipped  int
	failed   int
	quitting bool
}

type doneMsg struct{}

type updateMsg processor.ProgressUpdate

// NewModel returns a model fed by updates. widthsPerSource is the number of
// target widths, used to estimate how many variants remain.
func NewModel(updates <-chan processor.ProgressUpdate, widthsPerSource int) Model {
	if widthsPerSource < 1 {
		widthsPerSource = 1
	}
	return Model{updates: updates, widths: widthsPerSource, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.sources += msg.SourcesDelta
		m.created += msg.CreatedDelta
		m.skipped += msg.SkippedDelta
		m.failed += msg.FailedDelta
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	bar := renderBar(barWidth, m.ratio())
	elapsed := time.Since(m.started).Round(time.Millisecond)

	lines := []string{
		titleStyle.Render("variants"),
		labelStyle.Render(fmt.Sprintf("Sources: %d", m.sources)) + dimStyle.Render(fmt.Sprintf("  variants:%d/%d", m.settled(), m.sources*m.widths)),
		labelStyle.Render(fmt.Sprintf("Created: %d", m.created)) + dimStyle.Render(fmt.Sprintf("  skipped:%d failed:%d", m.skipped, m.failed)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(bar),
	}

	return strings.Join(lines, "\n")
}

func (m Model) settled() int {
	return m.created + m.skipped + m.failed
}

func (m Model) ratio() float64 {
	total := m.sources * m.widths
	if total == 0 {
		return 0
	}
	ratio := float64(m.settled()) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func listenForUpdates(updates <-chan processor.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorSuccess)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
)
