// Package tui is the session control surface: it shows where the jam is and
// lets the player change tempo and playing style while it runs.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/logicmoo/llmjam/jam"
)

type Model struct {
	Session *jam.Session

	// style entry: 's' switches to a one-line input, enter commits
	entering bool
	input    string

	quitting bool
	lastErr  string
}

type UpdateMsg struct{}

func NewModel(session *jam.Session) Model {
	return Model{Session: session}
}

// ListenForUpdates relays session status changes into the tea loop.
func ListenForUpdates(session *jam.Session) tea.Cmd {
	return func() tea.Msg {
		<-session.UpdateChan
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForUpdates(m.Session)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.entering {
			return m.updateStyleEntry(msg)
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "s":
			m.entering = true
			m.input = ""

		case "+", "=":
			m.adjustTempo(5)

		case "-", "_":
			m.adjustTempo(-5)
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Session)
	}

	return m, nil
}

func (m Model) updateStyleEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if s := strings.TrimSpace(m.input); s != "" {
			m.Session.SetStyle(s)
		}
		m.entering = false
	case "esc":
		m.entering = false
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	default:
		switch msg.Type {
		case tea.KeyRunes:
			m.input += string(msg.Runes)
		case tea.KeySpace:
			m.input += " "
		}
	}
	return m, nil
}

func (m *Model) adjustTempo(delta float64) {
	bpm := m.Session.Status().BPM + delta
	if err := m.Session.SetBPM(bpm); err != nil {
		m.lastErr = err.Error()
	}
}

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	phaseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	inputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.Session.Status()

	header := headerStyle.Render(fmt.Sprintf("llmjam  %.0fbpm  round:%02d", st.BPM, st.Round))
	phaseLine := phaseStyle.Render(phaseHint(st))
	styleLine := dimStyle.Render("style: ") + st.Style

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(phaseLine)
	out.WriteString("\n")
	out.WriteString(styleLine)
	out.WriteString("\n\n")

	if m.entering {
		out.WriteString(inputStyle.Render("new style: " + m.input + "▌"))
	} else {
		out.WriteString(dimStyle.Render("s:style  +/-:tempo  q:quit"))
	}

	if m.lastErr != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.lastErr))
	}

	return out.String()
}

func phaseHint(st jam.Status) string {
	switch st.Phase {
	case jam.PhaseListening:
		return "listening... play a phrase, stop for half a second to send it"
	case jam.PhaseThinking:
		return fmt.Sprintf("thinking... (%d notes heard)", st.InputNotes)
	case jam.PhasePlaying:
		return "playing response"
	default:
		return "warming up"
	}
}
