package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/weftend/weftend/compare"
	"github.com/weftend/weftend/receipts"
)

// LibraryModel is the Bubble Tea model for `library inspect`: a
// read-only view of one target's LibraryViewState.
type LibraryModel struct {
	state    *receipts.LibraryViewState
	width    int
	height   int
	quitting bool
}

// NewLibraryModel creates a new library inspect model.
func NewLibraryModel(state *receipts.LibraryViewState) LibraryModel {
	return LibraryModel{state: state}
}

// Init implements tea.Model.
func (m LibraryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m LibraryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, libraryKeys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m LibraryModel) View() string {
	if m.quitting {
		return ""
	}
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return m.render() + "\n" + help
}

func (m LibraryModel) render() string {
	return BoxStyle.Render(renderLibraryBody(m.state))
}

func renderLibraryBody(state *receipts.LibraryViewState) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Library Target: " + state.TargetKey))
	b.WriteString("\n\n")

	targetState := "clean"
	if state.Blocked != nil {
		targetState = "blocked"
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Status:"), StateStyle(targetState).Render(targetState)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Baseline Run:"), ValueStyle.Render(orDash(state.BaselineRunID))))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Latest Run:"), ValueStyle.Render(orDash(state.LatestRunID))))

	if state.Blocked != nil {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Blocked"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("  Run ID:"), ValueStyle.Render(state.Blocked.RunID)))
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("  Reasons:"), ValueStyle.Render(strings.Join(state.Blocked.ReasonCodes, ", "))))
	}

	if len(state.LastN) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Recent Runs"))
		b.WriteString("\n")
		for _, runID := range state.LastN {
			b.WriteString(fmt.Sprintf("  • %s\n", ValueStyle.Render(runID)))
		}
	}

	if len(state.Keys) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Baseline Comparisons"))
		b.WriteString("\n")
		for _, key := range state.Keys {
			verdict := string(key.VerdictVsBaseline)
			letters := bucketLetters(key.Buckets)
			b.WriteString(fmt.Sprintf("  %s  %s  %s\n",
				StateStyle(verdict).Render(fmt.Sprintf("%-7s", verdict)),
				ValueStyle.Render(key.ArtifactDigest),
				LabelStyle.Render(letters)))
		}
	}

	return b.String()
}

func bucketLetters(buckets []string) string {
	var letters []string
	for _, b := range buckets {
		if l := compare.BucketLetter(b); l != "" {
			letters = append(letters, l)
		}
	}
	return strings.Join(letters, "")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// libraryKeyMap defines key bindings for the library inspect TUI.
type libraryKeyMap struct {
	Quit key.Binding
}

var libraryKeys = libraryKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunLibraryInspectTUI launches the interactive library inspect viewer.
func RunLibraryInspectTUI(state *receipts.LibraryViewState) error {
	model := NewLibraryModel(state)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderLibraryStatic renders the library view without launching the
// full TUI, for non-interactive or piped output.
func RenderLibraryStatic(state *receipts.LibraryViewState) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(renderLibraryBody(state)) + "\n"
}
