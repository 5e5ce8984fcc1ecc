package cmd

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// StatusModel shows the outcome of a one-shot command and exits on any key.
type StatusModel struct {
	Title    string
	Message  string
	ID       string
	Detail   string
	Err      error
	quitting bool
}

func (m StatusModel) Init() tea.Cmd { return nil }

func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case tea.KeyMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m StatusModel) View() string {
	var s strings.Builder
	if m.Err != nil {
		s.WriteString(errorStyle.Render("FAILED") + " " + m.Title + "\n")
		s.WriteString(fmt.Sprintf("  %v\n", m.Err))
		s.WriteString(fmt.Sprintf("  %s\n", m.Message))
	} else {
		s.WriteString(successStyle.Render("SUCCESS") + " " + m.Title + "\n")
		s.WriteString(fmt.Sprintf("  %s\n", m.Message))
	}
	if m.ID != "" {
		s.WriteString(fmt.Sprintf("  ID:       %s\n", idStyle.Render(m.ID)))
	}
	if m.Detail != "" {
		s.WriteString(fmt.Sprintf("  Endpoint: %s\n", keywordStyle.Render(m.Detail)))
	}
	s.WriteString("\n  (Press any key to exit)")
	return s.String()
}
