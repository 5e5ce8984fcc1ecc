package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lupppig/deliverynotify/internal/classify"
	"github.com/lupppig/deliverynotify/internal/domain"
)

type stepStatus int

const (
	stepPending stepStatus = iota
	stepActive
	stepDone
	stepFailed
)

const (
	stepValidate = iota
	stepConnect
	stepSend
)

type step struct {
	label  string
	status stepStatus
}

type SendModel struct {
	steps    []step
	current  int
	err      error
	dispatch *domain.Dispatch
	preview  domain.ClassifiedNotification
	spinner  spinner.Model
	done     bool
	quitting bool

	payload sendPayload
}

func NewSendModel(p sendPayload) *SendModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &SendModel{
		steps: []step{
			{label: "Validating event"},
			{label: "Connecting to API"},
			{label: "Dispatching notification"},
		},
		spinner: s,
		payload: p,
	}
}

type stepResultMsg struct {
	preview *domain.ClassifiedNotification
	err     error
}

type sendResultMsg struct {
	dispatch *domain.Dispatch
	err      error
}

func (m *SendModel) Init() tea.Cmd {
	m.steps[stepValidate].status = stepActive
	return tea.Batch(m.spinner.Tick, m.validate())
}

func (m *SendModel) validate() tea.Cmd {
	return func() tea.Msg {
		if err := m.payload.validate(); err != nil {
			return stepResultMsg{err: err}
		}
		n := classify.Classify(m.payload.DeliveryEvent)
		return stepResultMsg{preview: &n}
	}
}

func (m *SendModel) connect() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()
		return stepResultMsg{err: callAPI(ctx, http.MethodGet, "/health", nil, nil)}
	}
}

func (m *SendModel) send() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()
		d, err := postSend(ctx, m.payload)
		return sendResultMsg{dispatch: d, err: err}
	}
}

func (m *SendModel) fail(err error) {
	m.steps[m.current].status = stepFailed
	m.err = err
	m.done = true
}

func (m *SendModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || (m.done && msg.String() == "q") {
			m.quitting = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case stepResultMsg:
		if msg.err != nil {
			m.fail(msg.err)
			return m, nil
		}
		if msg.preview != nil {
			m.preview = *msg.preview
		}
		m.steps[m.current].status = stepDone
		m.current++
		m.steps[m.current].status = stepActive
		if m.current == stepSend {
			return m, m.send()
		}
		return m, m.connect()
	case sendResultMsg:
		if msg.err != nil {
			m.fail(msg.err)
			return m, nil
		}
		m.steps[m.current].status = stepDone
		m.dispatch = msg.dispatch
		m.done = true
		return m, nil
	}
	return m, nil
}

func (m *SendModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("DeliveryNotify Send") + "\n\n")

	for _, step := range m.steps {
		symbol := " "
		label := step.label

		switch step.status {
		case stepPending:
			symbol = "  "
		case stepActive:
			symbol = m.spinner.View()
			label = lipgloss.NewStyle().Bold(true).Render(label)
		case stepDone:
			symbol = successStyle.Render("✓ ")
		case stepFailed:
			symbol = errorStyle.Render("✗ ")
		}

		s.WriteString(fmt.Sprintf("  %s %s\n", symbol, label))
		if step.status == stepFailed && m.err != nil {
			s.WriteString(fmt.Sprintf("    %s\n", errorStyle.Render(m.err.Error())))
		}
	}

	if m.preview.Title != "" {
		s.WriteString(fmt.Sprintf("\n  %s %s\n", keywordStyle.Render(m.preview.Title), m.preview.Body))
	}

	if m.done {
		if m.err == nil && m.dispatch != nil {
			s.WriteString(fmt.Sprintf("\n  %s Dispatched %s to %s (%d recipients) ID: %s\n",
				successStyle.Render("DONE"),
				m.dispatch.Tag,
				m.dispatch.Audience,
				m.dispatch.Recipients,
				idStyle.Render(m.dispatch.ID),
			))
		}
		s.WriteString("\n  (Press q to exit)")
	}

	return s.String()
}
