package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lupppig/deliverynotify/internal/events"
	"github.com/lupppig/deliverynotify/internal/route"
	"github.com/lupppig/deliverynotify/internal/toast"
)

const sweepInterval = 500 * time.Millisecond

var (
	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Width(60)

	selectedToastStyle = toastStyle.BorderForeground(lipgloss.Color("205"))
	urgentStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00")).Bold(true)
	pinnedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
)

type itemMsg events.Item

type streamEndMsg struct {
	err error
}

type sweepMsg time.Time

type WatchModel struct {
	queue    *toast.Queue
	selected int
	status   string
	err      error
	ended    bool
	width    int
	quit     bool
}

func NewWatchModel(queue *toast.Queue) *WatchModel {
	return &WatchModel{queue: queue}
}

func sweepTick() tea.Cmd {
	return tea.Tick(sweepInterval, func(t time.Time) tea.Msg { return sweepMsg(t) })
}

func (m *WatchModel) Init() tea.Cmd {
	return sweepTick()
}

func (m *WatchModel) clampSelection() {
	n := m.queue.Len()
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *WatchModel) selectedToast() (toast.Toast, bool) {
	list := m.queue.Toasts()
	if m.selected < 0 || m.selected >= len(list) {
		return toast.Toast{}, false
	}
	return list[m.selected], true
}

func describeIntent(in route.Intent) string {
	switch in.Kind {
	case route.KindDial:
		return "dial " + strings.TrimPrefix(in.URL, "tel:")
	case route.KindNavigate:
		return "open " + in.URL
	default:
		return "dismissed"
	}
}

func (m *WatchModel) invoke(button int) {
	t, ok := m.selectedToast()
	if !ok {
		return
	}
	buttons := t.Buttons()
	if button >= len(buttons) {
		return
	}
	in, err := m.queue.Invoke(t.ID, buttons[button].ID)
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = describeIntent(in)
	m.clampSelection()
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < m.queue.Len()-1 {
				m.selected++
			}
		case "x", "d":
			if t, ok := m.selectedToast(); ok {
				m.queue.Dismiss(t.ID)
				m.clampSelection()
			}
		case "1":
			m.invoke(0)
		case "2":
			m.invoke(1)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case itemMsg:
		switch msg.Kind {
		case events.KindEvent:
			if msg.Event != nil {
				m.queue.Enqueue(*msg.Event)
			}
		case events.KindNavigate, events.KindOpen:
			m.status = "open " + msg.URL
		}
	case sweepMsg:
		m.queue.Sweep(time.Time(msg))
		m.clampSelection()
		return m, sweepTick()
	case streamEndMsg:
		m.ended = true
		m.err = msg.err
	}
	return m, nil
}

func (m *WatchModel) renderToast(t toast.Toast, selected bool) string {
	n := t.Notification
	title := keywordStyle.Render(n.Title)
	if n.RequireInteraction {
		title = urgentStyle.Render(n.Title) + " " + pinnedStyle.Render("●")
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(n.Body)
	if buttons := t.Buttons(); len(buttons) > 0 {
		b.WriteString("\n")
		for i, a := range buttons {
			b.WriteString(fmt.Sprintf("[%d] %s  ", i+1, a.Label))
		}
	}
	b.WriteString("\n" + idStyle.Render(t.ReceivedAt.Format("15:04:05")+"  "+n.Tag))

	style := toastStyle
	if selected {
		style = selectedToastStyle
	}
	return style.Render(b.String())
}

func (m *WatchModel) View() string {
	if m.quit {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("DeliveryNotify Watch"))
	if cfg != nil && cfg.Client.UserID != "" {
		s.WriteString(fmt.Sprintf(" - User: %s", cfg.Client.UserID))
	}
	s.WriteString("\n\n")

	list := m.queue.Toasts()
	for i, t := range list {
		s.WriteString(m.renderToast(t, i == m.selected) + "\n")
	}
	if len(list) == 0 {
		s.WriteString("\n  Waiting for notifications...\n")
	}

	if m.status != "" {
		s.WriteString("\n  " + headerStyle.Render(m.status) + "\n")
	}
	if m.ended {
		if m.err != nil {
			s.WriteString("\n  " + errorStyle.Render("feed closed: "+m.err.Error()) + "\n")
		} else {
			s.WriteString("\n  feed closed\n")
		}
	}

	s.WriteString("\n  (j/k select, 1/2 action, x dismiss, q quit)")
	return s.String()
}

func runWatchUI(stream itemStream, queue *toast.Queue) error {
	m := NewWatchModel(queue)
	p := tea.NewProgram(m)

	go func() {
		for {
			item, err := stream.Recv()
			if err != nil {
				p.Send(streamEndMsg{err: ignoreEOF(err)})
				return
			}
			p.Send(itemMsg(item))
		}
	}()

	_, err := p.Run()
	return err
}
