package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/engine"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
)

// historyDepth limits the transition log kept on screen.
const historyDepth = 8

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	stateStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("87"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	gapStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	abortStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	historyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type eventMsg engine.Event

// runFinishedMsg arrives when the driver closes the event channel; the
// final report prints to the terminal after the screen is released.
type runFinishedMsg struct{}

type tickMsg time.Time

// Watch renders one verification run live. Quitting cancels the run
// context; the driver tears down its load and reports as aborted.
type Watch struct {
	target string
	runID  string
	events <-chan engine.Event
	cancel context.CancelFunc

	startedAt time.Time
	state     engine.State
	phase     string
	sample    *models.Sample
	history   []string
	quitting  bool
	width     int
}

// NewWatch builds the model. cancel must abort the run when invoked.
func NewWatch(target, runID string, events <-chan engine.Event, cancel context.CancelFunc) *Watch {
	return &Watch{
		target:    target,
		runID:     runID,
		events:    events,
		cancel:    cancel,
		startedAt: time.Now(),
		width:     80,
	}
}

func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.waitForEvent(), tick())
}

// waitForEvent delivers the next driver event. A closed channel means
// the run is over.
func (w *Watch) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-w.events
		if !ok {
			return runFinishedMsg{}
		}
		return eventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		return w, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !w.quitting {
				w.quitting = true
				w.cancel()
			}
		}
		return w, nil

	case eventMsg:
		w.apply(engine.Event(msg))
		return w, w.waitForEvent()

	case runFinishedMsg:
		return w, tea.Quit

	case tickMsg:
		return w, tick()
	}

	return w, nil
}

// apply folds one driver event into the view state. Transitions carry a
// message and no sample; heartbeats carry the latest sample.
func (w *Watch) apply(ev engine.Event) {
	w.state = ev.State

	if ev.Sample != nil {
		w.sample = ev.Sample
		if name, ok := strings.CutPrefix(ev.Message, "phase "); ok {
			w.phase = name
		}
		return
	}

	if ev.Message == "" {
		return
	}
	if ev.State != engine.StateLoadApplied {
		w.phase = ""
	}

	line := fmt.Sprintf("%s  %-18s %s", ev.Time.Format("15:04:05"), ev.State, ev.Message)
	w.history = append(w.history, line)
	if len(w.history) > historyDepth {
		w.history = w.history[len(w.history)-historyDepth:]
	}
}

func (w *Watch) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("hpa-verify"))
	b.WriteString("  ")
	b.WriteString(valueStyle.Render(w.target))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("run "))
	b.WriteString(valueStyle.Render(w.runID))
	b.WriteString(labelStyle.Render("   elapsed "))
	b.WriteString(valueStyle.Render(time.Since(w.startedAt).Round(time.Second).String()))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("state     "))
	b.WriteString(stateStyle.Render(w.state.String()))
	if w.phase != "" {
		b.WriteString(labelStyle.Render("  phase "))
		b.WriteString(valueStyle.Render(w.phase))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("replicas  "))
	b.WriteString(w.renderSample())
	b.WriteString("\n\n")

	if len(w.history) > 0 {
		for _, line := range w.history {
			if max := w.width - 2; max > 3 && len(line) > max {
				line = line[:max-3] + "..."
			}
			b.WriteString(historyStyle.Render(line))
			b.WriteString("\n")
		}
	}

	if w.quitting {
		b.WriteString("\n")
		b.WriteString(abortStyle.Render("aborting; waiting for load teardown..."))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("q: abort run and exit"))
	b.WriteString("\n")

	return b.String()
}

func (w *Watch) renderSample() string {
	if w.sample == nil {
		return labelStyle.Render("waiting for first sample")
	}
	if w.sample.Gap {
		return gapStyle.Render("poll failed; control plane unreachable")
	}

	age := time.Since(w.sample.Timestamp).Round(time.Second)
	return valueStyle.Render(fmt.Sprintf("%d current / %d desired", w.sample.CurrentReplicas, w.sample.DesiredReplicas)) +
		labelStyle.Render("   metric ") +
		valueStyle.Render(fmt.Sprintf("%.2f of %.2f", w.sample.MetricValue, w.sample.MetricTarget)) +
		labelStyle.Render(fmt.Sprintf("   polled %s ago", age))
}
