// Package tui shows a running solver in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	bar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/progress"
	"github.com/san-kum/sphsim/internal/solver"
)

const (
	historyCapacity = 300
	messageLines    = 6
)

type eventMsg struct{ ev progress.Event }

type doneMsg struct {
	res solver.Result
	err error
}

// Model renders solver progress. Pressing q asks the solver to stop after
// the current step; once the run is over any q quits.
type Model struct {
	bar      bar.Model
	maxStep  int
	stop     *atomic.Bool
	last     progress.Snapshot
	seen     bool
	speeds   []float64
	messages []string
	done     bool
	res      solver.Result
	err      error
}

func NewModel(maxStep int, stop *atomic.Bool) Model {
	return Model{
		bar:      bar.New(bar.WithDefaultGradient(), bar.WithWidth(48)),
		maxStep:  maxStep,
		stop:     stop,
		speeds:   make([]float64, 0, historyCapacity),
		messages: make([]string, 0, messageLines),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.done || m.stop.Load() && msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			if !m.stop.Swap(true) {
				m.log("stop requested, finishing current step")
			}
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-20, 80))
	case eventMsg:
		m.apply(msg.ev)
	case doneMsg:
		m.done, m.res, m.err = true, msg.res, msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) apply(ev progress.Event) {
	switch e := ev.(type) {
	case progress.Snapshot:
		m.last, m.seen = e, true
		m.speeds = append(m.speeds, r3.Norm(e.V))
		if len(m.speeds) > historyCapacity {
			m.speeds = m.speeds[1:]
		}
	case progress.Message:
		m.log(e.Text)
	case progress.Restarted:
		m.log(fmt.Sprintf("restarted from %s at step %d", e.Path, e.Step))
	}
}

func (m *Model) log(line string) {
	m.messages = append(m.messages, line)
	if len(m.messages) > messageLines {
		m.messages = m.messages[1:]
	}
}

func (m Model) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func vecString(v r3.Vec) string {
	return fmt.Sprintf("%+.4e %+.4e %+.4e", v.X, v.Y, v.Z)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("sphsim"))
	b.WriteString("\n")

	var status string
	switch {
	case m.done && m.err != nil:
		status = statusFailed.Render("failed")
	case m.done && m.res.Stopped:
		status = statusStopped.Render("stopped")
	case m.done:
		status = statusRunning.Render("finished")
	case m.stop.Load():
		status = statusStopped.Render("stopping")
	default:
		status = statusRunning.Render("running")
	}
	b.WriteString(m.row("status", status))
	b.WriteString("\n")

	pct := 0.0
	if m.maxStep > 0 {
		pct = min(1, float64(m.last.Step)/float64(m.maxStep))
	}
	b.WriteString(m.bar.ViewAs(pct))
	b.WriteString("\n\n")

	if m.seen {
		b.WriteString(m.row("step", fmt.Sprintf("%d / %d", m.last.Step, m.maxStep)) + "\n")
		b.WriteString(m.row("time", fmt.Sprintf("%.4f ms", m.last.Time*1000)) + "\n")
		b.WriteString(m.row("dt", fmt.Sprintf("%.3e s", m.last.Dt)) + "\n")
		b.WriteString(m.row("particle", fmt.Sprintf("%d", m.last.Particle)) + "\n")
		b.WriteString(m.row("x", vecString(m.last.X)) + "\n")
		b.WriteString(m.row("v", vecString(m.last.V)) + "\n")
		b.WriteString(m.row("a", vecString(m.last.A)) + "\n")
	}

	if len(m.speeds) > 1 {
		graph := asciigraph.Plot(m.speeds,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption("|v| of monitored particle [m/s]"))
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	if len(m.messages) > 0 {
		b.WriteString(logStyle.Render(strings.Join(m.messages, "\n")))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(statusFailed.Render(m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("q: stop after current step   ctrl+c twice: quit"))
	return panelStyle.Render(b.String())
}

// Monitor forwards solver events to a running program and relays the
// keyboard stop request.
type Monitor struct {
	prog *tea.Program
	stop *atomic.Bool
}

func (m *Monitor) Report(e progress.Event) { m.prog.Send(eventMsg{ev: e}) }

func (m *Monitor) ShouldStop(int) bool { return m.stop.Load() }

// Run initializes and runs a solver for cfg under a full-screen view. extra
// receives every event as well and may request a stop.
func Run(ctx context.Context, cfg *config.Config, extra progress.Monitor, opts ...solver.Option) (solver.Result, error) {
	stop := &atomic.Bool{}
	prog := tea.NewProgram(NewModel(cfg.MaxStep, stop))

	var mon progress.Monitor = &Monitor{prog: prog, stop: stop}
	if extra != nil {
		mon = progress.Multi{mon, extra}
	}
	sol, err := solver.New(cfg, mon, opts...)
	if err != nil {
		return solver.Result{}, err
	}

	go func() {
		var res solver.Result
		err := sol.Init()
		if err == nil {
			res, err = sol.Run(ctx)
		}
		prog.Send(doneMsg{res: res, err: err})
	}()

	final, err := prog.Run()
	if err != nil {
		return solver.Result{}, fmt.Errorf("running terminal view: %w", err)
	}
	fm := final.(Model)
	if !fm.done {
		return solver.Result{}, fmt.Errorf("terminal view closed before the run finished")
	}
	return fm.res, fm.err
}
