package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

const (
	width        = 60
	height       = 22
	costCapacity = 120
)

type Options struct {
	FixedCamera bool
	ShowTraces  bool
	MaxTraces   int
	TraceColor  [4]float64
}

type frameMsg Frame
type planMsg Plan
type doneMsg struct{}

// Model renders a running loop from a Stream.
type Model struct {
	name   string
	stream *Stream

	body   *Canvas
	trails *Canvas
	camera *Camera
	traces *TraceBuffer
	skel   []skelEdge

	frame      Frame
	hasFrame   bool
	costs      []float64
	plans      int
	late       int
	lastPlan   Plan
	showTraces bool
	paused     bool
	done       bool
}

type skelEdge struct{ from, to int }

// NewModel builds a viewer titled name. The skeleton joins the model's sites
// in list order.
func NewModel(name string, stream *Stream, opts Options) Model {
	var skel []skelEdge
	for i := 1; i < len(stream.model.Sites()); i++ {
		skel = append(skel, skelEdge{i - 1, i})
	}
	return Model{
		name:       name,
		stream:     stream,
		body:       NewCanvas(width, height),
		trails:     NewCanvas(width, height),
		camera:     &Camera{Fixed: opts.FixedCamera},
		traces:     NewTraceBuffer(opts.MaxTraces, opts.TraceColor),
		skel:       skel,
		costs:      make([]float64, 0, costCapacity),
		showTraces: opts.ShowTraces,
	}
}

// wait blocks until the stream has something for the viewer.
func (m Model) wait() tea.Cmd {
	s := m.stream
	return func() tea.Msg {
		select {
		case f := <-s.frames:
			return frameMsg(f)
		case p := <-s.plans:
			return planMsg(p)
		case <-s.done:
			return doneMsg{}
		}
	}
}

func (m Model) Init() tea.Cmd { return m.wait() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "c":
			m.camera.Fixed = !m.camera.Fixed
		case "t":
			m.showTraces = !m.showTraces
		case "r":
			m.camera.Reset()
			m.traces.Clear()
		}
		return m, nil
	case frameMsg:
		if !m.paused {
			m.frame = Frame(msg)
			m.hasFrame = true
		}
		return m, m.wait()
	case planMsg:
		m.onPlan(Plan(msg))
		return m, m.wait()
	case doneMsg:
		m.done = true
		return m, nil
	}
	return m, nil
}

func (m *Model) onPlan(p Plan) {
	m.plans++
	if p.Lag > 1 {
		m.late++
	}
	m.lastPlan = p
	if !math.IsInf(p.Cost, 0) && !math.IsNaN(p.Cost) {
		m.costs = append(m.costs, p.Cost)
		if len(m.costs) > costCapacity {
			m.costs = m.costs[1:]
		}
	}
	for _, path := range p.Paths {
		m.traces.Push(path)
	}
}

func (m *Model) draw() {
	m.body.Clear()
	m.trails.Clear()
	if !m.hasFrame {
		return
	}
	w, h := m.body.PixelWidth(), m.body.PixelHeight()
	m.camera.Frame(m.frame.Sites, w, h)

	if m.showTraces {
		for _, path := range m.traces.Paths() {
			for i := 1; i < len(path); i++ {
				x0, y0 := m.camera.Project(path[i-1], w, h)
				x1, y1 := m.camera.Project(path[i], w, h)
				m.trails.DrawLine(x0, y0, x1, y1)
			}
		}
	}

	for _, e := range m.skel {
		x0, y0 := m.camera.Project(m.frame.Sites[e.from], w, h)
		x1, y1 := m.camera.Project(m.frame.Sites[e.to], w, h)
		m.body.DrawLine(x0, y0, x1, y1)
	}
	for _, p := range m.frame.Sites {
		x, y := m.camera.Project(p, w, h)
		m.body.Dot(x, y, 1)
	}
}

// compose overlays the body on the trace layer, colouring each run of
// cells once.
func (m *Model) compose() string {
	traceStyle := lipgloss.NewStyle().Foreground(m.traces.Color())
	var b strings.Builder
	for row := 0; row < m.body.Height; row++ {
		var run []rune
		runTrace := false
		flush := func() {
			if len(run) == 0 {
				return
			}
			if runTrace {
				b.WriteString(traceStyle.Render(string(run)))
			} else {
				b.WriteString(bodyStyle.Render(string(run)))
			}
			run = run[:0]
		}
		for col := 0; col < m.body.Width; col++ {
			r, isTrace := m.body.Grid[row][col], false
			if m.body.Blank(row, col) && !m.trails.Blank(row, col) {
				r, isTrace = m.trails.Grid[row][col], true
			}
			if isTrace != runTrace {
				flush()
				runTrace = isTrace
			}
			run = append(run, r)
		}
		flush()
		b.WriteByte('\n')
	}
	return b.String()
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.compose())

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n")
	switch {
	case m.done:
		s.WriteString(StatusDone.Render("FINISHED"))
	case m.paused:
		s.WriteString(StatusPaused.Render("PAUSED"))
	case m.lastPlan.Lag > 1:
		s.WriteString(StatusLate.Render(fmt.Sprintf("LATE (%d periods)", m.lastPlan.Lag)))
	default:
		s.WriteString(StatusRunning.Render("RUNNING"))
	}
	s.WriteString("\n\n")

	if len(m.costs) > 1 {
		chart := asciigraph.Plot(m.costs, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("Plan cost"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.frame.Time))
	row("Control", formatVec(m.frame.Control))
	row("Plans", fmt.Sprintf("%d (%d late)", m.plans, m.late))
	row("Plan cost", fmt.Sprintf("%.3f", m.lastPlan.Cost))
	row("Plan time", m.lastPlan.Duration.Round(time.Microsecond).String())
	camera := "tracking"
	if m.camera.Fixed {
		camera = "fixed"
	}
	row("Camera", camera)
	row("Traces", fmt.Sprintf("%d/%d", m.traces.Len(), m.traces.Cap()))

	s.WriteString(helpStyle.Render("SP:Pause C:Camera T:Traces\nR:Reframe Q:Quit"))
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}

func formatVec(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%+.2f", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Run shows the viewer until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
