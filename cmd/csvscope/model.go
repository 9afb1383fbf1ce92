package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"

	"csvscope/internal/engine"
)

var (
	selectedColor = styles.AdaptiveColor{Light: "0", Dark: "9"}
	borderColor   = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	selectedFg    = styles.NewStyle().Foreground(selectedColor)
	borderFg      = styles.NewStyle().Foreground(borderColor)
	plotStyle     = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			Foreground(borderColor).
			BorderForeground(borderColor)
)

type columnItem struct {
	name string
	gaps bool
}

func (c columnItem) Title() string { return c.name }
func (c columnItem) Description() string {
	if c.gaps {
		return "has gaps"
	}
	return ""
}
func (c columnItem) FilterValue() string { return c.name }

type resultMsg engine.Result
type statsTickMsg time.Time
type errMsg struct{ err error }

func doStatsTick() tui.Cmd {
	return tui.Every(time.Second, func(t time.Time) tui.Msg { return statsTickMsg(t) })
}

func waitForResult(ch <-chan engine.Result) tui.Cmd {
	return func() tui.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return resultMsg(r)
	}
}

type model struct {
	width, height  int
	leftPaneWidth  int
	rightPaneWidth int

	handle   *engine.Handle
	resultCh chan engine.Result
	statsOn  bool

	list         list.Model
	listDelegate *list.DefaultDelegate
	help         help.Model
	plot         *plot.Canvas

	traces    map[string]engine.Trace
	selected  int
	totalRows int
	clipped   bool

	axisMin, axisMax   float64
	viewStart, viewEnd float64

	err error
}

func newModel(handle *engine.Handle, resultCh chan engine.Result, info engine.SchemaInfo, statsOn bool) *model {
	const defaultWidth, defaultHeight = 80, 20

	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = styles.NewStyle().
		Border(styles.NormalBorder(), false, false, false, true).
		BorderForeground(borderColor).
		Foreground(selectedColor).
		Padding(0, 0, 0, 1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle.Foreground(selectedColor)
	d.ShowDescription = true

	items := make([]list.Item, len(info.Columns))
	for i, col := range info.Columns {
		items[i] = columnItem{name: col.Name}
	}
	l := list.New(items, d, defaultWidth/2-2, defaultHeight)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)

	p := plot.NewCanvas(defaultWidth, defaultHeight)
	p.NumDataPoints = defaultWidth
	p.ShowAxis = false
	p.LineColors = []plot.Color{plot.Red}

	axisMin := info.AxisMin.ToFloat64(0)
	axisMax := info.AxisMax.ToFloat64(info.TotalRows-1)

	m := &model{
		handle:       handle,
		resultCh:     resultCh,
		statsOn:      statsOn,
		list:         l,
		listDelegate: &d,
		help:         help.New(),
		plot:         &p,
		traces:       make(map[string]engine.Trace),
		totalRows:    info.TotalRows,
		axisMin:      axisMin,
		axisMax:      axisMax,
		viewStart:    axisMin,
		viewEnd:      axisMax,
	}
	return m
}

func (m *model) Init() tui.Cmd {
	m.handle.RequestViewport(m.viewStart, m.viewEnd)
	cmds := []tui.Cmd{waitForResult(m.resultCh)}
	if m.statsOn {
		cmds = append(cmds, doStatsTick())
	}
	return tui.Batch(cmds...)
}

func (m *model) Update(msg tui.Msg) (tui.Model, tui.Cmd) {
	switch msg := msg.(type) {
	case errMsg:
		m.err = msg.err
		return m, nil
	case resultMsg:
		m.applyResult(engine.Result(msg))
		return m, waitForResult(m.resultCh)
	case statsTickMsg:
		return m, doStatsTick()
	case tui.WindowSizeMsg:
		m.handleResize(msg.Width, msg.Height)
		return m, nil
	case tui.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tui.Quit
		case key.Matches(msg, keys.Left):
			m.pan(-0.1)
			return m, nil
		case key.Matches(msg, keys.Right):
			m.pan(0.1)
			return m, nil
		case key.Matches(msg, keys.ZoomIn):
			m.zoom(0.5)
			return m, nil
		case key.Matches(msg, keys.ZoomOut):
			m.zoom(2.0)
			return m, nil
		case key.Matches(msg, keys.Up):
			m.list.CursorUp()
			return m, nil
		case key.Matches(msg, keys.Down):
			m.list.CursorDown()
			return m, nil
		case key.Matches(msg, keys.Follow):
			st := m.handle.FollowerSnapshot()
			m.handle.SetFollow(!st.FollowEnabled)
			return m, nil
		case key.Matches(msg, keys.Reload):
			go func() { _ = m.handle.Reload() }()
			return m, nil
		case key.Matches(msg, keys.Stats):
			m.statsOn = !m.statsOn
			if m.statsOn {
				return m, doStatsTick()
			}
			return m, nil
		}
	}
	var cmd tui.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) applyResult(r engine.Result) {
	if r.Discarded {
		return
	}
	m.totalRows = r.TotalRows
	m.clipped = r.Viewport.Clipped
	for _, tr := range r.Traces {
		m.traces[tr.Name] = tr
	}
	m.refreshPlot()
}

func (m *model) pan(frac float64) {
	width := m.viewEnd - m.viewStart
	delta := width * frac
	m.viewStart += delta
	m.viewEnd += delta
	m.clampView()
	m.request()
}

func (m *model) zoom(factor float64) {
	center := (m.viewStart + m.viewEnd) / 2
	width := (m.viewEnd - m.viewStart) * factor
	if width <= 0 {
		width = m.viewEnd - m.viewStart
	}
	m.viewStart = center - width/2
	m.viewEnd = center + width/2
	m.clampView()
	m.request()
}

func (m *model) clampView() {
	if m.viewEnd <= m.viewStart {
		m.viewEnd = m.viewStart + 1
	}
	if m.axisMax > m.axisMin {
		width := m.viewEnd - m.viewStart
		if width > m.axisMax-m.axisMin {
			width = m.axisMax - m.axisMin
		}
		if m.viewStart < m.axisMin {
			m.viewStart = m.axisMin
			m.viewEnd = m.viewStart + width
		}
		if m.viewEnd > m.axisMax {
			m.viewEnd = m.axisMax
			m.viewStart = m.viewEnd - width
		}
	}
}

func (m *model) request() {
	m.handle.RequestViewport(m.viewStart, m.viewEnd)
}

func (m *model) selectedColumnName() string {
	if it, ok := m.list.SelectedItem().(columnItem); ok {
		return it.name
	}
	return ""
}

func (m *model) refreshPlot() {
	name := m.selectedColumnName()
	tr, ok := m.traces[name]
	if !ok || len(tr.Ys) == 0 {
		return
	}
	width := m.plot.NumDataPoints
	series := resampleToWidth(tr.Ys, width)
	m.plot.Fill([][]float64{series})
}

func resampleToWidth(ys []float64, width int) []float64 {
	if width <= 0 {
		width = 1
	}
	out := make([]float64, width)
	n := len(ys)
	for i := 0; i < width; i++ {
		src := i * n / width
		if src >= n {
			src = n - 1
		}
		v := ys[src]
		if v != v { // NaN
			v = 0
		}
		out[i] = v
	}
	return out
}

func (m *model) handleResize(w, h int) {
	m.width, m.height = w, h
	leftW, rightW := computePaneWidths(w)
	m.leftPaneWidth, m.rightPaneWidth = leftW, rightW

	bottomLines := 1
	if m.statsOn {
		bottomLines += 5
	}
	available := max(1, h-bottomLines)
	m.list.SetSize(max(1, leftW), available)

	plotWidth := max(1, rightW-2)
	plotHeight := max(1, available-3)
	p := plot.NewCanvas(plotWidth, plotHeight)
	p.NumDataPoints = plotWidth
	p.ShowAxis = false
	p.LineColors = m.plot.LineColors
	m.plot = &p
	m.refreshPlot()
}

func computePaneWidths(total int) (left, right int) {
	left = total * 30 / 100
	right = total - left
	return
}

func (m *model) View() string {
	left := m.list.View()
	canvas := m.plot.String()

	labels := fmt.Sprintf("[%.4g, %.4g]", m.viewStart, m.viewEnd)
	if m.clipped {
		labels += " (clipped)"
	}
	right := plotStyle.Render(styles.JoinVertical(styles.Top, canvas, labels))
	view := styles.JoinHorizontal(styles.Top, left, right)

	if m.err != nil {
		errStyle := styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "1", Dark: "9"})
		return styles.JoinVertical(styles.Left, view, errStyle.Render("ERROR: "+m.err.Error()), m.help.View(keys))
	}

	var blocks []string
	blocks = append(blocks, view)
	if m.statsOn {
		blocks = append(blocks, m.statsBlock())
	}
	blocks = append(blocks, m.help.View(keys))
	return styles.JoinVertical(styles.Left, blocks...)
}

func (m *model) statsBlock() string {
	snap := m.handle.Stats()
	st := m.handle.FollowerSnapshot()
	follow := "off"
	if st.FollowEnabled {
		follow = "on"
		if st.Paused {
			follow = "on (paused)"
		}
	}
	lines := []string{
		"PERF STATS",
		fmt.Sprintf("rows: %d  read/s: %d  follow: %s", m.totalRows, snap.RowsPerSecond, follow),
		fmt.Sprintf("fetch latency: last=%s max=%s avg=%s", snap.FetchLatency.Last, snap.FetchLatency.Max, snap.FetchLatency.Avg),
		fmt.Sprintf("completed: %d  discarded: %d  io errors: %d", snap.Completed, snap.Discarded, snap.IOErrors),
	}
	return strings.Join(lines, "\n")
}
