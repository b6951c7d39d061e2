// Package ui is the terminal surface: a bubbletea program that draws the
// animated diagram with box-drawing characters and feeds mouse and key
// events back to the viewer.
package ui

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/arbor/pkg/config"
	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/export"
	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/hierarchy"
	"github.com/vanderheijden86/arbor/pkg/layout"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/scene"
	"github.com/vanderheijden86/arbor/pkg/viewer"
	"github.com/vanderheijden86/arbor/pkg/watcher"
)

const (
	frameInterval = 16 * time.Millisecond
	reloadTimeout = 30 * time.Second
	headerRows    = 1
	// leftMargin leaves room for the root's label, which sits to the left
	// of its marker.
	leftMargin = maxLabelCells + labelGap + 2
)

// FileChangedMsg is sent when the tree file changes on disk.
type FileChangedMsg struct{}

// TreeLoadedMsg carries the result of reloading the tree file.
type TreeLoadedMsg struct {
	Raw *model.RawNode
	Err error
}

type frameMsg struct{}

// Loader re-reads the tree payload for live reload.
type Loader func(ctx context.Context) (*model.RawNode, error)

// Option configures a Model.
type Option func(*Model)

// WithTitle sets the header caption, usually the source name.
func WithTitle(title string) Option {
	return func(m *Model) {
		m.title = title
	}
}

// WithWatcher enables live reload: every change reported by w runs load
// and replaces the diagram.
func WithWatcher(w *watcher.Watcher, load Loader) Option {
	return func(m *Model) {
		m.watcher = w
		m.load = load
	}
}

// WithSnapshotDir sets where the snapshot key writes SVG files.
func WithSnapshotDir(dir string) Option {
	return func(m *Model) {
		m.snapshotDir = dir
	}
}

// WithExpandAll starts with every node expanded.
func WithExpandAll() Option {
	return func(m *Model) {
		m.expandAll = true
	}
}

// WithSize sets the initial terminal size, before the first WindowSizeMsg.
func WithSize(width, height int) Option {
	return func(m *Model) {
		m.width, m.height = width, height
	}
}

// Model is the bubbletea model for the diagram.
type Model struct {
	cfg   config.Config
	graph *scene.Graph
	view  *viewer.Viewer
	theme Theme
	keys  keyMap
	help  help.Model

	title       string
	width       int
	height      int
	scrollCol   int
	selected    hierarchy.ID
	snapshotDir string
	expandAll   bool

	watcher *watcher.Watcher
	load    Loader

	statusMsg   string
	statusIsErr bool
	ticking     bool
}

// NewModel builds the diagram for raw. Errors are the viewer's: a
// malformed payload never produces a model.
func NewModel(raw *model.RawNode, cfg config.Config, opts ...Option) (Model, error) {
	m := Model{
		cfg:         cfg,
		theme:       DefaultTheme(lipgloss.DefaultRenderer()),
		keys:        defaultKeyMap(),
		help:        help.New(),
		width:       80,
		height:      24,
		snapshotDir: ".",
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.cfg.Normalize()
	m.help.Width = m.width
	if err := m.rebuild(raw); err != nil {
		return Model{}, err
	}
	// Init starts the first frame tick.
	m.ticking = true
	return m, nil
}

// rebuild replaces the diagram. On failure the current one is untouched.
func (m *Model) rebuild(raw *model.RawNode) error {
	graph := scene.New()
	v, err := viewer.New(raw, graph, m.viewerOptions()...)
	if err != nil {
		return err
	}
	if m.expandAll {
		v.ExpandAll()
	}
	m.graph, m.view = graph, v
	m.selected = v.Tree().Root().ID()
	m.scrollCol = 0
	return nil
}

func (m Model) viewerOptions() []viewer.Option {
	eng := layout.Engine{LevelSpacing: m.cfg.Layout.LevelSpacing, Height: m.layoutHeight()}
	return []viewer.Option{
		viewer.WithLayout(eng),
		viewer.WithDuration(m.cfg.TransitionDuration()),
		viewer.WithPlaceholder(m.cfg.Tooltip.Placeholder),
		viewer.WithTooltipHeight(1),
		viewer.WithRootExpanded(m.cfg.UI.RootExpanded),
	}
}

// Viewer exposes the underlying viewer.
func (m Model) Viewer() *viewer.Viewer { return m.view }

// Selected returns the keyboard selection.
func (m Model) Selected() *hierarchy.Node { return m.selectedNode() }

// Status returns the last status line message.
func (m Model) Status() string { return m.statusMsg }

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

func reloadCmd(load Loader) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		raw, err := load(ctx)
		return TreeLoadedMsg{Raw: raw, Err: err}
	}
}

func frameTickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

func (m *Model) startTicking() tea.Cmd {
	if m.ticking || !m.graph.Frame().Animating {
		return nil
	}
	m.ticking = true
	return frameTickCmd()
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{frameTickCmd()}
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.view.Resize(m.layoutHeight())
		m.ensureSelectionVisible()
		return m, m.startTicking()

	case frameMsg:
		m.ticking = false
		return m, m.startTicking()

	case FileChangedMsg:
		var cmds []tea.Cmd
		if m.load != nil {
			cmds = append(cmds, reloadCmd(m.load))
		}
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}
		return m, tea.Batch(cmds...)

	case TreeLoadedMsg:
		if msg.Err == nil {
			msg.Err = m.rebuild(msg.Raw)
		}
		if msg.Err != nil {
			debug.Log("ui: reload failed: %v", msg.Err)
			m.setError(fmt.Sprintf("Reload failed: %v", msg.Err))
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Reloaded %d nodes", m.view.Tree().Len()))
		return m, m.startTicking()

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	col, row := msg.X, msg.Y-headerRows

	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		n, ok := m.nodeAt(col, row)
		if !ok {
			return m, nil
		}
		m.selected = n.ID()
		m.view.OnUnhover()
		m.view.OnClick(n)
		m.fixSelection()
		return m, m.startTicking()

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonWheelRight:
		m.scrollCol += 4
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonWheelLeft:
		m.scrollCol = max(0, m.scrollCol-4)

	case msg.Action == tea.MouseActionMotion:
		if n, ok := m.nodeAt(col, row); ok {
			m.view.OnHover(n, geom.Pt(float64(col), float64(row)))
		} else {
			m.view.OnUnhover()
		}
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sel := m.selectedNode()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.view.Resize(m.layoutHeight())
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Parent):
		if p := sel.Parent(); p != nil {
			m.selected = p.ID()
		}
	case key.Matches(msg, m.keys.Child):
		if kids := sel.Children(); len(kids) > 0 {
			m.selected = kids[0].ID()
		} else {
			m.view.OnClick(sel)
		}
	case key.Matches(msg, m.keys.Toggle):
		m.view.OnClick(sel)
	case key.Matches(msg, m.keys.ExpandAll):
		m.view.ExpandAll()
	case key.Matches(msg, m.keys.CollapseAll):
		m.view.CollapseAll()
	case key.Matches(msg, m.keys.Copy):
		m.copyLabel(sel)
	case key.Matches(msg, m.keys.Snapshot):
		m.saveSnapshot()
	default:
		return m, nil
	}

	m.view.OnUnhover()
	m.fixSelection()
	m.ensureSelectionVisible()
	return m, m.startTicking()
}

func (m *Model) copyLabel(n *hierarchy.Node) {
	text, ok := n.Label()
	if !ok {
		text = m.cfg.Tooltip.Placeholder
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.setError(fmt.Sprintf("Clipboard error: %v", err))
		return
	}
	m.setStatus(fmt.Sprintf("📋 Copied %q to clipboard", text))
}

func (m *Model) saveSnapshot() {
	name := fmt.Sprintf("arbor-%s.svg", time.Now().Format("20060102-150405"))
	path := filepath.Join(m.snapshotDir, name)
	err := export.SaveSnapshot(export.SnapshotOptions{
		Path:  path,
		Title: m.title,
		Frame: m.graph.Settled(),
	})
	if err != nil {
		m.setError(fmt.Sprintf("Snapshot failed: %v", err))
		return
	}
	m.setStatus("Saved " + path)
}

func (m *Model) setStatus(s string) {
	m.statusMsg, m.statusIsErr = s, false
}

func (m *Model) setError(s string) {
	m.statusMsg, m.statusIsErr = s, true
}

// --- selection -------------------------------------------------------------

func (m Model) selectedNode() *hierarchy.Node {
	if n, ok := m.view.Tree().Find(m.selected); ok {
		return n
	}
	return m.view.Tree().Root()
}

func (m *Model) moveSelection(delta int) {
	vis := m.view.Visible()
	idx := 0
	for i, n := range vis {
		if n.ID() == m.selected {
			idx = i
			break
		}
	}
	m.selected = vis[clampInt(idx+delta, 0, len(vis)-1)].ID()
}

// fixSelection moves the selection to its nearest visible ancestor after a
// collapse hid it.
func (m *Model) fixSelection() {
	n := m.selectedNode()
	for n.Parent() != nil && !m.view.IsVisible(n) {
		n = n.Parent()
	}
	m.selected = n.ID()
}

// ensureSelectionVisible scrolls horizontally so the selected marker and
// its label fit on screen.
func (m *Model) ensureSelectionVisible() {
	n := m.selectedNode()
	col := leftMargin - m.scrollCol + int(math.Round(n.Position().X/m.cfg.UI.CellWidth))
	room := maxLabelCells + labelGap
	switch {
	case col+room >= m.width:
		m.scrollCol += col + room - m.width + 1
	case col-room < 0:
		m.scrollCol += col - room
	}
	if m.scrollCol < 0 {
		m.scrollCol = 0
	}
}

// --- geometry --------------------------------------------------------------

func (m Model) footer() string {
	status := m.theme.Status.Render(truncateLabel(m.statusMsg, max(m.width, 1)))
	if m.statusIsErr {
		status = m.theme.Error.Render(truncateLabel(m.statusMsg, max(m.width, 1)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, status, m.help.View(m.keys))
}

func (m Model) canvasRows() int {
	return max(m.height-headerRows-lipgloss.Height(m.footer()), 1)
}

// layoutHeight maps the canvas rows onto diagram units so the tree spans
// the visible area.
func (m Model) layoutHeight() float64 {
	return float64(max(m.canvasRows()-1, 1)) * m.cfg.UI.CellHeight
}

func (m Model) projection() projection {
	return projection{
		cellW:     m.cfg.UI.CellWidth,
		cellH:     m.cfg.UI.CellHeight,
		originCol: leftMargin - m.scrollCol,
	}
}

func (m Model) paint(f scene.Frame) *canvas {
	c := newCanvas(m.width, m.canvasRows(), m.projection())
	c.drawFrame(f, scene.Key(m.selected), true)
	return c
}

// nodeAt hit-tests the current frame in canvas coordinates.
func (m Model) nodeAt(col, row int) (*hierarchy.Node, bool) {
	k, ok := m.paint(m.graph.Frame()).ownerAt(col, row)
	if !ok {
		return nil, false
	}
	return m.view.Tree().Find(hierarchy.ID(k))
}

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	title := m.title
	if title == "" {
		title = "arbor"
	}
	count := fmt.Sprintf("  %d of %d nodes shown", len(m.view.Visible()), m.view.Tree().Len())
	header := m.theme.Header.Render(truncateLabel(title, max(m.width/2, 1))) + m.theme.Status.Render(count)

	c := m.paint(m.graph.Frame())
	c.drawTooltip(m.view.Tooltip())
	body := strings.Join(c.render(m.theme), "\n")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.footer())
}
