package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/scene"
	"github.com/vanderheijden86/arbor/pkg/viewer"
)

// cellKind doubles as paint priority: a cell only accepts a kind at least
// as high as the one already there.
type cellKind uint8

const (
	kindBlank cellKind = iota
	kindLink
	kindLinkLeft
	kindLinkRight
	kindLabel
	kindNode
	kindCollapsed
	kindSelected
	kindTooltipFrame
	kindTooltip
)

const (
	maxLabelCells  = 22
	tooltipWrap    = 32
	labelGap       = 2
	hiddenOpacity  = 0.5
	smallMarkerMin = scene.DefaultRadius / 2
)

type cell struct {
	r     rune // 0 marks the trailing half of a wide rune
	kind  cellKind
	owner scene.Key
	hit   bool
}

// projection maps diagram units onto terminal cells.
type projection struct {
	cellW, cellH float64
	originCol    int
	originRow    int
}

func (p projection) cell(pt geom.Point) (col, row int) {
	return p.originCol + int(math.Round(pt.X/p.cellW)), p.originRow + int(math.Round(pt.Y/p.cellH))
}

type canvas struct {
	w, h  int
	cells [][]cell
	proj  projection
}

func newCanvas(w, h int, proj projection) *canvas {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	cells := make([][]cell, h)
	for i := range cells {
		row := make([]cell, w)
		for j := range row {
			row[j].r = ' '
		}
		cells[i] = row
	}
	return &canvas{w: w, h: h, cells: cells, proj: proj}
}

func (c *canvas) inside(col, row int) bool {
	return col >= 0 && row >= 0 && col < c.w && row < c.h
}

func (c *canvas) set(col, row int, r rune, k cellKind) bool {
	if !c.inside(col, row) || c.cells[row][col].kind > k {
		return false
	}
	c.cells[row][col].r = r
	c.cells[row][col].kind = k
	c.cells[row][col].hit = false
	return true
}

func (c *canvas) setOwned(col, row int, r rune, k cellKind, owner scene.Key) {
	if c.set(col, row, r, k) {
		c.cells[row][col].owner = owner
		c.cells[row][col].hit = true
	}
}

// text writes s starting at col, honoring wide runes.
func (c *canvas) text(col, row int, s string, k cellKind, owner scene.Key, owned bool) {
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if owned {
			c.setOwned(col, row, r, k, owner)
		} else {
			c.set(col, row, r, k)
		}
		for i := 1; i < w; i++ {
			if owned {
				c.setOwned(col+i, row, 0, k, owner)
			} else {
				c.set(col+i, row, 0, k)
			}
		}
		col += w
	}
}

// ownerAt returns the node whose marker or label covers the cell.
func (c *canvas) ownerAt(col, row int) (scene.Key, bool) {
	if !c.inside(col, row) {
		return 0, false
	}
	cl := c.cells[row][col]
	return cl.owner, cl.hit
}

func (c *canvas) drawFrame(f scene.Frame, selected scene.Key, hasSelection bool) {
	for _, l := range f.Links {
		c.drawLink(l)
	}
	for _, n := range f.Nodes {
		c.drawNode(n, hasSelection && !n.Exiting && n.Key == selected)
	}
}

func linkKind(s model.Side) cellKind {
	switch s {
	case model.SideLeft:
		return kindLinkLeft
	case model.SideRight:
		return kindLinkRight
	default:
		return kindLink
	}
}

func (c *canvas) drawLink(l scene.LinkSprite) {
	if l.Curve.Degenerate() {
		return
	}
	c0, r0 := c.proj.cell(l.Curve.From)
	c1, r1 := c.proj.cell(l.Curve.To)
	steps := 2 * (abs(c1-c0) + abs(r1-r0))
	if steps < 8 {
		steps = 8
	}
	k := linkKind(l.Side)
	const dt = 1e-3
	for i := 1; i < steps; i++ {
		t := float64(i) / float64(steps)
		p := l.Curve.At(t)
		q := l.Curve.At(math.Min(1, t+dt))
		col, row := c.proj.cell(p)
		c.set(col, row, linkGlyph((q.X-p.X)/c.proj.cellW, (q.Y-p.Y)/c.proj.cellH), k)
	}
}

// linkGlyph picks a box-drawing rune for a tangent measured in cells.
func linkGlyph(dx, dy float64) rune {
	ax, ay := math.Abs(dx), math.Abs(dy)
	switch {
	case ay <= ax/2:
		return '─'
	case ax <= ay/2:
		return '│'
	case (dx > 0) == (dy > 0):
		return '╲'
	default:
		return '╱'
	}
}

func markerGlyph(n scene.NodeSprite) rune {
	switch {
	case n.Radius < smallMarkerMin:
		return '∘'
	case n.Collapsed:
		return '●'
	default:
		return '○'
	}
}

func (c *canvas) drawNode(n scene.NodeSprite, selected bool) {
	col, row := c.proj.cell(n.Pos)
	kind := kindNode
	switch {
	case selected:
		kind = kindSelected
	case n.Collapsed:
		kind = kindCollapsed
	}
	if n.Exiting {
		c.set(col, row, markerGlyph(n), kind)
	} else {
		c.setOwned(col, row, markerGlyph(n), kind, n.Key)
	}

	if n.Label == "" || n.LabelOpacity < hiddenOpacity {
		return
	}
	label := truncateLabel(n.Label, maxLabelCells)
	labelKind := kindLabel
	if selected {
		labelKind = kindSelected
	}
	start := col + labelGap
	if n.Anchor == scene.AnchorEnd {
		start = col - labelGap - runewidth.StringWidth(label) + 1
	}
	c.text(start, row, label, labelKind, n.Key, !n.Exiting)
}

// drawTooltip paints a bordered box whose top-left corner sits at the
// tooltip anchor, shifted back inside the canvas when it would overflow.
func (c *canvas) drawTooltip(tt viewer.Tooltip) {
	if !tt.Visible {
		return
	}
	lines := tooltipLines(tt)
	inner := 0
	for _, l := range lines {
		if w := runewidth.StringWidth(l); w > inner {
			inner = w
		}
	}
	boxW, boxH := inner+4, len(lines)+2
	col, row := int(math.Round(tt.Anchor.X)), int(math.Round(tt.Anchor.Y))
	if col+boxW > c.w {
		col = c.w - boxW
	}
	if row+boxH > c.h {
		row = c.h - boxH
	}
	if col < 0 {
		col = 0
	}
	if row < 0 {
		row = 0
	}

	horiz := strings.Repeat("─", boxW-2)
	c.text(col, row, "┌"+horiz+"┐", kindTooltipFrame, 0, false)
	for i, l := range lines {
		pad := strings.Repeat(" ", inner-runewidth.StringWidth(l))
		c.text(col, row+1+i, "│", kindTooltipFrame, 0, false)
		c.text(col+1, row+1+i, " "+l+pad+" ", kindTooltip, 0, false)
		c.text(col+boxW-1, row+1+i, "│", kindTooltipFrame, 0, false)
	}
	c.text(col, row+boxH-1, "└"+horiz+"┘", kindTooltipFrame, 0, false)
}

func tooltipLines(tt viewer.Tooltip) []string {
	lines := strings.Split(wordwrap.String(tt.Text, tooltipWrap), "\n")
	for i, l := range lines {
		// wordwrap leaves unbreakable words intact; clip them.
		lines[i] = truncateLabel(l, tooltipWrap)
	}
	if tt.Detail != "" {
		lines = append(lines, tt.Detail)
	}
	return lines
}

// render styles each row, coalescing runs of the same kind.
func (c *canvas) render(t Theme) []string {
	out := make([]string, c.h)
	var sb, run strings.Builder
	for i, row := range c.cells {
		sb.Reset()
		run.Reset()
		cur := kindBlank
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if cur == kindBlank {
				sb.WriteString(run.String())
			} else {
				sb.WriteString(t.style(cur).Render(run.String()))
			}
			run.Reset()
		}
		for _, cl := range row {
			if cl.r == 0 {
				continue
			}
			if cl.kind != cur {
				flush()
				cur = cl.kind
			}
			run.WriteRune(cl.r)
		}
		flush()
		out[i] = sb.String()
	}
	return out
}

func (t Theme) style(k cellKind) lipgloss.Style {
	switch k {
	case kindLink:
		return t.Link
	case kindLinkLeft:
		return t.LinkLeft
	case kindLinkRight:
		return t.LinkRight
	case kindLabel:
		return t.Label
	case kindNode:
		return t.Node
	case kindCollapsed:
		return t.Collapsed
	case kindSelected:
		return t.Selected
	case kindTooltipFrame:
		return t.TooltipFrame
	case kindTooltip:
		return t.Tooltip
	default:
		return t.Renderer.NewStyle()
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
