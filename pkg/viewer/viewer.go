// Package viewer composes the tree, the layout engine and the reconciler
// into one interactive diagram session.
//
// All methods run on the caller's event loop. Model state (the collapse
// partition and node positions) is updated synchronously before any
// transition is scheduled, so a click arriving mid-animation always sees
// the current tree.
package viewer

import (
	"fmt"
	"time"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/hierarchy"
	"github.com/vanderheijden86/arbor/pkg/layout"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/reconcile"
)

// DefaultPlaceholder is the tooltip text for nodes without a label.
const DefaultPlaceholder = "None"

// Tooltip is the hover text and where to show it.
type Tooltip struct {
	Visible bool
	Text    string
	Detail  string     // optional metrics line
	Anchor  geom.Point // top-left corner, in pointer coordinates
	NodeID  hierarchy.ID
}

// Viewer is one diagram session.
type Viewer struct {
	tree   *hierarchy.Tree
	engine layout.Engine
	rec    *reconcile.Reconciler

	placeholder   string
	tooltipHeight float64
	rootExpanded  bool
	duration      time.Duration

	tooltip Tooltip
	last    reconcile.Stats
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithLayout sets the layout engine.
func WithLayout(e layout.Engine) Option {
	return func(v *Viewer) {
		v.engine = e
	}
}

// WithDuration sets the transition length.
func WithDuration(d time.Duration) Option {
	return func(v *Viewer) {
		v.duration = d
	}
}

// WithPlaceholder sets the tooltip text for unlabeled nodes.
func WithPlaceholder(s string) Option {
	return func(v *Viewer) {
		if s != "" {
			v.placeholder = s
		}
	}
}

// WithTooltipHeight sets the tooltip height used to offset it from the
// pointer.
func WithTooltipHeight(h float64) Option {
	return func(v *Viewer) {
		v.tooltipHeight = h
	}
}

// WithRootExpanded starts with the root's children visible instead of
// the root alone.
func WithRootExpanded(expanded bool) Option {
	return func(v *Viewer) {
		v.rootExpanded = expanded
	}
}

// New builds the tree from raw, collapses it and renders the initial view
// onto surface.
func New(raw *model.RawNode, surface reconcile.Surface, opts ...Option) (*Viewer, error) {
	tree, err := hierarchy.Build(raw)
	if err != nil {
		return nil, fmt.Errorf("building tree: %w", err)
	}

	v := &Viewer{
		tree:        tree,
		engine:      layout.NewEngine(),
		placeholder: DefaultPlaceholder,
		duration:    reconcile.DefaultDuration,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.rec = reconcile.New(surface, v.duration)

	tree.InitialCollapse()
	if v.rootExpanded {
		tree.ExpandRoot()
	}

	root := tree.Root()
	root.SetPosition(geom.Pt(0, v.engine.Height/2))
	root.CommitPosition()
	v.renderFrom(root, root.Position())
	return v, nil
}

// Tree returns the underlying tree.
func (v *Viewer) Tree() *hierarchy.Tree { return v.tree }

// Engine returns the layout engine in use.
func (v *Viewer) Engine() layout.Engine { return v.engine }

// Visible returns the currently visible nodes in pre-order.
func (v *Viewer) Visible() []*hierarchy.Node { return v.tree.Visible() }

// Tooltip returns the current tooltip state.
func (v *Viewer) Tooltip() Tooltip { return v.tooltip }

// LastRender reports what the most recent render did.
func (v *Viewer) LastRender() reconcile.Stats { return v.last }

// IsVisible reports whether n belongs to this tree and every ancestor of
// n is expanded.
func (v *Viewer) IsVisible(n *hierarchy.Node) bool {
	if !v.tree.Contains(n) {
		return false
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if !p.IsExpanded() {
			return false
		}
	}
	return true
}

// OnClick toggles n and animates the diagram to the new layout, growing
// new nodes out of n and shrinking removed ones into it. Clicks on nodes
// that are not visible (or not ours) are ignored; a rapid double click can
// land on a node that is already on its way out.
func (v *Viewer) OnClick(n *hierarchy.Node) bool {
	if !v.IsVisible(n) {
		debug.Log("viewer: ignoring click on detached node")
		return false
	}
	before := n.Position()
	if !v.tree.Toggle(n) {
		return false
	}
	v.renderFrom(n, before)
	return true
}

// ExpandAll reveals the whole tree, animating out of the root.
func (v *Viewer) ExpandAll() {
	root := v.tree.Root()
	before := root.Position()
	v.tree.ExpandAll()
	v.renderFrom(root, before)
}

// CollapseAll returns to the initial view, animating into the root.
func (v *Viewer) CollapseAll() {
	root := v.tree.Root()
	before := root.Position()
	v.tree.CollapseAll()
	if v.rootExpanded {
		v.tree.ExpandRoot()
	}
	v.renderFrom(root, before)
}

// Resize changes the vertical extent of the layout and re-renders.
func (v *Viewer) Resize(height float64) {
	if height <= 0 || height == v.engine.Height {
		return
	}
	v.engine.Height = height
	root := v.tree.Root()
	v.renderFrom(root, root.Position())
}

// SetDuration changes the transition length for later renders.
func (v *Viewer) SetDuration(d time.Duration) {
	v.duration = d
	v.rec.SetDuration(d)
}

// OnHover shows the tooltip for n near the pointer.
func (v *Viewer) OnHover(n *hierarchy.Node, pointer geom.Point) Tooltip {
	if !v.tree.Contains(n) {
		v.OnUnhover()
		return v.tooltip
	}
	text, ok := n.Label()
	if !ok || text == "" {
		text = v.placeholder
	}
	h := v.tooltipHeight
	v.tooltip = Tooltip{
		Visible: true,
		Text:    text,
		Detail:  detail(n),
		Anchor:  geom.Pt(pointer.X+h, pointer.Y-h),
		NodeID:  n.ID(),
	}
	return v.tooltip
}

// OnUnhover hides the tooltip.
func (v *Viewer) OnUnhover() {
	v.tooltip = Tooltip{}
}

// renderFrom relays out the whole tree and reconciles it, anchoring
// transitions at source.
func (v *Viewer) renderFrom(source *hierarchy.Node, before geom.Point) {
	res := v.engine.Compute(v.tree.Root())
	layout.Apply(v.tree, res)
	visible := v.tree.Visible()
	v.last = v.rec.Render(visible, reconcile.Origin{Before: before, After: source.Position()})
}

func detail(n *hierarchy.Node) string {
	m := n.Payload().Metrics
	if m == nil {
		return ""
	}
	return fmt.Sprintf("samples: %d  purity: %.2f", m.Samples, m.Purity)
}
