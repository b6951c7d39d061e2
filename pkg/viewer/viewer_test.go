package viewer

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/hierarchy"
	"github.com/vanderheijden86/arbor/pkg/layout"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/scene"
	"github.com/vanderheijden86/arbor/pkg/testutil"
)

func newViewer(t *testing.T, raw *model.RawNode, opts ...Option) (*Viewer, *scene.Graph) {
	t.Helper()
	g := scene.New()
	v, err := New(raw, g, append([]Option{WithDuration(0)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v, g
}

func sceneKeys(f scene.Frame) []scene.Key {
	var keys []scene.Key
	for _, n := range f.Nodes {
		keys = append(keys, n.Key)
	}
	return keys
}

func TestInitialViewIsRootOnly(t *testing.T) {
	v, g := newViewer(t, testutil.Scenario())
	testutil.AssertLabels(t, v.Visible(), "root <= 0.5")

	f := g.Frame()
	if len(f.Nodes) != 1 || len(f.Links) != 0 {
		t.Fatalf("scene has %d nodes and %d links", len(f.Nodes), len(f.Links))
	}
	root := f.Nodes[0]
	if root.Pos != geom.Pt(0, layout.DefaultHeight/2) {
		t.Errorf("root at %v", root.Pos)
	}
	if !root.Collapsed {
		t.Error("root with hidden children should be drawn collapsed")
	}
}

func TestScenarioClicks(t *testing.T) {
	v, g := newViewer(t, testutil.Scenario())
	root := v.Tree().Root()

	if !v.OnClick(root) {
		t.Fatal("click on root ignored")
	}
	testutil.AssertLabels(t, v.Visible(), "root <= 0.5", "a <= 1", "X")
	if st := v.LastRender(); len(st.Nodes.Enter) != 2 || len(st.Links.Enter) != 2 {
		t.Errorf("expand stats = %+v", st)
	}

	a, x := root.Children()[0], root.Children()[1]
	aID, xID := a.ID(), x.ID()
	if len(g.Frame().Nodes) != 3 {
		t.Errorf("scene keys = %v", sceneKeys(g.Frame()))
	}

	v.OnClick(a)
	testutil.AssertLabels(t, v.Visible(), "root <= 0.5", "a <= 1", "C", "X")

	v.OnClick(a)
	testutil.AssertLabels(t, v.Visible(), "root <= 0.5", "a <= 1", "X")
	if st := v.LastRender(); len(st.Nodes.Exit) != 1 || len(st.Nodes.Update) != 3 {
		t.Errorf("collapse stats = %+v", st)
	}
	if a.ID() != aID || x.ID() != xID {
		t.Error("identities changed")
	}
	if got := sceneKeys(g.Frame()); len(got) != 3 {
		t.Errorf("scene keys after collapse = %v", got)
	}
}

func TestClickLeafIsNoop(t *testing.T) {
	v, _ := newViewer(t, testutil.Scenario())
	root := v.Tree().Root()
	v.OnClick(root)
	before := v.LastRender()

	if v.OnClick(root.Children()[1]) {
		t.Error("clicking a leaf should not toggle")
	}
	if len(v.LastRender().Nodes.Update) != len(before.Nodes.Update) {
		t.Error("leaf click should not re-render")
	}
}

func TestClickDetachedNodeIsIgnored(t *testing.T) {
	v, _ := newViewer(t, testutil.Scenario())
	root := v.Tree().Root()
	v.OnClick(root)
	a := root.Children()[0]
	v.OnClick(root) // a is now hidden

	if v.OnClick(a) {
		t.Error("click on a hidden node should be ignored")
	}
	if v.OnClick(nil) {
		t.Error("nil click should be ignored")
	}
	other, _ := newViewer(t, testutil.Scenario())
	if v.OnClick(other.Tree().Root()) {
		t.Error("click on a foreign node should be ignored")
	}
	testutil.AssertLabels(t, v.Visible(), "root <= 0.5")
}

func TestEnterGrowsFromClickedNode(t *testing.T) {
	g := scene.New()
	v, err := New(testutil.Scenario(), g)
	if err != nil {
		t.Fatal(err)
	}
	root := v.Tree().Root()
	start := root.Position()
	v.OnClick(root)

	f := g.Frame() // a few microseconds into a 500ms transition
	for _, n := range v.Visible()[1:] {
		s, ok := f.Node(scene.Key(n.ID()))
		if !ok {
			t.Fatalf("%s missing", n.Path())
		}
		if s.Radius > 1 {
			t.Errorf("%s radius %v, should still be tiny", n.Path(), s.Radius)
		}
		if s.Pos.Sub(start).X > 50 {
			t.Errorf("%s at %v, should start near %v", n.Path(), s.Pos, start)
		}
	}
	if !f.Animating {
		t.Error("a 500ms transition should be animating")
	}
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time          { return c.now }
func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func near(a, b geom.Point) bool {
	return math.Abs(a.X-b.X) < 1e-6 && math.Abs(a.Y-b.Y) < 1e-6
}

func TestExitShrinksIntoClickedNodesNewPosition(t *testing.T) {
	raw := testutil.Split("r", 1, model.SideNone,
		testutil.Split("l", 2, model.SideLeft, testutil.Leaf("LL", model.SideLeft), testutil.Leaf("LR", model.SideRight)),
		testutil.Split("m", 3, model.SideRight, testutil.Leaf("ML", model.SideLeft), testutil.Leaf("MR", model.SideRight)),
	)
	clk := &stepClock{now: time.Unix(1000, 0)}
	g := scene.New(scene.WithClock(clk.Now), scene.WithEasing(scene.EaseLinear))
	v, err := New(raw, g, WithDuration(500*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	settle := func() {
		clk.Advance(time.Second)
		g.Frame()
	}

	root := v.Tree().Root()
	v.OnClick(root)
	settle()
	l := root.Children()[0]
	v.OnClick(l)
	settle()

	ll := l.Children()[0]
	llStart := ll.Position()
	expandedAt := l.Position()
	v.OnClick(l)
	collapsedAt := l.Position()
	if near(expandedAt, collapsedAt) {
		t.Fatalf("l should move when collapsed, stayed at %v", expandedAt)
	}

	clk.Advance(250 * time.Millisecond)
	f := g.Frame()
	s, ok := f.Node(scene.Key(ll.ID()))
	if !ok {
		t.Fatal("exiting node vanished mid-transition")
	}
	if !s.Exiting {
		t.Error("collapsed child should be exiting")
	}
	if want := geom.Lerp(llStart, collapsedAt, 0.5); !near(s.Pos, want) {
		t.Errorf("halfway sprite at %v, want %v (heading to %v)", s.Pos, want, collapsedAt)
	}
	if s.Radius >= scene.DefaultRadius || s.Radius <= scene.Vanishing {
		t.Errorf("halfway radius %v should be shrinking", s.Radius)
	}
	link, ok := f.Link(scene.Key(ll.ID()))
	if !ok {
		t.Fatal("exiting link vanished mid-transition")
	}
	if !link.Exiting {
		t.Error("link should be exiting")
	}

	clk.Advance(249 * time.Millisecond)
	s, _ = g.Frame().Node(scene.Key(ll.ID()))
	if d := s.Pos.Sub(collapsedAt); math.Hypot(d.X, d.Y) > 2 {
		t.Errorf("nearly done sprite at %v, want close to %v", s.Pos, collapsedAt)
	}

	clk.Advance(time.Millisecond)
	if _, ok := g.Frame().Node(scene.Key(ll.ID())); ok {
		t.Error("exiting node should be removed once its transition ends")
	}
}

func TestRootExpandedOption(t *testing.T) {
	v, _ := newViewer(t, testutil.Scenario(), WithRootExpanded(true))
	testutil.AssertLabels(t, v.Visible(), "root <= 0.5", "a <= 1", "X")

	v.ExpandAll()
	testutil.AssertLabels(t, v.Visible(), "root <= 0.5", "a <= 1", "C", "X")

	v.CollapseAll()
	testutil.AssertLabels(t, v.Visible(), "root <= 0.5", "a <= 1", "X")
}

func TestCollapseAll(t *testing.T) {
	v, g := newViewer(t, testutil.NewDefault().Balanced(3))
	v.ExpandAll()
	if got := len(v.Visible()); got != 15 {
		t.Fatalf("ExpandAll shows %d nodes, want 15", got)
	}
	v.CollapseAll()
	if got := len(v.Visible()); got != 1 {
		t.Errorf("CollapseAll shows %d nodes", got)
	}
	if f := g.Frame(); len(f.Nodes) != 1 {
		t.Errorf("scene still holds %d nodes", len(f.Nodes))
	}
}

func TestHoverTooltip(t *testing.T) {
	v, _ := newViewer(t, testutil.Scenario(), WithTooltipHeight(10))
	root := v.Tree().Root()

	tip := v.OnHover(root, geom.Pt(100, 200))
	if !tip.Visible || tip.Text != "root <= 0.5" {
		t.Errorf("tooltip = %+v", tip)
	}
	if tip.Anchor != geom.Pt(110, 190) {
		t.Errorf("anchor = %v, want (110,190)", tip.Anchor)
	}
	if tip.NodeID != root.ID() {
		t.Error("tooltip should name the hovered node")
	}

	v.OnUnhover()
	if v.Tooltip().Visible {
		t.Error("tooltip still visible")
	}

	other, _ := newViewer(t, testutil.Scenario())
	if v.OnHover(other.Tree().Root(), geom.Pt(0, 0)).Visible {
		t.Error("hovering a foreign node should hide the tooltip")
	}
}

func TestHoverPlaceholder(t *testing.T) {
	v, _ := newViewer(t, testutil.Unlabeled())
	if tip := v.OnHover(v.Tree().Root(), geom.Pt(0, 0)); tip.Text != DefaultPlaceholder {
		t.Errorf("text = %q, want %q", tip.Text, DefaultPlaceholder)
	}

	v, _ = newViewer(t, testutil.Unlabeled(), WithPlaceholder("(none)"))
	if tip := v.OnHover(v.Tree().Root(), geom.Pt(0, 0)); tip.Text != "(none)" {
		t.Errorf("text = %q", tip.Text)
	}
}

func TestHoverDetail(t *testing.T) {
	raw := testutil.Scenario()
	raw.Metrics = &model.Metrics{Purity: 0.5, Samples: 150}
	v, _ := newViewer(t, raw)
	if tip := v.OnHover(v.Tree().Root(), geom.Pt(0, 0)); tip.Detail != "samples: 150  purity: 0.50" {
		t.Errorf("detail = %q", tip.Detail)
	}
}

func TestResize(t *testing.T) {
	v, g := newViewer(t, testutil.Scenario())
	v.Resize(1000)
	if v.Engine().Height != 1000 {
		t.Fatalf("height = %v", v.Engine().Height)
	}
	if n := g.Frame().Nodes[0]; n.Pos.Y != 500 {
		t.Errorf("root y = %v after resize, want 500", n.Pos.Y)
	}
	v.Resize(-1)
	if v.Engine().Height != 1000 {
		t.Error("non-positive heights should be ignored")
	}
}

func TestNewRejectsMalformed(t *testing.T) {
	_, err := New(&model.RawNode{Children: []*model.RawNode{{}}}, scene.New())
	var mErr *hierarchy.MalformedInputError
	if !errors.As(err, &mErr) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
}
