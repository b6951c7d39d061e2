package reconcile

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/hierarchy"
	"github.com/vanderheijden86/arbor/pkg/layout"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/scene"
	"github.com/vanderheijden86/arbor/pkg/testutil"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		prev, next []int
		want       Plan[int]
	}{
		{"first render", nil, []int{1, 2}, Plan[int]{Enter: []int{1, 2}}},
		{"no change", []int{1, 2}, []int{1, 2}, Plan[int]{Update: []int{1, 2}}},
		{"expand", []int{1}, []int{1, 2, 3}, Plan[int]{Enter: []int{2, 3}, Update: []int{1}}},
		{"collapse", []int{1, 2, 3}, []int{1}, Plan[int]{Update: []int{1}, Exit: []int{2, 3}}},
		{"mixed", []int{1, 2, 4}, []int{3, 1}, Plan[int]{Enter: []int{3}, Update: []int{1}, Exit: []int{2, 4}}},
		{"duplicates", []int{1, 1}, []int{2, 2, 1}, Plan[int]{Enter: []int{2}, Update: []int{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.prev, tt.next)
			if !slices.Equal(got.Enter, tt.want.Enter) ||
				!slices.Equal(got.Update, tt.want.Update) ||
				!slices.Equal(got.Exit, tt.want.Exit) {
				t.Errorf("Diff = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanEmpty(t *testing.T) {
	if !Diff([]int{1}, []int{1}).Empty() {
		t.Error("identical sets should give an empty plan")
	}
	if Diff([]int{1}, []int{2}).Empty() {
		t.Error("changed membership should not be empty")
	}
}

func TestPropertyDiffPartitions(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prev := rapid.SliceOf(rapid.IntRange(0, 20)).Draw(rt, "prev")
		next := rapid.SliceOf(rapid.IntRange(0, 20)).Draw(rt, "next")
		p := Diff(prev, next)

		in := func(xs []int, k int) bool { return slices.Contains(xs, k) }
		for _, k := range p.Enter {
			if !in(next, k) || in(prev, k) {
				rt.Fatalf("enter %d is not next-only", k)
			}
		}
		for _, k := range p.Update {
			if !in(next, k) || !in(prev, k) {
				rt.Fatalf("update %d is not in both", k)
			}
		}
		for _, k := range p.Exit {
			if in(next, k) || !in(prev, k) {
				rt.Fatalf("exit %d is not prev-only", k)
			}
		}

		// Every distinct key lands in exactly one bucket.
		all := append(append(append([]int(nil), p.Enter...), p.Update...), p.Exit...)
		distinct := make(map[int]bool)
		for _, k := range append(append([]int(nil), prev...), next...) {
			distinct[k] = true
		}
		if len(all) != len(distinct) {
			rt.Fatalf("%d keys classified, %d distinct", len(all), len(distinct))
		}
		seen := make(map[int]bool)
		for _, k := range all {
			if seen[k] {
				rt.Fatalf("key %d classified twice", k)
			}
			seen[k] = true
		}
	})
}

// recorder is a Surface that logs every call.
type recorder struct {
	calls []string
	specs map[scene.Key]scene.NodeSpec
}

func newRecorder() *recorder {
	return &recorder{specs: make(map[scene.Key]scene.NodeSpec)}
}

func (r *recorder) log(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) AddNode(spec scene.NodeSpec, at geom.Point) {
	r.specs[spec.Key] = spec
	r.log("add-node %d %v", spec.Key, at)
}

func (r *recorder) MoveNode(key scene.Key, to geom.Point, collapsed bool, d time.Duration) {
	r.log("move-node %d %v %v", key, to, collapsed)
}

func (r *recorder) RemoveNode(key scene.Key, to geom.Point, d time.Duration) {
	r.log("remove-node %d %v", key, to)
}

func (r *recorder) AddLink(spec scene.LinkSpec, at geom.Point) {
	r.log("add-link %d %v", spec.Key, at)
}

func (r *recorder) MoveLink(key scene.Key, parent, child geom.Point, d time.Duration) {
	r.log("move-link %d", key)
}

func (r *recorder) RemoveLink(key scene.Key, at geom.Point, d time.Duration) {
	r.log("remove-link %d %v", key, at)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func relayout(tree *hierarchy.Tree) {
	layout.Apply(tree, layout.NewEngine().Compute(tree.Root()))
}

func TestRenderScenario(t *testing.T) {
	tree, err := hierarchy.Build(testutil.Scenario())
	if err != nil {
		t.Fatal(err)
	}
	tree.InitialCollapse()
	root := tree.Root()
	root.CommitPosition()

	rec := newRecorder()
	r := New(rec, DefaultDuration)

	relayout(tree)
	stats := r.Render(tree.Visible(), Origin{Before: root.PreviousPosition(), After: root.Position()})
	if len(stats.Nodes.Enter) != 1 || len(stats.Links.Enter) != 0 {
		t.Fatalf("first render stats = %+v", stats)
	}
	if root.PreviousPosition() != root.Position() {
		t.Error("Render should commit positions")
	}
	if spec := rec.specs[scene.Key(root.ID())]; spec.Anchor != scene.AnchorEnd || !spec.Collapsed {
		t.Errorf("collapsed root spec = %+v", spec)
	}

	// Expand the root: two nodes and two links grow out of the root's old spot.
	rec.calls = nil
	tree.Toggle(root)
	before := root.PreviousPosition()
	relayout(tree)
	stats = r.Render(tree.Visible(), Origin{Before: before, After: root.Position()})
	if len(stats.Nodes.Enter) != 2 || len(stats.Nodes.Update) != 1 || len(stats.Links.Enter) != 2 {
		t.Fatalf("expand stats = %+v", stats)
	}
	for _, c := range rec.calls {
		if strings.HasPrefix(c, "add-") && !strings.HasSuffix(c, fmt.Sprint(before)) {
			t.Errorf("%q did not enter at %v", c, before)
		}
	}
	if rec.count("move-node") != 3 || rec.count("move-link") != 2 {
		t.Errorf("calls = %q", rec.calls)
	}
	leaf := root.Children()[1]
	if spec := rec.specs[scene.Key(leaf.ID())]; spec.Anchor != scene.AnchorStart || spec.Label != "X" {
		t.Errorf("leaf spec = %+v", spec)
	}

	// Collapse again: both children and links exit into the root.
	rec.calls = nil
	tree.Toggle(root)
	relayout(tree)
	stats = r.Render(tree.Visible(), Origin{Before: root.PreviousPosition(), After: root.Position()})
	if len(stats.Nodes.Exit) != 2 || len(stats.Links.Exit) != 2 {
		t.Fatalf("collapse stats = %+v", stats)
	}
	if rec.count("remove-node") != 2 || rec.count("remove-link") != 2 {
		t.Errorf("calls = %q", rec.calls)
	}
}

// twoSplits is r -> {l -> {LL, LR}, m -> {ML, MR}}. Expanding l pushes it
// down, so its position before and after a toggle differ.
func twoSplits() *model.RawNode {
	return testutil.Split("r", 1, model.SideNone,
		testutil.Split("l", 2, model.SideLeft, testutil.Leaf("LL", model.SideLeft), testutil.Leaf("LR", model.SideRight)),
		testutil.Split("m", 3, model.SideRight, testutil.Leaf("ML", model.SideLeft), testutil.Leaf("MR", model.SideRight)),
	)
}

func TestRenderExitsIntoPostLayoutOrigin(t *testing.T) {
	tree, err := hierarchy.Build(twoSplits())
	if err != nil {
		t.Fatal(err)
	}
	tree.InitialCollapse()
	root := tree.Root()
	rec := newRecorder()
	r := New(rec, DefaultDuration)

	toggle := func(n *hierarchy.Node) Origin {
		before := n.Position()
		tree.Toggle(n)
		relayout(tree)
		origin := Origin{Before: before, After: n.Position()}
		rec.calls = nil
		r.Render(tree.Visible(), origin)
		return origin
	}

	relayout(tree)
	r.Render(tree.Visible(), Origin{Before: root.Position(), After: root.Position()})
	toggle(root)
	l := root.Children()[0]

	// Expanding l: children grow out of where l was.
	origin := toggle(l)
	if origin.Before == origin.After {
		t.Fatalf("l did not move when expanded (%v)", origin.Before)
	}
	if rec.count("add-node") != 2 || rec.count("add-link") != 2 {
		t.Fatalf("calls = %q", rec.calls)
	}
	for _, c := range rec.calls {
		if strings.HasPrefix(c, "add-") && !strings.HasSuffix(c, fmt.Sprint(origin.Before)) {
			t.Errorf("%q should enter at the pre-layout origin %v", c, origin.Before)
		}
	}

	// Collapsing l: children and links shrink into where l ends up.
	origin = toggle(l)
	if origin.Before == origin.After {
		t.Fatalf("l did not move when collapsed (%v)", origin.Before)
	}
	if rec.count("remove-node") != 2 || rec.count("remove-link") != 2 {
		t.Fatalf("calls = %q", rec.calls)
	}
	for _, c := range rec.calls {
		if !strings.HasPrefix(c, "remove-") {
			continue
		}
		if !strings.HasSuffix(c, fmt.Sprint(origin.After)) {
			t.Errorf("%q should exit to the post-layout origin %v", c, origin.After)
		}
		if strings.HasSuffix(c, fmt.Sprint(origin.Before)) {
			t.Errorf("%q exits to the pre-layout origin", c)
		}
	}
}

func TestRenderOnSceneGraph(t *testing.T) {
	tree, err := hierarchy.Build(testutil.NewDefault().Balanced(2))
	if err != nil {
		t.Fatal(err)
	}
	tree.ExpandAll()
	g := scene.New()
	r := New(g, 0)

	relayout(tree)
	r.Render(tree.Visible(), Origin{})
	f := g.Frame()
	if len(f.Nodes) != 7 || len(f.Links) != 6 {
		t.Fatalf("frame has %d nodes and %d links", len(f.Nodes), len(f.Links))
	}
	if f.Animating {
		t.Error("zero-duration render should settle immediately")
	}
	for _, n := range tree.Visible() {
		s, ok := f.Node(scene.Key(n.ID()))
		if !ok || s.Pos != n.Position() || s.Radius != scene.DefaultRadius {
			t.Errorf("%s sprite = %+v", n.Path(), s)
		}
	}

	tree.CollapseAll()
	relayout(tree)
	r.Render(tree.Visible(), Origin{After: tree.Root().Position()})
	f = g.Frame()
	if len(f.Nodes) != 1 || len(f.Links) != 0 {
		t.Errorf("after collapse frame has %d nodes and %d links", len(f.Nodes), len(f.Links))
	}
}

func TestResetForgetsPrevious(t *testing.T) {
	tree, err := hierarchy.Build(testutil.Scenario())
	if err != nil {
		t.Fatal(err)
	}
	r := New(newRecorder(), DefaultDuration)
	r.Render(tree.Visible(), Origin{})
	r.Reset()
	if stats := r.Render(tree.Visible(), Origin{}); len(stats.Nodes.Update) != 0 {
		t.Errorf("after Reset every node should enter again, got %+v", stats.Nodes)
	}
	r.SetDuration(time.Second)
	if r.Duration() != time.Second {
		t.Errorf("Duration() = %v", r.Duration())
	}
}
