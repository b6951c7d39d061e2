// Package layout positions the visible part of a tree.
//
// The vertical coordinate comes from a tidy-tree pass (Buchheim, Jünger
// and Leipert's linear-time Reingold-Tilford): subtrees never overlap,
// siblings are spaced one unit apart and cousins two, and parents sit
// centred over their children. The horizontal coordinate ignores subtree
// size and is simply depth * LevelSpacing, giving a uniform stair-step.
package layout

import (
	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/hierarchy"
	"github.com/vanderheijden86/arbor/pkg/metrics"
)

const (
	DefaultLevelSpacing = 180.0
	DefaultHeight       = 600.0
)

// Engine holds the layout constants.
type Engine struct {
	LevelSpacing float64 // horizontal distance between depths
	Height       float64 // vertical extent the tree is scaled into
}

// NewEngine returns an engine with the default spacing.
func NewEngine() Engine {
	return Engine{LevelSpacing: DefaultLevelSpacing, Height: DefaultHeight}
}

// Result maps node identities to positions.
type Result struct {
	Positions map[hierarchy.ID]geom.Point
	MaxDepth  int
}

// Compute lays out the nodes reachable from root through visible
// children. Hidden subtrees take no room.
func (e Engine) Compute(root *hierarchy.Node) Result {
	defer metrics.Timer(metrics.Layout)()

	res := Result{Positions: make(map[hierarchy.ID]geom.Point)}
	if root == nil {
		return res
	}

	t := newWalkTree(root)
	t.eachAfter(firstWalk)
	t.parent.m = -t.z
	t.eachBefore(secondWalk)

	// Scale the relative coordinates into [0, Height].
	left, right := t, t
	t.eachBefore(func(v *walkNode) {
		if v.x < left.x {
			left = v
		}
		if v.x > right.x {
			right = v
		}
		if v.depth > res.MaxDepth {
			res.MaxDepth = v.depth
		}
	})
	s := 1.0
	if left != right {
		s = separation(left, right) / 2
	}
	tx := s - left.x
	kx := e.Height / (right.x + s + tx)

	t.eachBefore(func(v *walkNode) {
		res.Positions[v.node.ID()] = geom.Point{
			X: float64(v.depth) * e.LevelSpacing,
			Y: (v.x + tx) * kx,
		}
	})
	return res
}

// Apply writes computed positions into the tree's visible nodes.
func Apply(tree *hierarchy.Tree, res Result) {
	for _, n := range tree.Visible() {
		if p, ok := res.Positions[n.ID()]; ok {
			n.SetPosition(p)
		}
	}
}

// walkNode carries the per-node bookkeeping of the Buchheim walk.
type walkNode struct {
	node     *hierarchy.Node
	parent   *walkNode
	children []*walkNode
	index    int // position among siblings
	depth    int

	ancestor *walkNode // default ancestor (A)
	a        *walkNode // ancestor pointer
	thread   *walkNode
	z        float64 // prelim
	m        float64 // modifier
	c        float64 // change
	s        float64 // shift
	x        float64 // final relative coordinate
}

// newWalkTree mirrors the visible tree and hangs it off a virtual parent
// so the root can be walked like any other child.
func newWalkTree(root *hierarchy.Node) *walkNode {
	virtual := &walkNode{}
	var build func(n *hierarchy.Node, parent *walkNode, index, depth int) *walkNode
	build = func(n *hierarchy.Node, parent *walkNode, index, depth int) *walkNode {
		w := &walkNode{node: n, parent: parent, index: index, depth: depth}
		w.a = w
		for i, c := range n.Children() {
			w.children = append(w.children, build(c, w, i, depth+1))
		}
		return w
	}
	t := build(root, virtual, 0, 0)
	virtual.children = []*walkNode{t}
	return t
}

// separation puts cousins further apart than siblings.
func separation(a, b *walkNode) float64 {
	if a.node.Parent() == b.node.Parent() {
		return 1
	}
	return 2
}

func (v *walkNode) eachAfter(fn func(*walkNode)) {
	for _, c := range v.children {
		c.eachAfter(fn)
	}
	fn(v)
}

func (v *walkNode) eachBefore(fn func(*walkNode)) {
	fn(v)
	for _, c := range v.children {
		c.eachBefore(fn)
	}
}

func firstWalk(v *walkNode) {
	siblings := v.parent.children
	var w *walkNode
	if v.index > 0 {
		w = siblings[v.index-1]
	}
	if len(v.children) > 0 {
		executeShifts(v)
		midpoint := (v.children[0].z + v.children[len(v.children)-1].z) / 2
		if w != nil {
			v.z = w.z + separation(v, w)
			v.m = v.z - midpoint
		} else {
			v.z = midpoint
		}
	} else if w != nil {
		v.z = w.z + separation(v, w)
	}
	ancestor := v.parent.ancestor
	if ancestor == nil {
		ancestor = siblings[0]
	}
	v.parent.ancestor = apportion(v, w, ancestor)
}

func secondWalk(v *walkNode) {
	v.x = v.z + v.parent.m
	v.m += v.parent.m
}

// apportion joins the contour of v's subtree with those of its left
// siblings, shifting v right until nothing overlaps.
func apportion(v, w, ancestor *walkNode) *walkNode {
	if w == nil {
		return ancestor
	}
	vip, vop := v, v
	vim := w
	vom := v.parent.children[0]
	sip, sop := vip.m, vop.m
	sim, som := vim.m, vom.m

	for {
		vim = nextRight(vim)
		vip = nextLeft(vip)
		if vim == nil || vip == nil {
			break
		}
		vom = nextLeft(vom)
		vop = nextRight(vop)
		vop.a = v
		shift := vim.z + sim - vip.z - sip + separation(vim, vip)
		if shift > 0 {
			moveSubtree(nextAncestor(vim, v, ancestor), v, shift)
			sip += shift
			sop += shift
		}
		sim += vim.m
		sip += vip.m
		som += vom.m
		sop += vop.m
	}
	if vim != nil && nextRight(vop) == nil {
		vop.thread = vim
		vop.m += sim - sop
	}
	if vip != nil && nextLeft(vom) == nil {
		vom.thread = vip
		vom.m += sip - som
		ancestor = v
	}
	return ancestor
}

func nextLeft(v *walkNode) *walkNode {
	if len(v.children) > 0 {
		return v.children[0]
	}
	return v.thread
}

func nextRight(v *walkNode) *walkNode {
	if len(v.children) > 0 {
		return v.children[len(v.children)-1]
	}
	return v.thread
}

func moveSubtree(wm, wp *walkNode, shift float64) {
	change := shift / float64(wp.index-wm.index)
	wp.c -= change
	wp.s += shift
	wm.c += change
	wp.z += shift
	wp.m += shift
}

func executeShifts(v *walkNode) {
	shift, change := 0.0, 0.0
	for i := len(v.children) - 1; i >= 0; i-- {
		w := v.children[i]
		w.z += shift
		w.m += shift
		change += w.c
		shift += w.s + change
	}
}

func nextAncestor(vim, v, ancestor *walkNode) *walkNode {
	if vim.a.parent == v.parent {
		return vim.a
	}
	return ancestor
}
