// Package scene is an in-memory, animated scene graph of node markers and
// link curves.
//
// Elements are created, moved and removed with a transition duration.
// Nothing is drawn here: Frame samples every element at the current clock
// time and hands the result to a renderer (the terminal UI or the SVG/PNG
// exporters). A transition started while another is still running begins
// from the element's current interpolated value, so overlapping renders
// supersede each other without cancellation.
package scene

import (
	"math"
	"slices"
	"time"

	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// Key identifies an element across renders.
type Key int

// Vanishing is the radius/opacity exiting elements shrink to. It stays
// above zero so renderers never divide by or draw with an exact zero.
const Vanishing = 1e-6

// DefaultRadius is the marker radius of a visible node.
const DefaultRadius = 4.0

// Anchor places a node's label relative to its marker.
type Anchor int

const (
	AnchorStart Anchor = iota // label to the right of the marker
	AnchorEnd                 // label to the left of the marker
)

// NodeSpec describes a node marker.
type NodeSpec struct {
	Key       Key
	Label     string
	Anchor    Anchor
	Collapsed bool // has hidden children; drawn filled
}

// LinkSpec describes a connector from a node to its parent.
type LinkSpec struct {
	Key  Key
	Side model.Side
}

// NodeSprite is a node sampled at one instant.
type NodeSprite struct {
	NodeSpec
	Pos          geom.Point
	Radius       float64
	LabelOpacity float64
	Exiting      bool
}

// LinkSprite is a link sampled at one instant.
type LinkSprite struct {
	LinkSpec
	Curve   geom.Curve
	Exiting bool
}

// Frame is the whole scene at one instant, nodes and links sorted by key.
type Frame struct {
	At        time.Time
	Nodes     []NodeSprite
	Links     []LinkSprite
	Animating bool
}

// Bounds returns the bounding box of all node positions.
func (f Frame) Bounds() (min, max geom.Point) {
	if len(f.Nodes) == 0 {
		return geom.Point{}, geom.Point{}
	}
	min, max = f.Nodes[0].Pos, f.Nodes[0].Pos
	for _, n := range f.Nodes[1:] {
		min.X = math.Min(min.X, n.Pos.X)
		min.Y = math.Min(min.Y, n.Pos.Y)
		max.X = math.Max(max.X, n.Pos.X)
		max.Y = math.Max(max.Y, n.Pos.Y)
	}
	return min, max
}

// NodeAt returns the non-exiting node whose marker is closest to p within
// radius, if any.
func (f Frame) NodeAt(p geom.Point, radius float64) (NodeSprite, bool) {
	best := -1
	bestDist := radius * radius
	for i, n := range f.Nodes {
		if n.Exiting {
			continue
		}
		d := n.Pos.Sub(p)
		if dist := d.X*d.X + d.Y*d.Y; dist <= bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return NodeSprite{}, false
	}
	return f.Nodes[best], true
}

// Node returns the sprite with the given key.
func (f Frame) Node(k Key) (NodeSprite, bool) {
	for _, n := range f.Nodes {
		if n.Key == k {
			return n, true
		}
	}
	return NodeSprite{}, false
}

// Link returns the sprite with the given key.
func (f Frame) Link(k Key) (LinkSprite, bool) {
	for _, l := range f.Links {
		if l.Key == k {
			return l, true
		}
	}
	return LinkSprite{}, false
}

type nodeElem struct {
	spec     NodeSpec
	pos      tween[geom.Point]
	radius   tween[float64]
	opacity  tween[float64]
	exiting  bool
	removeAt time.Time
}

type linkElem struct {
	spec     LinkSpec
	src, dst tween[geom.Point]
	exiting  bool
	removeAt time.Time
}

// Graph is the scene. It is not safe for concurrent use; the UI event loop
// owns it.
type Graph struct {
	clock func() time.Time
	ease  func(float64) float64
	nodes map[Key]*nodeElem
	links map[Key]*linkElem
}

// Option configures a Graph.
type Option func(*Graph)

// WithClock replaces time.Now, mainly for tests.
func WithClock(fn func() time.Time) Option {
	return func(g *Graph) {
		g.clock = fn
	}
}

// WithEasing replaces the default cubic in-out easing.
func WithEasing(fn func(float64) float64) Option {
	return func(g *Graph) {
		g.ease = fn
	}
}

// New returns an empty scene.
func New(opts ...Option) *Graph {
	g := &Graph{
		clock: time.Now,
		ease:  EaseCubicInOut,
		nodes: make(map[Key]*nodeElem),
		links: make(map[Key]*linkElem),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Clear drops every element immediately.
func (g *Graph) Clear() {
	g.nodes = make(map[Key]*nodeElem)
	g.links = make(map[Key]*linkElem)
}

// Len returns the number of node and link elements still in the scene,
// including ones that are exiting.
func (g *Graph) Len() (nodes, links int) {
	return len(g.nodes), len(g.links)
}

// AddNode creates a vanishingly small marker with a transparent label at
// p. If an element with the same key is still playing its exit, it is
// revived where it currently is instead, at its current size.
func (g *Graph) AddNode(spec NodeSpec, p geom.Point) {
	now := g.clock()
	if e, ok := g.nodes[spec.Key]; ok {
		cur := g.sampleNode(e, now)
		e.spec = spec
		e.exiting = false
		e.pos = still(cur.Pos)
		e.radius = still(cur.Radius)
		e.opacity = still(cur.LabelOpacity)
		return
	}
	g.nodes[spec.Key] = &nodeElem{
		spec:    spec,
		pos:     still(p),
		radius:  still(Vanishing),
		opacity: still(Vanishing),
	}
}

// MoveNode animates a marker towards p at full size and refreshes its
// fill state.
func (g *Graph) MoveNode(key Key, p geom.Point, collapsed bool, d time.Duration) {
	e, ok := g.nodes[key]
	if !ok {
		return
	}
	now := g.clock()
	cur := g.sampleNode(e, now)
	e.spec.Collapsed = collapsed
	e.pos = tween[geom.Point]{from: cur.Pos, to: p, start: now, dur: d}
	e.radius = tween[float64]{from: cur.Radius, to: DefaultRadius, start: now, dur: d}
	e.opacity = tween[float64]{from: cur.LabelOpacity, to: 1, start: now, dur: d}
}

// RemoveNode animates a marker towards p while shrinking it, then drops it.
func (g *Graph) RemoveNode(key Key, p geom.Point, d time.Duration) {
	e, ok := g.nodes[key]
	if !ok || e.exiting {
		return
	}
	now := g.clock()
	cur := g.sampleNode(e, now)
	e.pos = tween[geom.Point]{from: cur.Pos, to: p, start: now, dur: d}
	e.radius = tween[float64]{from: cur.Radius, to: Vanishing, start: now, dur: d}
	e.opacity = tween[float64]{from: cur.LabelOpacity, to: Vanishing, start: now, dur: d}
	e.exiting = true
	e.removeAt = now.Add(d)
}

// AddLink creates a zero-length link collapsed at p, or revives one that
// is still exiting.
func (g *Graph) AddLink(spec LinkSpec, p geom.Point) {
	now := g.clock()
	if e, ok := g.links[spec.Key]; ok {
		c := g.sampleLink(e, now).Curve
		e.spec = spec
		e.exiting = false
		e.src, e.dst = still(c.From), still(c.To)
		return
	}
	g.links[spec.Key] = &linkElem{spec: spec, src: still(p), dst: still(p)}
}

// MoveLink animates a link's endpoints towards parent (source) and child
// (target).
func (g *Graph) MoveLink(key Key, parent, child geom.Point, d time.Duration) {
	e, ok := g.links[key]
	if !ok {
		return
	}
	now := g.clock()
	c := g.sampleLink(e, now).Curve
	e.src = tween[geom.Point]{from: c.From, to: parent, start: now, dur: d}
	e.dst = tween[geom.Point]{from: c.To, to: child, start: now, dur: d}
}

// RemoveLink collapses a link into p, then drops it.
func (g *Graph) RemoveLink(key Key, p geom.Point, d time.Duration) {
	e, ok := g.links[key]
	if !ok || e.exiting {
		return
	}
	now := g.clock()
	c := g.sampleLink(e, now).Curve
	e.src = tween[geom.Point]{from: c.From, to: p, start: now, dur: d}
	e.dst = tween[geom.Point]{from: c.To, to: p, start: now, dur: d}
	e.exiting = true
	e.removeAt = now.Add(d)
}

// Frame samples the scene at the current clock time. Elements whose exit
// has completed are removed.
func (g *Graph) Frame() Frame {
	return g.FrameAt(g.clock())
}

// FrameAt samples the scene at now.
func (g *Graph) FrameAt(now time.Time) Frame {
	defer metrics.Timer(metrics.SceneFrame)()

	f := Frame{At: now}
	for k, e := range g.nodes {
		if e.exiting && !now.Before(e.removeAt) {
			delete(g.nodes, k)
			continue
		}
		s := g.sampleNode(e, now)
		f.Nodes = append(f.Nodes, s)
		if e.exiting || !e.pos.done(now) || !e.radius.done(now) || !e.opacity.done(now) {
			f.Animating = true
		}
	}
	for k, e := range g.links {
		if e.exiting && !now.Before(e.removeAt) {
			delete(g.links, k)
			continue
		}
		f.Links = append(f.Links, g.sampleLink(e, now))
		if e.exiting || !e.src.done(now) || !e.dst.done(now) {
			f.Animating = true
		}
	}
	slices.SortFunc(f.Nodes, func(a, b NodeSprite) int { return int(a.Key) - int(b.Key) })
	slices.SortFunc(f.Links, func(a, b LinkSprite) int { return int(a.Key) - int(b.Key) })
	return f
}

// Settled returns the frame every running transition is heading to,
// without advancing the clock or pruning anything.
func (g *Graph) Settled() Frame {
	f := Frame{At: g.clock()}
	for _, e := range g.nodes {
		if e.exiting {
			continue
		}
		f.Nodes = append(f.Nodes, NodeSprite{
			NodeSpec:     e.spec,
			Pos:          e.pos.to,
			Radius:       e.radius.to,
			LabelOpacity: e.opacity.to,
		})
	}
	for _, e := range g.links {
		if e.exiting {
			continue
		}
		f.Links = append(f.Links, LinkSprite{LinkSpec: e.spec, Curve: geom.Diagonal(e.dst.to, e.src.to)})
	}
	slices.SortFunc(f.Nodes, func(a, b NodeSprite) int { return int(a.Key) - int(b.Key) })
	slices.SortFunc(f.Links, func(a, b LinkSprite) int { return int(a.Key) - int(b.Key) })
	return f
}

func (g *Graph) sampleNode(e *nodeElem, now time.Time) NodeSprite {
	return NodeSprite{
		NodeSpec:     e.spec,
		Pos:          geom.Lerp(e.pos.from, e.pos.to, e.pos.progress(now, g.ease)),
		Radius:       geom.LerpFloat(e.radius.from, e.radius.to, e.radius.progress(now, g.ease)),
		LabelOpacity: geom.LerpFloat(e.opacity.from, e.opacity.to, e.opacity.progress(now, g.ease)),
		Exiting:      e.exiting,
	}
}

// sampleLink draws the curve from the child end to the parent end, the
// way the connector is read: child <- parent.
func (g *Graph) sampleLink(e *linkElem, now time.Time) LinkSprite {
	src := geom.Lerp(e.src.from, e.src.to, e.src.progress(now, g.ease))
	dst := geom.Lerp(e.dst.from, e.dst.to, e.dst.progress(now, g.ease))
	return LinkSprite{LinkSpec: e.spec, Curve: geom.Diagonal(dst, src), Exiting: e.exiting}
}

// tween is one interpolated attribute.
type tween[T any] struct {
	from, to T
	start    time.Time
	dur      time.Duration
}

func still[T any](v T) tween[T] {
	return tween[T]{from: v, to: v}
}

func (t tween[T]) progress(now time.Time, ease func(float64) float64) float64 {
	if t.dur <= 0 {
		return 1
	}
	p := float64(now.Sub(t.start)) / float64(t.dur)
	switch {
	case p <= 0:
		return 0
	case p >= 1:
		return 1
	}
	return ease(p)
}

func (t tween[T]) done(now time.Time) bool {
	return t.dur <= 0 || !now.Before(t.start.Add(t.dur))
}

// EaseCubicInOut accelerates through the first half and decelerates
// through the second.
func EaseCubicInOut(t float64) float64 {
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}

// EaseLinear is the identity easing.
func EaseLinear(t float64) float64 { return t }
