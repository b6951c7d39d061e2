package reconcile

import (
	"time"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/hierarchy"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/scene"
)

// DefaultDuration is the length of every transition.
const DefaultDuration = 500 * time.Millisecond

// Surface is the scene-graph the reconciler drives. *scene.Graph
// implements it.
type Surface interface {
	AddNode(spec scene.NodeSpec, at geom.Point)
	MoveNode(key scene.Key, to geom.Point, collapsed bool, d time.Duration)
	RemoveNode(key scene.Key, to geom.Point, d time.Duration)
	AddLink(spec scene.LinkSpec, at geom.Point)
	MoveLink(key scene.Key, parent, child geom.Point, d time.Duration)
	RemoveLink(key scene.Key, at geom.Point, d time.Duration)
}

// Origin anchors entering and exiting elements to the node that triggered
// the render: entering elements grow out of where it was before the
// relayout, exiting ones shrink into where it is after.
type Origin struct {
	Before geom.Point
	After  geom.Point
}

// Stats counts what one Render did.
type Stats struct {
	Nodes Plan[hierarchy.ID]
	Links Plan[hierarchy.ID]
}

// Reconciler remembers the previous render's keys.
type Reconciler struct {
	surface  Surface
	duration time.Duration

	prevNodes []hierarchy.ID
	prevLinks []hierarchy.ID
}

// New returns a reconciler drawing on s with transitions of length d.
func New(s Surface, d time.Duration) *Reconciler {
	return &Reconciler{surface: s, duration: d}
}

// Duration returns the transition length.
func (r *Reconciler) Duration() time.Duration { return r.duration }

// SetDuration changes the transition length; zero applies changes at once.
func (r *Reconciler) SetDuration(d time.Duration) { r.duration = d }

// Reset forgets the previous render, e.g. after the surface was cleared.
func (r *Reconciler) Reset() {
	r.prevNodes = nil
	r.prevLinks = nil
}

// Render reconciles the scene with visible, which must be the tree's
// visible nodes in pre-order with freshly computed positions. Afterwards
// every visible node's previous position equals its position.
func (r *Reconciler) Render(visible []*hierarchy.Node, origin Origin) Stats {
	defer metrics.Timer(metrics.Reconcile)()

	byID := make(map[hierarchy.ID]*hierarchy.Node, len(visible))
	nodeKeys := make([]hierarchy.ID, 0, len(visible))
	linkKeys := make([]hierarchy.ID, 0, len(visible))
	for _, n := range visible {
		id := n.ID()
		byID[id] = n
		nodeKeys = append(nodeKeys, id)
		if n.Parent() != nil {
			linkKeys = append(linkKeys, id)
		}
	}

	nodes := Diff(r.prevNodes, nodeKeys)
	links := Diff(r.prevLinks, linkKeys)

	for _, id := range nodes.Enter {
		r.surface.AddNode(nodeSpec(byID[id]), origin.Before)
	}
	for _, id := range nodeKeys {
		n := byID[id]
		r.surface.MoveNode(scene.Key(id), n.Position(), n.HasHidden(), r.duration)
	}
	for _, id := range nodes.Exit {
		r.surface.RemoveNode(scene.Key(id), origin.After, r.duration)
	}

	for _, id := range links.Enter {
		r.surface.AddLink(scene.LinkSpec{Key: scene.Key(id), Side: byID[id].Side()}, origin.Before)
	}
	for _, id := range linkKeys {
		n := byID[id]
		r.surface.MoveLink(scene.Key(id), n.Parent().Position(), n.Position(), r.duration)
	}
	for _, id := range links.Exit {
		r.surface.RemoveLink(scene.Key(id), origin.After, r.duration)
	}

	for _, n := range visible {
		n.CommitPosition()
	}
	r.prevNodes = nodeKeys
	r.prevLinks = linkKeys

	debug.Log("reconcile: nodes +%d ~%d -%d, links +%d ~%d -%d",
		len(nodes.Enter), len(nodes.Update), len(nodes.Exit),
		len(links.Enter), len(links.Update), len(links.Exit))
	return Stats{Nodes: nodes, Links: links}
}

func nodeSpec(n *hierarchy.Node) scene.NodeSpec {
	label, _ := n.Label()
	anchor := scene.AnchorStart
	if !n.IsLeaf() {
		anchor = scene.AnchorEnd
	}
	return scene.NodeSpec{
		Key:       scene.Key(n.ID()),
		Label:     label,
		Anchor:    anchor,
		Collapsed: n.HasHidden(),
	}
}
