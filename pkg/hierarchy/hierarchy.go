// Package hierarchy wraps a decoded classification tree into navigable
// nodes and owns their expand/collapse state.
//
// A Tree is built once from the payload and never rebuilt. Collapsing a
// node moves its children into a hidden list; expanding moves them back.
// Nodes are never created or destroyed after Build, so a node's identity
// and its children's order survive any number of toggles.
package hierarchy

import (
	"fmt"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// ID is the stable identity key of a node. Zero means "not yet assigned".
type ID int

// MalformedInputError reports a payload node that cannot be displayed.
type MalformedInputError struct {
	Path   string // e.g. "$.children[1].children[0]"
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed node at %s: %s", e.Path, e.Reason)
}

// Payload is the immutable decoded data of a node.
type Payload struct {
	Class   *string
	Rule    *model.Rule
	Side    model.Side
	Metrics *model.Metrics
}

// Node is one node of the tree.
type Node struct {
	tree   *Tree
	id     ID
	path   string
	label  string
	hasLbl bool
	data   Payload

	parent   *Node
	children []*Node // visible children
	hidden   []*Node // children retained while collapsed

	depth int
	pos   geom.Point
	prev  geom.Point
}

// ID returns the node's identity, assigning the next value from the
// tree's counter on first use.
func (n *Node) ID() ID {
	if n.id == 0 {
		n.tree.nextID++
		n.id = n.tree.nextID
		n.tree.byID[n.id] = n
	}
	return n.id
}

// Label returns the display label and whether one exists. Internal nodes
// show their rule, leaves their class.
func (n *Node) Label() (string, bool) { return n.label, n.hasLbl }

// Payload returns the decoded fields of the node.
func (n *Node) Payload() Payload { return n.data }

// Side returns the branch tag of the node.
func (n *Node) Side() model.Side { return n.data.Side }

// Path locates the node in the payload.
func (n *Node) Path() string { return n.path }

// Parent returns nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Depth is the distance from the root, refreshed by Tree.Visible.
func (n *Node) Depth() int { return n.depth }

// Position is the node's laid-out position.
func (n *Node) Position() geom.Point { return n.pos }

// PreviousPosition is the position at the start of the current transition.
func (n *Node) PreviousPosition() geom.Point { return n.prev }

// SetPosition stores a freshly computed layout position.
func (n *Node) SetPosition(p geom.Point) { n.pos = p }

// CommitPosition records the current position as the origin of the next
// transition.
func (n *Node) CommitPosition() { n.prev = n.pos }

// Children returns a copy of the visible children.
func (n *Node) Children() []*Node { return append([]*Node(nil), n.children...) }

// HiddenChildren returns a copy of the children hidden by a collapse.
func (n *Node) HiddenChildren() []*Node { return append([]*Node(nil), n.hidden...) }

// IsLeaf reports whether the node has no children at all.
func (n *Node) IsLeaf() bool { return len(n.children) == 0 && len(n.hidden) == 0 }

// HasHidden reports whether the node is collapsed over some children.
func (n *Node) HasHidden() bool { return len(n.hidden) > 0 }

// IsExpanded reports whether the node currently shows its children.
func (n *Node) IsExpanded() bool { return len(n.children) > 0 }

// allChildren returns whichever child list is populated.
func (n *Node) allChildren() []*Node {
	if len(n.children) > 0 {
		return n.children
	}
	return n.hidden
}

// Link connects a visible non-root node to its parent. It shares the
// child's identity.
type Link struct {
	Parent *Node
	Child  *Node
}

// ID is the link's identity key.
func (l Link) ID() ID { return l.Child.ID() }

// Tree owns the nodes of one diagram and the identity counter.
type Tree struct {
	root   *Node
	nextID ID
	byID   map[ID]*Node
	size   int
}

// Build wraps the raw payload. It fails with *MalformedInputError when a
// non-root node has neither class nor rule, a leaf carries a rule, or a
// side tag is unknown.
func Build(raw *model.RawNode) (*Tree, error) {
	defer metrics.Timer(metrics.TreeBuild)()

	if raw == nil {
		return nil, &MalformedInputError{Path: "$", Reason: "empty payload"}
	}
	t := &Tree{byID: make(map[ID]*Node)}
	root, err := t.wrap(raw, nil, "$", 0)
	if err != nil {
		return nil, err
	}
	t.root = root
	debug.Log("hierarchy: built %d nodes", t.size)
	return t, nil
}

func (t *Tree) wrap(raw *model.RawNode, parent *Node, path string, depth int) (*Node, error) {
	if err := raw.Validate(parent == nil); err != nil {
		return nil, &MalformedInputError{Path: path, Reason: err.Error()}
	}
	n := &Node{
		tree:   t,
		path:   path,
		parent: parent,
		depth:  depth,
		data: Payload{
			Class:   raw.Class,
			Rule:    raw.Rule,
			Side:    raw.Side,
			Metrics: raw.Metrics,
		},
	}
	switch {
	case raw.Rule != nil:
		n.label, n.hasLbl = raw.Rule.String(), true
	case raw.Class != nil:
		n.label, n.hasLbl = *raw.Class, true
	}
	t.size++

	if len(raw.Children) > 0 {
		n.children = make([]*Node, 0, len(raw.Children))
	}
	for i, rc := range raw.Children {
		child, err := t.wrap(rc, n, fmt.Sprintf("%s.children[%d]", path, i), depth+1)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
	}
	return n, nil
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Len is the total number of nodes, visible or not.
func (t *Tree) Len() int { return t.size }

// Contains reports whether n belongs to this tree.
func (t *Tree) Contains(n *Node) bool {
	return n != nil && n.tree == t
}

// Find returns the node with the given identity, if one was assigned.
func (t *Tree) Find(id ID) (*Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// InitialCollapse hides every subtree, depth-first, so that only the root
// is visible. The root itself ends up collapsed, its children hidden;
// call ExpandRoot afterwards (ui.root_expanded) to start one level open.
// Children keep their order and identities.
func (t *Tree) InitialCollapse() {
	var collapse func(n *Node)
	collapse = func(n *Node) {
		for _, c := range n.allChildren() {
			collapse(c)
		}
		if len(n.children) > 0 {
			t.Toggle(n)
		}
	}
	collapse(t.root)
}

// Toggle collapses an expanded node or expands a collapsed one. Leaves,
// nil and nodes of another tree are left alone. It reports whether the
// partition changed.
func (t *Tree) Toggle(n *Node) bool {
	if !t.Contains(n) {
		return false
	}
	switch {
	case len(n.children) > 0:
		n.hidden, n.children = n.children, nil
	case len(n.hidden) > 0:
		n.children, n.hidden = n.hidden, nil
	default:
		return false
	}
	return true
}

// ExpandAll reveals every hidden subtree.
func (t *Tree) ExpandAll() {
	var expand func(n *Node)
	expand = func(n *Node) {
		if len(n.hidden) > 0 {
			t.Toggle(n)
		}
		for _, c := range n.children {
			expand(c)
		}
	}
	expand(t.root)
}

// CollapseAll returns the tree to the state left by InitialCollapse.
func (t *Tree) CollapseAll() {
	t.InitialCollapse()
}

// ExpandRoot shows the root's children without touching deeper levels.
func (t *Tree) ExpandRoot() {
	if len(t.root.hidden) > 0 {
		t.Toggle(t.root)
	}
}

// Visible returns the nodes reachable from the root through visible
// children only, in pre-order, and refreshes their depth.
func (t *Tree) Visible() []*Node {
	var out []*Node
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		n.depth = depth
		out = append(out, n)
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	walk(t.root, 0)
	return out
}

// Links returns one link per visible non-root node, in pre-order.
func (t *Tree) Links() []Link {
	visible := t.Visible()
	links := make([]Link, 0, len(visible)-1)
	for _, n := range visible[1:] {
		links = append(links, Link{Parent: n.parent, Child: n})
	}
	return links
}

// Walk visits every node, hidden or not, in pre-order.
func (t *Tree) Walk(fn func(n *Node)) {
	var walk func(n *Node)
	walk = func(n *Node) {
		fn(n)
		for _, c := range n.allChildren() {
			walk(c)
		}
	}
	walk(t.root)
}
