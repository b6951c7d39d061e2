// Package testutil provides decision tree fixtures for tests.
// The seeded generators produce deterministic output for reproducible tests.
package testutil

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"

	"github.com/goccy/go-json"
	"pgregory.net/rapid"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// GeneratorConfig controls tree generation.
type GeneratorConfig struct {
	Seed        int64    // Random seed for determinism (0 = 42)
	Features    []string // Feature names used in rules
	Classes     []string // Class names used at leaves
	WithMetrics bool     // Attach purity/sample metrics to every node
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:     42,
		Features: []string{"petal_length", "petal_width", "sepal_length", "sepal_width"},
		Classes:  []string{"setosa", "versicolor", "virginica"},
	}
}

// Generator creates decision trees with various shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if len(cfg.Features) == 0 {
		cfg.Features = def.Features
	}
	if len(cfg.Classes) == 0 {
		cfg.Classes = def.Classes
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Balanced creates a full binary decision tree: 2^(depth+1)-1 nodes.
func (g *Generator) Balanced(depth int) *model.RawNode {
	return g.balanced(depth, model.SideNone)
}

func (g *Generator) balanced(depth int, side model.Side) *model.RawNode {
	if depth <= 0 {
		return g.leaf(side)
	}
	return g.split(side, g.balanced(depth-1, model.SideLeft), g.balanced(depth-1, model.SideRight))
}

// Chain creates a tree where every split sends its right branch to a leaf
// and recurses on the left: depth+1 levels, 2*depth+1 nodes.
func (g *Generator) Chain(depth int) *model.RawNode {
	return g.chain(depth, model.SideNone)
}

func (g *Generator) chain(depth int, side model.Side) *model.RawNode {
	if depth <= 0 {
		return g.leaf(side)
	}
	return g.split(side, g.chain(depth-1, model.SideLeft), g.leaf(model.SideRight))
}

// Random creates a decision tree of at most maxDepth levels below the
// root. Splits stop early with probability stop.
func (g *Generator) Random(maxDepth int, stop float64) *model.RawNode {
	return g.random(maxDepth, stop, model.SideNone, true)
}

func (g *Generator) random(depth int, stop float64, side model.Side, root bool) *model.RawNode {
	if depth <= 0 || (!root && g.rng.Float64() < stop) {
		return g.leaf(side)
	}
	return g.split(side,
		g.random(depth-1, stop, model.SideLeft, false),
		g.random(depth-1, stop, model.SideRight, false))
}

func (g *Generator) leaf(side model.Side) *model.RawNode {
	n := &model.RawNode{Class: Ptr(g.cfg.Classes[g.rng.Intn(len(g.cfg.Classes))]), Side: side}
	g.decorate(n)
	return n
}

func (g *Generator) split(side model.Side, left, right *model.RawNode) *model.RawNode {
	feature := g.cfg.Features[g.rng.Intn(len(g.cfg.Features))]
	threshold := math.Round(g.rng.Float64()*1000) / 100
	n := &model.RawNode{
		Rule:     &model.Rule{Feature: feature, Operator: "<=", Threshold: model.NumericThreshold(threshold)},
		Side:     side,
		Children: []*model.RawNode{left, right},
	}
	g.decorate(n)
	return n
}

func (g *Generator) decorate(n *model.RawNode) {
	if !g.cfg.WithMetrics {
		return
	}
	n.Metrics = &model.Metrics{
		Purity:  math.Round(g.rng.Float64()*100) / 100,
		Samples: 1 + g.rng.Intn(500),
	}
}

// ============================================================================
// Hand-built fixtures
// ============================================================================

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Leaf returns a leaf carrying class.
func Leaf(class string, side model.Side) *model.RawNode {
	return &model.RawNode{Class: Ptr(class), Side: side}
}

// Split returns an internal node testing feature <= threshold.
func Split(feature string, threshold float64, side model.Side, children ...*model.RawNode) *model.RawNode {
	return &model.RawNode{
		Rule:     &model.Rule{Feature: feature, Operator: "<=", Threshold: model.NumericThreshold(threshold)},
		Side:     side,
		Children: children,
	}
}

// Scenario returns root -> {A (rule) -> {C}, B (class "X")}, the shape
// used throughout the interaction tests. A's label is "a <= 1".
func Scenario() *model.RawNode {
	return Split("root", 0.5, model.SideNone,
		Split("a", 1, model.SideLeft, Leaf("C", model.SideLeft)),
		Leaf("X", model.SideRight),
	)
}

// Unlabeled returns a root with neither class nor rule over two leaves.
func Unlabeled() *model.RawNode {
	return &model.RawNode{Children: []*model.RawNode{
		Leaf("yes", model.SideLeft),
		Leaf("no", model.SideRight),
	}}
}

// CountNodes returns the number of nodes in raw.
func CountNodes(raw *model.RawNode) int {
	if raw == nil {
		return 0
	}
	n := 1
	for _, c := range raw.Children {
		n += CountNodes(c)
	}
	return n
}

// ToJSON encodes raw the way an exporter would. It indents the compact
// encoding in a second step; MarshalIndent mis-pads the recursive type.
func ToJSON(raw *model.RawNode) string {
	data, err := json.Marshal(raw)
	if err != nil {
		panic(fmt.Sprintf("testutil: encoding tree: %v", err))
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		panic(fmt.Sprintf("testutil: indenting tree: %v", err))
	}
	return buf.String()
}

// ============================================================================
// Property-test generators
// ============================================================================

// RawTree draws valid decision trees up to maxDepth levels below the root.
// Internal nodes have one to three children; pairs carry left/right sides.
func RawTree(maxDepth int) *rapid.Generator[*model.RawNode] {
	return rapid.Custom(func(t *rapid.T) *model.RawNode {
		return drawNode(t, maxDepth, model.SideNone)
	})
}

func drawNode(t *rapid.T, depth int, side model.Side) *model.RawNode {
	def := DefaultConfig()
	if depth <= 0 || rapid.Float64Range(0, 1).Draw(t, "stop") < 0.3 {
		return Leaf(rapid.SampledFrom(def.Classes).Draw(t, "class"), side)
	}
	n := rapid.IntRange(1, 3).Draw(t, "children")
	children := make([]*model.RawNode, n)
	for i := range children {
		s := model.SideNone
		if n == 2 {
			s = []model.Side{model.SideLeft, model.SideRight}[i]
		}
		children[i] = drawNode(t, depth-1, s)
	}
	return Split(
		rapid.SampledFrom(def.Features).Draw(t, "feature"),
		float64(rapid.IntRange(0, 1000).Draw(t, "threshold"))/100,
		side,
		children...,
	)
}
