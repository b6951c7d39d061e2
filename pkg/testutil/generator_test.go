package testutil

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"pgregory.net/rapid"

	"github.com/vanderheijden86/arbor/pkg/model"
)

type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func validateAll(t fataler, n *model.RawNode, isRoot bool) {
	t.Helper()
	if err := n.Validate(isRoot); err != nil {
		t.Fatalf("invalid node: %v", err)
	}
	for _, c := range n.Children {
		validateAll(t, c, false)
	}
}

func depth(n *model.RawNode) int {
	d := 0
	for _, c := range n.Children {
		if cd := depth(c) + 1; cd > d {
			d = cd
		}
	}
	return d
}

func TestBalanced(t *testing.T) {
	for d := 0; d <= 4; d++ {
		tree := NewDefault().Balanced(d)
		validateAll(t, tree, true)
		if got, want := CountNodes(tree), (1<<(d+1))-1; got != want {
			t.Errorf("Balanced(%d) has %d nodes, want %d", d, got, want)
		}
		if depth(tree) != d {
			t.Errorf("Balanced(%d) has depth %d", d, depth(tree))
		}
	}
}

func TestChain(t *testing.T) {
	tree := NewDefault().Chain(5)
	validateAll(t, tree, true)
	if got := CountNodes(tree); got != 11 {
		t.Errorf("Chain(5) has %d nodes, want 11", got)
	}
	if depth(tree) != 5 {
		t.Errorf("Chain(5) has depth %d", depth(tree))
	}
	if tree.Children[0].Side != model.SideLeft || tree.Children[1].Side != model.SideRight {
		t.Error("expected left/right sides on split children")
	}
}

func TestRandom(t *testing.T) {
	tree := NewDefault().Random(6, 0.4)
	validateAll(t, tree, true)
	if tree.IsLeaf() {
		t.Error("root of a random tree should split")
	}
	if depth(tree) > 6 {
		t.Errorf("depth %d exceeds max", depth(tree))
	}
}

func TestDeterminism(t *testing.T) {
	a := ToJSON(New(GeneratorConfig{Seed: 7, WithMetrics: true}).Random(5, 0.3))
	b := ToJSON(New(GeneratorConfig{Seed: 7, WithMetrics: true}).Random(5, 0.3))
	if a != b {
		t.Error("same seed produced different trees")
	}
	if !strings.Contains(a, `"n_samples"`) {
		t.Error("expected metrics in output")
	}
}

func TestScenario(t *testing.T) {
	s := Scenario()
	validateAll(t, s, true)
	if CountNodes(s) != 4 {
		t.Errorf("scenario has %d nodes, want 4", CountNodes(s))
	}
	if got := s.Children[0].Rule.String(); got != "a <= 1" {
		t.Errorf("A label = %q", got)
	}
	validateAll(t, Unlabeled(), true)
}

func TestToJSONDecodes(t *testing.T) {
	var back model.RawNode
	if err := json.Unmarshal([]byte(ToJSON(Scenario())), &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if CountNodes(&back) != 4 {
		t.Errorf("decoded %d nodes", CountNodes(&back))
	}
}

func TestToJSONIsCompactlyIndented(t *testing.T) {
	out := ToJSON(Scenario())
	if len(out) > 2048 {
		t.Fatalf("scenario encoded to %d bytes", len(out))
	}
	want := "{\n  \""
	if !strings.HasPrefix(out, want) {
		t.Errorf("output should start with %q, got %.40q", want, out)
	}
	for i, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			t.Errorf("line %d is blank", i+1)
		}
		if indent := len(line) - len(strings.TrimLeft(line, " ")); indent%2 != 0 || indent > 20 {
			t.Errorf("line %d has indent %d: %q", i+1, indent, line)
		}
	}
}

func TestRawTreeProducesValidTrees(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tree := RawTree(4).Draw(rt, "tree")
		validateAll(rt, tree, true)
		if depth(tree) > 4 {
			rt.Fatalf("depth %d exceeds 4", depth(tree))
		}
	})
}
