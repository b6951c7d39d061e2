package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// Labeled is anything that exposes a display label.
type Labeled interface {
	Label() (string, bool)
}

// Labels collects display labels, using "" for unlabeled nodes.
func Labels[N Labeled](nodes []N) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i], _ = n.Label()
	}
	return out
}

// AssertLabels checks the labels of nodes, in order.
func AssertLabels[N Labeled](t *testing.T, nodes []N, want ...string) {
	t.Helper()
	if got := Labels(nodes); !slices.Equal(got, want) {
		t.Errorf("labels = %q, want %q", got, want)
	}
}

// WriteTreeFile writes raw as JSON into dir and returns the path.
func WriteTreeFile(t *testing.T, dir, name string, raw *model.RawNode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(ToJSON(raw)), 0o644); err != nil {
		t.Fatalf("failed to write tree file: %v", err)
	}
	return path
}
