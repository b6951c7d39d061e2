//go:build ignore
// +build ignore

// generate_testdata.go creates sample decision trees for manual testing
// and benchmarking.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	testdata/trees/scenario.json  (4 nodes, the quick-start example)
//	testdata/trees/balanced.json  (127 nodes, depth 6)
//	testdata/trees/chain.json     (41 nodes, a left-leaning spine)
//	testdata/trees/random.json    (random splits up to depth 8)
//	testdata/trees/wide.yaml      (random splits up to depth 10, YAML)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/testutil"
)

type datasetSpec struct {
	name string
	desc string
	make func(g *testutil.Generator) *model.RawNode
}

var datasets = []datasetSpec{
	{"scenario.json", "root with one split child and one leaf", func(*testutil.Generator) *model.RawNode { return testutil.Scenario() }},
	{"balanced.json", "complete binary tree of depth 6", func(g *testutil.Generator) *model.RawNode { return g.Balanced(6) }},
	{"chain.json", "left spine of 20 splits", func(g *testutil.Generator) *model.RawNode { return g.Chain(20) }},
	{"random.json", "random splits up to depth 8", func(g *testutil.Generator) *model.RawNode { return g.Random(8, 0.3) }},
	{"wide.yaml", "random splits up to depth 10", func(g *testutil.Generator) *model.RawNode { return g.Random(10, 0.2) }},
}

func main() {
	outputDir := "testdata/trees"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for i, ds := range datasets {
		fmt.Printf("Generating %s (%s)...\n", ds.name, ds.desc)

		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(42 + i) // Reproducible per dataset
		cfg.WithMetrics = true
		root := ds.make(testutil.New(cfg))

		data, err := encode(ds.name, root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode %s: %v\n", ds.name, err)
			os.Exit(1)
		}

		outputPath := filepath.Join(outputDir, ds.name)
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}

		fmt.Printf("  Written %s (%d bytes, %d nodes)\n", outputPath, len(data), testutil.CountNodes(root))
	}

	fmt.Println("\nDone! Sample trees created in", outputDir)
}

func encode(name string, root *model.RawNode) ([]byte, error) {
	if filepath.Ext(name) == ".yaml" {
		return yaml.Marshal(root)
	}
	return []byte(testutil.ToJSON(root)), nil
}
