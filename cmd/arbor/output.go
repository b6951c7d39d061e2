package main

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/arbor/pkg/hierarchy"
	"github.com/vanderheijden86/arbor/pkg/loader"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// writeOutline prints every node of tree as an indented text outline,
// hidden subtrees included.
func writeOutline(w io.Writer, tree *hierarchy.Tree, placeholder string) error {
	var walk func(n *hierarchy.Node, prefix string, last, root bool) error
	walk = func(n *hierarchy.Node, prefix string, last, root bool) error {
		label, ok := n.Label()
		if !ok || label == "" {
			label = placeholder
		}
		if side := n.Side(); side != "" {
			label = fmt.Sprintf("%s [%s]", label, side)
		}

		branch, next := "", ""
		if !root {
			branch, next = "├── ", "│   "
			if last {
				branch, next = "└── ", "    "
			}
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", prefix, branch, label); err != nil {
			return err
		}

		kids := append(n.Children(), n.HiddenChildren()...)
		for i, c := range kids {
			if err := walk(c, prefix+next, i == len(kids)-1, false); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(tree.Root(), "", true, true)
}

type timingsOutput struct {
	Metrics []metrics.TimingStats `json:"metrics"`
}

// writeTimings dumps the collected timing metrics as JSON.
func writeTimings(w io.Writer) error {
	data, err := json.Marshal(timingsOutput{Metrics: metrics.AllTimingStats()})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, buf.String())
	return err
}

// parseExportPaths splits a comma separated -export value.
func parseExportPaths(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sourceTitle is the header caption for a source.
func sourceTitle(source string) string {
	switch {
	case source == loader.StdinSource:
		return "stdin"
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return source
	default:
		return filepath.Base(source)
	}
}

// watchable reports whether source is a local file.
func watchable(source string) bool {
	return source != loader.StdinSource &&
		!strings.HasPrefix(source, "http://") &&
		!strings.HasPrefix(source, "https://")
}

func countNodes(raw *model.RawNode) int {
	if raw == nil {
		return 0
	}
	n := 1
	for _, c := range raw.Children {
		n += countNodes(c)
	}
	return n
}
