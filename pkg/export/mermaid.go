package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/vanderheijden86/arbor/pkg/hierarchy"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// mermaidLabelMax bounds node labels; longer ones are cut with "...".
const mermaidLabelMax = 40

// IsMermaidPath reports whether path asks for a Mermaid flowchart.
func IsMermaidPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mmd", ".mermaid":
		return true
	}
	return false
}

// WriteMermaid writes the visible part of tree as a left-to-right Mermaid
// flowchart. Collapsed nodes get the "collapsed" class and edges carry
// their side tag.
func WriteMermaid(w io.Writer, tree *hierarchy.Tree, placeholder string) error {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	sb.WriteString("    classDef collapsed fill:#B0C4DE,stroke:#4682B4,color:#000\n")
	sb.WriteString("    classDef expanded fill:#FFFFFF,stroke:#4682B4,color:#000\n")
	sb.WriteString("\n")

	for _, n := range tree.Visible() {
		label, ok := n.Label()
		if !ok || label == "" {
			label = placeholder
		}
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", mermaidID(n), sanitizeMermaidText(label))
		if n.HasHidden() {
			fmt.Fprintf(&sb, "    class %s collapsed\n", mermaidID(n))
		} else {
			fmt.Fprintf(&sb, "    class %s expanded\n", mermaidID(n))
		}
	}

	links := tree.Links()
	if len(links) > 0 {
		sb.WriteString("\n")
	}
	for _, l := range links {
		switch side := l.Child.Side(); side {
		case model.SideNone:
			fmt.Fprintf(&sb, "    %s --> %s\n", mermaidID(l.Parent), mermaidID(l.Child))
		default:
			fmt.Fprintf(&sb, "    %s -->|%s| %s\n", mermaidID(l.Parent), side, mermaidID(l.Child))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// SaveMermaid writes the flowchart to path, creating parent directories.
func SaveMermaid(path string, tree *hierarchy.Tree, placeholder string) error {
	defer metrics.Timer(metrics.Export)()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteMermaid(f, tree, placeholder); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Node identities are unique per tree, so they make collision-free ids.
func mermaidID(n *hierarchy.Node) string {
	return fmt.Sprintf("n%d", n.ID())
}

// sanitizeMermaidText makes text safe inside a quoted Mermaid label.
func sanitizeMermaidText(text string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "&lt;",
		">", "&gt;",
		"|", "/",
		"`", "'",
		"\n", " ",
		"\r", "",
	)
	result := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, replacer.Replace(text))
	result = strings.TrimSpace(result)

	if runes := []rune(result); len(runes) > mermaidLabelMax {
		result = string(runes[:mermaidLabelMax-3]) + "..."
	}
	return result
}
