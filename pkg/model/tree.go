package model

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// RawNode is one node of the decoded classification tree payload, as
// produced by the model exporter:
//
//	{
//	  "class": "setosa",
//	  "rule": {"feature": "petal_length", "operator": "<=", "threshold": 2.45},
//	  "side": "left",
//	  "metrics": {"purity": 0.98, "n_samples": 50},
//	  "children": [ ... ]
//	}
type RawNode struct {
	Class    *string    `json:"class,omitempty" yaml:"class,omitempty"`
	Rule     *Rule      `json:"rule,omitempty" yaml:"rule,omitempty"`
	Side     Side       `json:"side,omitempty" yaml:"side,omitempty"`
	Metrics  *Metrics   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Children []*RawNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// Rule is the split condition carried by an internal node.
type Rule struct {
	Feature   string    `json:"feature" yaml:"feature"`
	Operator  string    `json:"operator" yaml:"operator"`
	Threshold Threshold `json:"threshold" yaml:"threshold"`
}

// String formats the rule as "{feature} {operator} {threshold}".
func (r Rule) String() string {
	return fmt.Sprintf("%s %s %s", r.Feature, r.Operator, r.Threshold)
}

// Metrics are the optional per-node statistics written by the exporter.
type Metrics struct {
	Purity  float64 `json:"purity" yaml:"purity"`
	Samples int     `json:"n_samples" yaml:"n_samples"`
}

// Side tags which branch of its parent a node hangs off.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// IsValid reports whether s is one of the known sides.
func (s Side) IsValid() bool {
	switch s {
	case SideNone, SideLeft, SideRight:
		return true
	}
	return false
}

// Threshold is a split threshold. The exporter writes a number for numeric
// features and the inverse-transformed category name for encoded ones, so
// both are accepted.
type Threshold struct {
	Value   float64
	Text    string
	Textual bool
}

// NumericThreshold returns a numeric threshold.
func NumericThreshold(v float64) Threshold {
	return Threshold{Value: v}
}

// TextThreshold returns a categorical threshold.
func TextThreshold(s string) Threshold {
	return Threshold{Text: s, Textual: true}
}

// String renders numbers in their shortest form (0.5, 3, 1e-07).
func (t Threshold) String() string {
	if t.Textual {
		return t.Text
	}
	return strconv.FormatFloat(t.Value, 'g', -1, 64)
}

// UnmarshalJSON accepts a JSON number or string.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("threshold: %w", err)
		}
		*t = TextThreshold(s)
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("threshold: expected number or string, got %s", data)
	}
	*t = NumericThreshold(v)
	return nil
}

// MarshalJSON writes the threshold back in the form it was read.
func (t Threshold) MarshalJSON() ([]byte, error) {
	if t.Textual {
		return json.Marshal(t.Text)
	}
	return json.Marshal(t.Value)
}

// UnmarshalYAML accepts a YAML scalar; quoted or non-numeric scalars are
// kept as text.
func (t *Threshold) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("threshold: expected scalar at line %d", value.Line)
	}
	if value.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) == 0 {
		if v, err := strconv.ParseFloat(value.Value, 64); err == nil {
			*t = NumericThreshold(v)
			return nil
		}
	}
	*t = TextThreshold(value.Value)
	return nil
}

// MarshalYAML quotes textual thresholds so they read back as text.
func (t Threshold) MarshalYAML() (any, error) {
	if t.Textual {
		return &yaml.Node{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: t.Text}, nil
	}
	return t.Value, nil
}

// IsLeaf reports whether the node has no children.
func (n *RawNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Validate checks the fields of a single node (not its descendants).
// The root may omit both class and rule.
func (n *RawNode) Validate(isRoot bool) error {
	if n == nil {
		return fmt.Errorf("node is null")
	}
	if !n.Side.IsValid() {
		return fmt.Errorf("invalid side %q (want left or right)", n.Side)
	}
	if n.Rule != nil && n.IsLeaf() {
		return fmt.Errorf("leaf carries a rule (%s)", n.Rule)
	}
	if !isRoot && n.Class == nil && n.Rule == nil {
		return fmt.Errorf("node has neither class nor rule")
	}
	return nil
}
