package export

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/scene"
)

// testFrame is the expanded scenario root with two children.
func testFrame() scene.Frame {
	root := geom.Pt(0, 300)
	a, x := geom.Pt(180, 150), geom.Pt(180, 450)
	return scene.Frame{
		Nodes: []scene.NodeSprite{
			{NodeSpec: scene.NodeSpec{Key: 1, Label: "root <= 0.5", Anchor: scene.AnchorEnd}, Pos: root, Radius: 4, LabelOpacity: 1},
			{NodeSpec: scene.NodeSpec{Key: 2, Label: "a <= 1", Anchor: scene.AnchorEnd, Collapsed: true}, Pos: a, Radius: 4, LabelOpacity: 1},
			{NodeSpec: scene.NodeSpec{Key: 3, Label: "X & <Y>"}, Pos: x, Radius: 4, LabelOpacity: 1},
		},
		Links: []scene.LinkSprite{
			{LinkSpec: scene.LinkSpec{Key: 2, Side: model.SideLeft}, Curve: geom.Diagonal(a, root)},
			{LinkSpec: scene.LinkSpec{Key: 3, Side: model.SideRight}, Curve: geom.Diagonal(x, root)},
		},
	}
}

// svgCounts parses an SVG document and counts elements by local name.
func svgCounts(t *testing.T, r io.Reader) (map[string]int, []string) {
	t.Helper()
	counts := make(map[string]int)
	var texts []string
	dec := xml.NewDecoder(r)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("invalid SVG: %v", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			counts[el.Name.Local]++
			inText = el.Name.Local == "text"
		case xml.EndElement:
			inText = false
		case xml.CharData:
			if inText {
				texts = append(texts, string(el))
			}
		}
	}
	return counts, texts
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, testFrame(), "iris"); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	counts, texts := svgCounts(t, bytes.NewReader(buf.Bytes()))
	if counts["circle"] != 3 || counts["path"] != 2 {
		t.Errorf("circles=%d paths=%d", counts["circle"], counts["path"])
	}
	want := []string{"iris", "root <= 0.5", "a <= 1", "X & <Y>"}
	for _, w := range want {
		found := false
		for _, got := range texts {
			if got == w {
				found = true
			}
		}
		if !found {
			t.Errorf("text %q missing from %q", w, texts)
		}
	}
	if !strings.Contains(buf.String(), `class="link left"`) {
		t.Error("links should carry their side as a class")
	}
}

func TestSaveSnapshotPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tree.png")
	if err := SaveSnapshot(SnapshotOptions{Path: path, Title: "iris", Frame: testFrame()}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("not a PNG: %v", err)
	}
	pl := place(testFrame())
	if b := img.Bounds(); b.Dx() != pl.Width || b.Dy() != pl.Height {
		t.Errorf("image is %dx%d, want %dx%d", b.Dx(), b.Dy(), pl.Width, pl.Height)
	}
}

func TestSaveSnapshotFormats(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		opts    SnapshotOptions
		written string
		wantErr string
	}{
		{"svg by extension", SnapshotOptions{Path: filepath.Join(dir, "a.svg")}, "a.svg", ""},
		{"explicit format", SnapshotOptions{Path: filepath.Join(dir, "b.out"), Format: ".SVG"}, "b.out", ""},
		{"no extension", SnapshotOptions{Path: filepath.Join(dir, "c")}, "c.svg", ""},
		{"unsupported", SnapshotOptions{Path: filepath.Join(dir, "d.gif"), Format: "gif"}, "", "unsupported format"},
		{"no path", SnapshotOptions{Format: "svg"}, "", "path is required"},
		{"empty frame", SnapshotOptions{Path: filepath.Join(dir, "e.svg")}, "", "no nodes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name != "empty frame" {
				tt.opts.Frame = testFrame()
			}
			err := SaveSnapshot(tt.opts)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SaveSnapshot: %v", err)
			}
			f, err := os.Open(filepath.Join(dir, tt.written))
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			svgCounts(t, f)
		})
	}
}

func TestSaveAll(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "x.svg"), " ", filepath.Join(dir, "x.png")}
	if err := SaveAll(context.Background(), testFrame(), "", paths); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	for _, name := range []string{"x.svg", "x.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SaveAll(ctx, testFrame(), "", []string{filepath.Join(dir, "y.svg")}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled SaveAll = %v", err)
	}
}

func TestPlaceFitsLabels(t *testing.T) {
	pl := place(testFrame())
	for _, n := range pl.Frame.Nodes {
		p := pl.pt(n.Pos)
		if p.X-labelRoom < 0 || p.X+labelRoom > float64(pl.Width) {
			t.Errorf("%q at x=%v leaves no room for its label in width %d", n.Label, p.X, pl.Width)
		}
		if p.Y < 0 || p.Y > float64(pl.Height) {
			t.Errorf("%q at y=%v outside height %d", n.Label, p.Y, pl.Height)
		}
	}
}
