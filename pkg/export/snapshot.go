// Package export writes static snapshots (SVG or PNG) of a diagram frame.
package export

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/geom"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/scene"
)

// SnapshotOptions controls snapshot export behaviour.
type SnapshotOptions struct {
	Path   string      // Output path; format inferred from extension when Format empty
	Format string      // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title  string      // Optional caption drawn in the top-left corner
	Frame  scene.Frame // What to draw, typically Graph.Settled()
}

// SaveSnapshot renders a frame to a file.
func SaveSnapshot(opts SnapshotOptions) error {
	defer metrics.Timer(metrics.Export)()

	if len(opts.Frame.Nodes) == 0 {
		return fmt.Errorf("no nodes to export")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	pl := place(opts.Frame)
	debug.Log("export: %s %dx%d, %d nodes", opts.Path, pl.Width, pl.Height, len(opts.Frame.Nodes))

	switch format {
	case "svg":
		file, err := os.Create(opts.Path)
		if err != nil {
			return err
		}
		defer file.Close()
		return renderSVG(file, opts.Title, pl)
	default:
		return renderPNG(opts.Path, opts.Title, pl)
	}
}

// SaveAll writes the same frame to several paths concurrently.
func SaveAll(ctx context.Context, frame scene.Frame, title string, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range paths {
		p := strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := SaveSnapshot(SnapshotOptions{Path: p, Title: title, Frame: frame}); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// WriteSVG renders a frame as SVG to w.
func WriteSVG(w io.Writer, frame scene.Frame, title string) error {
	return renderSVG(w, title, place(frame))
}

// --- placement -------------------------------------------------------------

const (
	margin      = 24.0
	labelRoom   = 220.0 // space reserved left of the root and right of the deepest level
	captionRoom = 28.0
	labelOffset = 13.0
)

type placement struct {
	Frame  scene.Frame
	Offset geom.Point
	Width  int
	Height int
}

// place translates the frame so that every marker and label fits inside
// the canvas.
func place(f scene.Frame) placement {
	min, max := f.Bounds()
	off := geom.Pt(margin+labelRoom-min.X, margin+captionRoom-min.Y)
	return placement{
		Frame:  f,
		Offset: off,
		Width:  int(math.Ceil(max.X-min.X+2*(margin+labelRoom))) + 1,
		Height: int(math.Ceil(max.Y-min.Y+2*margin+captionRoom)) + 1,
	}
}

func (p placement) pt(q geom.Point) geom.Point { return q.Add(p.Offset) }

func (p placement) curve(c geom.Curve) geom.Curve {
	return geom.Curve{From: p.pt(c.From), C1: p.pt(c.C1), C2: p.pt(c.C2), To: p.pt(c.To)}
}

// --- styling ---------------------------------------------------------------

var (
	colorBackdrop  = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorCollapsed = color.RGBA{0xb0, 0xc4, 0xde, 0xff} // lightsteelblue
	colorExpanded  = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorStroke    = color.RGBA{0x46, 0x82, 0xb4, 0xff} // steelblue
	colorLink      = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
	colorLinkLeft  = color.RGBA{0x66, 0xbb, 0x6a, 0xff}
	colorLinkRight = color.RGBA{0xef, 0x53, 0x50, 0xff}
	colorText      = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle    = color.RGBA{0x66, 0x66, 0x66, 0xff}
)

func nodeFill(n scene.NodeSprite) color.RGBA {
	if n.Collapsed {
		return colorCollapsed
	}
	return colorExpanded
}

func linkColor(s model.Side) color.RGBA {
	switch s {
	case model.SideLeft:
		return colorLinkLeft
	case model.SideRight:
		return colorLinkRight
	default:
		return colorLink
	}
}

func linkClass(s model.Side) string {
	if s == model.SideNone {
		return "link"
	}
	return "link " + string(s)
}

// --- SVG -------------------------------------------------------------------

func renderSVG(w io.Writer, title string, pl placement) error {
	canvas := svg.New(w)
	canvas.Start(pl.Width, pl.Height)
	canvas.Rect(0, 0, pl.Width, pl.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	if title != "" {
		canvas.Text(int(margin), int(margin), title,
			fmt.Sprintf("fill:%s;font-size:14px;font-family:sans-serif;font-weight:bold", css(colorText)))
	}

	// Links go underneath the markers.
	for _, l := range pl.Frame.Links {
		canvas.Path(pl.curve(l.Curve).SVGPath(),
			fmt.Sprintf(`class="%s"`, linkClass(l.Side)),
			fmt.Sprintf("fill:none;stroke:%s;stroke-width:1.5", css(linkColor(l.Side))))
	}

	for _, n := range pl.Frame.Nodes {
		p := pl.pt(n.Pos)
		canvas.Group(`class="node"`, fmt.Sprintf(`transform="translate(%.2f,%.2f)"`, p.X, p.Y))
		if n.Label != "" {
			canvas.Title(n.Label)
		}
		canvas.Circle(0, 0, int(math.Max(1, math.Round(n.Radius))),
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.5", css(nodeFill(n)), css(colorStroke)))
		x, anchor := int(labelOffset), "start"
		if n.Anchor == scene.AnchorEnd {
			x, anchor = -int(labelOffset), "end"
		}
		canvas.Text(x, 4, n.Label,
			fmt.Sprintf("fill:%s;fill-opacity:%.3f;font-size:11px;font-family:sans-serif;text-anchor:%s",
				css(colorText), n.LabelOpacity, anchor))
		canvas.Gend()
	}

	canvas.End()
	return nil
}

// --- PNG -------------------------------------------------------------------

func renderPNG(path, title string, pl placement) error {
	dc := gg.NewContext(pl.Width, pl.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	if title != "" {
		dc.SetColor(colorText)
		dc.DrawStringAnchored(title, margin, margin, 0, 0.5)
	}

	dc.SetLineWidth(1.5)
	for _, l := range pl.Frame.Links {
		c := pl.curve(l.Curve)
		dc.SetColor(linkColor(l.Side))
		dc.MoveTo(c.From.X, c.From.Y)
		dc.CubicTo(c.C1.X, c.C1.Y, c.C2.X, c.C2.Y, c.To.X, c.To.Y)
		dc.Stroke()
	}

	for _, n := range pl.Frame.Nodes {
		drawNode(dc, pl.pt(n.Pos), n)
	}

	return dc.SavePNG(path)
}

func drawNode(dc *gg.Context, p geom.Point, n scene.NodeSprite) {
	dc.SetColor(nodeFill(n))
	dc.DrawCircle(p.X, p.Y, n.Radius)
	dc.FillPreserve()
	dc.SetColor(colorStroke)
	dc.Stroke()

	if n.Label == "" || n.LabelOpacity < 0.05 {
		return
	}
	dc.SetColor(colorSubtle)
	if n.Anchor == scene.AnchorEnd {
		dc.DrawStringAnchored(n.Label, p.X-labelOffset, p.Y, 1, 0.35)
	} else {
		dc.DrawStringAnchored(n.Label, p.X+labelOffset, p.Y, 0, 0.35)
	}
}

// --- helpers ---------------------------------------------------------------

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
