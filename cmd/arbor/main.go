package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/vanderheijden86/arbor/pkg/config"
	"github.com/vanderheijden86/arbor/pkg/export"
	"github.com/vanderheijden86/arbor/pkg/hierarchy"
	"github.com/vanderheijden86/arbor/pkg/hooks"
	"github.com/vanderheijden86/arbor/pkg/layout"
	"github.com/vanderheijden86/arbor/pkg/loader"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/scene"
	"github.com/vanderheijden86/arbor/pkg/ui"
	"github.com/vanderheijden86/arbor/pkg/version"
	"github.com/vanderheijden86/arbor/pkg/viewer"
	"github.com/vanderheijden86/arbor/pkg/watcher"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Read configuration from this file instead of ~/.config/arbor/config.yaml")
	exportFlag := flag.String("export", "", "Write a snapshot instead of starting the viewer (comma separated .svg, .png or .mmd paths)")
	expandAll := flag.Bool("expand-all", false, "Start with every subtree expanded")
	watch := flag.Bool("watch", false, "Reload the diagram when the input file changes")
	noHooks := flag.Bool("no-hooks", false, "Skip the export hooks in .arbor/hooks.yaml")
	outline := flag.Bool("outline", false, "Print the tree as a text outline and exit")
	timings := flag.Bool("timings", false, "Print timing metrics as JSON on exit")
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	// CPU profiling support
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: arbor [options] <tree.json|tree.yaml|url|->")
		fmt.Println("\nAn animated, collapsible decision tree viewer for the terminal.")
		flag.PrintDefaults()
		return 0
	}

	if *versionFlag {
		fmt.Printf("arbor %s\n", version.Version)
		return 0
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one input (file, URL or - for stdin)")
		fmt.Fprintln(os.Stderr, "Run 'arbor -help' for usage.")
		return 2
	}
	source := flag.Arg(0)

	if *timings {
		metrics.SetEnabled(true)
		defer func() {
			if err := writeTimings(os.Stderr); err != nil {
				log.Printf("warning: writing timings: %v", err)
			}
		}()
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		// Non-fatal: continue with defaults
		log.Printf("warning: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	load := func(ctx context.Context) (*model.RawNode, error) {
		return loader.Load(ctx, source, loader.Options{})
	}

	// Export loads the payload itself, after the pre-export hooks had a
	// chance to regenerate it.
	if *exportFlag != "" {
		req := exportRequest{
			Source:    source,
			Paths:     parseExportPaths(*exportFlag),
			ExpandAll: *expandAll,
			NoHooks:   *noHooks,
		}
		if err := runExport(ctx, load, cfg, req, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
			return 1
		}
		return 0
	}

	raw, err := load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	switch {
	case *outline || !interactive:
		tree, err := hierarchy.Build(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if err := writeOutline(os.Stdout, tree, cfg.Tooltip.Placeholder); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	opts := []ui.Option{ui.WithTitle(sourceTitle(source))}
	if *expandAll {
		opts = append(opts, ui.WithExpandAll())
	}
	if *watch {
		if !watchable(source) {
			log.Printf("warning: -watch only works with local files, ignoring it for %s", source)
		} else if w, err := startWatcher(source); err != nil {
			log.Printf("warning: live reload disabled: %v", err)
		} else {
			defer w.Stop()
			opts = append(opts, ui.WithWatcher(w, load))
		}
	}

	m, err := ui.NewModel(raw, cfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := runTUIProgram(m, source == loader.StdinSource); err != nil {
		fmt.Printf("Error running arbor: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func startWatcher(path string) (*watcher.Watcher, error) {
	w, err := watcher.NewWatcher(path, watcher.WithOnError(func(err error) {
		log.Printf("warning: watching %s: %v", path, err)
	}))
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}

type exportRequest struct {
	Source    string
	Paths     []string
	ExpandAll bool
	NoHooks   bool
	// HookDir holds .arbor/hooks.yaml; empty means the working directory.
	HookDir string
}

// runExport runs the pre-export hooks, loads the payload, writes the
// snapshots and runs the post-export hooks. Pre-export hooks may rewrite
// the payload; a failing one cancels the export.
func runExport(ctx context.Context, load ui.Loader, cfg config.Config, req exportRequest, stderr io.Writer) error {
	if len(req.Paths) == 0 {
		return errors.New("no export paths given")
	}
	dir := req.HookDir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	hookCtx := hooks.ExportContext{
		Source:      req.Source,
		ExportPaths: req.Paths,
		Timestamp:   time.Now(),
	}
	executor, err := hooks.RunHooks(dir, hookCtx, req.NoHooks)
	if err != nil {
		return fmt.Errorf("loading hooks: %w", err)
	}
	if executor != nil {
		defer func() {
			if summary := executor.Summary(); summary != "" {
				fmt.Fprintln(stderr, summary)
			}
		}()
		if err := executor.RunPreExport(); err != nil {
			return err
		}
	}

	raw, err := load(ctx)
	if err != nil {
		return err
	}
	if err := exportSnapshots(ctx, raw, cfg, sourceTitle(req.Source), req.Paths, req.ExpandAll); err != nil {
		return err
	}

	if executor != nil {
		hookCtx.NodeCount = countNodes(raw)
		executor.SetContext(hookCtx)
		return executor.RunPostExport()
	}
	return nil
}

// exportSnapshots renders the settled initial view (or the fully expanded
// tree) to every path. Mermaid paths get a flowchart of the same view.
func exportSnapshots(ctx context.Context, raw *model.RawNode, cfg config.Config, title string, paths []string, expandAll bool) error {
	if len(paths) == 0 {
		return errors.New("no export paths given")
	}
	g := scene.New()
	v, err := viewer.New(raw, g,
		viewer.WithLayout(layout.Engine{LevelSpacing: cfg.Layout.LevelSpacing, Height: cfg.Layout.Height}),
		viewer.WithDuration(0),
		viewer.WithPlaceholder(cfg.Tooltip.Placeholder),
		viewer.WithRootExpanded(cfg.UI.RootExpanded),
	)
	if err != nil {
		return err
	}
	if expandAll {
		v.ExpandAll()
	}

	var images []string
	for _, p := range paths {
		if !export.IsMermaidPath(p) {
			images = append(images, p)
			continue
		}
		if err := export.SaveMermaid(p, v.Tree(), cfg.Tooltip.Placeholder); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if len(images) == 0 {
		return nil
	}
	return export.SaveAll(ctx, g.Settled(), title, images)
}

func runTUIProgram(m ui.Model, stdinPayload bool) error {
	opts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithoutSignalHandler(),
	}
	if stdinPayload {
		// stdin carried the payload; read keys from the terminal instead.
		opts = append(opts, tea.WithInputTTY())
	}
	p := tea.NewProgram(m, opts...)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set ARBOR_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("ARBOR_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
