package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vanderheijden86/arbor/pkg/debug"
)

// summaryStderrMax caps how much of a failed hook's stderr the summary
// repeats.
const summaryStderrMax = 200

// HookResult records one hook run.
type HookResult struct {
	Hook     Hook
	Phase    HookPhase
	Success  bool
	Stdout   string
	Stderr   string
	Error    error
	Duration time.Duration
}

// Executor runs configured hooks with an export context.
type Executor struct {
	config  *Config
	context ExportContext
	results []HookResult
}

// NewExecutor creates an executor for config.
func NewExecutor(config *Config, ctx ExportContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, context: ctx}
}

// SetContext replaces the export context for later runs, e.g. once the
// payload is loaded and the node count is known.
func (e *Executor) SetContext(ctx ExportContext) {
	e.context = ctx
}

// RunPreExport runs pre-export hooks in order. The first failing hook
// with on_error=fail stops the run and cancels the export.
func (e *Executor) RunPreExport() error {
	for _, h := range e.config.Hooks.PreExport {
		res := e.run(h, PreExport)
		if !res.Success && h.OnError != "continue" {
			return fmt.Errorf("pre-export hook %q failed: %w", h.Name, res.Error)
		}
	}
	return nil
}

// RunPostExport runs every post-export hook, even after failures, and
// reports the first failure of a hook with on_error=fail.
func (e *Executor) RunPostExport() error {
	var firstErr error
	for _, h := range e.config.Hooks.PostExport {
		res := e.run(h, PostExport)
		if !res.Success && h.OnError == "fail" && firstErr == nil {
			firstErr = fmt.Errorf("post-export hook %q failed: %w", h.Name, res.Error)
		}
	}
	return firstErr
}

// Results returns every hook run so far.
func (e *Executor) Results() []HookResult {
	return append([]HookResult(nil), e.results...)
}

// Summary describes the runs for the terminal, one line per failure.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok, failed int
	var lines []string
	for _, r := range e.results {
		if r.Success {
			ok++
			continue
		}
		failed++
		lines = append(lines, fmt.Sprintf("  %s (%s): %v", r.Hook.Name, r.Phase, r.Error))
		if stderr := strings.TrimSpace(r.Stderr); stderr != "" {
			lines = append(lines, "    stderr: "+truncate(stderr, summaryStderrMax))
		}
	}
	head := fmt.Sprintf("Hooks: %d succeeded, %d failed", ok, failed)
	if len(lines) == 0 {
		return head
	}
	return head + "\n" + strings.Join(lines, "\n")
}

func (e *Executor) run(h Hook, phase HookPhase) HookResult {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := shellCommand(ctx, h.Command)
	cmd.Env = append(os.Environ(), e.context.ToEnv()...)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	// A killed shell can leave children holding the output pipes.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()
	res := HookResult{
		Hook:     h,
		Phase:    phase,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Error = fmt.Errorf("timed out after %v", timeout)
	case err != nil:
		res.Error = err
	default:
		res.Success = true
	}
	debug.Log("hooks: %s %q success=%v in %v", phase, h.Name, res.Success, res.Duration)
	e.results = append(e.results, res)
	return res
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// RunHooks loads .arbor/hooks.yaml from projectDir and returns an
// executor, or nil when hooks are disabled or none are configured.
func RunHooks(projectDir string, ctx ExportContext, noHooks bool) (*Executor, error) {
	if noHooks {
		return nil, nil
	}
	loader := NewLoader(WithProjectDir(projectDir))
	if err := loader.Load(); err != nil {
		return nil, err
	}
	for _, w := range loader.Warnings() {
		log.Printf("warning: hooks: %s", w)
	}
	if !loader.HasHooks() {
		return nil, nil
	}
	return NewExecutor(loader.Config(), ctx), nil
}

// truncate shortens s to at most max bytes, marking the cut with "...".
// The cut never splits a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	suffix := "..."
	if max <= len(suffix) {
		suffix = ""
	}
	cut := max - len(suffix)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}
