package tinybuild

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// outputKey is the context key a task's buffered writers are stashed under
// while its command runs, so concurrent tasks never interleave output mid-line.
type contextKey int

const (
	outputKey contextKey = iota
	verboseKey
)

// Output is the reporter (component H): it owns the real stdout/stderr and
// serializes writes from concurrently running tasks through per-task
// buffers, so two tasks running in parallel never interleave mid-line.
type Output struct {
	mu       sync.Mutex
	stdout   io.Writer
	stderr   io.Writer
	isTTY    bool
	colorize bool
}

// NewOutput builds an Output wrapping the process's real stdout/stderr,
// detecting TTY-ness via term.IsTerminal, double-checked with go-isatty.
func NewOutput() *Output {
	isTTY := term.IsTerminal(int(os.Stdout.Fd())) || isatty.IsTerminal(os.Stdout.Fd())
	_, noColor := os.LookupEnv("NO_COLOR")
	return &Output{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		isTTY:    isTTY,
		colorize: isTTY && !noColor,
	}
}

// bufferedOutput captures a single task's stdout/stderr so it can be
// flushed to the real Output atomically once the task completes.
type bufferedOutput struct {
	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (b *bufferedOutput) Stdout() io.Writer { return &lockedWriter{mu: &b.mu, w: &b.stdout} }
func (b *bufferedOutput) Stderr() io.Writer { return &lockedWriter{mu: &b.mu, w: &b.stderr} }

func (b *bufferedOutput) flushTo(o *Output) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.Copy(o.stdout, &b.stdout)
	_, _ = io.Copy(o.stderr, &b.stderr)
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// withTaskOutput returns a context carrying a fresh buffered writer pair
// for one task's execution.
func withTaskOutput(ctx context.Context, b *bufferedOutput) context.Context {
	return context.WithValue(ctx, outputKey, b)
}

// Stdout returns the stdout writer for the currently executing task, or the
// process stdout if none is set.
func Stdout(ctx context.Context) io.Writer {
	if b, ok := ctx.Value(outputKey).(*bufferedOutput); ok {
		return b.Stdout()
	}
	return os.Stdout
}

// Stderr returns the stderr writer for the currently executing task, or the
// process stderr if none is set.
func Stderr(ctx context.Context) io.Writer {
	if b, ok := ctx.Value(outputKey).(*bufferedOutput); ok {
		return b.Stderr()
	}
	return os.Stderr
}

// Printf writes to the current task's stdout. Command callbacks should use
// this instead of fmt.Printf so parallel task output stays non-interleaved.
func Printf(ctx context.Context, format string, a ...any) {
	fmt.Fprintf(Stdout(ctx), format, a...)
}

// WithVerbose returns a context flagged verbose; isVerbose reads the flag
// back. StatusLine does not consult it.
func WithVerbose(ctx context.Context, v bool) context.Context {
	return context.WithValue(ctx, verboseKey, v)
}

func isVerbose(ctx context.Context) bool {
	v, _ := ctx.Value(verboseKey).(bool)
	return v
}

// StatusLine prints "[i/N] desc" to the real stdout, colored green/red/
// dim/yellow for pass/fail/skip/cancel, gated on TTY detection before
// emitting any escapes.
func (o *Output) StatusLine(index, total int, desc, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.colorize {
		fmt.Fprintf(o.stdout, "[%d/%d] %s %s\n", index, total, desc, status)
		return
	}
	var c *color.Color
	switch status {
	case "pass":
		c = color.New(color.FgGreen)
	case "fail":
		c = color.New(color.FgRed, color.Bold)
	case "skip":
		c = color.New(color.FgHiBlack)
	case "cancel":
		c = color.New(color.FgYellow)
	default:
		c = color.New()
	}
	fmt.Fprintf(o.stdout, "[%d/%d] %s ", index, total, desc)
	c.Fprintln(o.stdout, status)
}

// Tracef prints a dim-colored macro expansion trace line when --trace is
// set (SUPPLEMENTED FEATURES: --trace macro-expansion tracing).
func (o *Output) Tracef(format string, a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.colorize {
		color.New(color.Faint).Fprintf(o.stderr, format, a...)
	} else {
		fmt.Fprintf(o.stderr, format, a...)
	}
}

func (o *Output) Errorf(format string, a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.colorize {
		color.New(color.FgRed).Fprintf(o.stderr, format, a...)
	} else {
		fmt.Fprintf(o.stderr, format, a...)
	}
}
