package tinybuild

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/aappleby/tinybuild/internal/value"
)

var (
	colorEnvOnce sync.Once
	colorEnvVars []string
)

// colorForceEnvVars are set on spawned commands' environment so tools that
// detect color support via env vars keep coloring their output even though
// their stdout is a pipe, not a TTY, from their point of view (the output
// is buffered for parallel-task interleaving, §AMBIENT STACK). Mirrors the
// teacher's exec.go colorForceEnvVars list.
var colorForceEnvVars = []string{
	"FORCE_COLOR=1",
	"CLICOLOR_FORCE=1",
	"COLORTERM=truecolor",
}

func initColorEnv() {
	_, noColor := os.LookupEnv("NO_COLOR")
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if noColor || !isTTY {
		colorEnvVars = nil
		return
	}
	colorEnvVars = colorForceEnvVars
}

// runCommands implements §4.8: acquire the task's job budget, then run each
// entry of the expanded command list in order. The status line is printed
// by Task.Run before this is called.
func runCommands(ctx context.Context, app *App, t *Task) error {
	colorEnvOnce.Do(initColorEnv)

	jobCount := int64(1)
	if v, ok, _ := t.Action.Get("job_count"); ok && v.Kind == value.Int && v.Int() > 0 {
		jobCount = v.Int()
	}
	if err := app.AcquireJobs(ctx, jobCount); err != nil {
		return err
	}
	defer app.ReleaseJobs(jobCount)

	dryRun := false
	if v, ok, _ := t.Action.Get("dry_run"); ok {
		dryRun = v.Truthy()
	}
	if dryRun {
		return nil
	}

	cmdVal, _, err := t.Action.Get("command")
	if err != nil {
		return err
	}
	cwd := fieldStr(t.Action, "abs_command_path")

	buf := &bufferedOutput{}
	taskCtx := withTaskOutput(ctx, buf)
	defer buf.flushTo(app.Out)

	for _, entry := range value.Flatten(cmdVal) {
		switch entry.Kind {
		case value.Callback:
			result, err := entry.Cb()(taskCtx, t)
			if err != nil {
				return err
			}
			if result.Kind == value.Future || result.Kind == value.TaskHandle {
				if _, err := AwaitValue(app, result); err != nil {
					return err
				}
			}
		case value.String:
			if err := runShell(taskCtx, t, cwd, entry.Str()); err != nil {
				return err
			}
		default:
			return value.NewError(value.InvalidCommand, "command entry of kind %s is neither callback nor string", entry.Kind)
		}
	}
	return nil
}

func runShell(ctx context.Context, t *Task, cwd, command string) error {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), colorEnvVars...)

	var capturedOut, capturedErr bytes.Buffer
	cmd.Stdout = io.MultiWriter(Stdout(ctx), &capturedOut)
	cmd.Stderr = io.MultiWriter(Stderr(ctx), &capturedErr)

	runErr := cmd.Run()
	t.Stdout = capturedOut.String()
	t.Stderr = capturedErr.String()

	if runErr != nil {
		code := -1
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		t.ReturnCode = code
		return value.NewCommandFailed(code, "command %q failed in %s: %s", command, cwd, strings.TrimSpace(capturedErr.String()))
	}
	return nil
}
