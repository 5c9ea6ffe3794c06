package tinybuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aappleby/tinybuild/internal/value"
)

// defaultTaskFields lists the fields §3.3 says a task's config carries with
// defaults; Extend()/task() factories are expected to have already merged
// in a default config carrying these, but NewTask fills in anything still
// missing with a zero value so task_init never sees an absent key.
var defaultTaskFields = []string{
	"desc", "command_path", "command_files", "source_path", "source_files",
	"build_tag", "build_dir", "build_path", "build_files", "build_deps",
	"other_files", "root_path", "repo_path", "base_path", "job_count",
	"depformat", "ext_build", "force", "dry_run", "quiet",
}

// Task owns the two configs described in §3.3: Config holds the unexpanded
// inputs (possibly still containing futures), Action holds the expanded
// snapshot actually used to run.
type Task struct {
	app    *App
	Config *Config
	Action *Config

	Reason     string
	promise    *Future
	Stdout     string
	Stderr     string
	ReturnCode int
}

// NewTask constructs a task from cfg (already merged with its base config's
// defaults and the caller's overrides), enforcing MissingCommand at
// construction time per §7, then enqueues it as pending (§4.5).
func NewTask(app *App, cfg *Config) (*Task, error) {
	cmd, ok := cfg.GetRaw("command")
	if !ok || cmd.IsNull() {
		return nil, value.NewError(value.MissingCommand, "task constructed with command == null")
	}
	for _, f := range defaultTaskFields {
		if _, ok := cfg.GetRaw(f); !ok {
			cfg.Set(f, value.NullValue())
		}
	}
	t := &Task{app: app, Config: cfg, promise: NewFuture()}
	app.AddPending(t)
	return t, nil
}

// Await blocks until the task's promise resolves: to its abs_build_files
// list on success/skip, or to the Cancelled sentinel on failure/propagated
// cancellation (§4.6, §7).
func (t *Task) Await() (value.Value, error) {
	return t.promise.Await()
}

// Run executes the task to completion: deep-walk embedded futures,
// task_init, staleness check, command dispatch. Errors are caught here and
// turned into a Cancelled resolution, per §7's propagation policy — Run
// itself only returns a Go error for driver-level failures, never for an
// ordinary build failure.
func (t *Task) Run(ctx context.Context) error {
	resolved, cancelled, err := DeepAwaitConfig(t.app, t.Config)
	if err != nil {
		t.fail(err)
		return nil
	}
	if cancelled {
		t.app.recordResult("cancel")
		t.promise.Resolve(value.CancelledValue())
		return nil
	}

	action, err := taskInit(t.app, resolved, t.describe())
	if err != nil {
		t.fail(err)
		return nil
	}
	t.Action = action

	reason, err := needsRerun(t.app, action)
	if err != nil {
		t.fail(err)
		return nil
	}
	t.Reason = reason

	buildFiles, _, _ := action.Get("abs_build_files")
	index, total := t.app.tasksStarted()

	if reason == "" {
		t.app.recordResult("skip")
		if t.app.Out != nil && !t.app.Flags.Quiet {
			t.app.Out.StatusLine(index, total, t.describe(), "skip")
		}
		t.promise.Resolve(buildFiles)
		return nil
	}

	if t.app.Out != nil && !t.app.Flags.Quiet {
		t.app.Out.StatusLine(index, total, t.describe(), "run")
	}
	if err := runCommands(ctx, t.app, t); err != nil {
		t.fail(err)
		return nil
	}

	t.app.recordResult("pass")
	if t.app.Out != nil && !t.app.Flags.Quiet {
		t.app.Out.StatusLine(index, total, t.describe(), "pass")
	}
	t.promise.Resolve(buildFiles)
	return nil
}

func (t *Task) fail(err error) {
	t.app.recordResult("fail")
	if t.app.Out != nil {
		t.app.Out.Errorf("%s: %v\n", t.describe(), err)
	}
	t.promise.Resolve(value.CancelledValue())
}

func (t *Task) describe() string {
	if t.Action != nil {
		if v, ok, _ := t.Action.Get("desc"); ok && v.Kind == value.String && v.Str() != "" {
			return v.Str()
		}
	}
	if v, ok := t.Config.GetRaw("desc"); ok && v.Kind == value.String && v.Str() != "" {
		return v.Str()
	}
	return "task"
}

// DeepAwaitConfig implements §4.6: walk cfg's raw fields, replacing every
// Future/TaskHandle leaf with its resolved value, recursively (because the
// resolved value may itself embed futures). Returns cancelled=true without
// an error when a dependency resolved to the Cancelled sentinel.
func DeepAwaitConfig(app *App, cfg *Config) (*Config, bool, error) {
	v, cancelled, err := deepAwaitValue(app, cfg.AsValue())
	if err != nil || cancelled {
		return nil, cancelled, err
	}
	return ConfigFromValue(v), false, nil
}

func deepAwaitValue(app *App, v value.Value) (value.Value, bool, error) {
	switch v.Kind {
	case value.Future, value.TaskHandle:
		resolved, err := AwaitValue(app, v)
		if err != nil {
			return value.Value{}, false, err
		}
		if resolved.Kind == value.Cancelled {
			return resolved, true, nil
		}
		return deepAwaitValue(app, resolved)

	case value.List:
		out := make([]value.Value, len(v.List()))
		for i, e := range v.List() {
			r, cancelled, err := deepAwaitValue(app, e)
			if err != nil || cancelled {
				return r, cancelled, err
			}
			out[i] = r
		}
		return value.ListOf(out), false, nil

	case value.Cfg:
		cfg := ConfigFromValue(v)
		if cfg == nil {
			return v, false, nil
		}
		newCfg := NewConfig(app, cfg.kind)
		for _, k := range cfg.keys {
			raw, _ := cfg.GetRaw(k)
			r, cancelled, err := deepAwaitValue(app, raw)
			if err != nil || cancelled {
				return r, cancelled, err
			}
			newCfg.Set(k, r)
		}
		return newCfg.AsValue(), false, nil

	default:
		return v, false, nil
	}
}

// taskInit implements §4.5: expand path/file fields into flat sequences,
// compute their absolute forms, enforce containment and output uniqueness,
// and create parent directories for declared outputs.
func taskInit(app *App, cfg *Config, owner string) (*Config, error) {
	action := NewConfig(app, KindPlain)
	for _, k := range cfg.Keys() {
		v, _, err := cfg.Get(k)
		if err != nil {
			return nil, err
		}
		action.Set(k, v)
	}

	basePath := fieldStr(action, "base_path")
	rootPath := fieldStr(action, "root_path")
	if rootPath == "" {
		rootPath = basePath
	}

	absCommandPath, err := AbsPath(JoinPath(value.StringValue(basePath), mustGet(action, "command_path")), true)
	if err != nil {
		return nil, err
	}
	absSourcePath, err := AbsPath(JoinPath(value.StringValue(basePath), mustGet(action, "source_path")), true)
	if err != nil {
		return nil, err
	}
	absBuildPath, err := AbsPath(JoinPath(value.StringValue(basePath), mustGet(action, "build_path")), false)
	if err != nil {
		return nil, err
	}

	absBuildPathStr := absBuildPath.AsString()
	if !strings.HasPrefix(absBuildPathStr, rootPath) {
		return nil, value.NewError(value.PathEscape, "build path %s escapes root %s", absBuildPathStr, rootPath)
	}

	absCommandFiles, err := absJoin(absCommandPath.AsString(), action, "command_files", true)
	if err != nil {
		return nil, err
	}
	absSourceFiles, err := absJoin(absSourcePath.AsString(), action, "source_files", true)
	if err != nil {
		return nil, err
	}
	absBuildFiles, err := absJoin(absBuildPathStr, action, "build_files", false)
	if err != nil {
		return nil, err
	}
	absBuildDeps, err := absJoin(absBuildPathStr, action, "build_deps", false)
	if err != nil {
		return nil, err
	}
	absOtherFiles, err := absJoin(absBuildPathStr, action, "other_files", false)
	if err != nil {
		return nil, err
	}

	for _, f := range value.Strings(absBuildFiles) {
		if err := app.RegisterBuildFile(f, owner); err != nil {
			return nil, err
		}
	}

	dryRun := false
	if v, ok, _ := action.Get("dry_run"); ok {
		dryRun = v.Truthy()
	}
	if !dryRun {
		for _, f := range value.Strings(absBuildFiles) {
			if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
				return nil, fmt.Errorf("tinybuild: creating output directory for %s: %w", f, err)
			}
		}
	}

	action.Set("abs_command_path", absCommandPath)
	action.Set("abs_source_path", absSourcePath)
	action.Set("abs_build_path", absBuildPath)
	action.Set("abs_command_files", absCommandFiles)
	action.Set("abs_source_files", absSourceFiles)
	action.Set("abs_build_files", absBuildFiles)
	action.Set("abs_build_deps", absBuildDeps)
	action.Set("abs_other_files", absOtherFiles)
	action.Set("root_path", value.StringValue(rootPath))
	return action, nil
}

func fieldStr(c *Config, name string) string {
	v, _, _ := c.Get(name)
	return v.AsString()
}

func mustGet(c *Config, name string) value.Value {
	v, _, _ := c.Get(name)
	return v
}

func absJoin(base string, c *Config, field string, strict bool) (value.Value, error) {
	return AbsPath(JoinPath(value.StringValue(base), mustGet(c, field)), strict)
}
