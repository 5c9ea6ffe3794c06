package tinybuild

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aappleby/tinybuild/internal/value"
)

// RegisterBuiltins installs the closed set of config-scope helpers named in
// §3.2 onto c, closing over app for the ones that need global state (color's
// on/off setting, config/repo/task/command construction, module loading).
func RegisterBuiltins(c *Config, app *App) {
	c.Set("abs_path", value.BuiltinValue(biAbsPath))
	c.Set("rel_path", value.BuiltinValue(biRelPath))
	c.Set("join_path", value.BuiltinValue(biJoinPath))
	c.Set("swap_ext", value.BuiltinValue(biSwapExt))
	c.Set("flatten", value.BuiltinValue(biFlatten))
	c.Set("glob", value.BuiltinValue(biGlob))
	c.Set("len", value.BuiltinValue(biLen))
	c.Set("color", value.BuiltinValue(biColor(app)))
	c.Set("basename", value.BuiltinValue(biBasename))
	c.Set("print", value.BuiltinValue(biPrint))
	c.Set("run_cmd", value.BuiltinValue(biRunCmd))

	c.Set("config", value.BuiltinValue(biConfig(app, c, KindPlain)))
	c.Set("extend", value.BuiltinValue(biExtend(c)))
	c.Set("task", value.BuiltinValue(biTask(app, c)))
	// Named command2, not command: a task's own "command" field (the shell
	// command string) lives at that key on every config, so the callable
	// factory needs a key of its own to avoid getting clobbered by it.
	c.Set("command2", value.BuiltinValue(biCommand(app, c)))
	c.Set("module", value.BuiltinValue(biModule(app, c)))
	c.Set("include", value.BuiltinValue(biInclude(app, c)))
	c.Set("repo", value.BuiltinValue(biConfig(app, c, KindRepo)))
}

func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.NullValue()
}

func biAbsPath(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, fmt.Errorf("abs_path: expected at least 1 argument")
	}
	strict := len(args) > 1 && args[1].Truthy()
	return AbsPath(args[0], strict)
}

func biRelPath(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, fmt.Errorf("rel_path: expected 2 arguments")
	}
	return value.StringValue(RelPath(args[0].AsString(), args[1].AsString())), nil
}

func biJoinPath(args []value.Value) (value.Value, error) {
	return JoinPath(args...), nil
}

func biSwapExt(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, fmt.Errorf("swap_ext: expected 2 arguments")
	}
	return value.StringValue(SwapExt(args[0].AsString(), args[1].AsString())), nil
}

func biFlatten(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("flatten: expected 1 argument")
	}
	return value.ListOf(value.Flatten(args[0])), nil
}

func biGlob(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, fmt.Errorf("glob: expected at least 1 pattern")
	}
	var out []value.Value
	for _, a := range args {
		for _, pattern := range value.Strings(a) {
			matches, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return value.Value{}, fmt.Errorf("glob: %w", err)
			}
			for _, m := range matches {
				out = append(out, value.StringValue(m))
			}
		}
	}
	return value.ListOf(out), nil
}

func biLen(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("len: expected 1 argument")
	}
	v := args[0]
	switch v.Kind {
	case value.List:
		return value.IntValue(int64(len(v.List()))), nil
	case value.String:
		return value.IntValue(int64(len(v.Str()))), nil
	default:
		return value.Value{}, fmt.Errorf("len: unsupported value of kind %s", v.Kind)
	}
}

// biColor implements the color(r, g, b) built-in (SUPPLEMENTED FEATURES),
// grounded on original_source/hancho.py's _color(red, green, blue): a raw
// 24-bit ANSI escape for the triple, the reset sequence with no args, or ""
// when color is disabled or stdout isn't a terminal.
func biColor(app *App) value.BuiltinFunc {
	return func(args []value.Value) (value.Value, error) {
		if app != nil && app.Out != nil && !app.Out.colorize {
			return value.StringValue(""), nil
		}
		if len(args) == 0 {
			return value.StringValue("\x1b[0m"), nil
		}
		if len(args) != 3 {
			return value.Value{}, fmt.Errorf("color: expected 0 or 3 arguments (r, g, b)")
		}
		r, g, b := args[0].Int(), args[1].Int(), args[2].Int()
		return value.StringValue(fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b)), nil
	}
}

func biBasename(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("basename: expected 1 argument")
	}
	return value.StringValue(filepath.Base(args[0].AsString())), nil
}

func biPrint(args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.AsString()
	}
	fmt.Println(strings.Join(parts, " "))
	return value.NullValue(), nil
}

// biRunCmd implements run_cmd: synchronous shell capture used by
// description files to compute a field from a command's stdout (e.g.
// `{run_cmd("git rev-parse HEAD")}`).
func biRunCmd(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("run_cmd: expected 1 argument")
	}
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	out, err := exec.Command(shell, "-c", args[0].AsString()).Output()
	if err != nil {
		return value.Value{}, fmt.Errorf("run_cmd: %w", err)
	}
	return value.StringValue(strings.TrimRight(string(out), "\n")), nil
}

func configParents(args []value.Value) []*Config {
	var parents []*Config
	for _, a := range args {
		if cfg := ConfigFromValue(a); cfg != nil {
			parents = append(parents, cfg)
		}
	}
	return parents
}

// biConfig backs both config() and repo(): repo() additionally re-anchors
// base_path/repo_path at the nearest ancestor directory that contained the
// loaded root file, independent of -C/--chdir (SUPPLEMENTED FEATURES).
func biConfig(app *App, base *Config, kind ConfigKind) value.BuiltinFunc {
	return func(args []value.Value) (value.Value, error) {
		parents := append([]*Config{base}, configParents(args)...)
		c := NewConfig(app, kind, parents...)
		if kind == KindRepo && app != nil && app.RootDir != "" {
			c.Set("base_path", value.StringValue(app.RootDir))
			c.Set("repo_path", value.StringValue(app.RootDir))
		}
		return c.AsValue(), nil
	}
}

func biExtend(self *Config) value.BuiltinFunc {
	return func(args []value.Value) (value.Value, error) {
		extra := make([]any, 0, len(args))
		for _, cfg := range configParents(args) {
			extra = append(extra, cfg)
		}
		child, err := self.Extend(extra, nil)
		if err != nil {
			return value.Value{}, err
		}
		return child.AsValue(), nil
	}
}

func biModule(app *App, base *Config) value.BuiltinFunc {
	return func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Value{}, fmt.Errorf("module: expected a file name")
		}
		return LoadModule(app, base, args[0].AsString(), false)
	}
}

func biInclude(app *App, base *Config) value.BuiltinFunc {
	return func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Value{}, fmt.Errorf("include: expected a file name")
		}
		return LoadModule(app, base, args[0].AsString(), true)
	}
}

func biTask(app *App, base *Config) value.BuiltinFunc {
	return func(args []value.Value) (value.Value, error) {
		overrides := map[string]value.Value{}
		if len(args) > 0 {
			overrides["source_files"] = args[0]
		}
		if len(args) > 1 {
			overrides["build_files"] = args[1]
		}
		child, err := base.Extend(nil, overrides)
		if err != nil {
			return value.Value{}, err
		}
		t, err := NewTask(app, child)
		if err != nil {
			return value.Value{}, err
		}
		return value.TaskHandleValue(t), nil
	}
}

func biCommand(app *App, base *Config) value.BuiltinFunc {
	return func(args []value.Value) (value.Value, error) {
		overrides := map[string]value.Value{}
		if len(args) > 0 {
			overrides["command"] = args[0]
		}
		cmdCfg, err := base.Extend(nil, overrides)
		if err != nil {
			return value.Value{}, err
		}
		cmdCfg.kind = KindCommand
		return cmdCfg.AsValue(), nil
	}
}
