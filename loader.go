package tinybuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/aappleby/tinybuild/internal/value"
)

// LoadModule implements the module loader contract of §4.4: chdir into
// base_path, execute fileName in a fresh Starlark namespace exposing the
// module's config under the name "hancho", then copy every public
// binding back as a field on the returned config.
//
// Starlark (go.starlark.net) is the concrete host scripting environment
// (§2 component I): deterministic, embeddable, and already the language
// Bazel/Buck build files use, which is the same shape of problem a
// description file solves here.
func LoadModule(app *App, caller *Config, fileName string, isInclude bool) (value.Value, error) {
	basePathVal, _, _ := caller.Get("base_path")
	basePath := basePathVal.AsString()
	if basePath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return value.Value{}, fmt.Errorf("tinybuild: %w", err)
		}
		basePath = wd
	}

	prevWD, err := os.Getwd()
	if err != nil {
		return value.Value{}, fmt.Errorf("tinybuild: %w", err)
	}
	if err := os.Chdir(basePath); err != nil {
		return value.Value{}, fmt.Errorf("tinybuild: chdir %q: %w", basePath, err)
	}
	app.PushDir(basePath)
	defer func() {
		app.PopDir()
		_ = os.Chdir(prevWD)
	}()

	absFile := filepath.Join(basePath, fileName)
	info, err := os.Stat(absFile)
	if err != nil {
		return value.Value{}, value.NewError(value.PathMissing, "description file %s does not exist", absFile)
	}

	var modConfig *Config
	if isInclude {
		// include preserves the caller's base_path/base_name so transitively
		// declared tasks still resolve relative to the caller (§4.4).
		modConfig = caller
	} else {
		modConfig = NewConfig(app, KindModule, caller)
		modConfig.Set("base_path", value.StringValue(basePath))
		modConfig.Set("base_name", value.StringValue(fileName))
	}

	thread := &starlark.Thread{Name: fileName}
	predeclared := starlark.StringDict{
		"hancho": &configStarlark{cfg: modConfig},
	}
	globals, err := starlark.ExecFile(thread, absFile, nil, predeclared)
	if err != nil {
		return value.Value{}, fmt.Errorf("tinybuild: loading %s: %w", fileName, err)
	}

	for name, sv := range globals {
		if name == "hancho" || len(name) == 0 || name[0] == '_' {
			continue
		}
		v, err := fromStarlark(sv)
		if err != nil {
			return value.Value{}, fmt.Errorf("tinybuild: converting %s.%s: %w", fileName, name, err)
		}
		modConfig.Set(name, v)
	}

	app.RecordLoadedModule(LoadedModule{Path: absFile, ModTime: info.ModTime()})
	return modConfig.AsValue(), nil
}

// LoadRoot is the top-level entry point the CLI calls: chdir into
// flags.Chdir, load flags.RootName as the root description file, and
// return the resulting config. Unlike LoadModule (called from within an
// already-loaded description file via module()/include()), there is no
// caller config yet, so the default config itself is built here, anchored
// at the root file's directory, and RootDir is recorded for repo() to
// anchor against regardless of any later chdir.
func LoadRoot(app *App) (*Config, error) {
	chdirTo := app.Flags.Chdir
	if chdirTo == "" {
		chdirTo = "."
	}
	absChdir, err := filepath.Abs(chdirTo)
	if err != nil {
		return nil, fmt.Errorf("tinybuild: %w", err)
	}
	if err := os.Chdir(absChdir); err != nil {
		return nil, fmt.Errorf("tinybuild: chdir %q: %w", absChdir, err)
	}

	rootFile := app.Flags.RootName
	absRoot := filepath.Join(absChdir, rootFile)
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, value.NewError(value.PathMissing, "root description file %s does not exist", absRoot)
	}
	app.RootDir = filepath.Dir(absRoot)

	root := DefaultRootConfig(app, app.RootDir)

	thread := &starlark.Thread{Name: rootFile}
	predeclared := starlark.StringDict{"hancho": &configStarlark{cfg: root}}
	globals, err := starlark.ExecFile(thread, absRoot, nil, predeclared)
	if err != nil {
		return nil, fmt.Errorf("tinybuild: loading %s: %w", rootFile, err)
	}
	for name, sv := range globals {
		if name == "hancho" || len(name) == 0 || name[0] == '_' {
			continue
		}
		v, err := fromStarlark(sv)
		if err != nil {
			return nil, fmt.Errorf("tinybuild: converting %s.%s: %w", rootFile, name, err)
		}
		root.Set(name, v)
	}
	app.RecordLoadedModule(LoadedModule{Path: absRoot, ModTime: info.ModTime()})
	return root, nil
}

// configStarlark bridges a *Config into Starlark's value model: field reads
// go through starlark.HasAttrs.Attr, which forwards to Config.Get (and so
// are template-expanded the same way a macro expression's member access is).
// task is set when the wrapper stands for a task handle, so that
// fromStarlark can turn it back into a TaskHandle rather than a plain config.
type configStarlark struct {
	cfg  *Config
	task *Task
}

func (c *configStarlark) String() string        { return fmt.Sprintf("<config %p>", c.cfg) }
func (c *configStarlark) Type() string          { return "hancho_config" }
func (c *configStarlark) Freeze()               {}
func (c *configStarlark) Truth() starlark.Bool  { return starlark.True }
func (c *configStarlark) Hash() (uint32, error) { return 0, fmt.Errorf("hancho_config is unhashable") }

// Name and CallInternal implement starlark.Callable so a Command config
// (§4.2 "Command additionally is callable") can be invoked directly as
// mycommand(source_files=..., build_files=...) from a description file.
// Any config of a different kind refuses the call the same way
// Config.Call does at the Go level.
func (c *configStarlark) Name() string { return c.String() }

func (c *configStarlark) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if c.cfg.Kind() != KindCommand {
		return nil, fmt.Errorf("tinybuild: %s is not callable (only command2() configs are)", c.Type())
	}

	var sourceFiles, buildFiles value.Value = value.NullValue(), value.NullValue()
	extra := make(map[string]value.Value, len(kwargs))
	for _, kv := range kwargs {
		name, _ := starlark.AsString(kv[0])
		v, err := fromStarlark(kv[1])
		if err != nil {
			return nil, err
		}
		switch name {
		case "source_files":
			sourceFiles = v
		case "build_files":
			buildFiles = v
		default:
			extra[name] = v
		}
	}
	if len(args) > 0 {
		v, err := fromStarlark(args[0])
		if err != nil {
			return nil, err
		}
		sourceFiles = v
	}
	if len(args) > 1 {
		v, err := fromStarlark(args[1])
		if err != nil {
			return nil, err
		}
		buildFiles = v
	}

	t, err := c.cfg.Call(sourceFiles, buildFiles, extra)
	if err != nil {
		return nil, err
	}
	return toStarlark(value.TaskHandleValue(t))
}

var (
	_ starlark.Value    = (*configStarlark)(nil)
	_ starlark.Callable = (*configStarlark)(nil)
)

func (c *configStarlark) Attr(name string) (starlark.Value, error) {
	v, ok, err := c.cfg.Get(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if v.Kind == value.Builtin {
		fn := v.BuiltinFn()
		return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			vargs := make([]value.Value, len(args))
			for i, a := range args {
				vv, err := fromStarlark(a)
				if err != nil {
					return nil, err
				}
				vargs[i] = vv
			}
			result, err := fn(vargs)
			if err != nil {
				return nil, err
			}
			return toStarlark(result)
		}), nil
	}
	return toStarlark(v)
}

func (c *configStarlark) AttrNames() []string { return c.cfg.Keys() }

// toStarlark converts a Value to its Starlark counterpart, per the type
// bridging table in SPEC_FULL.md §4.4a.
func toStarlark(v value.Value) (starlark.Value, error) {
	switch v.Kind {
	case value.Null:
		return starlark.None, nil
	case value.Bool:
		return starlark.Bool(v.Bool()), nil
	case value.Int:
		return starlark.MakeInt64(v.Int()), nil
	case value.Float:
		return starlark.Float(v.Float()), nil
	case value.String:
		return starlark.String(v.Str()), nil
	case value.List:
		items := make([]starlark.Value, len(v.List()))
		for i, e := range v.List() {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case value.Cfg:
		cfg := ConfigFromValue(v)
		if cfg == nil {
			return starlark.None, nil
		}
		return &configStarlark{cfg: cfg}, nil
	case value.TaskHandle:
		t, _ := v.Task().(*Task)
		if t == nil {
			return starlark.None, nil
		}
		cfg := t.Action
		if cfg == nil {
			// The task hasn't run yet (no staleness/init pass done): expose its
			// still-unexpanded Config so field reads keep working, per the same
			// lazy-expansion contract Config.Get gives any other config.
			cfg = t.Config
		}
		return &configStarlark{cfg: cfg, task: t}, nil
	case value.Builtin:
		fn := v.BuiltinFn()
		return starlark.NewBuiltin("builtin", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			vargs := make([]value.Value, len(args))
			for i, a := range args {
				vv, err := fromStarlark(a)
				if err != nil {
					return nil, err
				}
				vargs[i] = vv
			}
			result, err := fn(vargs)
			if err != nil {
				return nil, err
			}
			return toStarlark(result)
		}), nil
	default:
		return starlark.None, fmt.Errorf("tinybuild: cannot convert value of kind %s to starlark", v.Kind)
	}
}

// fromStarlark converts a Starlark value produced by a description file
// back into a Value, per the same bridging table.
func fromStarlark(sv starlark.Value) (value.Value, error) {
	switch x := sv.(type) {
	case starlark.NoneType:
		return value.NullValue(), nil
	case starlark.Bool:
		return value.BoolValue(bool(x)), nil
	case starlark.Int:
		i, ok := x.Int64()
		if !ok {
			return value.Value{}, fmt.Errorf("tinybuild: starlark int %s overflows int64", x.String())
		}
		return value.IntValue(i), nil
	case starlark.Float:
		return value.FloatValue(float64(x)), nil
	case starlark.String:
		return value.StringValue(string(x)), nil
	case *starlark.List:
		out := make([]value.Value, 0, x.Len())
		iter := x.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			v, err := fromStarlark(elem)
			if err != nil {
				return value.Value{}, err
			}
			out = append(out, v)
		}
		return value.ListOf(out), nil
	case starlark.Tuple:
		out := make([]value.Value, len(x))
		for i, e := range x {
			v, err := fromStarlark(e)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = v
		}
		return value.ListOf(out), nil
	case *starlark.Dict:
		cfg := NewConfig(nil, KindPlain)
		for _, item := range x.Items() {
			k, ok := starlark.AsString(item[0])
			if !ok {
				return value.Value{}, fmt.Errorf("tinybuild: dict keys must be strings to become config fields")
			}
			v, err := fromStarlark(item[1])
			if err != nil {
				return value.Value{}, err
			}
			cfg.Set(k, v)
		}
		return cfg.AsValue(), nil
	case *configStarlark:
		if x.task != nil {
			return value.TaskHandleValue(x.task), nil
		}
		return x.cfg.AsValue(), nil
	case *starlarkstruct.Struct:
		cfg := NewConfig(nil, KindPlain)
		for _, name := range x.AttrNames() {
			attr, err := x.Attr(name)
			if err != nil {
				return value.Value{}, err
			}
			v, err := fromStarlark(attr)
			if err != nil {
				return value.Value{}, err
			}
			cfg.Set(name, v)
		}
		return cfg.AsValue(), nil
	case *starlark.Function, *starlark.Builtin:
		fn := sv
		return value.CallbackValue(func(ctx context.Context, task any) (value.Value, error) {
			t, _ := task.(*Task)
			thread := &starlark.Thread{Name: "callback"}
			var targ starlark.Value = starlark.None
			if t != nil {
				targ = &configStarlark{cfg: t.Action}
			}
			result, err := starlark.Call(thread, fn, starlark.Tuple{targ}, nil)
			if err != nil {
				return value.Value{}, err
			}
			return fromStarlark(result)
		}), nil
	default:
		return value.Value{}, fmt.Errorf("tinybuild: cannot convert starlark value of type %s", sv.Type())
	}
}
