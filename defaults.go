package tinybuild

import "github.com/aappleby/tinybuild/internal/value"

// DefaultRootConfig builds the global config a loaded description file sees
// as `hancho`: the built-in helpers of §3.2 plus the default task fields of
// §3.3, anchored at rootPath.
func DefaultRootConfig(app *App, rootPath string) *Config {
	c := NewConfig(app, KindPlain)
	RegisterBuiltins(c, app)

	c.Set("desc", value.StringValue(""))
	c.Set("command", value.NullValue())
	c.Set("command_path", value.StringValue("."))
	c.Set("command_files", value.ListOf(nil))
	c.Set("source_path", value.StringValue("."))
	c.Set("source_files", value.ListOf(nil))
	c.Set("build_tag", value.StringValue(""))
	c.Set("build_root", value.StringValue("build"))
	// build_path composes build_root and build_tag via join_path so an
	// empty build_tag collapses cleanly instead of leaving a trailing
	// separator (SUPPLEMENTED FEATURES: build_tag-qualified build dirs).
	c.Set("build_path", value.StringValue("{join_path(build_root, build_tag)}"))
	c.Set("build_dir", value.StringValue("{build_path}"))
	c.Set("build_files", value.ListOf(nil))
	c.Set("build_deps", value.ListOf(nil))
	c.Set("other_files", value.ListOf(nil))
	c.Set("root_path", value.StringValue(rootPath))
	c.Set("repo_path", value.StringValue(rootPath))
	c.Set("base_path", value.StringValue(rootPath))
	c.Set("job_count", value.IntValue(1))
	c.Set("depformat", value.StringValue("gcc"))
	// ext_build flags a task as built by an external process (e.g. a
	// prebuilt artifact checked into the tree): carried through task_init
	// like every other field, but nothing in this implementation branches
	// on it yet, matching the original's own "we can probably ditch some
	// of these" note about the action fields it carries unconditionally.
	c.Set("ext_build", value.BoolValue(false))
	c.Set("force", value.BoolValue(app.Flags.Force))
	c.Set("dry_run", value.BoolValue(app.Flags.DryRun))
	c.Set("quiet", value.BoolValue(app.Flags.Quiet))
	c.Set("verbose", value.BoolValue(app.Flags.Verbose))
	c.Set("trace", value.BoolValue(app.Flags.Trace))

	for k, v := range app.Flags.Extra {
		c.Set(k, v)
	}
	return c
}
