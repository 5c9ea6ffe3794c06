package tinybuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aappleby/tinybuild/internal/value"
)

func TestLoadRootExposesBuiltinsAndFields(t *testing.T) {
	dir := t.TempDir()
	build := filepath.Join(dir, "build.hancho")
	os.WriteFile(build, []byte(`
greeting = "hello " + hancho.basename("/a/b/widget")
jp = hancho.join_path("x", "y")
`), 0o644)

	flags := DefaultFlags()
	flags.RootName = "build.hancho"
	flags.Chdir = dir
	app := NewApp(flags)

	root, err := LoadRoot(app)
	if err != nil {
		t.Fatalf("LoadRoot: %v", err)
	}
	greeting, ok, err := root.Get("greeting")
	if err != nil || !ok {
		t.Fatalf("greeting: %v, %v, %v", greeting, ok, err)
	}
	if greeting.Str() != "hello widget" {
		t.Errorf("greeting = %q, want %q", greeting.Str(), "hello widget")
	}
	if app.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", app.RootDir, dir)
	}
}

func TestLoadRootRepoAnchorsIndependentlyOfChdir(t *testing.T) {
	dir := t.TempDir()
	build := filepath.Join(dir, "build.hancho")
	os.WriteFile(build, []byte(`
r = hancho.repo()
`), 0o644)

	flags := DefaultFlags()
	flags.RootName = "build.hancho"
	flags.Chdir = dir
	app := NewApp(flags)

	root, err := LoadRoot(app)
	if err != nil {
		t.Fatalf("LoadRoot: %v", err)
	}
	rv, _, err := root.Get("r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := ConfigFromValue(rv)
	if cfg == nil {
		t.Fatal("expected r to be a config")
	}
	bp, _, _ := cfg.Get("base_path")
	if bp.Str() != dir {
		t.Errorf("repo() base_path = %q, want %q", bp.Str(), dir)
	}
}

func TestLoadRootCommand2FactoryIsCallable(t *testing.T) {
	dir := t.TempDir()
	build := filepath.Join(dir, "build.hancho")
	os.WriteFile(build, []byte(`
mycommand = hancho.command2("echo {source_files}")
t = mycommand(source_files = ["a.txt"], build_files = ["a.out"])
`), 0o644)

	flags := DefaultFlags()
	flags.RootName = "build.hancho"
	flags.Chdir = dir
	app := NewApp(flags)

	root, err := LoadRoot(app)
	if err != nil {
		t.Fatalf("LoadRoot: %v", err)
	}
	// GetRaw, not Get: Get expands a TaskHandle by awaiting the task, which
	// never runs in this test.
	tv, ok := root.GetRaw("t")
	if !ok {
		t.Fatalf("t: %v, %v", tv, ok)
	}
	if tv.Kind != value.TaskHandle {
		t.Errorf("mycommand(...) should produce a TaskHandle, got %v", tv.Kind)
	}
}

func TestLoadRootMissingFile(t *testing.T) {
	dir := t.TempDir()
	flags := DefaultFlags()
	flags.RootName = "nope.hancho"
	flags.Chdir = dir
	app := NewApp(flags)
	if _, err := LoadRoot(app); err == nil {
		t.Fatal("expected a PathMissing error when the root description file doesn't exist")
	}
}

func TestFromStarlarkScalarRoundtrip(t *testing.T) {
	sv, err := toStarlark(value.IntValue(7))
	if err != nil {
		t.Fatalf("toStarlark: %v", err)
	}
	back, err := fromStarlark(sv)
	if err != nil {
		t.Fatalf("fromStarlark: %v", err)
	}
	if back.Int() != 7 {
		t.Errorf("roundtrip = %v, want 7", back)
	}
}
