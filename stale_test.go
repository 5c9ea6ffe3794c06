package tinybuild

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aappleby/tinybuild/internal/value"
)

func TestParseGccDepfile(t *testing.T) {
	data := []byte("out.o: a.h b.h \\\n  c.h\n")
	got := parseGccDepfile(data)
	want := []string{"a.h", "b.h", "c.h"}
	if len(got) != len(want) {
		t.Fatalf("parseGccDepfile = %v, want %v", got, want)
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("entry %d = %q, want %q", i, got[i], w)
		}
	}
}

func TestParseMsvcDepfile(t *testing.T) {
	data := []byte(`{"Version":"1.0","Data":{"Source":"a.c","Includes":["a.h","b.h"]}}`)
	got, err := parseMsvcDepfile(data)
	if err != nil {
		t.Fatalf("parseMsvcDepfile: %v", err)
	}
	if len(got) != 2 || got[0] != "a.h" || got[1] != "b.h" {
		t.Errorf("parseMsvcDepfile = %v", got)
	}
}

func TestParseDepfileUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dep.d")
	os.WriteFile(path, []byte("x"), 0o644)
	_, err := parseDepfile(path, "weird")
	if err == nil {
		t.Fatal("expected InvalidDepFormat error")
	}
	be, ok := err.(*value.BuildError)
	if !ok || be.Kind != value.InvalidDepFormat {
		t.Errorf("expected InvalidDepFormat, got %v", err)
	}
}

func TestStaleAgainstDetectsNewerSource(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "out.o")
	newer := filepath.Join(dir, "src.c")
	os.WriteFile(older, []byte("x"), 0o644)
	time.Sleep(5 * time.Millisecond)
	os.WriteFile(newer, []byte("y"), 0o644)

	outInfo, _ := os.Stat(older)
	reason, err := staleAgainst([]string{newer}, outInfo.ModTime(), "source")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason == "" {
		t.Error("expected a rebuild reason: source is newer than the output")
	}
}

func TestStaleAgainstSameTimestampCountsAsStale(t *testing.T) {
	now := time.Now()
	dir := t.TempDir()
	f := filepath.Join(dir, "src.c")
	os.WriteFile(f, []byte("x"), 0o644)
	os.Chtimes(f, now, now)

	// Exactly equal mtimes must still be treated as stale (the oracle uses
	// >=, not >).
	reason, err := staleAgainst([]string{f}, now, "source")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason == "" {
		t.Error("equal mtimes should still trigger a rebuild (>= comparison)")
	}
}

func TestStaleAgainstMissingFileIsSkipped(t *testing.T) {
	reason, err := staleAgainst([]string{"/no/such/file"}, time.Now(), "source")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != "" {
		t.Errorf("a missing file should be silently skipped, got reason %q", reason)
	}
}

func TestNeedsRerunForceAlwaysWins(t *testing.T) {
	app := NewApp(DefaultFlags())
	action := NewConfig(app, KindPlain)
	action.Set("force", value.BoolValue(true))
	reason, err := needsRerun(app, action)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != "force" {
		t.Errorf("reason = %q, want %q", reason, "force")
	}
}

func TestNeedsRerunNoSources(t *testing.T) {
	app := NewApp(DefaultFlags())
	action := NewConfig(app, KindPlain)
	action.Set("force", value.BoolValue(false))
	action.Set("abs_source_files", value.ListOf(nil))
	reason, err := needsRerun(app, action)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != "no sources" {
		t.Errorf("reason = %q, want %q", reason, "no sources")
	}
}

func TestNeedsRerunMissingOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	os.WriteFile(src, []byte("x"), 0o644)

	app := NewApp(DefaultFlags())
	action := NewConfig(app, KindPlain)
	action.Set("force", value.BoolValue(false))
	action.Set("abs_source_files", value.ListOf([]value.Value{value.StringValue(src)}))
	action.Set("abs_build_files", value.ListOf([]value.Value{value.StringValue(filepath.Join(dir, "a.o"))}))
	reason, err := needsRerun(app, action)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason == "" {
		t.Error("a missing declared output should trigger a rebuild")
	}
}

func TestNeedsRerunUpToDate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	out := filepath.Join(dir, "a.o")
	os.WriteFile(src, []byte("x"), 0o644)
	time.Sleep(5 * time.Millisecond)
	os.WriteFile(out, []byte("y"), 0o644)

	app := NewApp(DefaultFlags())
	action := NewConfig(app, KindPlain)
	action.Set("force", value.BoolValue(false))
	action.Set("abs_source_files", value.ListOf([]value.Value{value.StringValue(src)}))
	action.Set("abs_build_files", value.ListOf([]value.Value{value.StringValue(out)}))
	action.Set("abs_command_files", value.ListOf(nil))
	action.Set("abs_build_deps", value.ListOf(nil))
	action.Set("depformat", value.StringValue("gcc"))
	action.Set("abs_command_path", value.StringValue(dir))
	reason, err := needsRerun(app, action)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != "" {
		t.Errorf("reason = %q, want \"\" (output newer than source)", reason)
	}
}
