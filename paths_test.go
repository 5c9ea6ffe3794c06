package tinybuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aappleby/tinybuild/internal/value"
)

func TestJoinPathScalar(t *testing.T) {
	got := JoinPath(value.StringValue("a"), value.StringValue("b"))
	if got.Kind != value.String || got.Str() != filepath.Join("a", "b") {
		t.Errorf("JoinPath(a, b) = %v", got)
	}
}

func TestJoinPathCartesianProduct(t *testing.T) {
	got := JoinPath(
		value.StringValue("base"),
		value.ListOf([]value.Value{value.StringValue("x"), value.StringValue("y")}),
	)
	if got.Kind != value.List {
		t.Fatalf("expected a list result, got %v", got.Kind)
	}
	want := []string{filepath.Join("base", "x"), filepath.Join("base", "y")}
	for i, w := range want {
		if got.List()[i].Str() != w {
			t.Errorf("element %d = %q, want %q", i, got.List()[i].Str(), w)
		}
	}
}

func TestJoinPathEmptyArgsCollapse(t *testing.T) {
	got := JoinPath(value.StringValue("build"), value.StringValue(""))
	if got.Str() != "build" {
		t.Errorf("JoinPath(build, \"\") = %q, want %q (empty tag collapses)", got.Str(), "build")
	}
}

func TestAbsPathStrictMissing(t *testing.T) {
	_, err := AbsPath(value.StringValue("/definitely/does/not/exist/xyz"), true)
	if err == nil {
		t.Error("expected PathMissing error for a strict abs_path on a missing file")
	}
	be, ok := err.(*value.BuildError)
	if !ok || be.Kind != value.PathMissing {
		t.Errorf("expected *value.BuildError{Kind: PathMissing}, got %v", err)
	}
}

func TestAbsPathNonStrictAllowsMissing(t *testing.T) {
	v, err := AbsPath(value.StringValue("not-there.txt"), false)
	if err != nil {
		t.Fatalf("non-strict AbsPath should not fail on a missing path: %v", err)
	}
	if !filepath.IsAbs(v.Str()) {
		t.Errorf("AbsPath result %q is not absolute", v.Str())
	}
}

func TestAbsPathList(t *testing.T) {
	wd, _ := os.Getwd()
	got, err := AbsPath(value.ListOf([]value.Value{value.StringValue("a"), value.StringValue("b")}), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.List()[0].Str() != filepath.Join(wd, "a") {
		t.Errorf("element 0 = %q", got.List()[0].Str())
	}
}

func TestRelPath(t *testing.T) {
	if got := RelPath("/a/b/c", "/a/b"); got != "c" {
		t.Errorf("RelPath = %q, want %q", got, "c")
	}
	if got := RelPath("/a/b", "/a/b"); got != "" {
		t.Errorf("RelPath of equal paths = %q, want empty", got)
	}
	if got := RelPath("/x/y", "/a/b"); got != "/x/y" {
		t.Errorf("RelPath with no shared prefix should pass through unchanged, got %q", got)
	}
}

func TestSwapExt(t *testing.T) {
	if got := SwapExt("foo.c", ".o"); got != "foo.o" {
		t.Errorf("SwapExt(foo.c, .o) = %q, want foo.o", got)
	}
	if got := SwapExt("foo", ".o"); got != "foo.o" {
		t.Errorf("SwapExt with no existing extension = %q, want foo.o", got)
	}
}

func TestFlattenWrapsAsList(t *testing.T) {
	nested := value.ListOf([]value.Value{
		value.IntValue(1),
		value.ListOf([]value.Value{value.IntValue(2)}),
	})
	got := Flatten(nested)
	if got.Kind != value.List || len(got.List()) != 2 {
		t.Errorf("Flatten = %v, want a 2-element list", got)
	}
}

func TestRelPathJoinPathRoundTrip(t *testing.T) {
	base := "/a/b"
	p := "c/d.txt"
	joined := JoinPath(value.StringValue(base), value.StringValue(p))
	if got := RelPath(joined.Str(), base); got != filepath.Join(p) {
		t.Errorf("RelPath(JoinPath(base, p), base) = %q, want %q", got, filepath.Join(p))
	}
}

func TestSwapExtComposed(t *testing.T) {
	f := "module.proto"
	want := SwapExt(f, ".pb.go")
	got := SwapExt(SwapExt(f, ".a"), ".pb.go")
	if got != want {
		t.Errorf("SwapExt(SwapExt(f, .a), .pb.go) = %q, want %q", got, want)
	}
}

func TestFlattenIdempotent(t *testing.T) {
	nested := value.ListOf([]value.Value{
		value.IntValue(1),
		value.ListOf([]value.Value{value.IntValue(2), value.ListOf([]value.Value{value.IntValue(3)})}),
	})
	once := Flatten(nested)
	twice := Flatten(once)
	if len(once.List()) != len(twice.List()) {
		t.Fatalf("Flatten(Flatten(v)) length = %d, want %d", len(twice.List()), len(once.List()))
	}
	for i := range once.List() {
		if once.List()[i].Int() != twice.List()[i].Int() {
			t.Errorf("element %d: Flatten(Flatten(v))[%d] = %v, want %v", i, i, twice.List()[i], once.List()[i])
		}
	}
}
