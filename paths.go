// Package tinybuild provides the core of a small file-oriented build system:
// a dynamic config/value model, a template expander, a task graph driven by
// awaited futures, and a staleness oracle plus bounded-parallel executor.
package tinybuild

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aappleby/tinybuild/internal/value"
)

// Flatten re-exports value.Flatten under the name the build description
// built-in uses; kept as a thin wrapper so callers in this package don't
// need to import internal/value directly just for this one helper.
func Flatten(v value.Value) value.Value {
	return value.ListOf(value.Flatten(v))
}

// JoinPath implements §4.1's join_path: scalars or lists are flattened and
// the Cartesian product of the per-argument sequences is joined pairwise
// with filepath.Join, where an absolute element discards the elements before
// it; a single-element result collapses to a scalar.
func JoinPath(args ...value.Value) value.Value {
	if len(args) == 0 {
		return value.StringValue("")
	}
	sequences := make([][]string, len(args))
	for i, a := range args {
		sequences[i] = value.Strings(a)
	}
	parts := cartesian(sequences)
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		start := 0
		for j, s := range p {
			if filepath.IsAbs(s) {
				start = j
			}
		}
		out[i] = value.StringValue(filepath.Join(p[start:]...))
	}
	if len(out) == 1 {
		return out[0]
	}
	return value.ListOf(out)
}

// cartesian computes the Cartesian product of the given sequences, in order,
// returning each combination as a []string of one element per sequence.
func cartesian(sequences [][]string) [][]string {
	result := [][]string{{}}
	for _, seq := range sequences {
		if len(seq) == 0 {
			return nil
		}
		var next [][]string
		for _, prefix := range result {
			for _, s := range seq {
				combo := append(append([]string{}, prefix...), s)
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}

// AbsPath implements §4.1's abs_path. With strict set, a path that doesn't
// exist on disk fails PathMissing. Lists map elementwise.
func AbsPath(v value.Value, strict bool) (value.Value, error) {
	if v.Kind == value.List {
		out := make([]value.Value, len(v.List()))
		for i, e := range v.List() {
			r, err := AbsPath(e, strict)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = r
		}
		return value.ListOf(out), nil
	}
	p := v.AsString()
	abs, err := filepath.Abs(p)
	if err != nil {
		return value.Value{}, value.NewError(value.PathMissing, "cannot absolutize %q: %v", p, err)
	}
	if strict {
		if _, err := os.Stat(abs); err != nil {
			return value.Value{}, value.NewError(value.PathMissing, "%s does not exist", abs)
		}
	}
	return value.StringValue(abs), nil
}

// RelPath implements §4.1's rel_path: a pure prefix-strip, deliberately not
// filepath.Rel, because ".." segments are unsound across symlinked trees.
func RelPath(p, base string) string {
	base = strings.TrimSuffix(base, string(filepath.Separator))
	if p == base {
		return ""
	}
	prefix := base + string(filepath.Separator)
	if strings.HasPrefix(p, prefix) {
		return p[len(prefix):]
	}
	return p
}

// SwapExt implements §4.1's swap_ext: replaces the final extension of name.
func SwapExt(name, newExt string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + newExt
}
