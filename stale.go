package tinybuild

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aappleby/tinybuild/internal/value"
)

// needsRerun implements the staleness oracle of §4.7. It returns a
// non-empty reason to signal a rebuild, or "" to skip. Rules run in the
// a fixed order because later rules assume earlier ones have already run
// have already ruled out the degenerate cases (no files, missing outputs).
func needsRerun(app *App, action *Config) (string, error) {
	if v, ok, _ := action.Get("force"); ok && v.Truthy() {
		return "force", nil
	}

	sourceFiles := value.Strings(mustGet(action, "abs_source_files"))
	if len(sourceFiles) == 0 {
		return "no sources", nil
	}
	buildFiles := value.Strings(mustGet(action, "abs_build_files"))
	if len(buildFiles) == 0 {
		return "no build files", nil
	}

	var outTimes []time.Time
	for _, f := range buildFiles {
		info, err := os.Stat(f)
		if err != nil {
			return "missing output " + f, nil
		}
		outTimes = append(outTimes, info.ModTime())
	}
	minOut := outTimes[0]
	for _, t := range outTimes[1:] {
		if t.Before(minOut) {
			minOut = t
		}
	}

	if reason, err := staleAgainst(sourceFiles, minOut, "source"); reason != "" || err != nil {
		return reason, err
	}

	commandFiles := value.Strings(mustGet(action, "abs_command_files"))
	if reason, err := staleAgainst(commandFiles, minOut, "command file"); reason != "" || err != nil {
		return reason, err
	}

	var loaded []string
	for _, m := range app.LoadedModules() {
		loaded = append(loaded, m.Path)
	}
	if reason, err := staleAgainst(loaded, minOut, "description file"); reason != "" || err != nil {
		return reason, err
	}

	depformat := fieldStr(action, "depformat")
	absCommandPath := fieldStr(action, "abs_command_path")
	for _, dep := range value.Strings(mustGet(action, "abs_build_deps")) {
		if _, err := os.Stat(dep); err != nil {
			continue // not yet emitted, nothing to check
		}
		entries, err := parseDepfile(dep, depformat)
		if err != nil {
			return "", err
		}
		var absEntries []string
		for _, e := range entries {
			if filepath.IsAbs(e) {
				absEntries = append(absEntries, e)
			} else {
				absEntries = append(absEntries, filepath.Join(absCommandPath, e))
			}
		}
		if reason, err := staleAgainst(absEntries, minOut, "dependency"); reason != "" || err != nil {
			return reason, err
		}
	}

	return "", nil
}

// staleAgainst checks every path in files for mtime >= minOut — note the
// >=, not >, which matters for tests that write a source and immediately
// rerun the build within the same filesystem-timestamp tick.
func staleAgainst(files []string, minOut time.Time, label string) (string, error) {
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if !info.ModTime().Before(minOut) {
			return label + " " + f + " is newer than its outputs", nil
		}
	}
	return "", nil
}

// parseDepfile reads and parses a compiler-emitted dependency file in the
// requested format (§4.7 step 8, §6 "Depfile formats consumed").
func parseDepfile(path, format string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case "gcc", "":
		return parseGccDepfile(data), nil
	case "msvc":
		return parseMsvcDepfile(data)
	default:
		return nil, value.NewError(value.InvalidDepFormat, "unknown depformat %q", format)
	}
}

// parseGccDepfile tokenizes a Makefile-style depfile on whitespace, drops
// the leading target token and every line-continuation backslash.
func parseGccDepfile(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\\\n", " ")
	fields := strings.Fields(text)
	var out []string
	for i, f := range fields {
		if i == 0 {
			// target: dep1 dep2 — drop "target:" (possibly with the colon
			// stuck to the next token if there's no space).
			f = strings.TrimSuffix(f, ":")
			if f == "" {
				continue
			}
			continue
		}
		f = strings.TrimSuffix(f, "\\")
		if f == "" || f == "\\" {
			continue
		}
		out = append(out, f)
	}
	return out
}

type msvcDepfile struct {
	Data struct {
		Includes []string `json:"Includes"`
	} `json:"Data"`
}

func parseMsvcDepfile(data []byte) ([]string, error) {
	var m msvcDepfile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, value.NewError(value.InvalidDepFormat, "malformed msvc depfile: %v", err)
	}
	return m.Data.Includes, nil
}
