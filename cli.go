package tinybuild

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aappleby/tinybuild/internal/value"
)

// ParseArgs implements the CLI table of §6 over a hand-rolled os.Args
// scanner rather than a flag library: argument parsing is named an
// external-collaborator concern in §1, and the dynamic --key=value folding
// rule (int, then float, then string) doesn't map cleanly onto any
// standard flag package's model.
func ParseArgs(args []string) (*Flags, error) {
	f := DefaultFlags()
	var positional []string

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-C" || a == "--chdir":
			v, err := nextArg(args, &i, a)
			if err != nil {
				return nil, err
			}
			f.Chdir = v
		case strings.HasPrefix(a, "--chdir="):
			f.Chdir = strings.TrimPrefix(a, "--chdir=")
		case a == "-j" || a == "--jobs":
			v, err := nextArg(args, &i, a)
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("tinybuild: --jobs expects an integer, got %q", v)
			}
			f.Jobs = n
		case strings.HasPrefix(a, "--jobs="):
			n, err := strconv.ParseInt(strings.TrimPrefix(a, "--jobs="), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("tinybuild: --jobs expects an integer")
			}
			f.Jobs = n
		case a == "-v" || a == "--verbose":
			f.Verbose = true
		case a == "-q" || a == "--quiet":
			f.Quiet = true
		case a == "-n" || a == "--dry_run" || a == "--dry-run":
			f.DryRun = true
		case a == "-d" || a == "--debug":
			f.Debug = true
		case a == "-f" || a == "--force":
			f.Force = true
		case a == "-s" || a == "--shuffle":
			f.Shuffle = true
		case a == "-e" || a == "--trace":
			f.Trace = true
		case strings.HasPrefix(a, "--"):
			name, val, hasVal := strings.Cut(a[2:], "=")
			if name == "" {
				return nil, fmt.Errorf("tinybuild: empty flag name in %q", a)
			}
			if hasVal {
				f.Extra[name] = coerceFlagValue(val)
			} else {
				f.Extra[name] = value.BoolValue(true)
			}
		default:
			positional = append(positional, a)
		}
	}

	if len(positional) > 0 {
		f.RootName = positional[0]
	}
	return f, nil
}

func nextArg(args []string, i *int, flag string) (string, error) {
	if *i+1 >= len(args) {
		return "", fmt.Errorf("tinybuild: %s requires a value", flag)
	}
	*i++
	return args[*i], nil
}

// coerceFlagValue implements §6's "value parsed as int, then float, then
// string (in that order)" rule for unrecognized --key=value flags.
func coerceFlagValue(s string) value.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.IntValue(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.FloatValue(f)
	}
	return value.StringValue(s)
}
