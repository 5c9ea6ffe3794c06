package tinybuild

import (
	"regexp"
	"strings"
	"sync"

	"github.com/aappleby/tinybuild/internal/expr"
	"github.com/aappleby/tinybuild/internal/value"
)

// MaxExpandDepth bounds macro recursion (§4.3). The default matches the
// reference implementation; the test suite only requires a limit somewhere
// between 6 and 20.
const MaxExpandDepth = 20

// macroRegex matches a string that is *entirely* one macro span: the whole
// value is replaced by the expression's result, preserving its original
// type (§4.3, "pure macro").
var macroRegex = regexp.MustCompile(`^\{[^}]*\}$`)

// templateRegex finds every macro span inside a larger string for
// stringify-substitute expansion.
var templateRegex = regexp.MustCompile(`\{[^}]*\}`)

type expandDepthState struct {
	mu    sync.Mutex
	depth int
}

// Expand implements §4.3's dispatch table. c is the scope the value's
// templates are evaluated against.
func Expand(c *Config, v value.Value) (value.Value, error) {
	return expandWithDepth(c, v)
}

func expandWithDepth(c *Config, v value.Value) (value.Value, error) {
	state := c.depthState()
	state.mu.Lock()
	state.depth++
	depth := state.depth
	state.mu.Unlock()
	defer func() {
		state.mu.Lock()
		state.depth--
		state.mu.Unlock()
	}()
	if depth > MaxExpandDepth {
		return value.Value{}, value.NewError(value.ExpansionCycle,
			"expansion depth exceeded %d while expanding a field of a config", MaxExpandDepth)
	}

	switch v.Kind {
	case value.Cfg:
		// Returned as-is: fields expand individually, lazily, on their own read.
		return v, nil

	case value.Error:
		return value.Value{}, v.Err()

	case value.Future, value.TaskHandle:
		resolved, err := AwaitValue(c.app, v)
		if err != nil {
			return value.Value{}, err
		}
		return expandWithDepth(c, resolved)

	case value.List:
		out := make([]value.Value, len(v.List()))
		for i, e := range v.List() {
			r, err := expandWithDepth(c, e)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = r
		}
		return value.ListOf(out), nil

	case value.String:
		return expandString(c, v.Str())

	case value.Null, value.Bool, value.Int, value.Float:
		return v, nil

	case value.Callback:
		return v, nil

	case value.Builtin:
		// Builtins are opaque until called from a macro expression, exactly
		// like callbacks.
		return v, nil

	case value.Cancelled:
		return v, nil

	default:
		return value.Value{}, value.NewError(value.UnknownVariant,
			"expander cannot handle value of kind %s", v.Kind)
	}
}

func expandString(c *Config, s string) (value.Value, error) {
	if macroRegex.MatchString(s) {
		inner := s[1 : len(s)-1]
		return evalMacro(c, inner)
	}
	if !templateRegex.MatchString(s) {
		return value.StringValue(s), nil
	}
	var err error
	result := templateRegex.ReplaceAllStringFunc(s, func(span string) string {
		if err != nil {
			return ""
		}
		var v value.Value
		v, err = evalMacro(c, span[1:len(span)-1])
		if err != nil {
			return ""
		}
		return strings.Join(value.Strings(v), " ")
	})
	if err != nil {
		return value.Value{}, err
	}
	return value.StringValue(result), nil
}

func evalMacro(c *Config, exprSrc string) (value.Value, error) {
	node, err := expr.Parse(exprSrc)
	if err != nil {
		return value.Value{}, err
	}
	result, err := expr.Eval(node, c)
	if c.app != nil && c.app.Flags != nil && c.app.Flags.Trace && c.app.Out != nil {
		if err != nil {
			c.app.Out.Tracef("trace: {%s} -> error: %v\n", exprSrc, err)
		} else {
			c.app.Out.Tracef("trace: {%s} -> %s\n", exprSrc, result.AsString())
		}
	}
	return result, err
}
