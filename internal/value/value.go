// Package value defines the tagged-union Value type shared by every layer of
// tinybuild: the config model, the template expander, and the expression
// evaluator all pass Values back and forth instead of bare Go interfaces, so
// that "what kind of thing is this" is always a cheap field read instead of a
// type switch over interface{}.
package value

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the active field of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	List
	Cfg // a handle to a Config (named Cfg rather than Config, the name of Value's accessor method)
	Callback
	Future
	TaskHandle
	Builtin
	Error
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case List:
		return "list"
	case Cfg:
		return "config"
	case Callback:
		return "callback"
	case Future:
		return "future"
	case TaskHandle:
		return "task"
	case Builtin:
		return "builtin"
	case Error:
		return "error"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Scope is the minimal read interface the expression evaluator needs from a
// config. Config (in the root package) implements this with lazy, JIT
// expansion of the field it returns, per the macro-expansion contract.
type Scope interface {
	Get(name string) (Value, bool, error)
}

// Value is the universal field type: every
// Task/Config field is one of these, and expansion narrows it down to the
// scalar/list subset.
type Value struct {
	Kind Kind

	b   bool
	i   int64
	f   float64
	s   string
	lst []Value

	cfg      any // *tinybuild.Config, typed any here to avoid an import cycle
	cb       CallbackFunc
	fut      any // *tinybuild.Future, typed any for the same reason
	task     any // *tinybuild.Task
	builtin  BuiltinFunc
	err      *BuildError
}

// CallbackFunc is the signature of a user-supplied task command callback.
// The task argument is opaque to this package (it is a *tinybuild.Task in
// practice, typed any to avoid an import cycle); callers type-assert it
// back on the way in. ctx carries the task's buffered output writers so
// Printf-style helpers route through them instead of the raw process
// stdout/stderr.
type CallbackFunc func(ctx context.Context, task any) (Value, error)

// BuiltinFunc is the signature of a config built-in helper invoked from a
// macro expression, e.g. abs_path(...), join_path(...), glob(...).
type BuiltinFunc func(args []Value) (Value, error)

func NullValue() Value           { return Value{Kind: Null} }
func BoolValue(b bool) Value     { return Value{Kind: Bool, b: b} }
func IntValue(i int64) Value     { return Value{Kind: Int, i: i} }
func FloatValue(f float64) Value { return Value{Kind: Float, f: f} }
func StringValue(s string) Value { return Value{Kind: String, s: s} }
func ListValue(items ...Value) Value {
	return Value{Kind: List, lst: items}
}
func ListOf(items []Value) Value { return Value{Kind: List, lst: items} }

func ConfigValue(c any) Value       { return Value{Kind: Cfg, cfg: c} }
func CallbackValue(fn CallbackFunc) Value { return Value{Kind: Callback, cb: fn} }
func FutureValue(f any) Value       { return Value{Kind: Future, fut: f} }
func TaskHandleValue(t any) Value   { return Value{Kind: TaskHandle, task: t} }
func BuiltinValue(fn BuiltinFunc) Value {
	return Value{Kind: Builtin, builtin: fn}
}
func ErrorValue(err *BuildError) Value { return Value{Kind: Error, err: err} }
func CancelledValue() Value            { return Value{Kind: Cancelled} }

func (v Value) Bool() bool             { return v.b }
func (v Value) Int() int64             { return v.i }
func (v Value) Float() float64         { return v.f }
func (v Value) Str() string            { return v.s }
func (v Value) List() []Value          { return v.lst }
func (v Value) Config() any            { return v.cfg }
func (v Value) Cb() CallbackFunc       { return v.cb }
func (v Value) Fut() any               { return v.fut }
func (v Value) Task() any              { return v.task }
func (v Value) BuiltinFn() BuiltinFunc { return v.builtin }
func (v Value) Err() *BuildError       { return v.err }

func (v Value) IsNull() bool { return v.Kind == Null }

// Truthy mirrors Python-ish truthiness: null, false, zero, "" and the empty
// list are false, everything else is true. Used for boolean fields and
// flags such as force, dry_run and abs_path's strict argument.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Null:
		return false
	case Bool:
		return v.b
	case Int:
		return v.i != 0
	case Float:
		return v.f != 0
	case String:
		return v.s != ""
	case List:
		return len(v.lst) != 0
	default:
		return true
	}
}

// AsString stringifies a scalar the way template substitution does: numbers
// without quotes, bools as "True"/"False" is a Python-ism we deliberately do
// NOT carry over (Go idiom: "true"/"false").
func (v Value) AsString() string {
	switch v.Kind {
	case Null:
		return ""
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return v.s
	case List:
		parts := make([]string, len(v.lst))
		for i, e := range v.lst {
			parts[i] = e.AsString()
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

// Equal implements the expression language's == / != operators. Two values
// are equal only if they are both scalars (or lists of equal scalars) of
// comparable kind; anything else (configs, callbacks, futures) is never
// equal, matching Python's identity-fallback semantics closely enough for
// the macro language's needs.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// Allow cross Int/Float comparison, same as arithmetic coercion below.
		if (a.Kind == Int || a.Kind == Float) && (b.Kind == Int || b.Kind == Float) {
			return asFloat(a) == asFloat(b)
		}
		return false
	}
	switch a.Kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Int:
		return a.i == b.i
	case Float:
		return a.f == b.f
	case String:
		return a.s == b.s
	case List:
		if len(a.lst) != len(b.lst) {
			return false
		}
		for i := range a.lst {
			if !Equal(a.lst[i], b.lst[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func asFloat(v Value) float64 {
	if v.Kind == Int {
		return float64(v.i)
	}
	return v.f
}

// Flatten yields a depth-first sequence of leaves from (possibly nested)
// lists; scalars pass through unchanged. Grounded on hancho.py's _flatten.
func Flatten(v Value) []Value {
	if v.Kind != List {
		return []Value{v}
	}
	out := make([]Value, 0, len(v.lst))
	for _, e := range v.lst {
		out = append(out, Flatten(e)...)
	}
	return out
}

// Strings flattens v and renders every leaf to a string, in order. Used
// throughout path handling, where fields are "a scalar or a list of them".
func Strings(v Value) []string {
	leaves := Flatten(v)
	out := make([]string, len(leaves))
	for i, l := range leaves {
		out[i] = l.AsString()
	}
	return out
}

// SortedKeys is a small helper shared by Config dumping and debug output.
func SortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
