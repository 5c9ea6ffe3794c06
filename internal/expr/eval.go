package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aappleby/tinybuild/internal/value"
)

// Eval evaluates a parsed expression against scope, which is typically a
// *tinybuild.Config but is only required to satisfy value.Scope here so
// this package never needs to import the root one.
func Eval(n Node, scope value.Scope) (value.Value, error) {
	switch t := n.(type) {
	case identNode:
		v, ok, err := scope.Get(t.name)
		if err != nil {
			return value.Value{}, err
		}
		if !ok {
			return value.Value{}, fmt.Errorf("expr: undefined name %q", t.name)
		}
		return v, nil

	case numberNode:
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return value.Value{}, fmt.Errorf("expr: invalid number %q", t.text)
			}
			return value.FloatValue(f), nil
		}
		i, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("expr: invalid number %q", t.text)
		}
		return value.IntValue(i), nil

	case stringNode:
		return value.StringValue(t.value), nil

	case listNode:
		items := make([]value.Value, len(t.items))
		for i, item := range t.items {
			v, err := Eval(item, scope)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.ListOf(items), nil

	case memberNode:
		base, err := Eval(t.x, scope)
		if err != nil {
			return value.Value{}, err
		}
		sub, ok := base.Config().(value.Scope)
		if !ok {
			return value.Value{}, fmt.Errorf("expr: cannot access field %q of non-config value", t.name)
		}
		v, ok, err := sub.Get(t.name)
		if err != nil {
			return value.Value{}, err
		}
		if !ok {
			return value.Value{}, fmt.Errorf("expr: config has no field %q", t.name)
		}
		return v, nil

	case callNode:
		fn, err := Eval(t.fn, scope)
		if err != nil {
			return value.Value{}, err
		}
		args := make([]value.Value, len(t.args))
		for i, a := range t.args {
			v, err := Eval(a, scope)
			if err != nil {
				return value.Value{}, err
			}
			args[i] = v
		}
		switch fn.Kind {
		case value.Builtin:
			return fn.BuiltinFn()(args)
		default:
			return value.Value{}, fmt.Errorf("expr: value of kind %s is not callable", fn.Kind)
		}

	case unaryNode:
		x, err := Eval(t.x, scope)
		if err != nil {
			return value.Value{}, err
		}
		switch t.op {
		case "-":
			switch x.Kind {
			case value.Int:
				return value.IntValue(-x.Int()), nil
			case value.Float:
				return value.FloatValue(-x.Float()), nil
			default:
				return value.Value{}, fmt.Errorf("expr: unary - on non-numeric %s", x.Kind)
			}
		}
		return value.Value{}, fmt.Errorf("expr: unknown unary operator %q", t.op)

	case binaryNode:
		l, err := Eval(t.l, scope)
		if err != nil {
			return value.Value{}, err
		}
		r, err := Eval(t.r, scope)
		if err != nil {
			return value.Value{}, err
		}
		return evalBinary(t.op, l, r)

	default:
		return value.Value{}, fmt.Errorf("expr: unhandled node type %T", n)
	}
}

func evalBinary(op string, l, r value.Value) (value.Value, error) {
	switch op {
	case "==":
		return value.BoolValue(value.Equal(l, r)), nil
	case "!=":
		return value.BoolValue(!value.Equal(l, r)), nil
	case "+":
		return evalAdd(l, r)
	case "-", "*", "/":
		return evalArith(op, l, r)
	default:
		return value.Value{}, fmt.Errorf("expr: unknown operator %q", op)
	}
}

// evalAdd implements §4.3's "arithmetic, concatenation": + adds numbers,
// concatenates strings, and appends lists, matching hancho.py's overloaded
// "+" across its value types.
func evalAdd(l, r value.Value) (value.Value, error) {
	switch {
	case l.Kind == value.String || r.Kind == value.String:
		return value.StringValue(l.AsString() + r.AsString()), nil
	case l.Kind == value.List || r.Kind == value.List:
		return value.ListOf(append(append([]value.Value{}, value.Flatten(l)...), value.Flatten(r)...)), nil
	case l.Kind == value.Int && r.Kind == value.Int:
		return value.IntValue(l.Int() + r.Int()), nil
	case isNumeric(l) && isNumeric(r):
		return value.FloatValue(asFloat(l) + asFloat(r)), nil
	default:
		return value.Value{}, fmt.Errorf("expr: cannot add %s and %s", l.Kind, r.Kind)
	}
}

func evalArith(op string, l, r value.Value) (value.Value, error) {
	if !isNumeric(l) || !isNumeric(r) {
		return value.Value{}, fmt.Errorf("expr: operator %q requires numeric operands, got %s and %s", op, l.Kind, r.Kind)
	}
	if l.Kind == value.Int && r.Kind == value.Int {
		switch op {
		case "-":
			return value.IntValue(l.Int() - r.Int()), nil
		case "*":
			return value.IntValue(l.Int() * r.Int()), nil
		case "/":
			if r.Int() == 0 {
				return value.Value{}, fmt.Errorf("expr: division by zero")
			}
			return value.IntValue(l.Int() / r.Int()), nil
		}
	}
	lf, rf := asFloat(l), asFloat(r)
	switch op {
	case "-":
		return value.FloatValue(lf - rf), nil
	case "*":
		return value.FloatValue(lf * rf), nil
	case "/":
		if rf == 0 {
			return value.Value{}, fmt.Errorf("expr: division by zero")
		}
		return value.FloatValue(lf / rf), nil
	}
	return value.Value{}, fmt.Errorf("expr: unknown arithmetic operator %q", op)
}

func isNumeric(v value.Value) bool { return v.Kind == value.Int || v.Kind == value.Float }

func asFloat(v value.Value) float64 {
	if v.Kind == value.Int {
		return float64(v.Int())
	}
	return v.Float()
}
