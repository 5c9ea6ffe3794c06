package tinybuild

import (
	"testing"

	"github.com/aappleby/tinybuild/internal/value"
)

func TestConfigSetGetRoundtrip(t *testing.T) {
	c := NewConfig(nil, KindPlain)
	c.Set("name", value.StringValue("widget"))
	v, ok, err := c.Get("name")
	if err != nil || !ok {
		t.Fatalf("Get(name) = %v, %v, %v", v, ok, err)
	}
	if v.Str() != "widget" {
		t.Errorf("name = %q, want widget", v.Str())
	}
}

func TestConfigGetMissingField(t *testing.T) {
	c := NewConfig(nil, KindPlain)
	_, ok, err := c.Get("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("Get on a missing field should report ok=false")
	}
}

func TestConfigParentMergeLeftToRight(t *testing.T) {
	a := NewConfig(nil, KindPlain)
	a.Set("x", value.IntValue(1))
	a.Set("y", value.IntValue(1))
	b := NewConfig(nil, KindPlain)
	b.Set("y", value.IntValue(2))

	merged := NewConfig(nil, KindPlain, a, b)
	x, _, _ := merged.Get("x")
	y, _, _ := merged.Get("y")
	if x.Int() != 1 {
		t.Errorf("x = %d, want 1 (inherited from a)", x.Int())
	}
	if y.Int() != 2 {
		t.Errorf("y = %d, want 2 (b overwrites a)", y.Int())
	}
}

func TestConfigFieldReferencesAnotherField(t *testing.T) {
	c := NewConfig(nil, KindPlain)
	c.Set("base", value.StringValue("hello"))
	c.Set("greeting", value.StringValue("{base} world"))
	v, _, err := c.Get("greeting")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Str() != "hello world" {
		t.Errorf("greeting = %q, want %q", v.Str(), "hello world")
	}
}

func TestConfigPureMacroPreservesType(t *testing.T) {
	c := NewConfig(nil, KindPlain)
	c.Set("count", value.IntValue(5))
	c.Set("alias", value.StringValue("{count}"))
	v, _, err := c.Get("alias")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != value.Int || v.Int() != 5 {
		t.Errorf("alias = %v, want int 5 (pure macro preserves type)", v)
	}
}

func TestConfigUpdateAndExtend(t *testing.T) {
	base := NewConfig(nil, KindPlain)
	base.Set("a", value.IntValue(1))

	child, err := base.Extend(nil, map[string]value.Value{"b": value.IntValue(2)})
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	a, _, _ := child.Get("a")
	b, _, _ := child.Get("b")
	if a.Int() != 1 || b.Int() != 2 {
		t.Errorf("child fields = a:%v b:%v", a, b)
	}

	// Mutating the child must not affect the parent.
	child.Set("a", value.IntValue(99))
	parentA, _, _ := base.Get("a")
	if parentA.Int() != 1 {
		t.Error("Extend should produce an independent copy, not alias the parent's fields")
	}
}

func TestConfigKeysInsertionOrder(t *testing.T) {
	c := NewConfig(nil, KindPlain)
	c.Set("z", value.IntValue(1))
	c.Set("a", value.IntValue(2))
	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "z" || keys[1] != "a" {
		t.Errorf("Keys() = %v, want insertion order [z a]", keys)
	}
}

func TestCommandCallRejectsNonCommandKind(t *testing.T) {
	c := NewConfig(nil, KindPlain)
	c.Set("command", value.StringValue("echo hi"))
	if _, err := c.Call(value.NullValue(), value.NullValue(), nil); err == nil {
		t.Error("Call on a non-command config should fail")
	}
}

func TestConfigAsValueRoundtrip(t *testing.T) {
	c := NewConfig(nil, KindPlain)
	v := c.AsValue()
	if v.Kind != value.Cfg {
		t.Fatalf("AsValue().Kind = %v, want Cfg", v.Kind)
	}
	if ConfigFromValue(v) != c {
		t.Error("ConfigFromValue should return the same *Config instance")
	}
	if ConfigFromValue(value.IntValue(1)) != nil {
		t.Error("ConfigFromValue on a non-config value should return nil")
	}
}
