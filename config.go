package tinybuild

import (
	"fmt"
	"sync"

	"github.com/aappleby/tinybuild/internal/value"
)

// ConfigKind distinguishes the factory a Config was produced by. Per §4.2,
// Repo/Include/Module/Command carry no extra fields or behavior beyond
// Config itself — the kind only gates Command's callability and lets
// BuildTag-style defaults special-case a Repo's base_path.
type ConfigKind int

const (
	KindPlain ConfigKind = iota
	KindRepo
	KindInclude
	KindModule
	KindCommand
)

// Config is an insertion-ordered, case-sensitive mapping from identifier to
// Value (§3.2). Parent configs are flattened into the child at construction
// time rather than kept as a pointer chain, so Get is a single map lookup.
//
// Config also implements value.Scope: reading a field through Get runs it
// through the template expander first (§4.3's "forwards field accesses
// through expand(C, field)"), which is what lets one field's template
// reference another lazily, in any order.
type Config struct {
	app    *App
	kind   ConfigKind
	keys   []string
	fields map[string]value.Value

	depthOnce sync.Once
	depth     *expandDepthState
}

// depthState lazily creates this config's own expansion-depth counter.
// Depth is tracked per Config instance rather than globally: a single
// task's field-to-field reference chain lives inside one Config, so a
// cycle among its own fields is still caught, while two unrelated tasks
// expanding concurrently on their own goroutines never contend on the same
// counter.
func (c *Config) depthState() *expandDepthState {
	c.depthOnce.Do(func() { c.depth = &expandDepthState{} })
	return c.depth
}

// NewConfig builds a Config of the given kind by merging each parent's raw
// fields left-to-right (later overwrites earlier), matching §3.2's "fields
// are merged left-to-right: later arguments overwrite earlier".
func NewConfig(app *App, kind ConfigKind, parents ...*Config) *Config {
	c := &Config{app: app, kind: kind, fields: make(map[string]value.Value)}
	for _, p := range parents {
		if p == nil {
			continue
		}
		for _, k := range p.keys {
			c.setRaw(k, p.fields[k])
		}
	}
	return c
}

// Kind reports which factory produced this config.
func (c *Config) Kind() ConfigKind { return c.kind }

// App returns the global state this config was built under.
func (c *Config) App() *App { return c.app }

func (c *Config) setRaw(name string, v value.Value) {
	if _, exists := c.fields[name]; !exists {
		c.keys = append(c.keys, name)
	}
	c.fields[name] = v
}

// Set assigns a raw (possibly unexpanded) value to a field.
func (c *Config) Set(name string, v value.Value) { c.setRaw(name, v) }

// GetRaw returns the unexpanded value stored for name, without running it
// through the template expander.
func (c *Config) GetRaw(name string) (value.Value, bool) {
	v, ok := c.fields[name]
	return v, ok
}

// Get implements value.Scope: it expands the field at read time, so a field
// referencing another field always observes that field's resolved value
// regardless of declaration order.
func (c *Config) Get(name string) (value.Value, bool, error) {
	raw, ok := c.fields[name]
	if !ok {
		return value.Value{}, false, nil
	}
	expanded, err := Expand(c, raw)
	if err != nil {
		return value.Value{}, true, err
	}
	return expanded, true, nil
}

// Keys returns field names in insertion order.
func (c *Config) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Update merges each of srcs (a *Config or a map[string]value.Value) into c,
// left-to-right, then applies kwargs last — mirroring §4.2's
// Config::update(args…, kwargs).
func (c *Config) Update(srcs []any, kwargs map[string]value.Value) error {
	for _, src := range srcs {
		switch s := src.(type) {
		case *Config:
			for _, k := range s.keys {
				c.setRaw(k, s.fields[k])
			}
		case map[string]value.Value:
			for k, v := range s {
				c.setRaw(k, v)
			}
		default:
			return fmt.Errorf("config: update() received unsupported source type %T", src)
		}
	}
	for k, v := range kwargs {
		c.setRaw(k, v)
	}
	return nil
}

// Extend constructs a new child Config of the same concrete subkind,
// optionally merging extra parents/kwargs first (§4.2's Config::extend).
func (c *Config) Extend(extra []any, kwargs map[string]value.Value) (*Config, error) {
	child := NewConfig(c.app, c.kind, c)
	if err := child.Update(extra, kwargs); err != nil {
		return nil, err
	}
	return child, nil
}

// Clone returns a shallow copy of c: same kind, same field map contents,
// independent key/field storage.
func (c *Config) Clone() *Config {
	return NewConfig(c.app, c.kind, c)
}

// AsValue wraps c as a Value of kind Cfg.
func (c *Config) AsValue() value.Value { return value.ConfigValue(c) }

// ConfigFromValue unwraps a Value of kind Cfg back to a *Config, or nil if v
// is not a config.
func ConfigFromValue(v value.Value) *Config {
	if v.Kind != value.Cfg {
		return nil
	}
	cfg, _ := v.Config().(*Config)
	return cfg
}

// Call implements Command's callable sugar (§4.2/§9 "Callable configs"):
// invoking a Command config clones it, overrides source_files/build_files,
// and constructs a Task from the result. Only valid when c.kind ==
// KindCommand.
func (c *Config) Call(sourceFiles, buildFiles value.Value, kwargs map[string]value.Value) (*Task, error) {
	if c.kind != KindCommand {
		return nil, fmt.Errorf("config: Call invoked on non-command config (kind %d)", c.kind)
	}
	overrides := map[string]value.Value{
		"source_files": sourceFiles,
		"build_files":  buildFiles,
	}
	for k, v := range kwargs {
		overrides[k] = v
	}
	child, err := c.Extend(nil, overrides)
	if err != nil {
		return nil, err
	}
	return NewTask(c.app, child)
}
