package batch

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/me/slurmjm/pkg/model"
)

// ValueKind is the closed set of kinds a directive value can take.
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindInt
	KindString
	KindPath
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindPath:
		return "path"
	}
	return "invalid"
}

// Value is a scalar directive value.
type Value struct {
	Kind ValueKind
	str  string
	num  int64
}

// Int returns an integer directive value, e.g. for --ntasks.
func Int(n int64) Value { return Value{Kind: KindInt, num: n} }

// String returns a string directive value, e.g. for --partition.
func String(s string) Value { return Value{Kind: KindString, str: s} }

// Path returns a filesystem path directive value, e.g. for --output.
func Path(p string) Value { return Value{Kind: KindPath, str: p} }

// String renders the value as it appears after "--key=".
func (v Value) String() string {
	if v.Kind == KindInt {
		return strconv.FormatInt(v.num, 10)
	}
	return v.str
}

// Directives is an ordered mapping of sbatch directive names to values.
// The zero value is empty and ready to use.
type Directives struct {
	keys []string
	vals map[string]Value
}

// NewDirectives builds Directives from alternating key/value pairs.
func NewDirectives(pairs ...any) (Directives, error) {
	var d Directives
	if len(pairs)%2 != 0 {
		return d, model.NewValidationError("directives", "odd number of key/value arguments")
	}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return d, model.NewValidationError("directives", "key at position %d is %T, want string", i, pairs[i])
		}
		v, err := toValue(key, pairs[i+1])
		if err != nil {
			return d, err
		}
		d.Set(key, v)
	}
	return d, nil
}

// DirectivesFromMap converts a decoded mapping (e.g. from a YAML manifest).
// Keys are applied in sorted order since maps carry no order of their own.
// Non-scalar values are rejected with a validation error.
func DirectivesFromMap(m map[string]any) (Directives, error) {
	var d Directives
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := toValue(k, m[k])
		if err != nil {
			return Directives{}, err
		}
		d.Set(k, v)
	}
	return d, nil
}

func toValue(key string, raw any) (Value, error) {
	switch v := raw.(type) {
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case int:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case int32:
		return Int(int64(v)), nil
	case uint:
		return uintValue(key, uint64(v))
	case uint64:
		return uintValue(key, v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return Value{}, model.NewValidationError("directives", "%q: %v is not an integer", key, v)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return Value{}, model.NewValidationError("directives", "%q: %v overflows int64", key, v)
		}
		return Int(int64(v)), nil
	}
	return Value{}, model.NewValidationError("directives", "%q: %T is not a scalar value", key, raw)
}

func uintValue(key string, v uint64) (Value, error) {
	if v > math.MaxInt64 {
		return Value{}, model.NewValidationError("directives", "%q: %d overflows int64", key, v)
	}
	return Int(int64(v)), nil
}

// Set assigns key. A new key is appended; an existing key keeps its position.
func (d *Directives) Set(key string, v Value) {
	if d.vals == nil {
		d.vals = make(map[string]Value)
	}
	if _, ok := d.vals[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.vals[key] = v
}

// Get returns the value for key.
func (d Directives) Get(key string) (Value, bool) {
	v, ok := d.vals[key]
	return v, ok
}

// Has reports whether key is set.
func (d Directives) Has(key string) bool {
	_, ok := d.vals[key]
	return ok
}

// Keys returns the directive names in order.
func (d Directives) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of directives.
func (d Directives) Len() int { return len(d.keys) }

// Clone returns an independent copy.
func (d Directives) Clone() Directives {
	var c Directives
	for _, k := range d.keys {
		c.Set(k, d.vals[k])
	}
	return c
}

// Merge applies every directive of other over d; other's values win.
func (d *Directives) Merge(other Directives) {
	for _, k := range other.keys {
		d.Set(k, other.vals[k])
	}
}

// Map returns the directives as plain strings, for display and JSON.
func (d Directives) Map() map[string]string {
	m := make(map[string]string, len(d.keys))
	for _, k := range d.keys {
		m[k] = d.vals[k].String()
	}
	return m
}

func (d Directives) String() string {
	s := "{"
	for i, k := range d.keys {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%s", k, d.vals[k])
	}
	return s + "}"
}
