package batchconfig

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is one node of the configuration tree. The zero Value is invalid and
// never stored.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	bit  bool
	list []Value
	m    map[string]Value
}

func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func IntValue(i int64) Value { return Value{kind: KindInt, num: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, flt: f} }
func BoolValue(b bool) Value { return Value{kind: KindBool, bit: b} }
func ListValue(items ...Value) Value { return Value{kind: KindList, list: items} }

// MapValue returns an empty mapping node.
func MapValue() Value { return Value{kind: KindMap, m: map[string]Value{}} }

// Kind reports the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != 0 }

// AsString returns the string variant.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsInt returns the integer variant. Floats without a fractional part are
// accepted.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.num, true
	case KindFloat:
		if v.flt == math.Trunc(v.flt) && !math.IsInf(v.flt, 0) {
			return int64(v.flt), true
		}
	}
	return 0, false
}

// AsFloat returns the numeric variants as float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.flt, true
	case KindInt:
		return float64(v.num), true
	}
	return 0, false
}

// AsBool returns the boolean variant.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.bit, true
}

// Items returns the elements of a list.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out
}

// Keys returns the sorted keys of a mapping.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Field returns a direct child of a mapping.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	child, ok := v.m[key]
	return child, ok
}

// Native converts v into plain Go values: string, int, float64, bool,
// []any and map[string]any.
func (v Value) Native() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return int(v.num)
	case KindFloat:
		return v.flt
	case KindBool:
		return v.bit
	case KindList:
		out := make([]any, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.Native())
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, child := range v.m {
			out[k] = child.Native()
		}
		return out
	default:
		return nil
	}
}

// String renders scalars plainly and containers in Go syntax.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.bit)
	case KindList, KindMap:
		return fmt.Sprint(v.Native())
	default:
		return ""
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return Value{kind: KindList, list: items}
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, child := range v.m {
			m[k] = child.Clone()
		}
		return Value{kind: KindMap, m: m}
	default:
		return v
	}
}

// FromNative converts a Go value into a Value. Nil map entries are dropped.
func FromNative(raw any) (Value, error) {
	switch val := raw.(type) {
	case Value:
		if !val.IsValid() {
			return Value{}, fmt.Errorf("invalid value")
		}
		return val.Clone(), nil
	case string:
		return StringValue(val), nil
	case bool:
		return BoolValue(val), nil
	case int:
		return IntValue(int64(val)), nil
	case int8:
		return IntValue(int64(val)), nil
	case int16:
		return IntValue(int64(val)), nil
	case int32:
		return IntValue(int64(val)), nil
	case int64:
		return IntValue(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", val)
		}
		return IntValue(int64(val)), nil
	case uint8:
		return IntValue(int64(val)), nil
	case uint16:
		return IntValue(int64(val)), nil
	case uint32:
		return IntValue(int64(val)), nil
	case uint64:
		if val > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", val)
		}
		return IntValue(int64(val)), nil
	case float32:
		return FloatValue(float64(val)), nil
	case float64:
		return FloatValue(val), nil
	case time.Time:
		return StringValue(val.UTC().Format(time.RFC3339)), nil
	case []string:
		items := make([]Value, 0, len(val))
		for _, s := range val {
			items = append(items, StringValue(s))
		}
		return ListValue(items...), nil
	case []any:
		items := make([]Value, 0, len(val))
		for i, item := range val {
			// Null items are dropped, matching null map entries.
			if item == nil {
				continue
			}
			converted, err := FromNative(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, converted)
		}
		return ListValue(items...), nil
	case map[string]any:
		out := MapValue()
		for k, child := range val {
			if child == nil {
				continue
			}
			converted, err := FromNative(child)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			out.m[k] = converted
		}
		return out, nil
	case map[any]any:
		out := MapValue()
		for k, child := range val {
			if child == nil {
				continue
			}
			key := fmt.Sprint(k)
			converted, err := FromNative(child)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", key, err)
			}
			out.m[key] = converted
		}
		return out, nil
	case nil:
		return Value{}, fmt.Errorf("null values are not supported")
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}
