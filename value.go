package strata

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the closed set of value types a configuration
// entry can hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindBytes
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindArray
	KindMap
)

// String returns a short name for the kind, used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBytes:
		return "bytes"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a recursive tagged union over every representable
// configuration value. Arrays and maps own their children exclusively;
// Clone produces an independent deep copy and Equal is structural.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	raw  []byte
	arr  []Value
	obj  map[string]Value
}

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// IntValue wraps a signed integer.
func IntValue(v int64) Value { return Value{kind: KindInt, i: v} }

// UintValue wraps an unsigned integer.
func UintValue(v uint64) Value { return Value{kind: KindUint, u: v} }

// FloatValue wraps a float.
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// BytesValue wraps a byte slice. The slice is not copied; callers hand
// over ownership.
func BytesValue(v []byte) Value { return Value{kind: KindBytes, raw: v} }

// ArrayValue wraps the given elements. The slice is owned by the value.
func ArrayValue(elems ...Value) Value { return Value{kind: KindArray, arr: elems} }

// MapValue wraps a map of children. The map is owned by the value; a
// nil map yields an empty map value.
func MapValue(m map[string]Value) Value {
	if m == nil {
		m = make(map[string]Value)
	}
	return Value{kind: KindMap, obj: m}
}

// Kind reports the discriminant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the bool payload, ok false when the kind differs.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the signed integer payload.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Uint returns the unsigned integer payload.
func (v Value) Uint() (uint64, bool) { return v.u, v.kind == KindUint }

// Float returns the float payload.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Str returns the string payload.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Bytes returns the raw byte payload without copying. Callers must not
// mutate the result.
func (v Value) Bytes() ([]byte, bool) { return v.raw, v.kind == KindBytes }

// Array returns the element slice without copying. Callers must not
// mutate the result; use Clone for an owned copy.
func (v Value) Array() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Map returns the child map without copying. Callers must not mutate
// the result; use Clone for an owned copy.
func (v Value) Map() (map[string]Value, bool) { return v.obj, v.kind == KindMap }

// Clone returns a deep copy sharing no memory with the receiver.
func (v Value) Clone() Value {
	switch v.kind {
	case KindBytes:
		out := v
		out.raw = append([]byte(nil), v.raw...)
		return out
	case KindArray:
		out := v
		out.arr = make([]Value, len(v.arr))
		for i, e := range v.arr {
			out.arr[i] = e.Clone()
		}
		return out
	case KindMap:
		out := v
		out.obj = make(map[string]Value, len(v.obj))
		for k, e := range v.obj {
			out.obj[k] = e.Clone()
		}
		return out
	default:
		return v
	}
}

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindUint:
		return v.u == o.u
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBytes:
		if len(v.raw) != len(o.raw) {
			return false
		}
		for i := range v.raw {
			if v.raw[i] != o.raw[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, e := range v.obj {
			oe, ok := o.obj[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for logs and debugging. Byte payloads print
// only their length so decrypted secrets never leak into log output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindUint:
		return fmt.Sprintf("%d", v.u)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.raw))
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case KindMap:
		return fmt.Sprintf("map(%d)", len(v.obj))
	}
	return "invalid"
}

// Interface converts the value to plain Go types (nil, bool, int64,
// uint64, float64, string, []byte, []any, map[string]any), the shape
// mapstructure and the file encoders expect.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return append([]byte(nil), v.raw...)
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts parsed file data (the map[string]any trees the
// TOML, YAML and JSON decoders produce) into a Value. Unknown types are
// an error rather than a lossy stringification.
func FromInterface(data any) (Value, error) {
	switch d := data.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(d), nil
	case int:
		return IntValue(int64(d)), nil
	case int8:
		return IntValue(int64(d)), nil
	case int16:
		return IntValue(int64(d)), nil
	case int32:
		return IntValue(int64(d)), nil
	case int64:
		return IntValue(d), nil
	case uint:
		return UintValue(uint64(d)), nil
	case uint8:
		return UintValue(uint64(d)), nil
	case uint16:
		return UintValue(uint64(d)), nil
	case uint32:
		return UintValue(uint64(d)), nil
	case uint64:
		return UintValue(d), nil
	case float32:
		return FloatValue(float64(d)), nil
	case float64:
		return FloatValue(d), nil
	case string:
		return StringValue(d), nil
	case []byte:
		return BytesValue(append([]byte(nil), d...)), nil
	case time.Time:
		return StringValue(d.Format(time.RFC3339)), nil
	case json.Number:
		if i, err := d.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := d.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("unparseable number %q: %w", d.String(), err)
		}
		return FloatValue(f), nil
	case []any:
		elems := make([]Value, len(d))
		for i, e := range d {
			v, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return ArrayValue(elems...), nil
	case []map[string]any:
		// TOML arrays of tables decode to this shape.
		elems := make([]Value, len(d))
		for i, e := range d {
			v, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return ArrayValue(elems...), nil
	case map[string]any:
		obj := make(map[string]Value, len(d))
		for k, e := range d {
			v, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			obj[k] = v
		}
		return MapValue(obj), nil
	case map[any]any:
		// Older YAML decoders produce this shape.
		obj := make(map[string]Value, len(d))
		for k, e := range d {
			ks, ok := k.(string)
			if !ok {
				return Value{}, fmt.Errorf("non-string map key %v (%T)", k, k)
			}
			v, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			obj[ks] = v
		}
		return MapValue(obj), nil
	case Value:
		return d, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", data)
	}
}
