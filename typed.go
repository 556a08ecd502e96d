package strata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Typed accessors over stored values. Conversions are lenient where a
// value is unambiguously representable in the requested type and an
// error otherwise; a missing key is always an error.

// String retrieves a string value, stringifying scalar types.
func (s *Store) String(path string) (string, error) {
	v, ok := s.Get(path)
	if !ok {
		return "", fmt.Errorf("key not found: %s", path)
	}
	switch v.Kind() {
	case KindString:
		str, _ := v.Str()
		return str, nil
	case KindNull:
		return "", nil
	case KindBytes:
		b, _ := v.Bytes()
		return string(b), nil
	case KindBool, KindInt, KindUint, KindFloat:
		return v.String(), nil
	}
	return "", fmt.Errorf("cannot convert %s to string for key %s", v.Kind(), path)
}

// Int64 retrieves a signed integer, widening from unsigned and float
// values when representable and parsing numeric strings.
func (s *Store) Int64(path string) (int64, error) {
	v, ok := s.Get(path)
	if !ok {
		return 0, fmt.Errorf("key not found: %s", path)
	}
	switch v.Kind() {
	case KindInt:
		i, _ := v.Int()
		return i, nil
	case KindUint:
		u, _ := v.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64 for key %s", u, path)
		}
		return int64(u), nil
	case KindFloat:
		f, _ := v.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
			return 0, fmt.Errorf("value %g is not representable as int64 for key %s", f, path)
		}
		return int64(f), nil
	case KindString:
		str, _ := v.Str()
		i, err := strconv.ParseInt(str, 0, 64) // base 0 accepts 0x.. and 0o..
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as int64 for key %s: %w", str, path, err)
		}
		return i, nil
	case KindBool:
		if b, _ := v.Bool(); b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert %s to int64 for key %s", v.Kind(), path)
}

// Uint64 retrieves an unsigned integer, widening from signed and float
// values when representable.
func (s *Store) Uint64(path string) (uint64, error) {
	v, ok := s.Get(path)
	if !ok {
		return 0, fmt.Errorf("key not found: %s", path)
	}
	switch v.Kind() {
	case KindUint:
		u, _ := v.Uint()
		return u, nil
	case KindInt:
		i, _ := v.Int()
		if i < 0 {
			return 0, fmt.Errorf("negative value %d is not representable as uint64 for key %s", i, path)
		}
		return uint64(i), nil
	case KindFloat:
		f, _ := v.Float()
		if f != math.Trunc(f) || f < 0 || f > math.MaxUint64 {
			return 0, fmt.Errorf("value %g is not representable as uint64 for key %s", f, path)
		}
		return uint64(f), nil
	case KindString:
		str, _ := v.Str()
		u, err := strconv.ParseUint(str, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as uint64 for key %s: %w", str, path, err)
		}
		return u, nil
	}
	return 0, fmt.Errorf("cannot convert %s to uint64 for key %s", v.Kind(), path)
}

// Float64 retrieves a float, widening from integer values and parsing
// numeric strings.
func (s *Store) Float64(path string) (float64, error) {
	v, ok := s.Get(path)
	if !ok {
		return 0, fmt.Errorf("key not found: %s", path)
	}
	switch v.Kind() {
	case KindFloat:
		f, _ := v.Float()
		return f, nil
	case KindInt:
		i, _ := v.Int()
		return float64(i), nil
	case KindUint:
		u, _ := v.Uint()
		return float64(u), nil
	case KindString:
		str, _ := v.Str()
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as float64 for key %s: %w", str, path, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %s to float64 for key %s", v.Kind(), path)
}

// Bool retrieves a boolean. Strings parse case-insensitively from
// {true, yes, on, 1} and {false, no, off, 0}; integers convert from
// exactly 0 and 1.
func (s *Store) Bool(path string) (bool, error) {
	v, ok := s.Get(path)
	if !ok {
		return false, fmt.Errorf("key not found: %s", path)
	}
	switch v.Kind() {
	case KindBool:
		b, _ := v.Bool()
		return b, nil
	case KindString:
		str, _ := v.Str()
		b, ok := parseLenientBool(str)
		if !ok {
			return false, fmt.Errorf("cannot parse %q as bool for key %s", str, path)
		}
		return b, nil
	case KindInt:
		i, _ := v.Int()
		if i == 0 || i == 1 {
			return i == 1, nil
		}
		return false, fmt.Errorf("integer %d is not a bool for key %s", i, path)
	case KindUint:
		u, _ := v.Uint()
		if u == 0 || u == 1 {
			return u == 1, nil
		}
		return false, fmt.Errorf("integer %d is not a bool for key %s", u, path)
	}
	return false, fmt.Errorf("cannot convert %s to bool for key %s", v.Kind(), path)
}

// BytesAt retrieves raw bytes, converting from string. This is the
// usual accessor for decrypted secrets.
func (s *Store) BytesAt(path string) ([]byte, error) {
	v, ok := s.Get(path)
	if !ok {
		return nil, fmt.Errorf("key not found: %s", path)
	}
	switch v.Kind() {
	case KindBytes:
		b, _ := v.Bytes()
		return b, nil
	case KindString:
		str, _ := v.Str()
		return []byte(str), nil
	}
	return nil, fmt.Errorf("cannot convert %s to bytes for key %s", v.Kind(), path)
}

// Duration retrieves a time.Duration from a duration string ("1h30m")
// or an integer nanosecond count.
func (s *Store) Duration(path string) (time.Duration, error) {
	v, ok := s.Get(path)
	if !ok {
		return 0, fmt.Errorf("key not found: %s", path)
	}
	switch v.Kind() {
	case KindString:
		str, _ := v.Str()
		d, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as duration for key %s: %w", str, path, err)
		}
		return d, nil
	case KindInt:
		i, _ := v.Int()
		return time.Duration(i), nil
	}
	return 0, fmt.Errorf("cannot convert %s to duration for key %s", v.Kind(), path)
}

func parseLenientBool(raw string) (value, ok bool) {
	switch strings.ToLower(raw) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}
