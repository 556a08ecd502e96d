package strata

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
)

// Scan decodes the subtree under prefix into target, which must be a
// non-nil pointer to a struct or map. Field mapping uses the "config"
// struct tag. Beyond mapstructure's weak typing, strings decode into
// time.Duration, comma-joined strings into slices, and single-character
// strings into rune-typed fields.
func (s *Store) Scan(prefix string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("scan target must be a non-nil pointer, got %T", target)
	}

	subtree, err := s.Subtree(prefix)
	if err != nil {
		return err
	}

	var data any
	if subtree.IsNull() {
		data = map[string]any{} // no descendants decodes as empty
	} else {
		data = subtree.Interface()
	}
	section, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("prefix %q does not refer to a map section (got %T)", prefix, data)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "config",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToRuneHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(section); err != nil {
		return fmt.Errorf("failed to decode section %q: %w", prefix, err)
	}
	return nil
}

// stringToRuneHookFunc converts single-character strings into rune
// (int32) fields. Numeric strings are left for the weak-typing pass so
// plain int32 fields still parse as numbers.
func stringToRuneHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int32 {
			return data, nil
		}
		str := data.(string)
		if _, err := strconv.ParseInt(str, 0, 32); err == nil {
			return data, nil
		}
		runes := []rune(str)
		if len(runes) != 1 {
			return data, nil
		}
		return runes[0], nil
	}
}
