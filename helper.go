package strata

import "strings"

// flattenValue walks a value and emits one (dotted path, leaf) pair per
// leaf node, the shape the store holds. Map nodes extend the path by
// their key; arrays and primitives are leaves. A map carrying any
// dot-prefixed field (a secret marker or a provider item) is itself a
// leaf: those maps must reach Set intact. An empty map emits nothing.
func flattenValue(prefix string, v Value, emit func(key string, leaf Value)) {
	obj, ok := v.Map()
	if !ok || hasReservedField(obj) {
		emit(prefix, v)
		return
	}
	for k, child := range obj {
		flattenValue(joinKey(prefix, k), child, emit)
	}
}

func hasReservedField(obj map[string]Value) bool {
	for k := range obj {
		if strings.HasPrefix(k, ".") {
			return true
		}
	}
	return false
}

// isValidKeySegment reports whether a single path segment is usable as
// a bare key: ASCII letters, digits, underscores and dashes, no dots.
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !(isLetter || isDigit || r == '_' || r == '-') {
			return false
		}
	}
	return true
}
