package strata

import "strings"

// CompareKeys imposes the total order used for configuration paths.
//
// Keys of equal length compare purely byte-wise, so fixed-width
// identifiers (ULIDs, zero-padded counters) keep their byte order.
// Keys of different lengths compare naturally: digit runs compare by
// numeric value ("file2" before "file10"), everything else byte-wise.
// Returns -1, 0 or +1.
func CompareKeys(a, b string) int {
	if len(a) == len(b) {
		return strings.Compare(a, b)
	}
	return compareNatural(a, b)
}

// CompareKeysFold is CompareKeys over lowercased input with a final
// byte-wise tie-break, so "A.b" and "a.B" order predictably but remain
// distinct keys. This is the comparator the store sorts by.
func CompareKeysFold(a, b string) int {
	if c := CompareKeys(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// compareNatural scans both strings in lockstep. When both sides sit on
// a digit run the runs compare numerically (leading zeros skipped, then
// shorter run wins, then digit by digit); otherwise single bytes compare
// directly. A pass that finds no differing run falls back to a full
// byte-wise comparison so "01" and "1" still produce a stable order.
func compareNatural(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			for i < len(a) && a[i] == '0' {
				i++
			}
			for j < len(b) && b[j] == '0' {
				j++
			}
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			ra, rb := a[si:i], b[sj:j]
			if len(ra) != len(rb) {
				// More significant digits means a larger numeric value.
				if len(ra) < len(rb) {
					return -1
				}
				return 1
			}
			if c := strings.Compare(ra, rb); c != 0 {
				return c
			}
			continue
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch ra, rb := len(a)-i, len(b)-j; {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return strings.Compare(a, b)
}

// naturalHasPrefix reports whether a consumes all of prefix with no
// natural-order difference. Digit runs that differ only in leading
// zeros ("01" vs "1") count as equal, so a key like "a01.z" still sits
// inside the region of the sentinel "a1.".
func naturalHasPrefix(a, prefix string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(prefix) {
		ca, cb := a[i], prefix[j]
		if isDigit(ca) && isDigit(cb) {
			for i < len(a) && a[i] == '0' {
				i++
			}
			for j < len(prefix) && prefix[j] == '0' {
				j++
			}
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(prefix) && isDigit(prefix[j]) {
				j++
			}
			if a[si:i] != prefix[sj:j] {
				return false
			}
			continue
		}
		if ca != cb {
			return false
		}
		i++
		j++
	}
	return j == len(prefix)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// joinKey concatenates path segments with the dot separator, skipping
// empty parts so Branch("") delegates cleanly.
func joinKey(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}

// ancestorPaths expands a leaf path to itself plus every dot-delimited
// ancestor prefix: "a.b.c" yields ["a.b.c", "a.b", "a"].
func ancestorPaths(leaf string) []string {
	paths := []string{leaf}
	for {
		idx := strings.LastIndexByte(leaf, '.')
		if idx < 0 {
			return paths
		}
		leaf = leaf[:idx]
		paths = append(paths, leaf)
	}
}
