package strata

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCompareKeysEqualLength(t *testing.T) {
	// Equal-length keys compare purely byte-wise so fixed-width
	// identifiers keep their byte order.
	assert.Negative(t, CompareKeys("abc122", "abc123"))
	assert.Negative(t, CompareKeys("abc123", "abc124"))
	assert.Zero(t, CompareKeys("abc123", "abc123"))
	assert.Positive(t, CompareKeys("abc124", "abc122"))
}

func TestCompareKeysNatural(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"DigitRunShorterWins", "file2.txt", "file10.txt", -1},
		{"LeadingDigits", "1note.txt", "2note.txt0", -1},
		{"LeadingDigitsLonger", "2note.txt", "10note.txt", -1},
		{"PrefixOfOther", "server", "server.port", -1},
		{"LeadingZerosSkipped", "a01b", "a1bcd", -1},
		{"NumericValueOverText", "item9x", "item10xy", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareKeys(tt.a, tt.b)
			if tt.want < 0 {
				assert.Negative(t, got, "%q should sort before %q", tt.a, tt.b)
				assert.Positive(t, CompareKeys(tt.b, tt.a))
			}
		})
	}
}

func TestCompareKeysZeroPaddingTieBreak(t *testing.T) {
	// "01" and "1" are naturally equal; the byte-wise fall back keeps
	// the order total.
	a, b := "k01", "k1x0" // unequal length forces the natural branch
	assert.NotZero(t, CompareKeys(a, b))
	assert.Equal(t, -CompareKeys(b, a), CompareKeys(a, b))
}

func TestCompareKeysFold(t *testing.T) {
	// Case-insensitive ordering with byte-wise tie-break: distinct
	// casings stay distinct but group together.
	assert.Zero(t, CompareKeysFold("a.b", "a.b"))
	assert.NotZero(t, CompareKeysFold("A.b", "a.b"))

	keys := []string{"Zeta", "alpha", "BETA"}
	sort.Slice(keys, func(i, j int) bool { return CompareKeysFold(keys[i], keys[j]) < 0 })
	assert.Equal(t, []string{"alpha", "BETA", "Zeta"}, keys)
}

func TestCompareKeysSortsFileNames(t *testing.T) {
	keys := []string{"file10.txt", "file2.txt", "file1.txt", "10note.txt", "2note.txt", "1note.txt"}
	sort.Slice(keys, func(i, j int) bool { return CompareKeys(keys[i], keys[j]) < 0 })
	assert.Equal(t, []string{
		"1note.txt", "2note.txt", "10note.txt",
		"file1.txt", "file2.txt", "file10.txt",
	}, keys)
}

func TestCompareKeysTotalOrder(t *testing.T) {
	// Property check: reflexivity, antisymmetry and distinctness over
	// path-shaped strings.
	gen := rapid.StringMatching(`[a-z0-9.]{0,12}`)
	rapid.Check(t, func(t *rapid.T) {
		a := gen.Draw(t, "a")
		b := gen.Draw(t, "b")

		if CompareKeys(a, a) != 0 {
			t.Fatalf("CompareKeys(%q, %q) != 0", a, a)
		}
		if CompareKeys(a, b) != -CompareKeys(b, a) {
			t.Fatalf("antisymmetry violated for %q, %q", a, b)
		}
		if CompareKeys(a, b) == 0 && a != b {
			t.Fatalf("distinct keys %q, %q compare equal", a, b)
		}
	})
}

func TestNaturalHasPrefix(t *testing.T) {
	tests := []struct {
		name   string
		a      string
		prefix string
		want   bool
	}{
		{"ByteExact", "a1.z", "a1.", true},
		{"ZeroPaddedRun", "a01.z", "a1.", true},
		{"ZeroPaddedPrefix", "a1.z", "a01.", true},
		{"LargerRun", "a2.z", "a1.", false},
		{"LongerRun", "a10.z", "a1.", false},
		{"DifferentByte", "a1-z", "a1.", false},
		{"PrefixNotConsumed", "a1", "a1.", false},
		{"EmptyPrefix", "anything", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, naturalHasPrefix(tt.a, tt.prefix))
		})
	}
}

func TestAncestorPaths(t *testing.T) {
	assert.Equal(t, []string{"a.b.c", "a.b", "a"}, ancestorPaths("a.b.c"))
	assert.Equal(t, []string{"a"}, ancestorPaths("a"))
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "a.b", joinKey("a", "b"))
	assert.Equal(t, "b", joinKey("", "b"))
	assert.Equal(t, "a", joinKey("a", ""))
}
