package strata

import "time"

// Branch is a stateless prefix-scoped view over a root store. Every
// operation concatenates the branch prefix with the given suffix and
// delegates; branching a branch concatenates further.
type Branch struct {
	root   *Store
	prefix string
}

func (b *Branch) abs(path string) string { return joinKey(b.prefix, path) }

// KeyPath returns the scope prefix of this view.
func (b *Branch) KeyPath() string { return b.prefix }

// Branch scopes the view one level deeper.
func (b *Branch) Branch(path string) *Branch {
	return &Branch{root: b.root, prefix: b.abs(path)}
}

// Get returns an owned deep clone of the value at the scoped key.
func (b *Branch) Get(path string) (Value, bool) { return b.root.Get(b.abs(path)) }

// Peek runs fn against the stored value under the read lock. See
// Store.Peek for the no-mutation contract.
func (b *Branch) Peek(path string, fn func(Value)) bool { return b.root.Peek(b.abs(path), fn) }

// GetSource returns the provenance tag recorded for the scoped key.
func (b *Branch) GetSource(path string) (Source, bool) { return b.root.GetSource(b.abs(path)) }

// Set writes through to the root store under the scoped key.
func (b *Branch) Set(path string, value Value, source Source) (Value, bool) {
	return b.root.Set(b.abs(path), value, source)
}

// Exists reports exact membership of the scoped key.
func (b *Branch) Exists(path string) bool { return b.root.Exists(b.abs(path)) }

// PrefixExists reports whether the scoped key or any descendant exists.
func (b *Branch) PrefixExists(path string) bool { return b.root.PrefixExists(b.abs(path)) }

// Keys returns the stored keys under the scoped prefix, in comparator
// order. Keys are returned fully qualified.
func (b *Branch) Keys(path string) []string { return b.root.Keys(b.abs(path)) }

// Subtree reconstructs the nested value under the scoped prefix.
func (b *Branch) Subtree(path string) (Value, error) { return b.root.Subtree(b.abs(path)) }

// Subscribe registers a listener at the scoped path.
func (b *Branch) Subscribe(path string, l ChangeListener) { b.root.Subscribe(b.abs(path), l) }

// SubscribeDetailed registers a detailed listener at the scoped path.
func (b *Branch) SubscribeDetailed(path string, l DetailedChangeListener) {
	b.root.SubscribeDetailed(b.abs(path), l)
}

// Typed accessors, delegating to the root store.

func (b *Branch) String(path string) (string, error) { return b.root.String(b.abs(path)) }

func (b *Branch) Int64(path string) (int64, error) { return b.root.Int64(b.abs(path)) }

func (b *Branch) Uint64(path string) (uint64, error) { return b.root.Uint64(b.abs(path)) }

func (b *Branch) Float64(path string) (float64, error) { return b.root.Float64(b.abs(path)) }

func (b *Branch) Bool(path string) (bool, error) { return b.root.Bool(b.abs(path)) }

func (b *Branch) BytesAt(path string) ([]byte, error) { return b.root.BytesAt(b.abs(path)) }

func (b *Branch) Duration(path string) (time.Duration, error) {
	return b.root.Duration(b.abs(path))
}

// Scan decodes the subtree under the scoped prefix into target.
func (b *Branch) Scan(path string, target any) error { return b.root.Scan(b.abs(path), target) }
