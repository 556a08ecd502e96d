package strata

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/btree"
	"go.uber.org/zap"
)

// Options configures a Store instance.
type Options struct {
	// SecretSegment is the reserved map field marking an encrypted
	// value. Defaults to DefaultSecretSegment.
	SecretSegment string

	// Debounce is the change-notification coalescence window.
	// Defaults to DefaultDebounce.
	Debounce time.Duration

	// PoolWorkers caps concurrent provider hydrations.
	// Defaults to DefaultPoolWorkers.
	PoolWorkers int

	// Logger receives soft-failure warnings. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.SecretSegment == "" {
		o.SecretSegment = DefaultSecretSegment
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.PoolWorkers <= 0 {
		o.PoolWorkers = DefaultPoolWorkers
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// entry is one stored (key, value, source) triple.
type entry struct {
	key    string
	value  Value
	source Source
}

func entryLess(a, b entry) bool {
	return CompareKeysFold(a.key, b.key) < 0
}

// Store is a concurrent sorted map from dotted configuration paths to
// tagged values with per-entry provenance. Writes run the secret
// resolver before the entry becomes visible; changes to existing keys
// feed the debounced notifier. Each Store owns its own notifier worker
// and provider scheduler, so multiple independent stores can coexist in
// one process. Close releases both.
type Store struct {
	mu       sync.RWMutex
	tree     *btree.BTreeG[entry]
	resolver *secretResolver
	notifier *notifier
	sched    *scheduler
	logger   *zap.Logger
	opts     Options
	closed   atomic.Bool

	// Files applied by LoadFile, in application order. The reload
	// watcher re-merges these on change.
	loadMu      sync.Mutex
	loadedFiles []string
	watcher     *fileWatcher
}

// New creates a store with default options.
func New() *Store {
	s, err := NewWithOptions(Options{})
	if err != nil {
		// Defaults cannot fail to construct.
		panic(err)
	}
	return s
}

// NewWithOptions creates a store with the given options and starts its
// notification worker and provider scheduler.
func NewWithOptions(opts Options) (*Store, error) {
	opts = opts.withDefaults()
	s := &Store{
		tree:   btree.NewBTreeG[entry](entryLess),
		logger: opts.Logger,
		opts:   opts,
	}
	s.resolver = newSecretResolver(opts.SecretSegment, opts.Logger)
	s.notifier = newNotifier(s, opts.Debounce)
	sched, err := newScheduler(s, opts.PoolWorkers, opts.Logger)
	if err != nil {
		s.notifier.stop()
		return nil, fmt.Errorf("provider scheduler: %w", err)
	}
	s.sched = sched
	return s, nil
}

// Close stops the notification worker, cancels scheduled provider jobs
// (an in-flight hydrate finishes) and stops the file watcher. It is
// idempotent and safe to call concurrently.
func (s *Store) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.loadMu.Lock()
	if s.watcher != nil {
		s.watcher.stop()
		s.watcher = nil
	}
	s.loadMu.Unlock()
	s.sched.stop()
	s.notifier.stop()
}

// SecretKeys exposes the raw key store used during secret resolution.
func (s *Store) SecretKeys() *SecretKeyStore {
	return s.resolver.keys
}

// Decryptors exposes the pluggable decryptor registry.
func (s *Store) Decryptors() *DecryptorRegistry {
	return s.resolver.decryptors
}

// Get returns an owned deep clone of the value stored at key.
func (s *Store) Get(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tree.Get(entry{key: key})
	if !ok {
		return Value{}, false
	}
	return e.value.Clone(), true
}

// Peek runs fn against the stored value under the read lock, avoiding a
// clone. fn must not call any mutating method of the same store; doing
// so self-deadlocks. It reports whether the key existed.
func (s *Store) Peek(key string, fn func(Value)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tree.Get(entry{key: key})
	if !ok {
		return false
	}
	fn(e.value)
	return true
}

// GetSource returns the provenance tag recorded for key.
func (s *Store) GetSource(key string) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tree.Get(entry{key: key})
	if !ok {
		return Source{}, false
	}
	return e.source, true
}

// Set resolves any embedded secret markers in value, then inserts it at
// key with the given provenance. The previous value is returned when
// the key already existed. Writing a changed value to an existing key
// arms the debounced notifier; brand-new keys do not notify.
//
// Secret resolution is local CPU work and runs under the write lock, so
// a raw marker is never observable through the read API.
func (s *Store) Set(key string, value Value, source Source) (Value, bool) {
	s.mu.Lock()
	// Clone first: resolution rewrites marker nodes in place and the
	// store must not alias caller-held trees.
	resolved := s.resolver.resolve(key, value.Clone())
	prev, existed := s.tree.Set(entry{key: key, value: resolved, source: source})
	s.mu.Unlock()

	if existed && !prev.value.Equal(resolved) {
		s.notifier.enqueue(key, prev.value)
	}
	if existed {
		return prev.value, true
	}
	return Value{}, false
}

// Exists reports exact key membership.
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tree.Get(entry{key: key})
	return ok
}

// PrefixExists reports whether key itself is stored or any stored key
// lies under key + ".".
func (s *Store) PrefixExists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tree.Get(entry{key: key}); ok {
		return true
	}
	found := false
	s.scanPrefixLocked(key, func(entry) bool {
		found = true
		return false
	})
	return found
}

// Keys returns stored keys in comparator order: every key when prefix
// is empty, otherwise the keys under prefix + ".".
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	if prefix == "" {
		s.tree.Scan(func(e entry) bool {
			keys = append(keys, e.key)
			return true
		})
		return keys
	}
	s.scanPrefixLocked(prefix, func(e entry) bool {
		keys = append(keys, e.key)
		return true
	})
	return keys
}

// scanPrefixLocked iterates entries whose key starts with prefix + "."
// in comparator order. Iteration starts at the sentinel prefix + "."
// and runs while the key still naturalises to the sentinel region:
// fold-equal casings and zero-padded digit spellings ("a01.z" between
// "a1.k" and "a1.z") interleave with byte-exact matches, so those are
// skipped rather than treated as the end of the region.
func (s *Store) scanPrefixLocked(prefix string, iter func(entry) bool) {
	sentinel := prefix + "."
	foldSentinel := strings.ToLower(sentinel)
	s.tree.Ascend(entry{key: sentinel}, func(e entry) bool {
		if strings.HasPrefix(e.key, sentinel) {
			return iter(e)
		}
		return naturalHasPrefix(strings.ToLower(e.key), foldSentinel)
	})
}

// Subtree reconstructs a nested value from every flat key under
// prefix + ".". The prefix is stripped and the remainder split on ".";
// a segment that parses as a non-negative integer indexes an array
// (grown and padded with nulls as needed), anything else keys a map.
// Structural conflicts between keys are a hard error. A prefix with no
// descendants yields Null.
func (s *Store) Subtree(prefix string) (Value, error) {
	type flat struct {
		rest  string
		value Value
	}
	var flats []flat
	s.mu.RLock()
	if prefix == "" {
		s.tree.Scan(func(e entry) bool {
			flats = append(flats, flat{rest: e.key, value: e.value.Clone()})
			return true
		})
	} else {
		s.scanPrefixLocked(prefix, func(e entry) bool {
			flats = append(flats, flat{rest: e.key[len(prefix)+1:], value: e.value.Clone()})
			return true
		})
	}
	s.mu.RUnlock()

	if len(flats) == 0 {
		return NullValue(), nil
	}

	root := &subtreeNode{}
	for _, f := range flats {
		if err := root.insert(strings.Split(f.rest, "."), f.value); err != nil {
			return Value{}, fmt.Errorf("key %q under prefix %q: %w", f.rest, prefix, err)
		}
	}
	return root.value()
}

// Subscribe registers a listener for changes at notifyPath or below.
// Listeners live for the lifetime of the store; there is no
// unsubscribe. The listener runs on the notifier worker goroutine.
func (s *Store) Subscribe(notifyPath string, l ChangeListener) {
	s.notifier.subscribe(notifyPath, l)
}

// SubscribeDetailed registers a listener that additionally receives the
// value that was current before the flush in which it fires.
func (s *Store) SubscribeDetailed(notifyPath string, l DetailedChangeListener) {
	s.notifier.subscribeDetailed(notifyPath, l)
}

// Branch returns a view of the store scoped under the given prefix.
func (s *Store) Branch(path string) *Branch {
	return &Branch{root: s, prefix: path}
}

// KeyPath returns the scope prefix of this view; empty for the root.
func (s *Store) KeyPath() string { return "" }

// SetValueProvider wires a provider under the given name. Items for the
// provider must already have been extracted (by the loader or
// AddProviderItem); with no items the call warns and does nothing.
// Otherwise each item is registered with the provider, one forced
// hydration runs synchronously, and, when refresh is positive, the
// provider re-hydrates at that fixed period until Close.
func (s *Store) SetValueProvider(name string, p ValueProvider, refresh time.Duration) {
	s.sched.setProvider(name, p, refresh)
}

// AddProviderItem queues a provider config item for the provider named
// by its ".provider" field. The loader calls this for every subtree it
// extracts; it is exported for programmatic setups.
func (s *Store) AddProviderItem(item Value) error {
	return s.sched.addItem(item)
}

// subtreeNode is the mutable intermediate used while reconciling flat
// keys back into one tree.
type subtreeNode struct {
	leaf     *Value
	obj      map[string]*subtreeNode
	arr      map[int]*subtreeNode
	maxIndex int
}

func (n *subtreeNode) insert(segments []string, v Value) error {
	if len(segments) == 0 {
		if n.obj != nil || n.arr != nil {
			return fmt.Errorf("%w: leaf collides with nested values", ErrTypeConflict)
		}
		n.leaf = &v
		return nil
	}
	if n.leaf != nil {
		return fmt.Errorf("%w: nested value collides with leaf", ErrTypeConflict)
	}

	seg := segments[0]
	if idx, ok := parseIndex(seg); ok {
		if n.obj != nil {
			return fmt.Errorf("%w: array index %q where map key expected", ErrTypeConflict, seg)
		}
		if n.arr == nil {
			n.arr = make(map[int]*subtreeNode)
		}
		child := n.arr[idx]
		if child == nil {
			child = &subtreeNode{}
			n.arr[idx] = child
		}
		if idx > n.maxIndex {
			n.maxIndex = idx
		}
		return child.insert(segments[1:], v)
	}

	if n.arr != nil {
		return fmt.Errorf("%w: map key %q where array index expected", ErrTypeConflict, seg)
	}
	if n.obj == nil {
		n.obj = make(map[string]*subtreeNode)
	}
	child := n.obj[seg]
	if child == nil {
		child = &subtreeNode{}
		n.obj[seg] = child
	}
	return child.insert(segments[1:], v)
}

func (n *subtreeNode) value() (Value, error) {
	switch {
	case n.leaf != nil:
		return *n.leaf, nil
	case n.arr != nil:
		elems := make([]Value, n.maxIndex+1)
		for i := range elems {
			child, ok := n.arr[i]
			if !ok {
				elems[i] = NullValue() // gap left by sparse indices
				continue
			}
			v, err := child.value()
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return ArrayValue(elems...), nil
	case n.obj != nil:
		obj := make(map[string]Value, len(n.obj))
		for k, child := range n.obj {
			v, err := child.value()
			if err != nil {
				return Value{}, err
			}
			obj[k] = v
		}
		return MapValue(obj), nil
	default:
		return NullValue(), nil
	}
}

func parseIndex(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	// A zero-padded segment ("01") is a map key, not an index. Treating
	// it as index 1 would silently merge it with a sibling "1".
	if len(seg) > 1 && seg[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(seg); i++ {
		if !isDigit(seg[i]) {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
