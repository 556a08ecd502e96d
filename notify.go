package strata

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ChangeListener observes changes at or below the path it was
// subscribed on. notifyPath is the subscription path, changedPath the
// leaf that actually changed, newValue the value current at flush time.
type ChangeListener func(notifyPath, changedPath string, newValue Value)

// DetailedChangeListener additionally receives the value that was
// current before the flush in which it fires. Previous-value tracking
// is best effort: with several writes inside one window only the value
// before the first write of the window is retained.
type DetailedChangeListener func(notifyPath, changedPath string, newValue, oldValue Value)

// subscriptionRegistry keys ordered listener lists by notify path.
// Listeners are never removed; they live as long as the store.
type subscriptionRegistry struct {
	mu       sync.RWMutex
	simple   map[string][]ChangeListener
	detailed map[string][]DetailedChangeListener
}

func (r *subscriptionRegistry) addSimple(path string, l ChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simple[path] = append(r.simple[path], l)
}

func (r *subscriptionRegistry) addDetailed(path string, l DetailedChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detailed[path] = append(r.detailed[path], l)
}

// notifier coalesces rapid writes into one notification burst per
// debounce window. A single dedicated worker performs every flush, so
// at most one flush is ever in flight; that is what makes coalescing
// correct without a flush-in-progress flag.
type notifier struct {
	store    *Store
	debounce time.Duration
	registry subscriptionRegistry

	mu      sync.Mutex
	pending map[string]Value // changed leaf -> value before first change this window
	timer   *time.Timer      // nil when no window is armed

	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}
	stop1 sync.Once
}

func newNotifier(store *Store, debounce time.Duration) *notifier {
	n := &notifier{
		store:    store,
		debounce: debounce,
		registry: subscriptionRegistry{
			simple:   make(map[string][]ChangeListener),
			detailed: make(map[string][]DetailedChangeListener),
		},
		pending: make(map[string]Value),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) subscribe(path string, l ChangeListener) {
	n.registry.addSimple(path, l)
}

func (n *notifier) subscribeDetailed(path string, l DetailedChangeListener) {
	n.registry.addDetailed(path, l)
}

// enqueue records a changed leaf and arms the debounce window if none
// is armed. Only the old value of the first change per window is kept.
func (n *notifier) enqueue(leaf string, oldValue Value) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.pending[leaf]; !ok {
		n.pending[leaf] = oldValue
	}
	if n.timer == nil {
		n.timer = time.AfterFunc(n.debounce, func() {
			select {
			case n.wake <- struct{}{}:
			default:
			}
		})
	}
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		select {
		case <-n.quit:
			return
		case <-n.wake:
			n.flush()
		}
	}
}

// flush delivers one notification per interested listener for every
// leaf that changed during the window. Each leaf expands to itself plus
// all dot-delimited ancestors; listeners fire once per (leaf, notify
// path) pair with the value current at flush time. Leaves that no
// longer exist are skipped.
func (n *notifier) flush() {
	n.mu.Lock()
	batch := n.pending
	n.pending = make(map[string]Value)
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()

	for leaf, oldValue := range batch {
		current, ok := n.store.Get(leaf)
		if !ok {
			continue
		}
		for _, notifyPath := range ancestorPaths(leaf) {
			n.registry.mu.RLock()
			simple := n.registry.simple[notifyPath]
			detailed := n.registry.detailed[notifyPath]
			n.registry.mu.RUnlock()

			for _, l := range simple {
				n.invoke(notifyPath, func() { l(notifyPath, leaf, current) })
			}
			for _, l := range detailed {
				n.invoke(notifyPath, func() { l(notifyPath, leaf, current, oldValue) })
			}
		}
	}
}

// invoke shields the worker from listener panics; a panicking listener
// loses its notification, the others still fire.
func (n *notifier) invoke(notifyPath string, call func()) {
	defer func() {
		if r := recover(); r != nil {
			n.store.logger.Warn("change listener panicked",
				zap.String("path", notifyPath), zap.Any("panic", r))
		}
	}()
	call()
}

// stop terminates the worker. Pending changes that have not flushed are
// dropped; stop is idempotent.
func (n *notifier) stop() {
	n.stop1.Do(func() {
		close(n.quit)
		<-n.done
		n.mu.Lock()
		if n.timer != nil {
			n.timer.Stop()
			n.timer = nil
		}
		n.mu.Unlock()
	})
}
