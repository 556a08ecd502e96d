package strata

import (
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Reserved fields injected into every provider config item.
const (
	// ProviderField names the provider the item belongs to.
	ProviderField = ".provider"
	// KeyPathField is the full dotted target path of the item.
	KeyPathField = ".keyPath"
	// KeyField is the leaf segment of the target path.
	KeyField = ".key"
)

// SetFunc is the shared write entry point handed to providers. A Map
// value is flattened into individual leaf writes keyed by
// key + "." + nested path; the store only ever holds flat leaf entries.
type SetFunc func(key string, value Value)

// ValueProvider hydrates a set of configuration keys, optionally on a
// fixed schedule. Implementations receive one Register call per config
// item extracted for them and must tolerate Hydrate running on an
// arbitrary pool goroutine.
type ValueProvider interface {
	// Register hands the provider one config item (a Map carrying the
	// reserved .provider/.keyPath/.key fields plus provider-specific
	// ones).
	Register(item Value)

	// Unregister drops the item whose .keyPath equals key.
	Unregister(key string)

	// Hydrate resolves every registered item and pushes the results
	// through set. force requests a full refresh even when the provider
	// believes nothing changed. Per-item failures must degrade to a
	// Null write for that key, not an error.
	Hydrate(set SetFunc, force bool)
}

// scheduler owns the provider registrations, their extracted config
// items and the worker pool periodic hydrations run on. Hydrations of
// different providers are independent and may run concurrently; a slow
// provider occupies one pool slot and delays only its own cadence.
type scheduler struct {
	store  *Store
	pool   *ants.Pool
	logger *zap.Logger

	mu        sync.Mutex
	items     map[string][]Value
	providers map[string]ValueProvider
	closed    bool

	quit chan struct{}
	wg   sync.WaitGroup
}

func newScheduler(store *Store, workers int, logger *zap.Logger) (*scheduler, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &scheduler{
		store:     store,
		pool:      pool,
		logger:    logger,
		items:     make(map[string][]Value),
		providers: make(map[string]ValueProvider),
		quit:      make(chan struct{}),
	}, nil
}

// addItem queues a config item for the provider named by its .provider
// field.
func (sc *scheduler) addItem(item Value) error {
	obj, ok := item.Map()
	if !ok {
		return fmt.Errorf("provider item must be a map, got %s", item.Kind())
	}
	name, ok := obj[ProviderField].Str()
	if !ok || name == "" {
		return fmt.Errorf("provider item is missing the %s field", ProviderField)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return ErrStoreClosed
	}
	sc.items[name] = append(sc.items[name], item.Clone())
	return nil
}

// setProvider registers the provider, feeds it its extracted items,
// runs one forced hydration synchronously and schedules periodic
// re-hydration when refresh is positive.
func (sc *scheduler) setProvider(name string, p ValueProvider, refresh time.Duration) {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return
	}
	items := sc.items[name]
	if len(items) == 0 {
		sc.mu.Unlock()
		sc.logger.Warn("no config items extracted for provider, skipping",
			zap.String("provider", name))
		return
	}
	sc.providers[name] = p
	sc.mu.Unlock()

	for _, item := range items {
		p.Register(item.Clone())
	}

	set := sc.setFunc(name)
	p.Hydrate(set, true)

	if refresh > 0 {
		sc.wg.Add(1)
		go sc.runPeriodic(name, p, refresh, set)
	}
}

func (sc *scheduler) runPeriodic(name string, p ValueProvider, period time.Duration, set SetFunc) {
	defer sc.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-sc.quit:
			return
		case <-ticker.C:
			err := sc.pool.Submit(func() { p.Hydrate(set, false) })
			if err != nil {
				sc.logger.Warn("failed to submit hydrate job",
					zap.String("provider", name), zap.Error(err))
			}
		}
	}
}

// setFunc builds the shared write entry point for one provider,
// stamping its provenance and flattening Map results to leaves.
func (sc *scheduler) setFunc(name string) SetFunc {
	source := ProviderSource(name)
	return func(key string, value Value) {
		if _, ok := value.Map(); ok {
			flattenValue(key, value, func(leaf string, v Value) {
				sc.store.Set(leaf, v, source)
			})
			return
		}
		sc.store.Set(key, value, source)
	}
}

// stop cancels periodic jobs and releases the pool. In-flight hydrates
// get until ShutdownTimeout to finish. Idempotent.
func (sc *scheduler) stop() {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return
	}
	sc.closed = true
	sc.mu.Unlock()

	close(sc.quit)
	sc.wg.Wait()
	if err := sc.pool.ReleaseTimeout(ShutdownTimeout); err != nil {
		sc.logger.Warn("provider pool released with jobs still running", zap.Error(err))
	}
}
