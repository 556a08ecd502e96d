package strata

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Builder assembles a fully loaded store: options, secret keys,
// configuration files in precedence order, environment overrides,
// value providers and the reload watcher.
type Builder struct {
	opts      Options
	keyDirs   []string
	keys      map[string][]byte
	algos     map[string]Decryptor
	files     []builderFile
	envPrefix *string
	providers []builderProvider
	watch     bool
}

type builderFile struct {
	path     string
	optional bool
}

type builderProvider struct {
	name    string
	p       ValueProvider
	refresh time.Duration
}

// NewBuilder creates a builder with default options.
func NewBuilder() *Builder {
	return &Builder{
		keys:  make(map[string][]byte),
		algos: make(map[string]Decryptor),
	}
}

// WithLogger sets the logger soft failures are reported through.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.opts.Logger = logger
	return b
}

// WithDebounce sets the change-notification coalescence window.
func (b *Builder) WithDebounce(d time.Duration) *Builder {
	b.opts.Debounce = d
	return b
}

// WithSecretSegment overrides the reserved secret-marker field name.
func (b *Builder) WithSecretSegment(segment string) *Builder {
	b.opts.SecretSegment = segment
	return b
}

// WithPoolWorkers sets the provider hydration concurrency.
func (b *Builder) WithPoolWorkers(n int) *Builder {
	b.opts.PoolWorkers = n
	return b
}

// WithSecretKeyDir loads every "*.key" file from dir into the key
// store before any file is merged.
func (b *Builder) WithSecretKeyDir(dir string) *Builder {
	b.keyDirs = append(b.keyDirs, dir)
	return b
}

// WithSecretKey registers one raw key under name.
func (b *Builder) WithSecretKey(name string, key []byte) *Builder {
	b.keys[name] = append([]byte(nil), key...)
	return b
}

// WithDecryptor registers a custom decryptor for an algorithm name.
func (b *Builder) WithDecryptor(algorithm string, d Decryptor) *Builder {
	b.algos[algorithm] = d
	return b
}

// WithFile appends a required configuration file. Files merge in the
// order given; later files overwrite earlier keys.
func (b *Builder) WithFile(path string) *Builder {
	b.files = append(b.files, builderFile{path: path})
	return b
}

// WithOptionalFile appends a configuration file that may be absent.
func (b *Builder) WithOptionalFile(path string) *Builder {
	b.files = append(b.files, builderFile{path: path, optional: true})
	return b
}

// WithEnvPrefix merges matching environment variables after all files,
// so the environment takes precedence.
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	b.envPrefix = &prefix
	return b
}

// WithProvider wires a value provider once loading has extracted its
// config items.
func (b *Builder) WithProvider(name string, p ValueProvider, refresh time.Duration) *Builder {
	b.providers = append(b.providers, builderProvider{name: name, p: p, refresh: refresh})
	return b
}

// WithWatch re-merges loaded files when they change on disk.
func (b *Builder) WithWatch() *Builder {
	b.watch = true
	return b
}

// Build constructs the store, loads keys, merges files and environment
// in precedence order, wires providers and starts the watcher. On any
// fatal error the partially built store is closed and the error
// returned.
func (b *Builder) Build() (*Store, error) {
	s, err := NewWithOptions(b.opts)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*Store, error) {
		s.Close()
		return nil, err
	}

	for _, dir := range b.keyDirs {
		if err := s.SecretKeys().LoadKeysFromDir(dir); err != nil {
			return fail(err)
		}
	}
	for name, key := range b.keys {
		s.SecretKeys().SetKey(name, key)
	}
	for algo, d := range b.algos {
		s.Decryptors().Register(algo, d)
	}

	for _, f := range b.files {
		err := s.LoadFile(f.path)
		if err != nil && f.optional && errors.Is(err, ErrConfigNotFound) {
			continue
		}
		if err != nil {
			return fail(err)
		}
	}

	if b.envPrefix != nil {
		if err := s.LoadEnv(*b.envPrefix); err != nil {
			return fail(err)
		}
	}

	for _, bp := range b.providers {
		s.SetValueProvider(bp.name, bp.p, bp.refresh)
	}

	if b.watch {
		if err := s.WatchFiles(); err != nil {
			return fail(err)
		}
	}

	return s, nil
}

// MustBuild is Build, panicking on error.
func (b *Builder) MustBuild() *Store {
	s, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("store build failed: %v", err))
	}
	return s
}
