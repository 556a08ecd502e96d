package strata

import "errors"

// Sentinel errors returned by the store and the loaders.
var (
	// ErrConfigNotFound indicates a configuration file path that does
	// not exist. Optional paths treat this as simply absent.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrTypeConflict indicates flat keys that cannot reconcile into one
	// nested tree, e.g. a map key where an array index was expected.
	ErrTypeConflict = errors.New("subtree type conflict")

	// ErrBadEnvKey indicates an environment variable whose name converts
	// to an ambiguous dotted path (empty segment).
	ErrBadEnvKey = errors.New("malformed environment key")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store closed")
)
