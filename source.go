package strata

import "fmt"

// SourceKind names the class of place a stored value came from.
type SourceKind uint8

const (
	SourceUnknown SourceKind = iota
	SourceFile
	SourceEnv
	SourceProvider
	SourceSet
)

// Source records where a stored value originated. It is attached to an
// entry at write time and never mutated; overwriting the entry replaces
// the source along with the value.
type Source struct {
	kind SourceKind
	name string // file path, environment variable, or provider name
}

// FileSource tags a value loaded from the configuration file at path.
func FileSource(path string) Source { return Source{kind: SourceFile, name: path} }

// EnvSource tags a value loaded from the named environment variable.
func EnvSource(name string) Source { return Source{kind: SourceEnv, name: name} }

// ProviderSource tags a value hydrated by the named value provider.
func ProviderSource(name string) Source { return Source{kind: SourceProvider, name: name} }

// SetSource tags a value written programmatically through the API.
func SetSource() Source { return Source{kind: SourceSet} }

// Kind reports the source class.
func (s Source) Kind() SourceKind { return s.kind }

// Name reports the file path, variable or provider name, empty for
// programmatic and unknown sources.
func (s Source) Name() string { return s.name }

func (s Source) String() string {
	switch s.kind {
	case SourceFile:
		return fmt.Sprintf("file(%s)", s.name)
	case SourceEnv:
		return fmt.Sprintf("env(%s)", s.name)
	case SourceProvider:
		return fmt.Sprintf("provider(%s)", s.name)
	case SourceSet:
		return "set"
	}
	return "unknown"
}
