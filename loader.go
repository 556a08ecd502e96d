package strata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadFile merges one configuration file into the store. The format is
// detected from the extension, then from the content. Every leaf of the
// parsed tree becomes one Set call tagged with the file's provenance;
// subtrees carrying a ".provider" field are extracted as provider
// config items instead of being stored.
//
// A missing file returns ErrConfigNotFound so callers can decide
// whether the path was optional; all other I/O and parse failures are
// fatal to the call. Files applied here are re-merged by WatchFiles
// when they change on disk.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	parsed, err := parseFileData(path, data)
	if err != nil {
		return err
	}
	if _, ok := parsed.Map(); !ok {
		return fmt.Errorf("config file %q does not contain a table at the top level", path)
	}

	if err := s.merge(parsed, FileSource(path)); err != nil {
		return err
	}

	s.loadMu.Lock()
	if !contains(s.loadedFiles, path) {
		s.loadedFiles = append(s.loadedFiles, path)
		if s.watcher != nil {
			s.watcher.add(path)
		}
	}
	s.loadMu.Unlock()
	return nil
}

// LoadOptionalFile is LoadFile treating a missing path as simply
// absent.
func (s *Store) LoadOptionalFile(path string) error {
	if err := s.LoadFile(path); err != nil && !errors.Is(err, ErrConfigNotFound) {
		return err
	}
	return nil
}

// merge flattens a parsed tree and writes each leaf, routing provider
// items to the scheduler.
func (s *Store) merge(parsed Value, source Source) error {
	var errs []error
	flattenValue("", parsed, func(key string, leaf Value) {
		if obj, ok := leaf.Map(); ok {
			if _, isItem := obj[ProviderField]; isItem {
				stampProviderItem(obj, key)
				if err := s.AddProviderItem(leaf); err != nil {
					errs = append(errs, fmt.Errorf("provider item at %q: %w", key, err))
				}
				return
			}
		}
		s.Set(key, leaf, source)
	})
	return errors.Join(errs...)
}

// stampProviderItem injects the automatic .keyPath and .key fields.
func stampProviderItem(obj map[string]Value, keyPath string) {
	obj[KeyPathField] = StringValue(keyPath)
	leaf := keyPath
	if idx := strings.LastIndexByte(keyPath, '.'); idx >= 0 {
		leaf = keyPath[idx+1:]
	}
	obj[KeyField] = StringValue(leaf)
}

// LoadEnv merges environment variables carrying the given prefix. The
// remainder of the variable name is lowercased and underscores become
// dots: MYAPP_SERVER_PORT with prefix "MYAPP_" merges as server.port.
// A name whose conversion yields an empty segment is ambiguous and
// fails the whole call. Values parse leniently: bool and numeric
// literals keep their type, everything else stays a string.
func (s *Store) LoadEnv(prefix string) error {
	var errs []error
	for _, kv := range os.Environ() {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if rest == "" {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(rest), "_", ".")
		bad := false
		for _, seg := range strings.Split(key, ".") {
			if !isValidKeySegment(seg) {
				errs = append(errs, fmt.Errorf("%w: %s (converted to %q)", ErrBadEnvKey, name, key))
				bad = true
				break
			}
		}
		if bad {
			continue
		}
		s.Set(key, parseScalar(raw), EnvSource(name))
	}
	return errors.Join(errs...)
}

// SetFromInterface converts plain Go data (the output of any decoder)
// and flattens it into the store, one Set per leaf. This is the
// "flatten a nested value and call set once per leaf" entry point for
// external loaders.
func (s *Store) SetFromInterface(prefix string, data any, source Source) error {
	v, err := FromInterface(data)
	if err != nil {
		return err
	}
	flattenValue(prefix, v, func(key string, leaf Value) {
		s.Set(key, leaf, source)
	})
	return nil
}

// parseScalar parses a string into bool, int64 or float64 when it reads
// as one, keeping it a string otherwise.
func parseScalar(raw string) Value {
	switch raw {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return FloatValue(f)
	}
	return StringValue(raw)
}

// parseFileData decodes TOML, YAML or JSON into a Value.
func parseFileData(path string, data []byte) (Value, error) {
	format := detectFileFormat(path)
	if format == "" {
		format = detectFormatFromContent(data)
		if format == "" {
			return Value{}, fmt.Errorf("unable to determine config format for file %q", path)
		}
	}

	var raw any
	switch format {
	case "toml":
		m := make(map[string]any)
		if err := toml.Unmarshal(data, &m); err != nil {
			return Value{}, fmt.Errorf("failed to parse TOML config file %q: %w", path, err)
		}
		raw = m
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber() // preserve number precision
		if err := decoder.Decode(&raw); err != nil {
			return Value{}, fmt.Errorf("failed to parse JSON config file %q: %w", path, err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Value{}, fmt.Errorf("failed to parse YAML config file %q: %w", path, err)
		}
	}

	v, err := FromInterface(raw)
	if err != nil {
		return Value{}, fmt.Errorf("config file %q: %w", path, err)
	}
	return v, nil
}

// detectFileFormat determines format from the file extension.
func detectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

// detectFormatFromContent attempts detection by parsing, strictest
// format first.
func detectFormatFromContent(data []byte) string {
	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return "json"
	}
	var tomlTest map[string]any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return "toml"
	}
	var yamlTest any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return "yaml"
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
