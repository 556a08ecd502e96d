package strata

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileValueProvider hydrates keys from files on disk. Each item names a
// file via its "path" field and how to interpret it via "encoding":
//
//	utf8    file contents as a string (default)
//	bytes   raw file contents
//	parsed  TOML/YAML/JSON by extension, hydrated as a Map and
//	        flattened to leaves by the write entry point
//
// Unless forced, a hydration re-reads only files whose modification
// time changed. A missing or unreadable file writes Null to the target
// key and logs a warning; it never fails the hydration.
type FileValueProvider struct {
	logger *zap.Logger

	mu    sync.Mutex
	items map[string]fileItem // keyed by target key path
	seen  map[string]time.Time
}

type fileItem struct {
	keyPath  string
	path     string
	encoding string
}

// NewFileValueProvider returns a file provider logging through logger
// (nil for none).
func NewFileValueProvider(logger *zap.Logger) *FileValueProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileValueProvider{
		logger: logger,
		items:  make(map[string]fileItem),
		seen:   make(map[string]time.Time),
	}
}

// Register adds one config item. Items without a usable .keyPath or
// path field are dropped with a warning.
func (p *FileValueProvider) Register(item Value) {
	obj, ok := item.Map()
	if !ok {
		p.logger.Warn("file provider item is not a map", zap.Stringer("item", item))
		return
	}
	keyPath, _ := obj[KeyPathField].Str()
	path, _ := obj["path"].Str()
	if keyPath == "" || path == "" {
		p.logger.Warn("file provider item needs .keyPath and path fields",
			zap.String("keyPath", keyPath), zap.String("path", path))
		return
	}
	encoding, _ := obj["encoding"].Str()
	if encoding == "" {
		encoding = "utf8"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[keyPath] = fileItem{keyPath: keyPath, path: path, encoding: encoding}
}

// Unregister drops the item targeting the given key path.
func (p *FileValueProvider) Unregister(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, key)
	delete(p.seen, key)
}

// Hydrate reads every registered file and pushes the result through
// set.
func (p *FileValueProvider) Hydrate(set SetFunc, force bool) {
	p.mu.Lock()
	items := make([]fileItem, 0, len(p.items))
	for _, it := range p.items {
		items = append(items, it)
	}
	p.mu.Unlock()

	for _, it := range items {
		info, err := os.Stat(it.path)
		if err != nil {
			p.logger.Warn("file provider cannot stat file",
				zap.String("keyPath", it.keyPath), zap.String("path", it.path), zap.Error(err))
			set(it.keyPath, NullValue())
			continue
		}
		if !force && p.unchanged(it.keyPath, info.ModTime()) {
			continue
		}

		data, err := os.ReadFile(it.path)
		if err != nil {
			p.logger.Warn("file provider cannot read file",
				zap.String("keyPath", it.keyPath), zap.String("path", it.path), zap.Error(err))
			set(it.keyPath, NullValue())
			continue
		}

		var v Value
		switch it.encoding {
		case "bytes":
			v = BytesValue(data)
		case "parsed":
			v, err = parseFileData(it.path, data)
			if err != nil {
				p.logger.Warn("file provider cannot parse file",
					zap.String("keyPath", it.keyPath), zap.String("path", it.path), zap.Error(err))
				set(it.keyPath, NullValue())
				continue
			}
		default: // utf8
			v = StringValue(string(data))
		}

		p.mu.Lock()
		p.seen[it.keyPath] = info.ModTime()
		p.mu.Unlock()
		set(it.keyPath, v)
	}
}

func (p *FileValueProvider) unchanged(keyPath string, mod time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.seen[keyPath]
	return ok && last.Equal(mod)
}
