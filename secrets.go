package strata

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Decryptor turns a ciphertext back into plaintext with a raw key.
// Implementations are registered per algorithm name.
type Decryptor interface {
	Decrypt(ciphertext, key []byte) ([]byte, error)
}

// DecryptorRegistry maps algorithm names to decryptors.
type DecryptorRegistry struct {
	mu     sync.RWMutex
	byAlgo map[string]Decryptor
}

// NewDecryptorRegistry returns a registry pre-populated with the
// built-in algorithms.
func NewDecryptorRegistry() *DecryptorRegistry {
	r := &DecryptorRegistry{byAlgo: make(map[string]Decryptor)}
	r.Register(AlgorithmAESGCM, aesGCMDecryptor{})
	r.Register(AlgorithmChaCha20, chachaDecryptor{})
	r.Register(AlgorithmPlain, plainDecryptor{})
	return r
}

// Register adds or replaces the decryptor for an algorithm name.
func (r *DecryptorRegistry) Register(algorithm string, d Decryptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAlgo[algorithm] = d
}

// Lookup returns the decryptor registered for an algorithm name.
func (r *DecryptorRegistry) Lookup(algorithm string) (Decryptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byAlgo[algorithm]
	return d, ok
}

// SecretKeyStore holds the raw key bytes secrets reference by name.
type SecretKeyStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewSecretKeyStore returns an empty key store.
func NewSecretKeyStore() *SecretKeyStore {
	return &SecretKeyStore{keys: make(map[string][]byte)}
}

// SetKey stores raw key bytes under name, replacing any previous key.
func (ks *SecretKeyStore) SetKey(name string, key []byte) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keys[name] = append([]byte(nil), key...)
}

// Key returns the raw key bytes registered under name.
func (ks *SecretKeyStore) Key(name string) ([]byte, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	k, ok := ks.keys[name]
	return k, ok
}

// LoadKeysFromDir registers every "*.key" file in dir; the file stem
// becomes the key name and the content is base64 (whitespace ignored).
func (ks *SecretKeyStore) LoadKeysFromDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read key directory %q: %w", dir, err)
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".key") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			return fmt.Errorf("failed to read key file %q: %w", ent.Name(), err)
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("key file %q is not valid base64: %w", ent.Name(), err)
		}
		ks.SetKey(strings.TrimSuffix(ent.Name(), ".key"), raw)
	}
	return nil
}

// secretResolver replaces secret markers inside a value with their
// decrypted plaintext before the value is committed to the store.
//
// A marker is a map carrying the reserved segment whose value is the
// three-element array [algorithm, key name, base64 ciphertext]. On any
// failure the node degrades to Null with a logged warning; the store
// never exposes a raw marker and never panics on a bad secret.
type secretResolver struct {
	segment    string
	decryptors *DecryptorRegistry
	keys       *SecretKeyStore
	logger     *zap.Logger

	// cache maps a node's key path to the hash of the marker triple it
	// last decrypted successfully, plus the plaintext. An unchanged
	// triple skips the decryptor; failures are never cached, so a bad
	// marker is retried on every write until it changes or succeeds.
	// Guarded by the store's write lock: resolve only runs inside Set.
	cache map[string]secretCacheEntry
}

type secretCacheEntry struct {
	hash      [sha256.Size]byte
	plaintext []byte
}

func newSecretResolver(segment string, logger *zap.Logger) *secretResolver {
	return &secretResolver{
		segment:    segment,
		decryptors: NewDecryptorRegistry(),
		keys:       NewSecretKeyStore(),
		logger:     logger,
		cache:      make(map[string]secretCacheEntry),
	}
}

// resolve walks the value depth-first and resolves every marker in
// place. rootKey is the store key being written; nested nodes extend it
// for per-node cache paths.
func (r *secretResolver) resolve(rootKey string, v Value) Value {
	switch v.kind {
	case KindMap:
		if marker, ok := v.obj[r.segment]; ok {
			// Resolved secrets have no children; stop descending.
			return r.resolveSecret(rootKey, marker)
		}
		for k, child := range v.obj {
			v.obj[k] = r.resolve(rootKey+"."+k, child)
		}
		return v
	case KindArray:
		for i, child := range v.arr {
			v.arr[i] = r.resolve(rootKey+"."+strconv.Itoa(i), child)
		}
		return v
	default:
		return v
	}
}

func (r *secretResolver) resolveSecret(path string, marker Value) Value {
	algo, keyName, b64, err := splitMarker(marker)
	if err != nil {
		r.logger.Warn("malformed secret marker",
			zap.String("path", path), zap.Error(err))
		return NullValue()
	}

	hash := markerHash(algo, keyName, b64)
	if ce, ok := r.cache[path]; ok && ce.hash == hash {
		return BytesValue(append([]byte(nil), ce.plaintext...))
	}

	dec, ok := r.decryptors.Lookup(algo)
	if !ok {
		r.logger.Warn("no decryptor registered for secret",
			zap.String("path", path), zap.String("algorithm", algo))
		return NullValue()
	}
	key, ok := r.keys.Key(keyName)
	if !ok {
		r.logger.Warn("secret references unknown key",
			zap.String("path", path), zap.String("key", keyName))
		return NullValue()
	}
	ciphertext, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		r.logger.Warn("secret ciphertext is not valid base64",
			zap.String("path", path), zap.Error(err))
		return NullValue()
	}
	plaintext, err := dec.Decrypt(ciphertext, key)
	if err != nil {
		r.logger.Warn("secret decryption failed",
			zap.String("path", path), zap.String("algorithm", algo), zap.Error(err))
		return NullValue()
	}

	r.cache[path] = secretCacheEntry{hash: hash, plaintext: plaintext}
	return BytesValue(append([]byte(nil), plaintext...))
}

// splitMarker validates the [algorithm, key name, ciphertext] triple.
func splitMarker(marker Value) (algo, keyName, b64 string, err error) {
	arr, ok := marker.Array()
	if !ok {
		return "", "", "", fmt.Errorf("marker value is %s, want a 3-element array", marker.Kind())
	}
	if len(arr) != 3 {
		return "", "", "", fmt.Errorf("marker has %d elements, want 3", len(arr))
	}
	parts := make([]string, 3)
	for i, e := range arr {
		s, ok := e.Str()
		if !ok {
			return "", "", "", fmt.Errorf("marker element %d is %s, want string", i, e.Kind())
		}
		parts[i] = s
	}
	return parts[0], parts[1], parts[2], nil
}

func markerHash(algo, keyName, b64 string) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(algo))
	h.Write([]byte{0})
	h.Write([]byte(keyName))
	h.Write([]byte{0})
	h.Write([]byte(b64))
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}
