// Package settings is the key/value store for the user-adjustable broadcast
// parameters. Values are plain strings; nothing here validates them.
package settings

import (
	"context"
	"sort"
	"sync"
	"time"

	"speechspy/internal/storage"
	logx "speechspy/pkg/logx"
)

// Keys understood by the broadcaster.
const (
	KeyGroup           = "group"
	KeyPort            = "port"
	KeyTTL             = "ttl"
	KeySeparator       = "separator"
	KeyCustomSeparator = "customSeparator"
)

var defaults = map[string]string{
	KeyGroup:           "224.1.1.1",
	KeyPort:            "5004",
	KeyTTL:             "2",
	KeySeparator:       "2spc",
	KeyCustomSeparator: "",
}

// Defaults returns a copy of the documented default values.
func Defaults() map[string]string {
	out := make(map[string]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	return out
}

// Keys returns the known keys in a stable order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Known reports whether key is one of the broadcast settings.
func Known(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Provider is the narrow get/set surface the broadcaster depends on.
type Provider interface {
	Get(key string) string
	Set(key, value string) string
}

const persistTimeout = 2 * time.Second

// Store caches settings in memory and writes through to an optional backend.
type Store struct {
	mu      sync.RWMutex
	values  map[string]string
	backend storage.Store
	log     logx.Logger
}

// New returns an empty store. A nil backend keeps values in memory only.
func New(backend storage.Store, log logx.Logger) *Store {
	return &Store{values: map[string]string{}, backend: backend, log: log}
}

// Load builds a store and primes it with every value the backend holds.
func Load(ctx context.Context, backend storage.Store, log logx.Logger) (*Store, error) {
	s := New(backend, log)
	if backend == nil {
		return s, nil
	}
	all, err := backend.Settings(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range all {
		s.values[k] = v
	}
	return s, nil
}

// Get returns the stored value for key, or its default.
// Unknown keys without a stored value yield "".
func (s *Store) Get(key string) string {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	if ok {
		return v
	}
	return defaults[key]
}

// Set stores value and returns it. Persistence failures are logged only.
func (s *Store) Set(key, value string) string {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	if s.backend != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.backend.PutSetting(ctx, key, value); err != nil {
			s.log.Warn("persist setting failed", logx.String("key", key), logx.Err(err))
		}
	}
	return value
}

// Update sets every entry of values and reports whether any effective value changed.
func (s *Store) Update(values map[string]string) bool {
	changed := false
	for _, k := range sortedKeys(values) {
		v := values[k]
		if s.Get(k) != v {
			changed = true
		}
		s.Set(k, v)
	}
	return changed
}

// Seed sets the entries of values that have no stored value yet and returns
// the keys it wrote. Stored values, including ones loaded from the backend, win.
func (s *Store) Seed(values map[string]string) []string {
	var seeded []string
	for _, k := range sortedKeys(values) {
		s.mu.RLock()
		_, ok := s.values[k]
		s.mu.RUnlock()
		if ok {
			continue
		}
		s.Set(k, values[k])
		seeded = append(seeded, k)
	}
	return seeded
}

// Snapshot returns the effective value of every known key.
func (s *Store) Snapshot() map[string]string {
	out := make(map[string]string, len(defaults))
	for k := range defaults {
		out[k] = s.Get(k)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
