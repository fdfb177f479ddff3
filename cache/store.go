package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// InvalidKeyError is returned for keys the store cannot hash. Keys are
// always strings; the empty string is the only one refused.
type InvalidKeyError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("cache: invalid key %q: keys must be non-empty strings", e.Key)
}

// snapshot is the on-disk shape of a store.
type snapshot struct {
	Name    string             `json:"name"`
	Buckets map[string]*Bucket `json:"buckets"`
}

// Store implements ReadWriter as a single JSON snapshot file per name.
// Every mutation rewrites the snapshot synchronously. A Store is safe for
// concurrent use.
type Store struct {
	name string
	path string

	mu      sync.Mutex
	buckets map[string]*Bucket

	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates or rehydrates the store called name inside dir. An existing
// snapshot is loaded, never truncated. A snapshot that exists but cannot be
// read or parsed is an error: the store cannot safely assume it is empty.
func Open(dir, name string, opts ...Option) (*Store, error) {
	if name == "" {
		return nil, errors.New("cache: store name required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}

	s := &Store{
		name:    name,
		path:    filepath.Join(dir, name+".cache"),
		buckets: make(map[string]*Bucket),
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("cache: read %s: %w", s.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("cache: parse %s: %w", s.path, err)
	}
	for h, b := range snap.Buckets {
		if b == nil {
			continue
		}
		entries := b.Entries[:0]
		for _, e := range b.Entries {
			if e != nil {
				entries = append(entries, e)
			}
		}
		b.Entries = entries
		s.buckets[h] = b
	}
	s.logger.Debug().Str("cache", name).Str("path", s.path).Int("buckets", len(s.buckets)).Msg("rehydrated cache")
	return s, nil
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Path returns the snapshot file location.
func (s *Store) Path() string { return s.path }

// Hash returns the bucket code for key: xxhash64 folded to 32 bits. The "$"
// prefix keeps codes from ever looking numeric.
func Hash(key string) (string, error) {
	if key == "" {
		return "", &InvalidKeyError{Key: key}
	}
	h := xxhash.Sum64String(key)
	return fmt.Sprintf("$%08X", uint32(h)^uint32(h>>32)), nil
}

// Lookup implements Reader
func (s *Store) Lookup(key string) (string, bool) {
	h, err := Hash(key)
	if err != nil {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[h]
	if !ok {
		return "", false
	}
	i := b.find(key)
	if i < 0 {
		return "", false
	}
	if e := b.Entries[i]; e.Stale(s.now()) {
		s.removeAt(h, i)
		s.persist()
		return "", false
	}
	return b.Entries[i].Value, true
}

// Put implements Writer. An existing entry for key is replaced only when it
// is stale; a fresh entry always wins over a later write.
func (s *Store) Put(key, value string, ttlSeconds int) error {
	h, err := Hash(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := &Entry{Key: key, Value: value, CreatedAt: now, TTLSeconds: ttlSeconds}

	b, ok := s.buckets[h]
	if !ok {
		b = &Bucket{Hash: h}
		s.buckets[h] = b
	}

	if i := b.find(key); i >= 0 {
		if !b.Entries[i].Stale(now) {
			return nil
		}
		b.Entries[i] = entry
	} else {
		b.Entries = append(b.Entries, entry)
	}
	s.persist()
	return nil
}

// Delete implements Writer. Only the entry whose key equals key is removed,
// even when other keys share its bucket.
func (s *Store) Delete(key string) bool {
	h, err := Hash(key)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[h]
	if !ok {
		return false
	}
	i := b.find(key)
	if i < 0 {
		return false
	}
	s.removeAt(h, i)
	s.persist()
	return true
}

// CollectGarbage removes every stale entry and writes the snapshot once.
// It returns the number of entries removed.
func (s *Store) CollectGarbage() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for h, b := range s.buckets {
		kept := b.Entries[:0]
		for _, e := range b.Entries {
			if e == nil || e.Stale(now) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		b.Entries = kept
		if len(b.Entries) == 0 {
			delete(s.buckets, h)
		}
	}
	s.persist()
	s.logger.Debug().Str("cache", s.name).Int("removed", removed).Msg("cache garbage collected")
	return removed
}

// Len returns the number of entries, stale ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.buckets {
		n += len(b.Entries)
	}
	return n
}

// Entries returns copies of the raw entries in the bucket for key, stale ones
// included, without applying any staleness policy.
func (s *Store) Entries(key string) []Entry {
	h, err := Hash(key)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[h]
	if !ok {
		return nil
	}
	out := make([]Entry, 0, len(b.Entries))
	for _, e := range b.Entries {
		out = append(out, *e)
	}
	return out
}

// removeAt drops entry i of bucket h. Callers hold s.mu.
func (s *Store) removeAt(h string, i int) {
	b := s.buckets[h]
	b.Entries = append(b.Entries[:i], b.Entries[i+1:]...)
	if len(b.Entries) == 0 {
		delete(s.buckets, h)
	}
}

// persist writes the full snapshot. Failures are logged and swallowed: the
// store keeps serving from memory. Callers hold s.mu.
func (s *Store) persist() {
	if err := s.write(); err != nil {
		s.logger.Error().Err(err).Str("cache", s.name).Str("path", s.path).Msg("cache write failed")
	}
}

func (s *Store) write() error {
	data, err := json.Marshal(snapshot{Name: s.name, Buckets: s.buckets})
	if err != nil {
		return err
	}

	// Write to temporary file first, then rename (atomic operation)
	tmpPath := s.path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

var _ ReadWriter = (*Store)(nil)
