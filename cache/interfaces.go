// Package cache provides a disk-backed response cache with hashed buckets
// and TTL-based staleness.
package cache

import "time"

// DefaultTTL is used when a caller stores an entry without a positive TTL
// of its own choosing.
const DefaultTTL = 300

// Entry represents one cached value with its staleness metadata
type Entry struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int       `json:"ttl_seconds"`
}

// Stale reports whether the entry has outlived its TTL at now.
func (e *Entry) Stale(now time.Time) bool {
	return now.Sub(e.CreatedAt) > time.Duration(e.TTLSeconds)*time.Second
}

// Bucket holds the entries whose keys share one hash code.
type Bucket struct {
	Hash    string   `json:"hash"`
	Entries []*Entry `json:"entries"`
}

// find returns the index of the entry with exactly key, or -1.
func (b *Bucket) find(key string) int {
	for i, e := range b.Entries {
		if e != nil && e.Key == key {
			return i
		}
	}
	return -1
}

// Reader defines the interface for reading cache entries
type Reader interface {
	// Lookup returns the value for key if present and fresh.
	// A stale match is removed and reported absent.
	Lookup(key string) (string, bool)
}

// Writer defines the interface for writing cache entries
type Writer interface {
	// Put stores value under key unless a fresh entry already holds the key.
	Put(key, value string, ttlSeconds int) error

	// Delete removes the entry with exactly key.
	Delete(key string) bool
}

// ReadWriter combines both cache operations
type ReadWriter interface {
	Reader
	Writer
}
