// Package cache provides a small key/value cache with per-entry expiry.
//
// Values are raw bytes; GetValue and PutValue encode typed values as JSON.
// A Store never returns an entry past its expiry.
package cache

import (
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
)

// Store is a key/value cache with per-entry expiry.
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns the value stored for key, if present and not expired.
	Get(key string) ([]byte, bool)
	// Put stores value under key. A ttl of zero or less never expires.
	Put(key string, value []byte, ttl time.Duration) error
	// Has reports whether key holds an unexpired value.
	Has(key string) bool
	// Forget removes key. Forgetting an absent key is not an error.
	Forget(key string) error
	// Pull removes key and returns the value it held, as one operation.
	Pull(key string) ([]byte, bool)
}

// Remember returns the value for key, calling fn and storing its result
// for ttl when the key is absent.
func Remember(s Store, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		return nil, err
	}
	if err := s.Put(key, v, ttl); err != nil {
		return nil, fmt.Errorf("couldn't store %q: %w", key, err)
	}
	return v, nil
}

// GetValue decodes the JSON value stored under key into a T.
func GetValue[T any](s Store, key string) (T, bool, error) {
	var v T
	b, ok := s.Get(key)
	if !ok {
		return v, false, nil
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, fmt.Errorf("couldn't decode %q: %w", key, err)
	}
	return v, true, nil
}

// PutValue stores v under key as JSON.
func PutValue[T any](s Store, key string, v T, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("couldn't encode %q: %w", key, err)
	}
	return s.Put(key, b, ttl)
}
