// Package throttle implements a fixed-window attempt limiter keyed by
// arbitrary fingerprint strings.
//
// A window opens on the first attempt for a fingerprint and lasts for the
// decay period given with that attempt. Attempts inside the window never
// extend it. Once it expires the count starts again from zero.
package throttle

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/keshon/jukebox/pkg/cache"
)

// Record is the state of one fingerprint's window.
type Record struct {
	Count  int       `json:"count"`
	Expire time.Time `json:"expire"`
}

// Remaining returns how long the window has left at now, or zero.
func (r Record) Remaining(now time.Time) time.Duration {
	if r.Expire.IsZero() || !now.Before(r.Expire) {
		return 0
	}
	return r.Expire.Sub(now)
}

const stripes = 64

// Throttle decides whether attempts may proceed.
// It is safe for concurrent use; decisions for one fingerprint are serialized.
type Throttle struct {
	store cache.Store
	locks [stripes]sync.Mutex

	// Now returns the current time.
	Now func() time.Time
}

// New returns a throttle storing its records in store.
func New(store cache.Store) *Throttle {
	return &Throttle{store: store, Now: time.Now}
}

func (t *Throttle) lock(fingerprint string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	return &t.locks[h.Sum32()%stripes]
}

func key(fingerprint string) string {
	return "throttle:" + fingerprint
}

// load returns the live record for fingerprint. Absent, undecodable and
// expired records all read as a fresh window.
func (t *Throttle) load(fingerprint string, now time.Time) Record {
	rec, ok, err := cache.GetValue[Record](t.store, key(fingerprint))
	if err != nil || !ok || !now.Before(rec.Expire) {
		return Record{}
	}
	return rec
}

// CanProceed records an attempt for fingerprint and reports whether it is
// within maxAttempts for the current window. A rejected attempt is not
// counted and does not move the window.
func (t *Throttle) CanProceed(fingerprint string, maxAttempts int, decay time.Duration) bool {
	mu := t.lock(fingerprint)
	mu.Lock()
	defer mu.Unlock()

	now := t.Now()
	rec := t.load(fingerprint, now)
	if rec.Count >= maxAttempts {
		return false
	}
	if rec.Count == 0 {
		rec.Expire = now.Add(decay)
	}
	rec.Count++
	// A failed write drops this attempt from the count.
	_ = cache.PutValue(t.store, key(fingerprint), rec, rec.Expire.Sub(now))
	return true
}

// Peek returns the current record for fingerprint without recording an attempt.
func (t *Throttle) Peek(fingerprint string) Record {
	mu := t.lock(fingerprint)
	mu.Lock()
	defer mu.Unlock()
	return t.load(fingerprint, t.Now())
}
