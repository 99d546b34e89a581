// Package datastore is a small JSON document store: values live in memory
// keyed by string and are flushed to a single file periodically and on Close.
//
// Writes go to a temporary file that is synced and renamed over the target,
// and the previous file is rotated into a bounded set of timestamped backups.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("datastore: closed")

// Config controls a Store.
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration
	BackupCount      int
	Logger           *slog.Logger
}

// DefaultConfig returns a config saving every ten seconds with three backups.
func DefaultConfig(path string) Config {
	return Config{
		FilePath:         path,
		AutoSaveInterval: 10 * time.Second,
		BackupCount:      3,
	}
}

// Store is safe for concurrent use.
type Store struct {
	cfg Config
	log *slog.Logger

	mu       sync.RWMutex
	data     map[string]jsontext.Value
	checksum string
	closed   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open loads cfg.FilePath, creating it when missing, and starts autosaving.
func Open(cfg Config) (*Store, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("datastore: file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("datastore: create directory: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Store{cfg: cfg, log: log, data: make(map[string]jsontext.Value)}

	switch _, err := os.Stat(cfg.FilePath); {
	case errors.Is(err, os.ErrNotExist):
		if err := s.writeAtomic([]byte("{}")); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("datastore: stat: %w", err)
	default:
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}

	if cfg.AutoSaveInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.wg.Add(1)
		go s.autoSave(ctx)
	}
	return s, nil
}

// Get decodes the value under key into v.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("datastore: decode %q: %w", key, err)
	}
	return true, nil
}

// Put encodes v and stores it under key.
func (s *Store) Put(key string, v any) error {
	raw, err := json.Marshal(v, json.Deterministic(true))
	if err != nil {
		return fmt.Errorf("datastore: encode %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.data[key] = raw
	return nil
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys returns all keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload replaces the in-memory contents with the file on disk,
// discarding unsaved changes.
func (s *Store) Reload() error {
	b, err := os.ReadFile(s.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("datastore: read: %w", err)
	}
	data := make(map[string]jsontext.Value)
	if err := json.Unmarshal(b, &data); err != nil {
		return fmt.Errorf("datastore: invalid file %s: %w", s.cfg.FilePath, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.checksum = checksum(b)
	return nil
}

// Save flushes to disk now. Unchanged contents are not rewritten.
func (s *Store) Save() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()
	return s.save()
}

func (s *Store) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(s.data, json.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		return fmt.Errorf("datastore: encode: %w", err)
	}
	sum := checksum(b)
	if sum == s.checksum {
		return nil
	}
	if s.cfg.BackupCount > 0 {
		if err := s.backup(); err != nil {
			s.log.Warn("datastore backup failed", slog.Any("err", err))
		}
	}
	if err := s.writeAtomic(b); err != nil {
		return err
	}
	s.checksum = sum
	return nil
}

// Close stops autosaving and performs a final save.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	err := s.save()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

func (s *Store) autoSave(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.cfg.AutoSaveInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.save(); err != nil {
				s.log.Error("datastore autosave failed", slog.Any("err", err))
			}
		}
	}
}

func (s *Store) writeAtomic(b []byte) error {
	tmp := s.cfg.FilePath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("datastore: create temp file: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("datastore: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("datastore: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("datastore: close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.cfg.FilePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("datastore: rename temp file: %w", err)
	}
	return nil
}

func (s *Store) backup() error {
	src, err := os.Open(s.cfg.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("%s.backup.%s", s.cfg.FilePath, time.Now().Format("20060102_150405.000000"))
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	s.pruneBackups()
	return nil
}

// pruneBackups keeps the newest BackupCount backups. Backup names sort
// chronologically.
func (s *Store) pruneBackups() {
	matches, err := filepath.Glob(s.cfg.FilePath + ".backup.*")
	if err != nil || len(matches) <= s.cfg.BackupCount {
		return
	}
	sort.Strings(matches)
	for _, m := range matches[:len(matches)-s.cfg.BackupCount] {
		os.Remove(m)
	}
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
