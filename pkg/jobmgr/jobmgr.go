// Package jobmgr runs named background jobs with cancellation and in-memory
// tracking. A name can be held by at most one running job; jobs are removed
// from the table when they finish.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrRunning is returned when a job with the same name is already running.
var ErrRunning = errors.New("job already running")

// ErrNotRunning is returned by Stop for an unknown job.
var ErrNotRunning = errors.New("job not running")

type job struct {
	name    string
	started time.Time
	cancel  context.CancelFunc
}

// Manager starts, stops and tracks jobs. It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	jobs   map[string]*job
	wg     sync.WaitGroup
	parent context.Context
	log    *slog.Logger
}

// NewManager returns a Manager whose jobs are derived from parent, so
// cancelling parent stops every job. A nil log discards job events.
func NewManager(parent context.Context, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager{jobs: make(map[string]*job), parent: parent, log: log}
}

// Start runs fn in a new goroutine under name and returns immediately.
func (m *Manager) Start(name string, fn func(ctx context.Context) error) error {
	return m.start(name, 0, fn)
}

// After runs fn once under name after delay. The job counts as running
// while it waits, so Stop before the delay elapses cancels it.
func (m *Manager) After(name string, delay time.Duration, fn func(ctx context.Context) error) error {
	return m.start(name, delay, fn)
}

func (m *Manager) start(name string, delay time.Duration, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunning, name)
	}
	ctx, cancel := context.WithCancel(m.parent)
	j := &job{name: name, started: time.Now(), cancel: cancel}
	m.jobs[name] = j
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer m.remove(j)
		defer cancel()

		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				m.log.Debug("job cancelled before start", slog.String("job", name))
				return
			case <-t.C:
			}
		}

		m.log.Debug("job running", slog.String("job", name))
		if err := fn(ctx); err != nil {
			m.log.Error("job failed", slog.String("job", name), slog.Any("err", err))
			return
		}
		m.log.Debug("job done", slog.String("job", name))
	}()
	return nil
}

// remove deletes j unless a newer job already took its name.
func (m *Manager) remove(j *job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs[j.name] == j {
		delete(m.jobs, j.name)
	}
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	j.cancel()
	delete(m.jobs, name)
	return nil
}

// Running reports whether a job named name is active.
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status returns a one-line summary of active jobs.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return "Running jobs: " + strings.Join(active, ", ")
}

// Wait blocks until every started job has returned or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
