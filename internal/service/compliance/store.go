package compliance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
)

const DefaultRetryAfter = 30 * time.Second

// Store serves the live snapshot to concurrent queries. Publication is a
// single pointer swap; readers never see a partially built snapshot and a
// query holds on to the snapshot it started with.
type Store struct {
	current atomic.Pointer[compliance.Snapshot]

	mu      sync.RWMutex
	history []*compliance.Snapshot // newest first, includes current
	retain  int

	ready      chan struct{}
	readyOnce  sync.Once
	retryAfter time.Duration
	fallback   compliance.SnapshotRepository
}

type StoreOption func(*Store)

// WithHistory keeps the last n published snapshots in memory for pinned
// queries.
func WithHistory(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.retain = n
		}
	}
}

func WithRetryAfter(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.retryAfter = d
		}
	}
}

// WithFallback resolves pinned versions that have left the in-memory history.
func WithFallback(repo compliance.SnapshotRepository) StoreOption {
	return func(s *Store) {
		s.fallback = repo
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		retain:     3,
		ready:      make(chan struct{}),
		retryAfter: DefaultRetryAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish makes snap the live snapshot. Snapshots older than the one being
// served are ignored.
func (s *Store) Publish(snap *compliance.Snapshot) bool {
	if snap == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.current.Load(); cur != nil && snap.RecomputedAt.Before(cur.RecomputedAt) {
		return false
	}

	s.history = append([]*compliance.Snapshot{snap}, s.history...)
	if len(s.history) > s.retain {
		s.history = s.history[:s.retain]
	}
	s.current.Store(snap)
	s.readyOnce.Do(func() { close(s.ready) })
	return true
}

// Current returns the live snapshot or nil.
func (s *Store) Current() *compliance.Snapshot {
	return s.current.Load()
}

// Ready is closed once the first snapshot is published.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Acquire returns the snapshot a query should run against: the live one when
// version is empty, otherwise the pinned version. Before the first publish it
// waits until ctx is done and then fails closed with
// SnapshotUnavailableError.
func (s *Store) Acquire(ctx context.Context, version string) (*compliance.Snapshot, error) {
	if version != "" {
		return s.pinned(ctx, version)
	}
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	select {
	case <-s.ready:
		return s.current.Load(), nil
	case <-ctx.Done():
		return nil, &compliance.SnapshotUnavailableError{RetryAfter: s.retryAfter}
	}
}

func (s *Store) pinned(ctx context.Context, version string) (*compliance.Snapshot, error) {
	s.mu.RLock()
	for _, snap := range s.history {
		if snap.Version == version {
			s.mu.RUnlock()
			return snap, nil
		}
	}
	s.mu.RUnlock()

	if s.fallback == nil {
		return nil, compliance.ErrSnapshotNotFound
	}
	snap, err := s.fallback.GetByVersion(ctx, version)
	if err != nil {
		if errors.Is(err, compliance.ErrSnapshotNotFound) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, &compliance.SnapshotUnavailableError{RetryAfter: s.retryAfter}
		}
		return nil, err
	}
	return snap, nil
}

// Versions lists the in-memory versions, newest first.
func (s *Store) Versions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.history))
	for i, snap := range s.history {
		out[i] = snap.Version
	}
	return out
}
