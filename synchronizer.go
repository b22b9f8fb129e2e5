// synchronizer.go: Read/write lock protocol for configuration state
//
// Every public operation of a model or view acquires a read lock for pure
// observation and a write lock for structural changes, invalidation, and
// merged-tree construction. Locks from different components may nest (a
// combined view read wraps child model reads); a single component never
// nests its own lock because public methods lock once and internal helpers
// assume the lock is held. Listener callbacks always run after the lock has
// been released, which keeps the cross-component lock order acyclic.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package daphne

import "sync"

// Synchronizer guards the shared state of one model or view. Acquire and
// release calls must be balanced on every exit path; lock waits are
// unbounded and carry no cancellation semantics.
type Synchronizer interface {
	BeginRead()
	EndRead()
	BeginWrite()
	EndWrite()
}

// ReaderWriterSynchronizer is the default Synchronizer, backed by a
// sync.RWMutex: parallel readers, exclusive writers.
type ReaderWriterSynchronizer struct {
	mu sync.RWMutex
}

// NewReaderWriterSynchronizer returns a ready-to-use read/write
// synchronizer.
func NewReaderWriterSynchronizer() *ReaderWriterSynchronizer {
	return &ReaderWriterSynchronizer{}
}

// BeginRead acquires the shared read lock.
func (s *ReaderWriterSynchronizer) BeginRead() { s.mu.RLock() }

// EndRead releases the shared read lock.
func (s *ReaderWriterSynchronizer) EndRead() { s.mu.RUnlock() }

// BeginWrite acquires the exclusive write lock.
func (s *ReaderWriterSynchronizer) BeginWrite() { s.mu.Lock() }

// EndWrite releases the exclusive write lock.
func (s *ReaderWriterSynchronizer) EndWrite() { s.mu.Unlock() }

// NoOpSynchronizer performs no locking at all. It is the right choice for
// models confined to a single goroutine, where the lock protocol would be
// pure overhead.
type NoOpSynchronizer struct{}

// BeginRead is a no-op.
func (NoOpSynchronizer) BeginRead() {}

// EndRead is a no-op.
func (NoOpSynchronizer) EndRead() {}

// BeginWrite is a no-op.
func (NoOpSynchronizer) BeginWrite() {}

// EndWrite is a no-op.
func (NoOpSynchronizer) EndWrite() {}
