// journal.go: persistent journal of configuration tree changes
//
// The journal records every change event of attached models and views:
// which operation ran, the key it targeted, the values involved, and a
// cached timestamp. Records are buffered and flushed in batches by a
// background goroutine, so recording stays cheap on the mutation path.
// Each record carries a SHA-256 checksum over its identifying fields for
// tamper detection.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// JournalRecord is one persisted change record.
type JournalRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"`
	Op        string        `json:"op"`
	Key       string        `json:"key,omitempty"`
	Values    []interface{} `json:"values,omitempty"`
	Removed   int           `json:"removed,omitempty"`
	ProcessID int           `json:"process_id"`
	Checksum  string        `json:"checksum"`
}

// JournalConfig configures a change journal.
type JournalConfig struct {
	// OutputFile is the journal destination. A ".jsonl" extension selects
	// the line-oriented JSON backend; every other extension selects the
	// SQLite backend. Required.
	OutputFile string

	// BufferSize is the number of records buffered before a forced flush.
	BufferSize int

	// FlushInterval is the period of the background flusher. Zero keeps
	// the default; a negative value disables background flushing.
	FlushInterval time.Duration
}

// WithDefaults returns a copy with unset fields filled in.
func (c JournalConfig) WithDefaults() JournalConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = 5 * time.Second
	}
	return c
}

// ChangeJournal persists change events of node models and combined views.
type ChangeJournal struct {
	config      JournalConfig
	backend     journalBackend
	buffer      []JournalRecord
	bufferMu    sync.Mutex
	cancels     []func()
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      atomic.Bool
	processID   int
}

// NewChangeJournal opens a journal. Fails with ErrCodeJournalError when
// the backend cannot be initialized.
func NewChangeJournal(config JournalConfig) (*ChangeJournal, error) {
	config = config.WithDefaults()
	if config.OutputFile == "" {
		return nil, errors.New(ErrCodeJournalError, "journal output file must be set")
	}
	backend, err := newJournalBackend(config.OutputFile)
	if err != nil {
		return nil, err
	}

	j := &ChangeJournal{
		config:    config,
		backend:   backend,
		buffer:    make([]JournalRecord, 0, config.BufferSize),
		stopCh:    make(chan struct{}),
		processID: os.Getpid(),
	}
	if config.FlushInterval > 0 {
		j.flushTicker = time.NewTicker(config.FlushInterval)
		go j.flushLoop()
	}
	return j, nil
}

// Record buffers one change record. Timestamps come from the time cache,
// so recording does not hit the clock on every call. Records arriving
// after Close are dropped.
func (j *ChangeJournal) Record(source string, event ChangeEvent) {
	if j == nil || j.closed.Load() {
		return
	}

	record := JournalRecord{
		Timestamp: timecache.CachedTime(),
		Source:    source,
		Op:        event.Op.String(),
		Key:       event.Key,
		Values:    event.Values,
		Removed:   event.Removed,
		ProcessID: j.processID,
	}
	record.Checksum = journalChecksum(record)

	j.bufferMu.Lock()
	j.buffer = append(j.buffer, record)
	if len(j.buffer) >= j.config.BufferSize {
		_ = j.flushLocked()
	}
	j.bufferMu.Unlock()
}

// Attach subscribes the journal to a source's change events under the
// given source name. The returned function detaches again; Close detaches
// every remaining attachment.
func (j *ChangeJournal) Attach(name string, source TreeSource) (cancel func()) {
	cancel = source.OnChange(func(event ChangeEvent) {
		j.Record(name, event)
	})
	j.bufferMu.Lock()
	j.cancels = append(j.cancels, cancel)
	j.bufferMu.Unlock()
	return cancel
}

// Flush writes all buffered records to the backend.
func (j *ChangeJournal) Flush() error {
	j.bufferMu.Lock()
	defer j.bufferMu.Unlock()
	return j.flushLocked()
}

// Recent returns up to limit of the newest records, newest first.
func (j *ChangeJournal) Recent(limit int) ([]JournalRecord, error) {
	if err := j.Flush(); err != nil {
		return nil, err
	}
	return j.backend.Recent(limit)
}

// Stats returns journal statistics. The SQLite backend reports record
// counts and the covered time range; the JSONL backend reports file size
// only.
func (j *ChangeJournal) Stats() (JournalStats, error) {
	if err := j.Flush(); err != nil {
		return JournalStats{}, err
	}
	return j.backend.Stats()
}

// Close detaches all attached sources, flushes the buffer, and closes the
// backend. The journal must not be used afterwards.
func (j *ChangeJournal) Close() error {
	if !j.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(j.stopCh)
	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}

	j.bufferMu.Lock()
	cancels := j.cancels
	j.cancels = nil
	flushErr := j.flushLocked()
	j.bufferMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if flushErr != nil {
		return flushErr
	}
	return j.backend.Close()
}

func (j *ChangeJournal) flushLoop() {
	for {
		select {
		case <-j.flushTicker.C:
			_ = j.Flush()
		case <-j.stopCh:
			return
		}
	}
}

// flushLocked writes the buffer to the backend. Caller holds bufferMu.
func (j *ChangeJournal) flushLocked() error {
	if len(j.buffer) == 0 {
		return nil
	}
	if err := j.backend.Write(j.buffer); err != nil {
		return err
	}
	j.buffer = j.buffer[:0]
	return nil
}

// journalChecksum hashes the record's identifying fields for tamper
// detection.
func journalChecksum(record JournalRecord) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%v:%d",
		record.Timestamp.Format(time.RFC3339Nano),
		record.Source, record.Op, record.Key, record.Values, record.Removed)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
