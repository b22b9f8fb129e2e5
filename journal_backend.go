// journal_backend.go: storage backends for the change journal
//
// Two backends share one interface: SQLite for queryable journals and
// JSONL for grep-able, log-shipper-friendly files. The file extension
// selects the backend; there is no silent fallback from one to the
// other, a backend that cannot open reports its error.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
//
// SPDX-License-Identifier: MPL-2.0

package daphne

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3"
)

// journalBackend abstracts journal storage. Implementations must be safe
// for concurrent use.
type journalBackend interface {
	// Write persists a batch of records.
	Write(records []JournalRecord) error

	// Recent returns up to limit of the newest records, newest first.
	Recent(limit int) ([]JournalRecord, error)

	// Stats returns backend statistics.
	Stats() (JournalStats, error)

	// Close releases the backend's resources.
	Close() error
}

// JournalStats describes the state of a journal backend.
type JournalStats struct {
	TotalRecords int64            `json:"total_records"`
	RecordsByOp  map[string]int64 `json:"records_by_op,omitempty"`
	OldestRecord *time.Time       `json:"oldest_record,omitempty"`
	NewestRecord *time.Time       `json:"newest_record,omitempty"`
	SizeBytes    int64            `json:"size_bytes"`
}

// newJournalBackend selects a backend by file extension: ".jsonl" opens
// the JSONL backend, everything else SQLite.
func newJournalBackend(path string) (journalBackend, error) {
	if filepath.Ext(path) == ".jsonl" {
		return newJSONLJournal(path)
	}
	return newSQLiteJournal(path)
}

// sqliteJournal stores records in a single SQLite table with WAL mode
// for concurrent access.
type sqliteJournal struct {
	db         *sql.DB
	path       string
	insertStmt *sql.Stmt
	mu         sync.Mutex
	closed     bool
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS change_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	source TEXT NOT NULL,
	op TEXT NOT NULL,
	key TEXT,
	values_json TEXT,
	removed INTEGER NOT NULL DEFAULT 0,
	process_id INTEGER NOT NULL,
	checksum TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_change_timestamp ON change_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_change_source ON change_records(source);
CREATE INDEX IF NOT EXISTS idx_change_op ON change_records(op);`

func newSQLiteJournal(path string) (*sqliteJournal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, ErrCodeJournalError, "failed to create journal directory").
				WithContext("path", path)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeJournalError, "failed to open journal database").
			WithContext("path", path)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeJournalError, "failed to initialize journal schema").
			WithContext("path", path)
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO change_records (timestamp, source, op, key, values_json, removed, process_id, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeJournalError, "failed to prepare journal insert").
			WithContext("path", path)
	}

	return &sqliteJournal{db: db, path: path, insertStmt: insertStmt}, nil
}

func (s *sqliteJournal) Write(records []JournalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(ErrCodeJournalError, "journal backend is closed")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, ErrCodeJournalError, "failed to begin journal transaction")
	}
	stmt := tx.Stmt(s.insertStmt)
	for _, record := range records {
		valuesJSON := ""
		if record.Values != nil {
			data, err := json.Marshal(record.Values)
			if err != nil {
				_ = tx.Rollback()
				return errors.Wrap(err, ErrCodeJournalError, "failed to serialize journal values")
			}
			valuesJSON = string(data)
		}
		if _, err := stmt.Exec(
			record.Timestamp.Format(time.RFC3339Nano),
			record.Source, record.Op, record.Key,
			valuesJSON, record.Removed, record.ProcessID, record.Checksum,
		); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, ErrCodeJournalError, "failed to insert journal record")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, ErrCodeJournalError, "failed to commit journal transaction")
	}
	return nil
}

func (s *sqliteJournal) Recent(limit int) ([]JournalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New(ErrCodeJournalError, "journal backend is closed")
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT timestamp, source, op, key, values_json, removed, process_id, checksum
		FROM change_records ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeJournalError, "failed to query journal records")
	}
	defer func() { _ = rows.Close() }()

	var records []JournalRecord
	for rows.Next() {
		var record JournalRecord
		var timestamp, valuesJSON string
		if err := rows.Scan(&timestamp, &record.Source, &record.Op, &record.Key,
			&valuesJSON, &record.Removed, &record.ProcessID, &record.Checksum); err != nil {
			return nil, errors.Wrap(err, ErrCodeJournalError, "failed to scan journal record")
		}
		if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			record.Timestamp = ts
		}
		if valuesJSON != "" {
			_ = json.Unmarshal([]byte(valuesJSON), &record.Values)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *sqliteJournal) Stats() (JournalStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return JournalStats{}, errors.New(ErrCodeJournalError, "journal backend is closed")
	}

	stats := JournalStats{RecordsByOp: make(map[string]int64)}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM change_records`).Scan(&stats.TotalRecords); err != nil {
		return stats, errors.Wrap(err, ErrCodeJournalError, "failed to count journal records")
	}

	rows, err := s.db.Query(`SELECT op, COUNT(*) FROM change_records GROUP BY op`)
	if err != nil {
		return stats, errors.Wrap(err, ErrCodeJournalError, "failed to count journal operations")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var op string
		var count int64
		if err := rows.Scan(&op, &count); err != nil {
			return stats, errors.Wrap(err, ErrCodeJournalError, "failed to scan operation count")
		}
		stats.RecordsByOp[op] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if stats.TotalRecords > 0 {
		var oldest, newest string
		if err := s.db.QueryRow(`SELECT MIN(timestamp), MAX(timestamp) FROM change_records`).
			Scan(&oldest, &newest); err == nil {
			if ts, err := time.Parse(time.RFC3339Nano, oldest); err == nil {
				stats.OldestRecord = &ts
			}
			if ts, err := time.Parse(time.RFC3339Nano, newest); err == nil {
				stats.NewestRecord = &ts
			}
		}
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

func (s *sqliteJournal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.insertStmt != nil {
		_ = s.insertStmt.Close()
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, ErrCodeJournalError, "failed to close journal database")
	}
	return nil
}

// jsonlJournal appends one JSON object per record to a plain file.
type jsonlJournal struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	closed bool
}

func newJSONLJournal(path string) (*jsonlJournal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, ErrCodeJournalError, "failed to create journal directory").
				WithContext("path", path)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeJournalError, "failed to open journal file").
			WithContext("path", path)
	}
	return &jsonlJournal{file: file, path: path}, nil
}

func (j *jsonlJournal) Write(records []JournalRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errors.New(ErrCodeJournalError, "journal backend is closed")
	}

	var b strings.Builder
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return errors.Wrap(err, ErrCodeJournalError, "failed to serialize journal record")
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	if _, err := j.file.WriteString(b.String()); err != nil {
		return errors.Wrap(err, ErrCodeJournalError, "failed to append journal records")
	}
	return nil
}

func (j *jsonlJournal) Recent(limit int) ([]JournalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, errors.New(ErrCodeJournalError, "journal backend is closed")
	}
	if limit <= 0 {
		return nil, nil
	}
	if err := j.file.Sync(); err != nil {
		return nil, errors.Wrap(err, ErrCodeJournalError, "failed to sync journal file")
	}

	readFile, err := os.Open(j.path)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeJournalError, "failed to open journal file for reading")
	}
	defer func() { _ = readFile.Close() }()

	// Keep a sliding window of the last limit lines, then reverse.
	var window []JournalRecord
	scanner := bufio.NewScanner(readFile)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var record JournalRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		window = append(window, record)
		if len(window) > limit {
			window = window[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeJournalError, "failed to read journal file")
	}

	out := make([]JournalRecord, 0, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		out = append(out, window[i])
	}
	return out, nil
}

func (j *jsonlJournal) Stats() (JournalStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return JournalStats{}, errors.New(ErrCodeJournalError, "journal backend is closed")
	}
	stats := JournalStats{}
	if info, err := os.Stat(j.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

func (j *jsonlJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.file.Sync(); err != nil {
		_ = j.file.Close()
		return errors.Wrap(err, ErrCodeJournalError, "failed to sync journal file")
	}
	return j.file.Close()
}
