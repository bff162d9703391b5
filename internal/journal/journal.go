// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package journal persists the domain events of run-control sessions in a
// SQLite database.
//
// Events are recorded from a session listener, which runs on the session's
// dispatch goroutine and must not block. Record therefore only enqueues; a
// single writer goroutine drains the queue into the database. Close drains
// whatever is still queued before closing the database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	"github.com/tombee/runcontrol/internal/log"
	"github.com/tombee/runcontrol/internal/runcontrol"
)

// DefaultQueueSize is the number of entries Record buffers before it starts
// dropping them.
const DefaultQueueSize = 256

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal closed")

// Entry is one recorded domain event.
type Entry struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Kind       string    `json:"kind"`
	Context    string    `json:"context,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Triggering string    `json:"triggering,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Config contains journal configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections. In-memory
	// databases always use a single connection.
	MaxOpenConns int

	// QueueSize bounds the write queue (default: DefaultQueueSize).
	QueueSize int

	Logger *slog.Logger
}

// Journal stores domain events.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}

	// pending counts queued entries not yet written.
	pending atomic.Int64
	dropped atomic.Int64

	// dropLog throttles the queue-full warning.
	dropLog rate.Sometimes
}

// Open opens or creates the journal database and starts its writer.
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: opens a separate database.
	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 || cfg.Path == ":memory:" {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	j := &Journal{
		db:      db,
		logger:  log.WithComponent(logger, "journal"),
		queue:   make(chan Entry, size),
		done:    make(chan struct{}),
		dropLog: rate.Sometimes{First: 1, Interval: time.Second},
	}
	go j.writer()
	return j, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			context TEXT,
			reason TEXT,
			triggering TEXT,
			detail TEXT,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_recorded_at ON events(recorded_at)`,
	}
	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Listener returns a session listener that records every event it sees
// under sessionID.
func (j *Journal) Listener(sessionID string) func(context.Context, runcontrol.Event) {
	return func(_ context.Context, ev runcontrol.Event) {
		j.Record(EntryFor(sessionID, ev))
	}
}

// EntryFor converts a domain event into a journal entry.
func EntryFor(sessionID string, ev runcontrol.Event) Entry {
	e := Entry{
		SessionID:  sessionID,
		Kind:       string(ev.Kind),
		Reason:     string(ev.Reason),
		Detail:     ev.Detail,
		RecordedAt: time.Now(),
	}
	if ev.Context != nil {
		e.Context = ev.Context.String()
	}
	if ev.Triggering != nil {
		e.Triggering = ev.Triggering.String()
	}
	return e
}

// Record queues an entry without blocking. It reports false when the entry
// was dropped because the journal is closed or its queue is full.
func (j *Journal) Record(e Entry) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return false
	}
	j.pending.Add(1)
	select {
	case j.queue <- e:
		return true
	default:
		j.pending.Add(-1)
		dropped := j.dropped.Add(1)
		j.dropLog.Do(func() {
			j.logger.Warn("journal queue full, entries dropped",
				slog.String(log.SessionIDKey, e.SessionID),
				log.Event(e.Kind),
				slog.Int64("dropped", dropped))
		})
		return false
	}
}

// Dropped returns the number of entries Record could not queue.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

func (j *Journal) writer() {
	defer close(j.done)
	for e := range j.queue {
		if err := j.insert(context.Background(), e); err != nil {
			j.logger.Error("failed to record event",
				slog.String(log.SessionIDKey, e.SessionID),
				log.Event(e.Kind),
				log.Error(err))
		}
		j.pending.Add(-1)
	}
}

func (j *Journal) insert(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (session_id, kind, context, reason, triggering, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Kind, e.Context, e.Reason, e.Triggering, e.Detail, e.RecordedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Flush waits until every entry queued so far has been written.
func (j *Journal) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for j.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-j.done:
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// List returns the entries of a session in the order they were recorded.
func (j *Journal) List(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, kind, context, reason, triggering, detail, recorded_at
		FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ctxStr, reason, trig, detail sql.NullString
		var recordedAt int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &ctxStr, &reason, &trig, &detail, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Context = ctxStr.String
		e.Reason = reason.String
		e.Triggering = trig.String
		e.Detail = detail.String
		e.RecordedAt = time.Unix(0, recordedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sessions returns the ids of all sessions with recorded events, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id FROM events GROUP BY session_id ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteOlderThan removes entries recorded before the given time and returns
// how many were removed.
func (j *Journal) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM events WHERE recorded_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	return res.RowsAffected()
}

// Close stops accepting entries, writes everything still queued and closes
// the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done
	return j.db.Close()
}
