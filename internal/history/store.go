package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"topchat/pkg/protocol"
)

// StoredMessage is one archived chat message with its storage metadata.
type StoredMessage struct {
	ID        string
	Message   protocol.ChatMessage
	CreatedAt time.Time
}

// StoredEvent is one archived connection-lifecycle event.
type StoredEvent struct {
	ID        string
	ClientID  int
	Event     string
	Detail    string
	CreatedAt time.Time
}

// writeOperation carries one write through the single-writer goroutine.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Store archives chat messages and connection events in SQLite. All writes
// funnel through a single goroutine; SQLite tolerates concurrent readers
// but not concurrent writers.
type Store struct {
	db      *sql.DB
	timeout time.Duration

	writeCh  chan writeOperation
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens the archive at path and ensures the schema exists.
func Open(path string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply archive schema: %w", err)
	}

	s := &Store{
		db:       db,
		timeout:  timeout,
		writeCh:  make(chan writeOperation, 100),
		shutdown: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func applySchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		id           TEXT PRIMARY KEY,
		sender_id    INTEGER NOT NULL,
		recipient_id INTEGER NOT NULL,
		sender_name  TEXT NOT NULL,
		body         TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);

	CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		client_id  INTEGER NOT NULL,
		event      TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_events_client_id ON events(client_id);`

	_, err := db.Exec(schema)
	return err
}

func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeCh:
			op.result <- op.operation(s.db)
		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	op := writeOperation{operation: operation, result: make(chan error, 1)}

	select {
	case s.writeCh <- op:
	case <-time.After(s.timeout):
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.result:
		return err
	case <-time.After(s.timeout):
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SaveMessage archives one chat message.
func (s *Store) SaveMessage(ctx context.Context, msg protocol.ChatMessage) error {
	id := uuid.New().String()
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO messages (id, sender_id, recipient_id, sender_name, body, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, msg.SenderID, msg.RecipientID, msg.SenderName, msg.Body, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
}

// SaveEvent archives one connection-lifecycle event (connect, disconnect,
// rename).
func (s *Store) SaveEvent(ctx context.Context, clientID int, event, detail string) error {
	id := uuid.New().String()
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO events (id, client_id, event, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, clientID, event, detail, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
		return nil
	})
}

// RecentMessages returns up to limit archived messages, newest first.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]StoredMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, sender_name, body, created_at
		 FROM messages ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.Message.SenderID, &m.Message.RecipientID,
			&m.Message.SenderName, &m.Message.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClientEvents returns every archived event for one client, oldest first.
func (s *Store) ClientEvents(ctx context.Context, clientID int) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, event, detail, created_at
		 FROM events WHERE client_id = ? ORDER BY created_at ASC, id ASC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close drains the writer and closes the database. Safe to call once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		log.Printf("Archive close failed: %v", err)
		return err
	}
	return nil
}
