// Package sqlite stores conversations in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/relay"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Interface compliance checks.
var (
	_ relay.Store    = (*Store)(nil)
	_ relay.Recorder = (*Store)(nil)
	_ relay.Lister   = (*Store)(nil)
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements relay.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for a private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from being split across connections.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			agent      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT NOT NULL,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL DEFAULT '',
			thinking        TEXT NOT NULL DEFAULT '',
			image_ids       TEXT NOT NULL DEFAULT '[]',
			created_at      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a new empty conversation with a random id.
func (s *Store) CreateConversation(ctx context.Context, agentRef string) (relay.Conversation, error) {
	c := relay.Conversation{
		ID:        uuid.NewString(),
		AgentRef:  agentRef,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, agent, created_at) VALUES (?, ?, ?)",
		c.ID, c.AgentRef, c.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return relay.Conversation{}, fmt.Errorf("sqlite: create conversation: %w", err)
	}
	return c, nil
}

// Conversation returns the conversation with its messages in insertion order.
func (s *Store) Conversation(ctx context.Context, id string) (relay.Conversation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, agent, created_at FROM conversations WHERE id = ?", id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return relay.Conversation{}, fmt.Errorf("sqlite: conversation %s: %w", id, relay.ErrConversationNotFound)
	}
	if err != nil {
		return relay.Conversation{}, fmt.Errorf("sqlite: conversation %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, content, thinking, image_ids, created_at FROM messages WHERE conversation_id = ? ORDER BY seq",
		id,
	)
	if err != nil {
		return relay.Conversation{}, fmt.Errorf("sqlite: messages %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return relay.Conversation{}, fmt.Errorf("sqlite: messages %s: %w", id, err)
		}
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return relay.Conversation{}, fmt.Errorf("sqlite: messages %s: %w", id, err)
	}
	return c, nil
}

// AppendMessage appends msg to the conversation.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg relay.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	imageIDs := msg.ImageIDs
	if imageIDs == nil {
		imageIDs = []string{}
	}
	images, err := json.Marshal(imageIDs)
	if err != nil {
		return fmt.Errorf("sqlite: marshal image ids: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM conversations WHERE id = ?", conversationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: conversation %s: %w", conversationID, relay.ErrConversationNotFound)
	}
	if err != nil {
		return fmt.Errorf("sqlite: conversation %s: %w", conversationID, err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, role, content, thinking, image_ids, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		msg.ID, conversationID, string(msg.Role), msg.Content, msg.Thinking, string(images),
		msg.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append message: %w", err)
	}
	return tx.Commit()
}

// List returns every conversation without messages, newest first.
func (s *Store) List(ctx context.Context) ([]relay.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, agent, created_at FROM conversations ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	defer rows.Close()
	var convs []relay.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list conversations: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (relay.Conversation, error) {
	var (
		c       relay.Conversation
		created string
	)
	if err := row.Scan(&c.ID, &c.AgentRef, &created); err != nil {
		return relay.Conversation{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return relay.Conversation{}, fmt.Errorf("parse created_at: %w", err)
	}
	c.CreatedAt = t
	return c, nil
}

func scanMessage(row scanner) (relay.Message, error) {
	var (
		m            relay.Message
		role, images string
		created      string
	)
	if err := row.Scan(&m.ID, &role, &m.Content, &m.Thinking, &images, &created); err != nil {
		return relay.Message{}, err
	}
	m.Role = relay.Role(role)
	if err := json.Unmarshal([]byte(images), &m.ImageIDs); err != nil {
		return relay.Message{}, fmt.Errorf("unmarshal image ids: %w", err)
	}
	if len(m.ImageIDs) == 0 {
		m.ImageIDs = nil
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return relay.Message{}, fmt.Errorf("parse created_at: %w", err)
	}
	m.CreatedAt = t
	return m, nil
}
