package json

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/relay"
	"github.com/google/uuid"
)

// Interface compliance checks.
var (
	_ relay.Store    = (*Store)(nil)
	_ relay.Recorder = (*Store)(nil)
	_ relay.Lister   = (*Store)(nil)
)

const defaultAgentDir = "default"

// Store keeps one file per conversation under dir, grouped by agent:
// dir/<agent>/<id>.json.
type Store struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store rooted at dir. The directory is created on first
// write.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{dir: dir, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateConversation writes a new empty conversation with a random id.
func (s *Store) CreateConversation(_ context.Context, agentRef string) (relay.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	c := relay.Conversation{
		ID:        uuid.NewString(),
		AgentRef:  agentRef,
		CreatedAt: now,
	}
	if err := Save(s.path(c), c, now); err != nil {
		return relay.Conversation{}, fmt.Errorf("json: create conversation: %w", err)
	}
	return c, nil
}

// Conversation loads a conversation by id.
func (s *Store) Conversation(_ context.Context, id string) (relay.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.find(id)
	if err != nil {
		return relay.Conversation{}, err
	}
	c, err := Load(p)
	if err != nil {
		return relay.Conversation{}, fmt.Errorf("json: conversation %s: %w", id, err)
	}
	return c, nil
}

// AppendMessage appends msg to the conversation and rewrites its file.
func (s *Store) AppendMessage(_ context.Context, conversationID string, msg relay.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.find(conversationID)
	if err != nil {
		return err
	}
	c, err := Load(p)
	if err != nil {
		return fmt.Errorf("json: conversation %s: %w", conversationID, err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	c.Messages = append(c.Messages, msg)
	if err := Save(p, c, s.now().UTC()); err != nil {
		return fmt.Errorf("json: append message: %w", err)
	}
	return nil
}

// List returns every stored conversation without messages, newest first.
// Unreadable files are skipped.
func (s *Store) List(_ context.Context) ([]relay.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := doublestar.Glob(os.DirFS(s.dir), "*/*.json")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("json: list conversations: %w", err)
	}
	var convs []relay.Conversation
	for _, m := range matches {
		c, err := Load(filepath.Join(s.dir, filepath.FromSlash(m)))
		if err != nil {
			continue
		}
		c.Messages = nil
		convs = append(convs, c)
	}
	slices.SortFunc(convs, func(a, b relay.Conversation) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return convs, nil
}

func (s *Store) path(c relay.Conversation) string {
	return filepath.Join(s.dir, agentDir(c.AgentRef), c.ID+".json")
}

// find locates the file for id in any agent directory. Only ids this store
// could have issued are looked up, which also keeps glob syntax out of the
// pattern.
func (s *Store) find(id string) (string, error) {
	if u, err := uuid.Parse(id); err != nil || u.String() != id {
		return "", fmt.Errorf("json: conversation %s: %w", id, relay.ErrConversationNotFound)
	}
	matches, err := doublestar.Glob(os.DirFS(s.dir), path.Join("*", id+".json"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("json: conversation %s: %w", id, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("json: conversation %s: %w", id, relay.ErrConversationNotFound)
	}
	return filepath.Join(s.dir, filepath.FromSlash(matches[0])), nil
}

// agentDir maps an agent reference to a safe directory name.
func agentDir(ref string) string {
	if ref == "" {
		return defaultAgentDir
	}
	d := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, ref)
	if strings.Trim(d, ".") == "" {
		return strings.Repeat("_", len(d))
	}
	return d
}
