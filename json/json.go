// Package json persists conversations as JSON files.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/relay"
)

// envelope is the v1 wire format for a persisted conversation.
type envelope struct {
	Version   int          `json:"version"`
	ID        string       `json:"id"`
	Agent     string       `json:"agent,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Messages  []messageDTO `json:"messages"`
}

type messageDTO struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Thinking  *string   `json:"thinking,omitempty"`
	ImageIDs  []string  `json:"image_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalConversation serializes a Conversation in v1 envelope format.
func MarshalConversation(c relay.Conversation, updated time.Time) ([]byte, error) {
	env := envelope{
		Version:   1,
		ID:        c.ID,
		Agent:     c.AgentRef,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updated,
		Messages:  make([]messageDTO, len(c.Messages)),
	}
	for i, m := range c.Messages {
		if m.Role != relay.RoleUser && m.Role != relay.RoleAssistant {
			return nil, fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
		dto := messageDTO{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			ImageIDs:  m.ImageIDs,
			CreatedAt: m.CreatedAt,
		}
		if m.Thinking != "" {
			dto.Thinking = &m.Thinking
		}
		env.Messages[i] = dto
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalConversation deserializes a Conversation from v1 envelope format.
func UnmarshalConversation(data []byte) (relay.Conversation, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return relay.Conversation{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return relay.Conversation{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	c := relay.Conversation{
		ID:        env.ID,
		AgentRef:  env.Agent,
		CreatedAt: env.CreatedAt,
	}
	for i, dto := range env.Messages {
		role := relay.Role(dto.Role)
		if role != relay.RoleUser && role != relay.RoleAssistant {
			return relay.Conversation{}, fmt.Errorf("message %d: unknown role %q", i, dto.Role)
		}
		m := relay.Message{
			ID:        dto.ID,
			Role:      role,
			Content:   dto.Content,
			ImageIDs:  dto.ImageIDs,
			CreatedAt: dto.CreatedAt,
		}
		if dto.Thinking != nil {
			m.Thinking = *dto.Thinking
		}
		c.Messages = append(c.Messages, m)
	}
	return c, nil
}

// Save writes a Conversation to a JSON file, creating parent directories as
// needed. The file is replaced atomically.
func Save(path string, c relay.Conversation, updated time.Time) error {
	data, err := MarshalConversation(c, updated)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Conversation from a JSON file.
func Load(path string) (relay.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return relay.Conversation{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalConversation(data)
}
