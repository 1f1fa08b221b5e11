// Package memory provides the memory domain type: a stored conversational
// turn or note carrying tags, JSON metadata, and an optional embedding.
package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Roles recognised in metadata and role:* tags.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

const roleTagPrefix = "role:"

// Memory represents one stored memory row. Role, session, and turn
// timestamp live inside the JSON metadata rather than as columns, so the
// accessors below derive them on demand.
type Memory struct {
	id        string
	content   string
	tags      []string
	metadata  map[string]any
	embedding []float64
	createdAt time.Time
}

// NewMemory creates a Memory with a fresh UUID and no embedding.
func NewMemory(content string, tags []string, metadata map[string]any) Memory {
	return ReconstructMemory(uuid.NewString(), content, tags, metadata, nil, time.Now().UTC())
}

// ReconstructMemory reconstructs a Memory from persistence.
func ReconstructMemory(
	id, content string,
	tags []string,
	metadata map[string]any,
	embedding []float64,
	createdAt time.Time,
) Memory {
	t := make([]string, len(tags))
	copy(t, tags)

	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	var emb []float64
	if embedding != nil {
		emb = make([]float64, len(embedding))
		copy(emb, embedding)
	}

	return Memory{
		id:        id,
		content:   content,
		tags:      t,
		metadata:  meta,
		embedding: emb,
		createdAt: createdAt,
	}
}

// ID returns the memory UUID.
func (m Memory) ID() string { return m.id }

// Content returns the stored text.
func (m Memory) Content() string { return m.content }

// Tags returns the tags attached to this memory.
func (m Memory) Tags() []string {
	result := make([]string, len(m.tags))
	copy(result, m.tags)
	return result
}

// HasTag reports whether the memory carries the given tag (case-insensitive).
func (m Memory) HasTag(tag string) bool {
	for _, t := range m.tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Metadata returns the JSON metadata map.
func (m Memory) Metadata() map[string]any {
	result := make(map[string]any, len(m.metadata))
	for k, v := range m.metadata {
		result[k] = v
	}
	return result
}

// Embedding returns the stored vector, or nil when the memory has none.
func (m Memory) Embedding() []float64 {
	if m.embedding == nil {
		return nil
	}
	result := make([]float64, len(m.embedding))
	copy(result, m.embedding)
	return result
}

// HasEmbedding reports whether a non-empty vector is stored.
func (m Memory) HasEmbedding() bool { return len(m.embedding) > 0 }

// CreatedAt returns the row creation timestamp.
func (m Memory) CreatedAt() time.Time { return m.createdAt }

// WithEmbedding returns a copy of the memory carrying the given vector.
func (m Memory) WithEmbedding(embedding []float64) Memory {
	return ReconstructMemory(m.id, m.content, m.tags, m.metadata, embedding, m.createdAt)
}

// Role returns the conversational role: metadata.role when present, else
// the value of a role:* tag, else "".
func (m Memory) Role() string {
	if role, ok := m.metadata["role"].(string); ok && role != "" {
		return strings.ToLower(role)
	}
	for _, tag := range m.tags {
		if len(tag) > len(roleTagPrefix) && strings.EqualFold(tag[:len(roleTagPrefix)], roleTagPrefix) {
			return strings.ToLower(tag[len(roleTagPrefix):])
		}
	}
	return ""
}

// OppositeRole maps user to assistant and back. Other roles have no
// conversational counterpart and map to "".
func OppositeRole(role string) string {
	switch role {
	case RoleUser:
		return RoleAssistant
	case RoleAssistant:
		return RoleUser
	}
	return ""
}

// SessionID returns metadata.sessionId, or "" when the memory does not
// belong to a session.
func (m Memory) SessionID() string {
	if id, ok := m.metadata["sessionId"].(string); ok {
		return id
	}
	return ""
}

// Timestamp returns the turn timestamp used to order memories inside a
// session. metadata.timestamp takes precedence when parseable; anything
// absent or malformed coalesces to created_at. Always UTC.
func (m Memory) Timestamp() time.Time {
	switch v := m.metadata["timestamp"].(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	case float64:
		return epochTime(int64(v))
	case int64:
		return epochTime(v)
	case int:
		return epochTime(int64(v))
	}
	return m.createdAt.UTC()
}

// epochTime converts a JSON-number timestamp. Values of 13+ digits are
// Unix milliseconds, shorter ones seconds.
func epochTime(v int64) time.Time {
	if v >= 1e12 {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

// IsToolRecord reports whether the memory records a tool invocation or a
// tool result rather than a conversational turn. Paired-message lookup
// skips these.
func (m Memory) IsToolRecord() bool {
	if m.Role() == RoleTool {
		return true
	}
	content := strings.ToLower(strings.TrimSpace(m.content))
	for _, marker := range []string{"[tool_call", "[tool_result", "<tool_call", "<tool_result", "tool_use:", "tool_result:"} {
		if strings.HasPrefix(content, marker) {
			return true
		}
	}
	return false
}
