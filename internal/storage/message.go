package storage

import (
	"encoding/json"
	"time"

	"github.com/dyike/dqc/internal/api"
)

// Track names which message sequence a stored message belongs to
type Track string

const (
	TrackChat  Track = "chat"
	TrackAgent Track = "agent"
)

// Extras carries the structured payloads attached to an assistant message
type Extras struct {
	Sources        []api.Source        `json:"sources,omitempty"`
	ToolHistory    []api.ToolCall      `json:"tool_history,omitempty"`
	DisplayObjects []api.DisplayObject `json:"display_objects,omitempty"`
}

// Message represents a stored chat message
type Message struct {
	ID             int64
	ConversationID string
	Track          Track
	Role           string
	Content        string
	Extras         *Extras
	IsError        bool
	CreatedAt      time.Time
}

// CreateMessage creates a new message
func (db *DB) CreateMessage(conversationID string, track Track, role, content string, extras *Extras, isError bool) (*Message, error) {
	var extrasJSON *string
	if extras != nil {
		data, err := json.Marshal(extras)
		if err != nil {
			return nil, err
		}
		s := string(data)
		extrasJSON = &s
	}

	now := time.Now().Unix()

	result, err := db.Exec(`
		INSERT INTO messages (conversation_id, track, role, content, extras, is_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, conversationID, string(track), role, content, extrasJSON, boolToInt(isError), now)

	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	// Touch conversation to update timestamp
	_ = db.TouchConversation(conversationID)

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Track:          track,
		Role:           role,
		Content:        content,
		Extras:         extras,
		IsError:        isError,
		CreatedAt:      time.Unix(now, 0),
	}, nil
}

// GetMessages retrieves all messages of one track in a conversation
func (db *DB) GetMessages(conversationID string, track Track) ([]*Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, track, role, content, extras, is_error, created_at
		FROM messages
		WHERE conversation_id = ? AND track = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID, string(track))

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// GetMessageCount returns the number of messages in a conversation
func (db *DB) GetMessageCount(conversationID string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	return count, err
}

// DeleteMessage deletes a message by ID
func (db *DB) DeleteMessage(id int64) error {
	_, err := db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var track string
	var extrasJSON *string
	var isError int
	var createdAt int64

	err := row.Scan(
		&m.ID, &m.ConversationID, &track, &m.Role,
		&m.Content, &extrasJSON, &isError, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	m.Track = Track(track)
	m.IsError = isError == 1
	m.CreatedAt = time.Unix(createdAt, 0)

	if extrasJSON != nil && *extrasJSON != "" {
		var extras Extras
		if err := json.Unmarshal([]byte(*extrasJSON), &extras); err != nil {
			return nil, err
		}
		m.Extras = &extras
	}

	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
