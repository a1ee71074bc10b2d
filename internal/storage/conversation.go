package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation represents a stored chat conversation
type Conversation struct {
	ID         string
	Title      string
	Model      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsArchived bool
}

// CreateConversation creates a new conversation
func (db *DB) CreateConversation(model *string) (*Conversation, error) {
	id := uuid.New().String()
	now := time.Now().Unix()

	_, err := db.Exec(`
		INSERT INTO conversations (id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, "New Conversation", model, now, now)

	if err != nil {
		return nil, err
	}

	return db.GetConversation(id)
}

// GetConversation retrieves a conversation by ID
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	var createdAt, updatedAt int64
	var isArchived int

	err := db.QueryRow(`
		SELECT id, title, model, created_at, updated_at, is_archived
		FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.Title, &c.Model, &createdAt, &updatedAt, &isArchived)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	c.IsArchived = isArchived == 1

	return &c, nil
}

// ListConversations retrieves all conversations ordered by updated_at
func (db *DB) ListConversations(includeArchived bool) ([]*Conversation, error) {
	query := `
		SELECT id, title, model, created_at, updated_at, is_archived
		FROM conversations
	`
	if !includeArchived {
		query += " WHERE is_archived = 0"
	}
	query += " ORDER BY updated_at DESC"

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		var c Conversation
		var createdAt, updatedAt int64
		var isArchived int

		err := rows.Scan(&c.ID, &c.Title, &c.Model, &createdAt, &updatedAt, &isArchived)
		if err != nil {
			return nil, err
		}

		c.CreatedAt = time.Unix(createdAt, 0)
		c.UpdatedAt = time.Unix(updatedAt, 0)
		c.IsArchived = isArchived == 1

		conversations = append(conversations, &c)
	}

	return conversations, rows.Err()
}

// UpdateConversationTitle updates the conversation title
func (db *DB) UpdateConversationTitle(id, title string) error {
	now := time.Now().Unix()
	_, err := db.Exec(`
		UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?
	`, title, now, id)
	return err
}

// TouchConversation updates the conversation's updated_at timestamp
func (db *DB) TouchConversation(id string) error {
	now := time.Now().Unix()
	_, err := db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id)
	return err
}

// ArchiveConversation marks a conversation as archived
func (db *DB) ArchiveConversation(id string) error {
	_, err := db.Exec(`UPDATE conversations SET is_archived = 1 WHERE id = ?`, id)
	return err
}

// DeleteConversation deletes a conversation and its messages
func (db *DB) DeleteConversation(id string) error {
	_, err := db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	return err
}

// GenerateTitle generates a title from the first message content
func GenerateTitle(content string) string {
	maxLen := 50
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}
