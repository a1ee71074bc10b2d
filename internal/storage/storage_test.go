package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/dqc/internal/api"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateConversation(t *testing.T) {
	db := newTestDB(t)

	model := "test-model"
	conv, err := db.CreateConversation(&model)
	require.NoError(t, err)

	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "New Conversation", conv.Title)
	require.NotNil(t, conv.Model)
	assert.Equal(t, "test-model", *conv.Model)
	assert.False(t, conv.IsArchived)
}

func TestListConversationsExcludesArchived(t *testing.T) {
	db := newTestDB(t)

	keep, err := db.CreateConversation(nil)
	require.NoError(t, err)
	gone, err := db.CreateConversation(nil)
	require.NoError(t, err)

	require.NoError(t, db.ArchiveConversation(gone.ID))

	convs, err := db.ListConversations(false)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, keep.ID, convs[0].ID)

	all, err := db.ListConversations(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMessagesPerTrack(t *testing.T) {
	db := newTestDB(t)

	conv, err := db.CreateConversation(nil)
	require.NoError(t, err)

	_, err = db.CreateMessage(conv.ID, TrackChat, "user", "plain question", nil, false)
	require.NoError(t, err)
	_, err = db.CreateMessage(conv.ID, TrackChat, "assistant", "plain answer", nil, false)
	require.NoError(t, err)
	_, err = db.CreateMessage(conv.ID, TrackAgent, "user", "agent question", nil, false)
	require.NoError(t, err)

	chatMsgs, err := db.GetMessages(conv.ID, TrackChat)
	require.NoError(t, err)
	require.Len(t, chatMsgs, 2)
	assert.Equal(t, "plain question", chatMsgs[0].Content)
	assert.Equal(t, "plain answer", chatMsgs[1].Content)

	agentMsgs, err := db.GetMessages(conv.ID, TrackAgent)
	require.NoError(t, err)
	require.Len(t, agentMsgs, 1)

	count, err := db.GetMessageCount(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMessageExtrasRoundTrip(t *testing.T) {
	db := newTestDB(t)

	conv, err := db.CreateConversation(nil)
	require.NoError(t, err)

	extras := &Extras{
		Sources:     []api.Source{{DocumentID: "doc-1", Score: 0.9, Filename: "a.pdf"}},
		ToolHistory: []api.ToolCall{{ToolName: "retrieve_chunks"}},
	}
	_, err = db.CreateMessage(conv.ID, TrackAgent, "assistant", "answer", extras, false)
	require.NoError(t, err)

	msgs, err := db.GetMessages(conv.ID, TrackAgent)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Extras)
	require.Len(t, msgs[0].Extras.Sources, 1)
	assert.Equal(t, "doc-1", msgs[0].Extras.Sources[0].DocumentID)
	require.Len(t, msgs[0].Extras.ToolHistory, 1)
	assert.Equal(t, "retrieve_chunks", msgs[0].Extras.ToolHistory[0].ToolName)
}

func TestErrorMessagePersisted(t *testing.T) {
	db := newTestDB(t)

	conv, err := db.CreateConversation(nil)
	require.NoError(t, err)

	_, err = db.CreateMessage(conv.ID, TrackChat, "assistant", "Sorry, something went wrong: boom", nil, true)
	require.NoError(t, err)

	msgs, err := db.GetMessages(conv.ID, TrackChat)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsError)
}

func TestDeleteConversationCascades(t *testing.T) {
	db := newTestDB(t)

	conv, err := db.CreateConversation(nil)
	require.NoError(t, err)
	_, err = db.CreateMessage(conv.ID, TrackChat, "user", "hello", nil, false)
	require.NoError(t, err)

	require.NoError(t, db.DeleteConversation(conv.ID))

	count, err := db.GetMessageCount(conv.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGenerateTitle(t *testing.T) {
	assert.Equal(t, "short", GenerateTitle("short"))

	long := GenerateTitle("this is a very long first message that should definitely be truncated somewhere")
	assert.Len(t, long, 53)
	assert.Contains(t, long, "...")
}

func TestUpdateConversationTitle(t *testing.T) {
	db := newTestDB(t)

	conv, err := db.CreateConversation(nil)
	require.NoError(t, err)

	require.NoError(t, db.UpdateConversationTitle(conv.ID, "renamed"))

	got, err := db.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
}
