package tui

import (
	"github.com/dyike/dqc/internal/api"
	"github.com/dyike/dqc/internal/chat"
	"github.com/dyike/dqc/internal/docstore"
)

// FoldersRefreshedMsg indicates the folder list has been reloaded
type FoldersRefreshedMsg struct {
	Folders []api.FolderSummary
}

// DocumentsRefreshedMsg indicates the document list has been reloaded
type DocumentsRefreshedMsg struct{}

// ScopeSelectedMsg indicates the user picked a browsing scope
type ScopeSelectedMsg struct {
	Scope docstore.Scope
}

// DocumentDeletedMsg indicates a document was deleted
type DocumentDeletedMsg struct {
	ID string
}

// UploadStartedMsg indicates an upload was handed to the orchestrator
type UploadStartedMsg struct {
	Filename string
}

// BusEventMsg wraps a store event
type BusEventMsg struct {
	Event docstore.Event
}

// StreamEventMsg wraps a streaming event from the chat controller
type StreamEventMsg struct {
	Event chat.StreamEvent
}

// StreamCompleteMsg indicates streaming has completed
type StreamCompleteMsg struct{}

// ModeChangedMsg indicates the conversation mode was switched
type ModeChangedMsg struct {
	Mode chat.Mode
}

// ErrorMsg represents an error
type ErrorMsg struct {
	Err error
}

// SendMessageMsg indicates the user wants to submit a query
type SendMessageMsg struct {
	Content string
}

// TickMsg is sent periodically for animations
type TickMsg struct{}
