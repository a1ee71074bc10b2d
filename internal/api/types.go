package api

import (
	"encoding/json"
	"time"
)

// DocumentStatus represents the ingestion lifecycle state of a document
type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Progress describes how far server-side ingestion has advanced
type Progress struct {
	CurrentStep int    `json:"current_step,omitempty"`
	TotalSteps  int    `json:"total_steps,omitempty"`
	StepName    string `json:"step_name,omitempty"`
}

// SystemMetadata holds server-managed document state
type SystemMetadata struct {
	Status    DocumentStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
	Version   int            `json:"version,omitempty"`
	Progress  *Progress      `json:"progress,omitempty"`
}

// Document is a server document record
type Document struct {
	ExternalID     string                 `json:"external_id"`
	Filename       string                 `json:"filename"`
	ContentType    string                 `json:"content_type"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	SystemMetadata SystemMetadata         `json:"system_metadata"`
	// FolderName is a display cache only; authoritative membership
	// lives in the folder's document id list.
	FolderName string `json:"folder_name,omitempty"`
}

// documentAlias mirrors Document plus the alternate field names some
// server versions emit (id/name instead of external_id/filename).
type documentAlias struct {
	ExternalID     string                 `json:"external_id"`
	ID             string                 `json:"id"`
	Filename       string                 `json:"filename"`
	Name           string                 `json:"name"`
	ContentType    string                 `json:"content_type"`
	Metadata       map[string]interface{} `json:"metadata"`
	SystemMetadata SystemMetadata         `json:"system_metadata"`
	FolderName     string                 `json:"folder_name"`
}

// UnmarshalJSON accepts both external_id/filename and id/name shapes
func (d *Document) UnmarshalJSON(data []byte) error {
	var alias documentAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	d.ExternalID = alias.ExternalID
	if d.ExternalID == "" {
		d.ExternalID = alias.ID
	}
	d.Filename = alias.Filename
	if d.Filename == "" {
		d.Filename = alias.Name
	}
	d.ContentType = alias.ContentType
	d.Metadata = alias.Metadata
	d.SystemMetadata = alias.SystemMetadata
	d.FolderName = alias.FolderName
	return nil
}

// FolderSummary is a folder record without its member documents loaded
type FolderSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	DocCount    int       `json:"doc_count"`
	DocumentIDs []string  `json:"document_ids,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// FolderDetail is the full folder record including member document ids
type FolderDetail struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	DocumentIDs []string `json:"document_ids"`
}

// ListDocumentsRequest is the filter body for POST /documents
type ListDocumentsRequest struct {
	DocumentFilters map[string]interface{} `json:"document_filters,omitempty"`
	FolderName      string                 `json:"folder_name,omitempty"`
}

// IngestOptions are the common knobs for all three ingest endpoints
type IngestOptions struct {
	Metadata   map[string]interface{}
	Rules      []interface{}
	FolderName string
	UseColpali bool
}

// FileUpload pairs a filename with its content for multi-file ingest
type FileUpload struct {
	Filename string
	Content  []byte
}

// IngestError reports a per-file failure from the multi-file endpoint
type IngestError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// IngestBatchResponse is the body of POST /ingest/files
type IngestBatchResponse struct {
	DocumentIDs []string      `json:"document_ids"`
	Errors      []IngestError `json:"errors,omitempty"`
}

// Source is a retrieved document fragment attached to a chat answer
type Source struct {
	DocumentID  string                 `json:"document_id"`
	ChunkNumber int                    `json:"chunk_number,omitempty"`
	Score       float64                `json:"score"`
	Content     string                 `json:"content,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall records one tool invocation made during an agent turn
type ToolCall struct {
	ToolName   string                 `json:"tool_name"`
	ToolArgs   map[string]interface{} `json:"tool_args,omitempty"`
	ToolResult interface{}            `json:"tool_result,omitempty"`
}

// DisplayObject is a structured payload rendered inline with an agent answer
type DisplayObject struct {
	Type    string `json:"type"` // "text" or "image"
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// AgentRequest is the body of POST /agent
type AgentRequest struct {
	Query  string `json:"query"`
	ChatID string `json:"chat_id"`
}

// AgentResponse is the body returned by POST /agent
type AgentResponse struct {
	Response       string          `json:"response"`
	ToolHistory    []ToolCall      `json:"tool_history,omitempty"`
	DisplayObjects []DisplayObject `json:"display_objects,omitempty"`
	Sources        []Source        `json:"sources,omitempty"`
}

// AgentData carries agent-mode extras on a persisted chat message
type AgentData struct {
	ToolHistory    []ToolCall      `json:"tool_history,omitempty"`
	DisplayObjects []DisplayObject `json:"display_objects,omitempty"`
	Sources        []Source        `json:"sources,omitempty"`
}

// ChatMessage is one entry of the remote chat history
type ChatMessage struct {
	Role      string     `json:"role"` // "user" or "assistant"
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
	AgentData *AgentData `json:"agent_data,omitempty"`
}

// CompletionRequest is the body of POST /chat/completions
type CompletionRequest struct {
	Query      string                 `json:"query"`
	ChatID     string                 `json:"chat_id,omitempty"`
	Model      string                 `json:"model,omitempty"`
	Filters    map[string]interface{} `json:"filters,omitempty"`
	FolderName string                 `json:"folder_name,omitempty"`
	K          int                    `json:"k,omitempty"`
	Stream     bool                   `json:"stream,omitempty"`
}

// CompletionResponse is the body of a non-streaming POST /chat/completions
type CompletionResponse struct {
	Completion string   `json:"completion"`
	Sources    []Source `json:"sources,omitempty"`
}

// Model is an entry of GET /models
type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// CreateFolderRequest is the body of POST /folders
type CreateFolderRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
