package chat

import (
	"time"

	"github.com/dyike/dqc/internal/api"
)

// Mode selects which conversation track a submission goes to
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeAgent Mode = "agent"
)

// Status is the per-track submission state. Completed is
// idle-equivalent: the track accepts the next submission.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusCompleted Status = "completed"
)

// Ready reports whether the track accepts a new submission
func (s Status) Ready() bool {
	return s != StatusSubmitted
}

// Message is one entry of a conversation track
type Message struct {
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time

	// Plain-chat answers carry retrieval sources
	Sources []api.Source

	// Agent answers carry tool-call history and display objects
	ToolHistory    []api.ToolCall
	DisplayObjects []api.DisplayObject

	// IsError marks an inline assistant-role error message
	IsError bool
}

// StreamEventType represents the type of stream event
type StreamEventType string

const (
	EventTypeDelta StreamEventType = "delta"
	EventTypeDone  StreamEventType = "done"
	EventTypeError StreamEventType = "error"
)

// StreamEvent is delivered while a submission is in flight
type StreamEvent struct {
	Type  StreamEventType
	Delta string
	Error string
}
