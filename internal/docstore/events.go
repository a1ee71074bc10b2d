package docstore

// EventKind classifies store notifications
type EventKind string

const (
	// EventDocumentsRefreshed fires after the document snapshot was replaced
	EventDocumentsRefreshed EventKind = "documents_refreshed"
	// EventFoldersRefreshed fires after the folder summaries were replaced
	EventFoldersRefreshed EventKind = "folders_refreshed"
	// EventUploadSettled fires when an upload reaches a terminal state
	EventUploadSettled EventKind = "upload_settled"
	// EventAlert carries a user-visible, non-fatal error message
	EventAlert EventKind = "alert"
)

// Event is a store notification delivered to the UI loop
type Event struct {
	Kind    EventKind
	Message string
	Err     error
}

// Bus fans store events out to a single consumer (the UI event loop).
// Publishing never blocks; if the consumer lags, events are dropped.
// Every event is a level trigger, so a dropped one is harmless.
type Bus struct {
	ch chan Event
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{ch: make(chan Event, 64)}
}

// Publish delivers an event without blocking
func (b *Bus) Publish(e Event) {
	select {
	case b.ch <- e:
	default:
	}
}

// Alert publishes a user-visible error alert
func (b *Bus) Alert(message string, err error) {
	b.Publish(Event{Kind: EventAlert, Message: message, Err: err})
}

// Events returns the receive side of the bus
func (b *Bus) Events() <-chan Event {
	return b.ch
}
