package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyike/dqc/internal/api"
	"github.com/dyike/dqc/internal/storage"
)

// track is one message sequence with its own submission state
type track struct {
	messages []Message
	status   Status
}

// Conversation owns two independent tracks. The plain track and the
// agent track never share messages: the two modes have incompatible
// response shapes, and keeping them as separate fields makes leakage
// between them impossible by construction.
type Conversation struct {
	ID    string
	mode  Mode
	chat  track
	agent track

	// agentHistoryLoaded is set after the one-time remote history fetch;
	// toggling modes afterwards reuses the already-converted messages
	agentHistoryLoaded bool
}

// Controller manages the active conversation: track selection,
// submission, streaming, and optional local persistence.
type Controller struct {
	client *api.Client
	db     *storage.DB // nil disables local persistence
	logger *zap.Logger

	model  string
	stream bool

	mu   sync.Mutex
	conv *Conversation
}

// NewController creates a chat controller. db may be nil.
func NewController(client *api.Client, db *storage.DB, model string, stream bool, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		client: client,
		db:     db,
		logger: logger.Named("chat"),
		model:  model,
		stream: stream,
	}
}

// NewConversation starts a fresh conversation and makes it active
func (c *Controller) NewConversation() *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New().String()
	if c.db != nil {
		var model *string
		if c.model != "" {
			model = &c.model
		}
		if conv, err := c.db.CreateConversation(model); err == nil && conv != nil {
			id = conv.ID
		} else if err != nil {
			c.logger.Warn("create conversation failed", zap.Error(err))
		}
	}

	c.conv = &Conversation{
		ID:   id,
		mode: ModeChat,
		chat: track{status: StatusIdle},
		agent: track{status: StatusIdle},
	}
	return c.conv
}

// ConversationID returns the active conversation id
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conv == nil {
		return ""
	}
	return c.conv.ID
}

// Mode returns the active mode
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conv == nil {
		return ModeChat
	}
	return c.conv.mode
}

// SetMode switches between plain chat and agent mode. Entering agent
// mode for the first time fetches the remote agent history once;
// toggling back and forth afterwards reuses the fetched track as-is.
func (c *Controller) SetMode(ctx context.Context, mode Mode) error {
	c.mu.Lock()
	if c.conv == nil {
		c.mu.Unlock()
		c.NewConversation()
		c.mu.Lock()
	}
	conv := c.conv
	needHistory := mode == ModeAgent && !conv.agentHistoryLoaded
	conv.mode = mode
	chatID := conv.ID
	c.mu.Unlock()

	if !needHistory {
		return nil
	}

	history, err := c.client.ChatHistory(ctx, chatID)
	if err != nil {
		// A missing history is normal for a new conversation
		if api.IsNotFound(err) {
			c.mu.Lock()
			conv.agentHistoryLoaded = true
			c.mu.Unlock()
			return nil
		}
		return err
	}

	messages := make([]Message, 0, len(history))
	for _, h := range history {
		messages = append(messages, convertHistoryMessage(h))
	}

	c.mu.Lock()
	conv.agent.messages = messages
	conv.agentHistoryLoaded = true
	c.mu.Unlock()

	c.logger.Debug("agent history loaded",
		zap.String("chat_id", chatID), zap.Int("messages", len(messages)))
	return nil
}

// convertHistoryMessage maps the wire history shape to the internal one
func convertHistoryMessage(h api.ChatMessage) Message {
	m := Message{
		Role:      h.Role,
		Content:   h.Content,
		CreatedAt: h.Timestamp,
	}
	if h.AgentData != nil {
		m.ToolHistory = h.AgentData.ToolHistory
		m.DisplayObjects = h.AgentData.DisplayObjects
		m.Sources = h.AgentData.Sources
	}
	return m
}

// Messages returns a copy of the active track's message sequence
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conv == nil {
		return nil
	}
	t := c.activeTrack()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Status returns the active track's submission state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conv == nil {
		return StatusIdle
	}
	return c.activeTrack().status
}

// activeTrack must be called with the lock held
func (c *Controller) activeTrack() *track {
	if c.conv.mode == ModeAgent {
		return &c.conv.agent
	}
	return &c.conv.chat
}

// Send submits a query on the active track. The user message is
// appended and the track enters submitted before this method returns;
// the response (streamed or not) arrives on the returned channel.
// A failed submission becomes an inline assistant-role error message;
// it is never dropped or retried automatically.
func (c *Controller) Send(ctx context.Context, query string) <-chan StreamEvent {
	events := make(chan StreamEvent, 16)

	c.mu.Lock()
	if c.conv == nil {
		c.mu.Unlock()
		c.NewConversation()
		c.mu.Lock()
	}
	conv := c.conv
	t := c.activeTrack()
	if !t.status.Ready() {
		c.mu.Unlock()
		events <- StreamEvent{Type: EventTypeError, Error: "a submission is already in flight"}
		close(events)
		return events
	}

	mode := conv.mode
	chatID := conv.ID
	userMsg := Message{Role: "user", Content: query, CreatedAt: time.Now()}
	t.messages = append(t.messages, userMsg)
	t.status = StatusSubmitted
	c.mu.Unlock()

	c.persist(chatID, mode, userMsg)

	go func() {
		defer close(events)
		if mode == ModeAgent {
			c.runAgentTurn(ctx, conv, chatID, query, events)
		} else {
			c.runChatTurn(ctx, conv, chatID, query, events)
		}
	}()

	return events
}

// runAgentTurn performs one agent-mode submission
func (c *Controller) runAgentTurn(ctx context.Context, conv *Conversation, chatID, query string, events chan<- StreamEvent) {
	resp, err := c.client.AgentQuery(ctx, query, chatID)
	if err != nil {
		c.settleError(conv, ModeAgent, chatID, err, events)
		return
	}

	msg := Message{
		Role:           "assistant",
		Content:        resp.Response,
		CreatedAt:      time.Now(),
		ToolHistory:    resp.ToolHistory,
		DisplayObjects: resp.DisplayObjects,
		Sources:        resp.Sources,
	}

	c.mu.Lock()
	conv.agent.messages = append(conv.agent.messages, msg)
	conv.agent.status = StatusCompleted
	c.mu.Unlock()

	c.persist(chatID, ModeAgent, msg)
	events <- StreamEvent{Type: EventTypeDone}
}

// runChatTurn performs one plain-chat submission, streaming if enabled
func (c *Controller) runChatTurn(ctx context.Context, conv *Conversation, chatID, query string, events chan<- StreamEvent) {
	req := api.CompletionRequest{
		Query:  query,
		ChatID: chatID,
		Model:  c.model,
	}

	if c.stream {
		// Seed an empty assistant message; deltas append to it so the
		// partial answer is visible while the stream runs
		c.mu.Lock()
		conv.chat.messages = append(conv.chat.messages, Message{
			Role:      "assistant",
			CreatedAt: time.Now(),
		})
		c.mu.Unlock()

		resp, err := c.client.CompleteStream(ctx, req, func(delta string) {
			c.mu.Lock()
			last := &conv.chat.messages[len(conv.chat.messages)-1]
			last.Content += delta
			c.mu.Unlock()
			events <- StreamEvent{Type: EventTypeDelta, Delta: delta}
		})
		if err != nil {
			// Drop the partial assistant message before settling
			c.mu.Lock()
			conv.chat.messages = conv.chat.messages[:len(conv.chat.messages)-1]
			c.mu.Unlock()
			c.settleError(conv, ModeChat, chatID, err, events)
			return
		}

		c.mu.Lock()
		last := &conv.chat.messages[len(conv.chat.messages)-1]
		last.Sources = resp.Sources
		final := *last
		conv.chat.status = StatusCompleted
		c.mu.Unlock()

		c.persist(chatID, ModeChat, final)
		events <- StreamEvent{Type: EventTypeDone}
		return
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		c.settleError(conv, ModeChat, chatID, err, events)
		return
	}

	msg := Message{
		Role:      "assistant",
		Content:   resp.Completion,
		CreatedAt: time.Now(),
		Sources:   resp.Sources,
	}

	c.mu.Lock()
	conv.chat.messages = append(conv.chat.messages, msg)
	conv.chat.status = StatusCompleted
	c.mu.Unlock()

	c.persist(chatID, ModeChat, msg)
	events <- StreamEvent{Type: EventTypeDone}
}

// settleError converts a failed submission into an inline assistant
// error message and returns the track to an idle-equivalent state
func (c *Controller) settleError(conv *Conversation, mode Mode, chatID string, err error, events chan<- StreamEvent) {
	c.logger.Warn("submission failed", zap.String("mode", string(mode)), zap.Error(err))

	msg := Message{
		Role:      "assistant",
		Content:   "Sorry, something went wrong: " + err.Error(),
		CreatedAt: time.Now(),
		IsError:   true,
	}

	c.mu.Lock()
	if mode == ModeAgent {
		conv.agent.messages = append(conv.agent.messages, msg)
		conv.agent.status = StatusCompleted
	} else {
		conv.chat.messages = append(conv.chat.messages, msg)
		conv.chat.status = StatusCompleted
	}
	c.mu.Unlock()

	c.persist(chatID, mode, msg)
	events <- StreamEvent{Type: EventTypeError, Error: err.Error()}
	events <- StreamEvent{Type: EventTypeDone}
}

// persist writes a message to local history, best effort
func (c *Controller) persist(chatID string, mode Mode, msg Message) {
	if c.db == nil {
		return
	}

	track := storage.TrackChat
	if mode == ModeAgent {
		track = storage.TrackAgent
	}

	var extras *storage.Extras
	if len(msg.Sources) > 0 || len(msg.ToolHistory) > 0 || len(msg.DisplayObjects) > 0 {
		extras = &storage.Extras{
			Sources:        msg.Sources,
			ToolHistory:    msg.ToolHistory,
			DisplayObjects: msg.DisplayObjects,
		}
	}

	if _, err := c.db.CreateMessage(chatID, track, msg.Role, msg.Content, extras, msg.IsError); err != nil {
		c.logger.Warn("persist message failed", zap.Error(err))
		return
	}

	// Title the conversation after its first message
	if msg.Role == "user" {
		if count, err := c.db.GetMessageCount(chatID); err == nil && count == 1 {
			_ = c.db.UpdateConversationTitle(chatID, storage.GenerateTitle(msg.Content))
		}
	}
}
