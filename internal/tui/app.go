package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/dqc/internal/api"
	"github.com/dyike/dqc/internal/chat"
	"github.com/dyike/dqc/internal/config"
	"github.com/dyike/dqc/internal/docstore"
)

// FocusedPane represents which pane has focus
type FocusedPane int

const (
	FocusSidebar FocusedPane = iota
	FocusDocs
	FocusChat
	FocusInput
)

// inputMode selects what the textarea submits: a chat query or a
// local file path to upload
type inputMode int

const (
	inputChat inputMode = iota
	inputUpload
)

const sidebarWidth = 26
const docListWidth = 38

// Deps bundles everything the TUI needs
type Deps struct {
	Cfg      *config.Config
	Bus      *docstore.Bus
	Folders  *docstore.FolderStore
	Docs     *docstore.DocumentStore
	Uploader *docstore.Uploader
	Poller   *docstore.Poller
	Chat     *chat.Controller
}

// Model represents the main TUI application state
type Model struct {
	// Components
	viewport viewport.Model
	textarea textarea.Model

	// State
	width   int
	height  int
	focused FocusedPane
	ready   bool
	inMode  inputMode

	// Data
	scopes       []docstore.Scope
	sidebarIndex int
	docsIndex    int

	// Streaming state
	streaming    bool
	streamEvents <-chan chat.StreamEvent

	// Dependencies
	deps Deps
	ctx  context.Context

	// Transient status
	alert string
	err   error
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, deps Deps) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your documents... (Enter to send)"
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	return Model{
		textarea: ta,
		focused:  FocusInput,
		deps:     deps,
		ctx:      ctx,
		scopes:   []docstore.Scope{{Kind: docstore.ScopeAll}, {Kind: docstore.ScopeUnorganized}},
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	m.deps.Chat.NewConversation()
	return tea.Batch(
		textarea.Blink,
		m.refreshFolders,
		m.refreshDocuments,
		waitForBus(m.deps.Bus.Events()),
	)
}

// refreshFolders reloads the folder list from the server
func (m Model) refreshFolders() tea.Msg {
	if err := m.deps.Folders.Refresh(m.ctx); err != nil {
		return ErrorMsg{Err: err}
	}
	return FoldersRefreshedMsg{Folders: m.deps.Folders.Folders()}
}

// refreshDocuments reloads the document list for the current scope
func (m Model) refreshDocuments() tea.Msg {
	if err := m.deps.Docs.Refresh(m.ctx); err != nil {
		return ErrorMsg{Err: err}
	}
	return DocumentsRefreshedMsg{}
}

// kickPoller starts status polling if any document is still processing
func (m Model) kickPoller() tea.Msg {
	m.deps.Poller.Kick(m.ctx)
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		chatWidth := m.width - sidebarWidth - docListWidth - 6
		chatHeight := m.height - 8

		m.viewport = viewport.New(chatWidth, chatHeight)
		m.viewport.SetContent(m.renderMessages())

		m.textarea.SetWidth(chatWidth)

	case FoldersRefreshedMsg:
		m.scopes = buildScopes(msg.Folders)
		if m.sidebarIndex >= len(m.scopes) {
			m.sidebarIndex = 0
		}

	case DocumentsRefreshedMsg:
		if m.docsIndex >= len(m.deps.Docs.Documents()) {
			m.docsIndex = 0
		}
		return m, m.kickPoller

	case ScopeSelectedMsg:
		m.deps.Docs.SetScope(msg.Scope)
		m.docsIndex = 0
		return m, m.refreshDocuments

	case DocumentDeletedMsg:
		m.alert = "Deleted document"
		return m, m.refreshDocuments

	case UploadStartedMsg:
		m.alert = fmt.Sprintf("Uploading %s...", msg.Filename)

	case BusEventMsg:
		cmd := m.handleBusEvent(msg.Event)
		// Always re-arm the bus listener
		return m, tea.Batch(cmd, waitForBus(m.deps.Bus.Events()))

	case SendMessageMsg:
		events := m.deps.Chat.Send(m.ctx, msg.Content)
		m.streaming = true
		m.streamEvents = events
		m.err = nil
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, tea.Batch(
			waitForEvent(events),
			tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return TickMsg{} }),
		)

	case StreamEventMsg:
		newModel, cmd := m.handleStreamEvent(msg.Event)
		if m.streaming && m.streamEvents != nil {
			return newModel, tea.Batch(cmd, waitForEvent(m.streamEvents))
		}
		return newModel, cmd

	case StreamCompleteMsg:
		m.streaming = false
		m.streamEvents = nil
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()

	case ModeChangedMsg:
		m.alert = fmt.Sprintf("Switched to %s mode", msg.Mode)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()

	case ErrorMsg:
		m.err = msg.Err
		m.streaming = false
		m.streamEvents = nil

	case TickMsg:
		if m.streaming {
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
			return m, tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
				return TickMsg{}
			})
		}
	}

	return m, tea.Batch(cmds...)
}

// handleBusEvent reacts to store events
func (m *Model) handleBusEvent(ev docstore.Event) tea.Cmd {
	switch ev.Kind {
	case docstore.EventFoldersRefreshed:
		return m.refreshFoldersView
	case docstore.EventDocumentsRefreshed:
		return m.kickPoller
	case docstore.EventUploadSettled:
		if ev.Err != nil {
			m.alert = ev.Message
		} else {
			m.alert = fmt.Sprintf("Upload finished: %s", ev.Message)
		}
		return m.kickPoller
	case docstore.EventAlert:
		m.alert = ev.Message
	}
	return nil
}

// refreshFoldersView re-reads cached folder state without a server call
func (m Model) refreshFoldersView() tea.Msg {
	return FoldersRefreshedMsg{Folders: m.deps.Folders.Folders()}
}

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global shortcuts
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		m.deps.Poller.Stop()
		return m, tea.Quit

	case "tab":
		// Cycle focus: Input -> Sidebar -> Docs -> Chat -> Input
		switch m.focused {
		case FocusInput:
			m.focused = FocusSidebar
			m.textarea.Blur()
		case FocusSidebar:
			m.focused = FocusDocs
		case FocusDocs:
			m.focused = FocusChat
		case FocusChat:
			m.focused = FocusInput
			m.textarea.Focus()
		}
		return m, nil

	case "ctrl+g":
		// Toggle between plain chat and agent mode
		return m, m.toggleMode

	case "ctrl+r":
		return m, tea.Batch(m.refreshFolders, m.refreshDocuments)

	case "ctrl+n":
		m.deps.Chat.NewConversation()
		m.viewport.SetContent(m.renderMessages())
		return m, nil

	case "ctrl+u":
		// Upload: the textarea takes a file path until Esc
		m.inMode = inputUpload
		m.focused = FocusInput
		m.textarea.Focus()
		m.textarea.Placeholder = "Path of the file to upload (Enter to confirm, Esc to cancel)"
		return m, nil

	case "esc":
		if m.inMode == inputUpload {
			m.inMode = inputChat
			m.textarea.Reset()
			m.textarea.Placeholder = "Ask about your documents... (Enter to send)"
		}
		return m, nil
	}

	// Handle focus-specific keys
	switch m.focused {
	case FocusSidebar:
		switch msg.String() {
		case "up", "k":
			if m.sidebarIndex > 0 {
				m.sidebarIndex--
			}
		case "down", "j":
			if m.sidebarIndex < len(m.scopes)-1 {
				m.sidebarIndex++
			}
		case "enter":
			if m.sidebarIndex < len(m.scopes) {
				scope := m.scopes[m.sidebarIndex]
				return m, func() tea.Msg { return ScopeSelectedMsg{Scope: scope} }
			}
		}
		return m, nil

	case FocusDocs:
		docs := m.deps.Docs.Documents()
		switch msg.String() {
		case "up", "k":
			if m.docsIndex > 0 {
				m.docsIndex--
			}
		case "down", "j":
			if m.docsIndex < len(docs)-1 {
				m.docsIndex++
			}
		case "ctrl+d":
			if m.docsIndex < len(docs) {
				return m, m.deleteDocument(docs[m.docsIndex])
			}
		}
		return m, nil

	case FocusChat:
		// Let viewport handle scrolling
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case FocusInput:
		if msg.String() == "enter" {
			content := strings.TrimSpace(m.textarea.Value())
			if content == "" {
				return m, nil
			}
			if m.inMode == inputUpload {
				m.textarea.Reset()
				m.inMode = inputChat
				m.textarea.Placeholder = "Ask about your documents... (Enter to send)"
				return m, m.uploadPath(content)
			}
			if !m.streaming {
				m.textarea.Reset()
				return m, func() tea.Msg { return SendMessageMsg{Content: content} }
			}
			return m, nil
		}
		// Pass all other keys to textarea
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd
	}

	return m, nil
}

// toggleMode switches the conversation between chat and agent mode
func (m Model) toggleMode() tea.Msg {
	next := chat.ModeAgent
	if m.deps.Chat.Mode() == chat.ModeAgent {
		next = chat.ModeChat
	}
	if err := m.deps.Chat.SetMode(m.ctx, next); err != nil {
		return ErrorMsg{Err: err}
	}
	return ModeChangedMsg{Mode: next}
}

// uploadPath reads a local file and hands it to the upload orchestrator
func (m Model) uploadPath(path string) tea.Cmd {
	return func() tea.Msg {
		content, err := os.ReadFile(path)
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("failed to read %s: %w", path, err)}
		}
		opts := api.IngestOptions{UseColpali: m.deps.Cfg.UseColpali}
		if scope := m.deps.Docs.Scope(); scope.Kind == docstore.ScopeFolder {
			opts.FolderName = scope.Folder
		}
		filename := filepath.Base(path)
		m.deps.Uploader.UploadFile(filename, content, opts)
		return UploadStartedMsg{Filename: filename}
	}
}

// deleteDocument deletes a server document. Optimistic placeholders
// have no server record yet and are skipped.
func (m Model) deleteDocument(doc api.Document) tea.Cmd {
	return func() tea.Msg {
		if doc.SystemMetadata.Status == api.StatusUploading {
			return ErrorMsg{Err: fmt.Errorf("%s is still uploading", doc.Filename)}
		}
		if err := m.deps.Docs.Delete(m.ctx, doc.ExternalID); err != nil {
			return ErrorMsg{Err: err}
		}
		return DocumentDeletedMsg{ID: doc.ExternalID}
	}
}

// handleStreamEvent handles streaming events from the chat controller
func (m Model) handleStreamEvent(event chat.StreamEvent) (tea.Model, tea.Cmd) {
	switch event.Type {
	case chat.EventTypeDelta:
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case chat.EventTypeDone:
		m.streaming = false
		m.streamEvents = nil
		return m, func() tea.Msg {
			return StreamCompleteMsg{}
		}

	case chat.EventTypeError:
		// The controller already appended an inline error message;
		// keep streaming until Done so the channel drains.
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil
	}

	return m, nil
}

// buildScopes derives the sidebar entries from the folder list
func buildScopes(folders []api.FolderSummary) []docstore.Scope {
	scopes := []docstore.Scope{
		{Kind: docstore.ScopeAll},
		{Kind: docstore.ScopeUnorganized},
	}
	for _, f := range folders {
		scopes = append(scopes, docstore.Scope{Kind: docstore.ScopeFolder, Folder: f.Name})
	}
	return scopes
}

// waitForBus returns a command that waits for the next store event
func waitForBus(events <-chan docstore.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return BusEventMsg{Event: ev}
	}
}

// waitForEvent returns a command that waits for the next stream event
func waitForEvent(events <-chan chat.StreamEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return StreamCompleteMsg{}
		}
		return StreamEventMsg{Event: event}
	}
}

// View implements tea.Model
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	sidebar := m.renderSidebar()
	docList := m.renderDocList()
	chatPane := m.renderChat()
	input := m.renderInput()
	status := m.renderStatusBar()

	mainArea := lipgloss.JoinVertical(lipgloss.Left,
		chatPane,
		input,
	)

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebar,
		docList,
		mainArea,
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		content,
		status,
	)
}

// renderSidebar renders the scope sidebar
func (m Model) renderSidebar() string {
	var b strings.Builder

	b.WriteString(SidebarTitleStyle.Render("Scopes"))
	b.WriteString("\n")

	active := m.deps.Docs.Scope()
	for i, scope := range m.scopes {
		label := scope.String()
		if len(label) > sidebarWidth-5 {
			label = label[:sidebarWidth-8] + "..."
		}

		style := ScopeItemStyle
		if i == m.sidebarIndex && m.focused == FocusSidebar {
			style = ScopeItemSelectedStyle
		} else if scope.Key() == active.Key() {
			style = ScopeItemActiveStyle
		}

		b.WriteString(style.Render(label))
		b.WriteString("\n")
	}

	return SidebarStyle.Width(sidebarWidth).Height(m.height - 3).Render(b.String())
}

// renderDocList renders the document list with status badges
func (m Model) renderDocList() string {
	var b strings.Builder

	b.WriteString(SidebarTitleStyle.Render("Documents"))
	b.WriteString("\n")

	docs := m.deps.Docs.Documents()
	for i, doc := range docs {
		name := doc.Filename
		if name == "" {
			name = doc.ExternalID
		}
		if len(name) > docListWidth-6 {
			name = name[:docListWidth-9] + "..."
		}

		style := DocItemStyle
		if i == m.docsIndex && m.focused == FocusDocs {
			style = DocItemSelectedStyle
		}

		b.WriteString(style.Render(name))
		b.WriteString("\n")
		b.WriteString("   ")
		b.WriteString(statusBadge(doc.SystemMetadata.Status))
		b.WriteString("\n")
	}

	if len(docs) == 0 {
		b.WriteString(HelpStyle.Render("No documents\nCtrl+U to upload"))
	}

	return DocListStyle.Width(docListWidth).Height(m.height - 3).Render(b.String())
}

// renderChat renders the chat viewport
func (m Model) renderChat() string {
	chatWidth := m.width - sidebarWidth - docListWidth - 6
	chatHeight := m.height - 8

	style := ChatViewStyle
	if m.focused == FocusChat {
		style = style.BorderForeground(AccentColor)
	}

	return style.Width(chatWidth).Height(chatHeight).Render(m.viewport.View())
}

// renderMessages renders the active conversation track
func (m Model) renderMessages() string {
	var b strings.Builder

	msgs := m.deps.Chat.Messages()
	for i, msg := range msgs {
		switch {
		case msg.Role == "user":
			b.WriteString(UserMessageStyle.Render("You: "))
			b.WriteString(msg.Content)
		case msg.IsError:
			b.WriteString(ErrorMessageStyle.Render("Assistant: " + msg.Content))
		default:
			b.WriteString(AssistantMessageStyle.Render("Assistant: "))
			b.WriteString(msg.Content)
			if m.streaming && i == len(msgs)-1 {
				b.WriteString("▊") // Cursor
			}
		}

		for _, tc := range msg.ToolHistory {
			b.WriteString("\n")
			b.WriteString(ToolCallStyle.Render("  [tool] " + tc.ToolName))
		}
		for _, src := range msg.Sources {
			name := src.Filename
			if name == "" {
				name = src.DocumentID
			}
			b.WriteString("\n")
			b.WriteString(SourceStyle.Render(fmt.Sprintf("  source: %s (%.3f)", name, src.Score)))
		}

		b.WriteString("\n\n")
	}

	if b.Len() == 0 {
		return HelpStyle.Render("No messages yet.\nType a question and press Enter.\nCtrl+G toggles agent mode.")
	}

	return b.String()
}

// renderInput renders the input textarea
func (m Model) renderInput() string {
	chatWidth := m.width - sidebarWidth - docListWidth - 6

	style := InputStyle
	if m.focused == FocusInput {
		style = InputFocusedStyle
	}

	return style.Width(chatWidth).Render(m.textarea.View())
}

// renderStatusBar renders the status bar
func (m Model) renderStatusBar() string {
	var mode string
	if m.deps.Chat.Mode() == chat.ModeAgent {
		mode = StatusAgentModeStyle.Render("agent")
	} else {
		mode = StatusModeStyle.Render("chat")
	}

	var status string
	if m.streaming {
		status = StatusRunningStyle.Render("Thinking...")
	} else if m.deps.Poller.Running() {
		status = StatusRunningStyle.Render("Processing...")
	} else if m.err != nil {
		status = StatusErrorStyle.Render(m.err.Error())
	} else if m.alert != "" {
		status = HelpStyle.Render(m.alert)
	}

	help := HelpStyle.Render("Tab: focus | Ctrl+G: mode | Ctrl+U: upload | Ctrl+R: refresh | Ctrl+Q: quit")

	left := lipgloss.JoinHorizontal(lipgloss.Left, mode, " ", status)
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(help)-2))

	return StatusBarStyle.Width(m.width).Render(left + gap + help)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
