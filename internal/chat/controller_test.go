package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/dqc/internal/api"
)

func newTestController(t *testing.T, stream bool, handler http.HandlerFunc) *Controller {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, "", nil)
	return NewController(client, nil, "test-model", stream, nil)
}

func drain(events <-chan StreamEvent) []StreamEvent {
	var out []StreamEvent
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestPlainChatTurn(t *testing.T) {
	ctrl := newTestController(t, false, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Write([]byte(`{"completion": "an answer", "sources": [{"document_id": "doc-1", "score": 0.7}]}`))
	})
	ctrl.NewConversation()

	events := ctrl.Send(context.Background(), "a question")
	collected := drain(events)

	require.NotEmpty(t, collected)
	assert.Equal(t, EventTypeDone, collected[len(collected)-1].Type)

	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "a question", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "an answer", msgs[1].Content)
	require.Len(t, msgs[1].Sources, 1)

	// Completed is idle-equivalent: the next submission is accepted
	assert.True(t, ctrl.Status().Ready())
}

func TestStreamingChatTurn(t *testing.T) {
	ctrl := newTestController(t, true, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"completion\": \"par\"}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: {\"completion\": \"tial\"}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: {\"sources\": [{\"document_id\": \"doc-1\", \"score\": 0.5}], \"done\": true}\n\n"))
	})
	ctrl.NewConversation()

	events := ctrl.Send(context.Background(), "q")
	collected := drain(events)

	var deltas []string
	for _, e := range collected {
		if e.Type == EventTypeDelta {
			deltas = append(deltas, e.Delta)
		}
	}
	assert.Equal(t, []string{"par", "tial"}, deltas)

	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial", msgs[1].Content)
	assert.Len(t, msgs[1].Sources, 1)
	assert.True(t, ctrl.Status().Ready())
}

func TestSendRejectsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	ctrl := newTestController(t, false, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"completion": "late"}`))
	})
	ctrl.NewConversation()
	ctx := context.Background()

	first := ctrl.Send(ctx, "first")
	assert.False(t, ctrl.Status().Ready())

	// A second submission on a busy track fails immediately
	second := ctrl.Send(ctx, "second")
	collected := drain(second)
	require.Len(t, collected, 1)
	assert.Equal(t, EventTypeError, collected[0].Type)

	// And it did not append a user message
	assert.Len(t, ctrl.Messages(), 1)

	close(release)
	drain(first)
	assert.Len(t, ctrl.Messages(), 2)
}

func TestErrorBecomesInlineMessage(t *testing.T) {
	ctrl := newTestController(t, false, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "model exploded"}`))
	})
	ctrl.NewConversation()

	events := ctrl.Send(context.Background(), "q")
	collected := drain(events)

	var sawError bool
	for _, e := range collected {
		if e.Type == EventTypeError {
			sawError = true
		}
	}
	assert.True(t, sawError)
	assert.Equal(t, EventTypeDone, collected[len(collected)-1].Type)

	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.True(t, msgs[1].IsError)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "Sorry, something went wrong"))

	// The failure is terminal for this turn; the track accepts a retry
	assert.True(t, ctrl.Status().Ready())
}

func TestModeTracksDoNotLeak(t *testing.T) {
	ctrl := newTestController(t, false, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/chat/completions":
			w.Write([]byte(`{"completion": "plain answer"}`))
		case r.URL.Path == "/agent":
			w.Write([]byte(`{"response": "agent answer", "tool_history": [{"tool_name": "retrieve_chunks"}]}`))
		case strings.HasPrefix(r.URL.Path, "/chat/"):
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	ctrl.NewConversation()
	ctx := context.Background()

	drain(ctrl.Send(ctx, "plain question"))
	require.Len(t, ctrl.Messages(), 2)

	require.NoError(t, ctrl.SetMode(ctx, ModeAgent))
	// The agent track starts empty; the plain turn stayed behind
	assert.Empty(t, ctrl.Messages())

	drain(ctrl.Send(ctx, "agent question"))
	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "agent answer", msgs[1].Content)
	require.Len(t, msgs[1].ToolHistory, 1)

	// Toggling back restores the plain track untouched
	require.NoError(t, ctrl.SetMode(ctx, ModeChat))
	msgs = ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "plain answer", msgs[1].Content)
	assert.Empty(t, msgs[1].ToolHistory)
}

func TestAgentHistoryFetchedOnce(t *testing.T) {
	var historyCalls int64
	ctrl := newTestController(t, false, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/chat/") && r.Method == http.MethodGet {
			atomic.AddInt64(&historyCalls, 1)
			w.Write([]byte(`[
				{"role": "user", "content": "earlier question"},
				{"role": "assistant", "content": "earlier answer",
				 "agent_data": {"tool_history": [{"tool_name": "retrieve_chunks"}]}}
			]`))
			return
		}
		http.NotFound(w, r)
	})
	ctrl.NewConversation()
	ctx := context.Background()

	require.NoError(t, ctrl.SetMode(ctx, ModeAgent))
	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "earlier answer", msgs[1].Content)
	require.Len(t, msgs[1].ToolHistory, 1)

	// Toggling back and forth must not refetch
	require.NoError(t, ctrl.SetMode(ctx, ModeChat))
	require.NoError(t, ctrl.SetMode(ctx, ModeAgent))
	assert.Equal(t, int64(1), atomic.LoadInt64(&historyCalls))
}

func TestAgentHistoryNotFoundIsFine(t *testing.T) {
	ctrl := newTestController(t, false, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	ctrl.NewConversation()

	// A brand-new conversation has no remote history yet
	require.NoError(t, ctrl.SetMode(context.Background(), ModeAgent))
	assert.Equal(t, ModeAgent, ctrl.Mode())
	assert.Empty(t, ctrl.Messages())
}

func TestStreamingConnectionDropSettlesAsError(t *testing.T) {
	ctrl := newTestController(t, true, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"completion\": \"par\"}\n\n"))
		flusher.Flush()
		panic(http.ErrAbortHandler)
	})
	ctrl.NewConversation()

	drain(ctrl.Send(context.Background(), "q"))

	// The truncated answer never lands as a completed assistant message
	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.True(t, msgs[1].IsError)
	assert.NotContains(t, msgs[1].Content, "par")
	assert.True(t, ctrl.Status().Ready())
}

func TestStreamingErrorDropsPartial(t *testing.T) {
	ctrl := newTestController(t, true, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail": "stream refused"}`))
	})
	ctrl.NewConversation()

	drain(ctrl.Send(context.Background(), "q"))

	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	// No empty partial message remains, only user + inline error
	assert.Equal(t, "user", msgs[0].Role)
	assert.True(t, msgs[1].IsError)
	assert.True(t, ctrl.Status().Ready())
}
