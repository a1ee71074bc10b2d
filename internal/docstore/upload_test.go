package docstore

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/dqc/internal/api"
)

func drainEvents(bus *Bus) []Event {
	var events []Event
	for {
		select {
		case e := <-bus.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func hasEvent(events []Event, kind EventKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestUploadFilePlaceholderLifecycle(t *testing.T) {
	release := make(chan struct{})
	folders, docs, bus := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ingest/file" {
			<-release
			w.Write([]byte(`{"external_id": "doc-1", "filename": "a.txt", "system_metadata": {"status": "processing"}}`))
			return
		}
		w.Write([]byte(`[]`))
	})
	client := docs.client

	u := NewUploader(context.Background(), client, docs, folders, bus, nil)
	u.refreshDelay = 10 * time.Millisecond

	tempID := u.UploadFile("a.txt", []byte("hello"), api.IngestOptions{})

	// The placeholder is visible before the request completes
	doc, ok := docs.Get(tempID)
	require.True(t, ok)
	assert.Equal(t, api.StatusUploading, doc.SystemMetadata.Status)
	assert.Equal(t, "a.txt", doc.Filename)

	close(release)
	u.Wait()

	// Success removes the placeholder
	_, ok = docs.Get(tempID)
	assert.False(t, ok)
	assert.True(t, hasEvent(drainEvents(bus), EventUploadSettled))
}

func TestUploadFileFailure(t *testing.T) {
	folders, docs, bus := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "ingest rejected"}`))
	})

	u := NewUploader(context.Background(), docs.client, docs, folders, bus, nil)
	tempID := u.UploadFile("a.txt", []byte("hello"), api.IngestOptions{})
	u.Wait()

	// Failure leaves the placeholder in a terminal failed state
	doc, ok := docs.Get(tempID)
	require.True(t, ok)
	assert.Equal(t, api.StatusFailed, doc.SystemMetadata.Status)
	assert.Contains(t, doc.SystemMetadata.Error, "ingest rejected")

	events := drainEvents(bus)
	assert.True(t, hasEvent(events, EventAlert))
	assert.True(t, hasEvent(events, EventUploadSettled))
}

func TestUploadFilesPartialFailure(t *testing.T) {
	folders, docs, bus := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ingest/files" {
			w.Write([]byte(`{"document_ids": ["doc-1"], "errors": [{"filename": "bad.bin", "error": "unsupported type"}]}`))
			return
		}
		w.Write([]byte(`[]`))
	})

	u := NewUploader(context.Background(), docs.client, docs, folders, bus, nil)
	u.refreshDelay = 10 * time.Millisecond

	files := []api.FileUpload{
		{Filename: "good.txt", Content: []byte("ok")},
		{Filename: "bad.bin", Content: []byte{0x00}},
	}
	tempIDs := u.UploadFiles(files, true, api.IngestOptions{})
	require.Len(t, tempIDs, 2)
	u.Wait()

	// The accepted file's placeholder is gone; the rejected one failed
	_, ok := docs.Get(tempIDs[0])
	assert.False(t, ok)

	doc, ok := docs.Get(tempIDs[1])
	require.True(t, ok)
	assert.Equal(t, api.StatusFailed, doc.SystemMetadata.Status)
	assert.Contains(t, doc.SystemMetadata.Error, "unsupported type")
}

func TestUploadDebouncedRefresh(t *testing.T) {
	var listCalls int64
	folders, docs, bus := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ingest/file":
			w.Write([]byte(`{"external_id": "doc-1", "filename": "a.txt", "system_metadata": {"status": "processing"}}`))
		case "/documents":
			atomic.AddInt64(&listCalls, 1)
			w.Write([]byte(`[]`))
		case "/folders/summary":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	})

	u := NewUploader(context.Background(), docs.client, docs, folders, bus, nil)
	u.refreshDelay = 200 * time.Millisecond

	// Two settlements inside the window coalesce into one refresh
	u.UploadFile("a.txt", []byte("x"), api.IngestOptions{})
	u.UploadFile("b.txt", []byte("y"), api.IngestOptions{})
	u.Wait()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&listCalls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// And no second refresh fires afterwards
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&listCalls))
}

func TestUploadCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	folders, docs, bus := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	u := NewUploader(ctx, docs.client, docs, folders, bus, nil)
	cancel()

	tempID := u.UploadFile("a.txt", []byte("hello"), api.IngestOptions{})
	u.Wait()

	// A cancelled upload settles as failed, never stuck uploading
	doc, ok := docs.Get(tempID)
	require.True(t, ok)
	assert.Equal(t, api.StatusFailed, doc.SystemMetadata.Status)
}
