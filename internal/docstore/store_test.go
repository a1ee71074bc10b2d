package docstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/dqc/internal/api"
)

func newTestStores(t *testing.T, handler http.HandlerFunc) (*FolderStore, *DocumentStore, *Bus) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, "", nil)
	bus := NewBus()
	folders := NewFolderStore(client, bus, nil)
	docs := NewDocumentStore(client, folders, bus, nil)
	return folders, docs, bus
}

func TestDocumentsPlaceholdersFirst(t *testing.T) {
	_, docs, _ := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"external_id": "doc-1", "filename": "server.pdf", "system_metadata": {"status": "completed"}}]`))
	})

	require.NoError(t, docs.Refresh(context.Background()))

	docs.AddOptimistic(api.Document{ExternalID: "temp-1", Filename: "first.txt",
		SystemMetadata: api.SystemMetadata{Status: api.StatusUploading}})
	docs.AddOptimistic(api.Document{ExternalID: "temp-2", Filename: "second.txt",
		SystemMetadata: api.SystemMetadata{Status: api.StatusUploading}})

	list := docs.Documents()
	require.Len(t, list, 3)
	// Newest placeholder first, then older, then the server snapshot
	assert.Equal(t, "temp-2", list[0].ExternalID)
	assert.Equal(t, "temp-1", list[1].ExternalID)
	assert.Equal(t, "doc-1", list[2].ExternalID)
}

func TestRefreshDoesNotClobberPlaceholders(t *testing.T) {
	_, docs, _ := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	docs.AddOptimistic(api.Document{ExternalID: "temp-1", Filename: "pending.txt",
		SystemMetadata: api.SystemMetadata{Status: api.StatusUploading}})

	require.NoError(t, docs.Refresh(context.Background()))

	list := docs.Documents()
	require.Len(t, list, 1)
	assert.Equal(t, "temp-1", list[0].ExternalID)
	assert.Equal(t, api.StatusUploading, list[0].SystemMetadata.Status)
}

func TestSetScopeKeepsPlaceholders(t *testing.T) {
	_, docs, _ := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"external_id": "doc-1", "filename": "a.pdf", "system_metadata": {"status": "completed"}}]`))
	})

	require.NoError(t, docs.Refresh(context.Background()))
	docs.AddOptimistic(api.Document{ExternalID: "temp-1", Filename: "pending.txt",
		SystemMetadata: api.SystemMetadata{Status: api.StatusUploading}})

	docs.SetScope(Scope{Kind: ScopeFolder, Folder: "research"})

	list := docs.Documents()
	require.Len(t, list, 1)
	assert.Equal(t, "temp-1", list[0].ExternalID)
}

func TestUnorganizedScope(t *testing.T) {
	folders, docs, _ := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/folders/summary":
			w.Write([]byte(`[{"id": "f-1", "name": "research", "doc_count": 1, "document_ids": ["doc-1"]}]`))
		case "/documents":
			w.Write([]byte(`[
				{"external_id": "doc-1", "filename": "a.pdf", "system_metadata": {"status": "completed"}},
				{"external_id": "doc-2", "filename": "b.pdf", "system_metadata": {"status": "completed"}},
				{"external_id": "doc-3", "filename": "c.pdf", "system_metadata": {"status": "completed"}}
			]`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	require.NoError(t, folders.Refresh(ctx))
	docs.SetScope(Scope{Kind: ScopeUnorganized})
	require.NoError(t, docs.Refresh(ctx))

	list := docs.Documents()
	require.Len(t, list, 2)
	assert.Equal(t, "doc-2", list[0].ExternalID)
	assert.Equal(t, "doc-3", list[1].ExternalID)
}

func TestStaleRefreshDropped(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	firstStarted := make(chan struct{})
	release := make(chan struct{})

	_, docs, _ := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n == 1 {
			close(firstStarted)
			<-release // hold the first response until the second landed
			w.Write([]byte(`[{"external_id": "stale", "filename": "old.pdf", "system_metadata": {"status": "completed"}}]`))
			return
		}
		w.Write([]byte(`[{"external_id": "fresh", "filename": "new.pdf", "system_metadata": {"status": "completed"}}]`))
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = docs.Refresh(ctx)
	}()

	<-firstStarted
	require.NoError(t, docs.Refresh(ctx))
	close(release)
	wg.Wait()

	// The earlier refresh finished last; its result must be dropped
	list := docs.Documents()
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].ExternalID)
}

func TestProcessingIDsExcludesPlaceholders(t *testing.T) {
	_, docs, _ := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"external_id": "doc-b", "filename": "b.pdf", "system_metadata": {"status": "processing"}},
			{"external_id": "doc-a", "filename": "a.pdf", "system_metadata": {"status": "processing"}},
			{"external_id": "doc-c", "filename": "c.pdf", "system_metadata": {"status": "completed"}}
		]`))
	})

	require.NoError(t, docs.Refresh(context.Background()))
	docs.AddOptimistic(api.Document{ExternalID: "temp-1",
		SystemMetadata: api.SystemMetadata{Status: api.StatusUploading}})

	assert.Equal(t, []string{"doc-a", "doc-b"}, docs.ProcessingIDs())
}

func TestUpdateMetadataFailureLeavesStoreUnchanged(t *testing.T) {
	_, docs, _ := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/documents" {
			w.Write([]byte(`[{"external_id": "doc-1", "filename": "a.pdf",
				"metadata": {"author": "alice"},
				"system_metadata": {"status": "completed"}}]`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "metadata rejected"}`))
	})
	ctx := context.Background()

	require.NoError(t, docs.Refresh(ctx))

	err := docs.UpdateMetadata(ctx, "doc-1", map[string]interface{}{"author": "mallory"})
	require.Error(t, err)

	doc, ok := docs.Get("doc-1")
	require.True(t, ok)
	assert.Equal(t, "alice", doc.Metadata["author"])
}

func TestDeleteRemovesFromSnapshot(t *testing.T) {
	_, docs, _ := newTestStores(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte(`[
			{"external_id": "doc-1", "filename": "a.pdf", "system_metadata": {"status": "completed"}},
			{"external_id": "doc-2", "filename": "b.pdf", "system_metadata": {"status": "completed"}}
		]`))
	})
	ctx := context.Background()

	require.NoError(t, docs.Refresh(ctx))
	require.NoError(t, docs.Delete(ctx, "doc-1"))

	list := docs.Documents()
	require.Len(t, list, 1)
	assert.Equal(t, "doc-2", list[0].ExternalID)
}
