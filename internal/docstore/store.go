package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dyike/dqc/internal/api"
)

// ScopeKind selects which slice of the corpus the store tracks
type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeFolder
	ScopeUnorganized
)

// Scope identifies a document listing: everything, one folder, or
// the documents that belong to no folder.
type Scope struct {
	Kind   ScopeKind
	Folder string
}

// Key returns a stable identifier used for refresh sequencing
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeFolder:
		return "folder:" + s.Folder
	case ScopeUnorganized:
		return "unorganized"
	default:
		return "all"
	}
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeFolder:
		return s.Folder
	case ScopeUnorganized:
		return "unorganized"
	default:
		return "all"
	}
}

// DocumentStore holds the document snapshot for the active scope plus
// the optimistic placeholders created by the upload orchestrator.
// Placeholders live beside the server snapshot, so a refresh can never
// clobber a pending upload.
type DocumentStore struct {
	client  *api.Client
	folders *FolderStore
	bus     *Bus
	logger  *zap.Logger

	mu    sync.RWMutex
	scope Scope
	docs  []api.Document

	// placeholders by temporary id, in insertion order
	placeholders map[string]*api.Document
	order        []string

	// per-scope monotonic counters: a refresh that started before a
	// later one completed must not overwrite the later snapshot
	seq     map[string]uint64
	applied map[string]uint64
}

// NewDocumentStore creates a document store scoped to all documents
func NewDocumentStore(client *api.Client, folders *FolderStore, bus *Bus, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{
		client:       client,
		folders:      folders,
		bus:          bus,
		logger:       logger.Named("docs"),
		placeholders: make(map[string]*api.Document),
		seq:          make(map[string]uint64),
		applied:      make(map[string]uint64),
	}
}

// SetScope switches the active scope. The snapshot is cleared; callers
// should Refresh afterwards. Placeholders survive scope changes so a
// pending upload stays visible.
func (s *DocumentStore) SetScope(scope Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = scope
	s.docs = nil
}

// Scope returns the active scope
func (s *DocumentStore) Scope() Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

// Refresh re-fetches the active scope and replaces the snapshot.
// A result that arrives after a newer refresh already landed for the
// same scope is dropped.
func (s *DocumentStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	scope := s.scope
	key := scope.Key()
	s.seq[key]++
	seq := s.seq[key]
	s.mu.Unlock()

	docs, err := s.fetch(ctx, scope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if scope != s.scope {
		return nil // scope changed while the fetch was in flight
	}
	if seq < s.applied[key] {
		s.logger.Debug("dropping stale refresh",
			zap.String("scope", key), zap.Uint64("seq", seq))
		return nil
	}
	s.applied[key] = seq
	s.docs = docs

	if s.bus != nil {
		s.bus.Publish(Event{Kind: EventDocumentsRefreshed})
	}
	return nil
}

// fetch lists documents for a scope without touching store state
func (s *DocumentStore) fetch(ctx context.Context, scope Scope) ([]api.Document, error) {
	switch scope.Kind {
	case ScopeFolder:
		docs, err := s.client.ListDocuments(ctx, api.ListDocumentsRequest{FolderName: scope.Folder})
		if err != nil {
			return nil, fmt.Errorf("list documents in %q: %w", scope.Folder, err)
		}
		return docs, nil

	case ScopeUnorganized:
		docs, err := s.client.ListDocuments(ctx, api.ListDocumentsRequest{})
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		members := s.folders.MemberIDs()
		var out []api.Document
		for _, d := range docs {
			if _, organized := members[d.ExternalID]; !organized {
				out = append(out, d)
			}
		}
		return out, nil

	default:
		docs, err := s.client.ListDocuments(ctx, api.ListDocumentsRequest{})
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		return docs, nil
	}
}

// Documents returns placeholders (newest first) followed by the
// server snapshot.
func (s *DocumentStore) Documents() []api.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.Document, 0, len(s.order)+len(s.docs))
	for i := len(s.order) - 1; i >= 0; i-- {
		if p, ok := s.placeholders[s.order[i]]; ok {
			out = append(out, *p)
		}
	}
	out = append(out, s.docs...)
	return out
}

// Get returns a document or placeholder by id
func (s *DocumentStore) Get(id string) (api.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.placeholders[id]; ok {
		return *p, true
	}
	for _, d := range s.docs {
		if d.ExternalID == id {
			return d, true
		}
	}
	return api.Document{}, false
}

// AddOptimistic inserts a placeholder document under its temporary id.
// Used exclusively by the upload orchestrator.
func (s *DocumentStore) AddOptimistic(doc api.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := doc
	s.placeholders[doc.ExternalID] = &copied
	s.order = append(s.order, doc.ExternalID)
}

// UpdateOptimistic mutates a placeholder in place
func (s *DocumentStore) UpdateOptimistic(tempID string, mutate func(*api.Document)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.placeholders[tempID]
	if !ok {
		return false
	}
	mutate(p)
	return true
}

// RemoveOptimistic drops a placeholder. The temporary id is never
// reused afterwards.
func (s *DocumentStore) RemoveOptimistic(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.placeholders, tempID)
	for i, id := range s.order {
		if id == tempID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// ProcessingIDs returns the ids of server documents still processing.
// Placeholders are excluded: they have no server status to poll.
func (s *DocumentStore) ProcessingIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, d := range s.docs {
		if d.SystemMetadata.Status == api.StatusProcessing {
			ids = append(ids, d.ExternalID)
		}
	}
	sort.Strings(ids)
	return ids
}

// UpdateMetadata sends a metadata update and, only on success, applies
// it to the in-memory record. A failed update leaves the store unchanged.
func (s *DocumentStore) UpdateMetadata(ctx context.Context, id string, metadata map[string]interface{}) error {
	if err := s.client.UpdateMetadata(ctx, id, metadata); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ExternalID == id {
			s.docs[i].Metadata = metadata
			break
		}
	}
	return nil
}

// Delete removes a document on the server and from the snapshot
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	if err := s.client.DeleteDocument(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ExternalID == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			break
		}
	}
	return nil
}
