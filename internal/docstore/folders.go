package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/dyike/dqc/internal/api"
)

// FolderStore holds folder summaries and lazily-fetched per-folder
// document lists. Children are cached per folder name for the lifetime
// of the store and invalidated only by ClearCache.
type FolderStore struct {
	client *api.Client
	bus    *Bus
	logger *zap.Logger

	mu      sync.RWMutex
	folders []api.FolderSummary

	// seq/applied guard against a stale refresh overwriting a newer one
	seq     uint64
	applied uint64

	children *cache.Cache
}

// NewFolderStore creates a folder store
func NewFolderStore(client *api.Client, bus *Bus, logger *zap.Logger) *FolderStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderStore{
		client:   client,
		bus:      bus,
		logger:   logger.Named("folders"),
		children: cache.New(cache.NoExpiration, 0),
	}
}

// Refresh re-fetches folder summaries and replaces the snapshot
func (s *FolderStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	folders, err := s.client.FolderSummaries(ctx)
	if err != nil {
		return fmt.Errorf("refresh folders: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		// A newer refresh already landed; drop this result
		s.logger.Debug("dropping stale folder refresh", zap.Uint64("seq", seq))
		return nil
	}
	s.applied = seq
	s.folders = folders

	if s.bus != nil {
		s.bus.Publish(Event{Kind: EventFoldersRefreshed})
	}
	return nil
}

// Folders returns the current folder summaries
func (s *FolderStore) Folders() []api.FolderSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.FolderSummary, len(s.folders))
	copy(out, s.folders)
	return out
}

// FolderByName looks up a folder summary by its unique name
func (s *FolderStore) FolderByName(name string) (api.FolderSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.folders {
		if f.Name == name {
			return f, true
		}
	}
	return api.FolderSummary{}, false
}

// MemberIDs returns the union of document ids across all folders.
// Documents absent from this set are "unorganized".
func (s *FolderStore) MemberIDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{})
	for _, f := range s.folders {
		for _, id := range f.DocumentIDs {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Expand returns the documents of a folder, fetching them on first
// request. A second expand of the same folder is a cache hit and
// issues no network calls.
func (s *FolderStore) Expand(ctx context.Context, name string) ([]api.Document, error) {
	if cached, found := s.children.Get(name); found {
		return cached.([]api.Document), nil
	}

	folder, ok := s.FolderByName(name)
	if !ok {
		return nil, fmt.Errorf("folder %q not found", name)
	}

	ids := folder.DocumentIDs
	if len(ids) == 0 {
		// Summaries may omit the id list; fall back to the detail endpoint
		detail, err := s.client.FolderDetail(ctx, folder.ID)
		if err != nil {
			return nil, fmt.Errorf("expand folder %q: %w", name, err)
		}
		ids = detail.DocumentIDs
	}

	docs, err := s.client.BatchDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("expand folder %q: %w", name, err)
	}

	s.children.Set(name, docs, cache.NoExpiration)
	s.logger.Debug("folder expanded", zap.String("folder", name), zap.Int("docs", len(docs)))
	return docs, nil
}

// ClearCache drops all cached folder children. Call after structural
// mutations: create, delete, move, rule-set.
func (s *FolderStore) ClearCache() {
	s.children.Flush()
}

// Create creates a folder and invalidates the children cache
func (s *FolderStore) Create(ctx context.Context, name, description string) error {
	if _, err := s.client.CreateFolder(ctx, name, description); err != nil {
		return err
	}
	s.ClearCache()
	return s.Refresh(ctx)
}

// Delete deletes a folder. Member documents are not deleted; after the
// next refresh they surface in the unorganized listing.
func (s *FolderStore) Delete(ctx context.Context, name string) error {
	folder, ok := s.FolderByName(name)
	if !ok {
		return fmt.Errorf("folder %q not found", name)
	}
	if err := s.client.DeleteFolder(ctx, folder.ID); err != nil {
		return err
	}
	s.ClearCache()
	return s.Refresh(ctx)
}

// AddDocument attaches a document to a folder by name
func (s *FolderStore) AddDocument(ctx context.Context, folderName, documentID string) error {
	folder, ok := s.FolderByName(folderName)
	if !ok {
		return fmt.Errorf("folder %q not found", folderName)
	}
	if err := s.client.AddDocumentToFolder(ctx, folder.ID, documentID); err != nil {
		return err
	}
	s.ClearCache()
	return s.Refresh(ctx)
}

// RemoveDocument detaches a document from a folder by name
func (s *FolderStore) RemoveDocument(ctx context.Context, folderName, documentID string) error {
	folder, ok := s.FolderByName(folderName)
	if !ok {
		return fmt.Errorf("folder %q not found", folderName)
	}
	if err := s.client.RemoveDocumentFromFolder(ctx, folder.ID, documentID); err != nil {
		return err
	}
	s.ClearCache()
	return s.Refresh(ctx)
}
