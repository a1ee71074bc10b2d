package docstore

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyike/dqc/internal/api"
)

// DefaultRefreshDelay is how long after a successful upload both stores
// are re-fetched. The server is eventually consistent right after an
// ingest, so an immediate refresh can miss the new record.
const DefaultRefreshDelay = time.Second

// Uploader is the upload orchestrator. It inserts a placeholder into
// the document store before the network request fires, then settles the
// placeholder on response: removed on success, marked failed on error.
// A placeholder never remains in the uploading state.
type Uploader struct {
	client  *api.Client
	docs    *DocumentStore
	folders *FolderStore
	bus     *Bus
	logger  *zap.Logger

	ctx          context.Context
	refreshDelay time.Duration

	mu           sync.Mutex
	refreshTimer *time.Timer
	wg           sync.WaitGroup
}

// NewUploader creates an upload orchestrator. Settlement and the
// post-upload refresh run in the background under ctx; cancelling it
// aborts in-flight uploads.
func NewUploader(ctx context.Context, client *api.Client, docs *DocumentStore, folders *FolderStore, bus *Bus, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		client:       client,
		docs:         docs,
		folders:      folders,
		bus:          bus,
		logger:       logger.Named("upload"),
		ctx:          ctx,
		refreshDelay: DefaultRefreshDelay,
	}
}

// newPlaceholder synthesizes an optimistic document record
func (u *Uploader) newPlaceholder(filename string, opts api.IngestOptions) api.Document {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return api.Document{
		ExternalID:  "temp-" + uuid.New().String(),
		Filename:    filename,
		ContentType: contentType,
		Metadata:    opts.Metadata,
		FolderName:  opts.FolderName,
		SystemMetadata: api.SystemMetadata{
			Status:    api.StatusUploading,
			CreatedAt: time.Now(),
		},
	}
}

// fail marks a placeholder failed and raises an alert
func (u *Uploader) fail(tempID, filename string, err error) {
	u.docs.UpdateOptimistic(tempID, func(d *api.Document) {
		d.SystemMetadata.Status = api.StatusFailed
		d.SystemMetadata.Error = err.Error()
	})
	u.logger.Warn("upload failed", zap.String("filename", filename), zap.Error(err))
	if u.bus != nil {
		u.bus.Alert(fmt.Sprintf("upload of %s failed", filename), err)
		u.bus.Publish(Event{Kind: EventUploadSettled})
	}
}

// succeed removes a placeholder and schedules the debounced refresh
func (u *Uploader) succeed(tempID, filename string) {
	u.docs.RemoveOptimistic(tempID)
	u.logger.Info("upload accepted", zap.String("filename", filename))
	if u.bus != nil {
		u.bus.Publish(Event{Kind: EventUploadSettled})
	}
	u.scheduleRefresh()
}

// UploadFile uploads one file. The placeholder is inserted before this
// method returns; settlement happens in the background. Returns the
// placeholder's temporary id.
func (u *Uploader) UploadFile(filename string, content []byte, opts api.IngestOptions) string {
	placeholder := u.newPlaceholder(filename, opts)
	u.docs.AddOptimistic(placeholder)

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		_, err := u.client.IngestFile(u.ctx, filename, bytes.NewReader(content), opts)
		if err != nil {
			u.fail(placeholder.ExternalID, filename, err)
			return
		}
		u.succeed(placeholder.ExternalID, filename)
	}()

	return placeholder.ExternalID
}

// UploadFiles uploads several files in one request, with one
// placeholder per file. Files the server rejects individually are
// marked failed; the rest are settled as successes.
func (u *Uploader) UploadFiles(files []api.FileUpload, parallel bool, opts api.IngestOptions) []string {
	tempIDs := make([]string, len(files))
	byFilename := make(map[string]string, len(files))
	for i, f := range files {
		placeholder := u.newPlaceholder(f.Filename, opts)
		u.docs.AddOptimistic(placeholder)
		tempIDs[i] = placeholder.ExternalID
		byFilename[f.Filename] = placeholder.ExternalID
	}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		resp, err := u.client.IngestFiles(u.ctx, files, parallel, opts)
		if err != nil {
			for _, f := range files {
				u.fail(byFilename[f.Filename], f.Filename, err)
			}
			return
		}

		failed := make(map[string]string, len(resp.Errors))
		for _, e := range resp.Errors {
			failed[e.Filename] = e.Error
		}
		for _, f := range files {
			if msg, ok := failed[f.Filename]; ok {
				u.fail(byFilename[f.Filename], f.Filename, fmt.Errorf("%s", msg))
			} else {
				u.succeed(byFilename[f.Filename], f.Filename)
			}
		}
	}()

	return tempIDs
}

// UploadText uploads raw text as a document
func (u *Uploader) UploadText(content string, opts api.IngestOptions) string {
	filename := fmt.Sprintf("text-%s.txt", time.Now().Format("20060102-150405"))
	placeholder := u.newPlaceholder(filename, opts)
	placeholder.ContentType = "text/plain"
	u.docs.AddOptimistic(placeholder)

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		_, err := u.client.IngestText(u.ctx, content, opts)
		if err != nil {
			u.fail(placeholder.ExternalID, filename, err)
			return
		}
		u.succeed(placeholder.ExternalID, filename)
	}()

	return placeholder.ExternalID
}

// scheduleRefresh re-fetches both stores after a short delay. Repeated
// settlements within the window coalesce into one refresh.
func (u *Uploader) scheduleRefresh() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.refreshTimer != nil {
		u.refreshTimer.Stop()
	}
	u.refreshTimer = time.AfterFunc(u.refreshDelay, func() {
		if u.ctx.Err() != nil {
			return
		}
		if err := u.folders.Refresh(u.ctx); err != nil {
			u.logger.Warn("post-upload folder refresh failed", zap.Error(err))
		}
		if err := u.docs.Refresh(u.ctx); err != nil {
			u.logger.Warn("post-upload document refresh failed", zap.Error(err))
		}
	})
}

// Wait blocks until all in-flight uploads settled. Used by the CLI,
// which must not exit mid-upload.
func (u *Uploader) Wait() {
	u.wg.Wait()
}
