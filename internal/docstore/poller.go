package docstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/dqc/internal/api"
)

// Poller watches documents stuck in the processing state. It is
// level-triggered: every tick it re-reads the status of each processing
// document, and once none remain it stops itself. The server offers no
// push primitive, so polling is the only option.
type Poller struct {
	client   *api.Client
	docs     *DocumentStore
	bus      *Bus
	logger   *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewPoller creates a status poller
func NewPoller(client *api.Client, docs *DocumentStore, bus *Bus, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client:   client,
		docs:     docs,
		bus:      bus,
		logger:   logger.Named("poller"),
		interval: interval,
	}
}

// Kick starts the polling loop if documents are processing and the loop
// is not already running. Safe to call after every refresh; a single
// loop is maintained, never stacked intervals.
func (p *Poller) Kick(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	if len(p.docs.ProcessingIDs()) == 0 {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	go p.loop(loopCtx)
}

// Stop terminates the loop and aborts in-flight status requests
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.running = false
}

// Running reports whether the loop is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.cancel = nil
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug("poller started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("poller cancelled")
			return
		case <-ticker.C:
			done := p.tick(ctx)
			if done {
				p.logger.Debug("poller stopped, nothing processing")
				return
			}
		}
	}
}

// tick polls every processing document once. Returns true when no
// documents remain processing and the loop should terminate.
func (p *Poller) tick(ctx context.Context) bool {
	ids := p.docs.ProcessingIDs()
	if len(ids) == 0 {
		return true
	}

	// Fetch all statuses concurrently; each updates an independent
	// entity so ordering between them does not matter
	var mu sync.Mutex
	changed := false

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			doc, err := p.client.GetDocument(gctx, id)
			if err != nil {
				// Transient failure: the next tick retries
				p.logger.Debug("status poll failed", zap.String("id", id), zap.Error(err))
				return nil
			}
			if doc.SystemMetadata.Status != api.StatusProcessing {
				mu.Lock()
				changed = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return true
	}

	if changed {
		if err := p.docs.Refresh(ctx); err != nil {
			p.logger.Warn("refresh after status change failed", zap.Error(err))
			return false
		}
	}

	return len(p.docs.ProcessingIDs()) == 0
}
