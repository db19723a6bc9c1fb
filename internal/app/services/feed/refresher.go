package feed

import (
	"context"
	"sync"
	"time"

	"github.com/voltpacks/packmint/internal/app/domain/mint"
	"github.com/voltpacks/packmint/internal/app/system"
	"github.com/voltpacks/packmint/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher keeps a cached copy of the feed warm so HTTP reads never
// wait on chain calls. The first refresh runs shortly after start, then
// on a fixed interval.
type Refresher struct {
	service      *Service
	log          *logger.Logger
	interval     time.Duration
	initialDelay time.Duration

	mu      sync.Mutex
	items   []mint.FeedItem
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed feed refresher.
func NewRefresher(service *Service, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("feed-runner")
	}
	return &Refresher{
		service:      service,
		log:          log,
		interval:     30 * time.Second,
		initialDelay: 2 * time.Second,
	}
}

func (r *Refresher) Name() string { return "feed-refresher" }

// Items returns the last refreshed feed. Empty until the first refresh
// completes.
func (r *Refresher) Items() []mint.FeedItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mint.FeedItem, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case <-runCtx.Done():
			return
		case <-time.After(r.initialDelay):
			r.tick(runCtx)
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("feed refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("feed refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	items, err := r.service.Recent(ctx)
	if err != nil {
		r.log.WithError(err).Warn("feed refresh failed")
		return
	}

	r.mu.Lock()
	r.items = items
	r.mu.Unlock()
}
