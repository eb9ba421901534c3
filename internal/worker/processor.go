package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ProcessorConfig holds configuration for the pending-sync processor
type ProcessorConfig struct {
	// PollInterval is how often to check for pending records (default: 30s)
	PollInterval time.Duration

	// CleanupInterval is how often synced tombstones are purged (default: 1h)
	CleanupInterval time.Duration
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:    30 * time.Second,
		CleanupInterval: 1 * time.Hour,
	}
}

// Processor periodically re-syncs pending records and purges synced tombstones.
type Processor struct {
	worker *SyncWorker
	config ProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewProcessor(worker *SyncWorker, config ProcessorConfig) *Processor {
	def := DefaultProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	return &Processor{worker: worker, config: config}
}

// Start begins the processing loop. Returns an error if already running.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"cleanup_interval", p.config.CleanupInterval)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to end.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			if _, err := p.worker.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending sync failed", "error", err)
			}
		case <-cleanupTicker.C:
			if _, err := p.worker.PurgeDeleted(ctx); err != nil {
				slog.ErrorContext(ctx, "Tombstone cleanup failed", "error", err)
			}
		}
	}
}
