package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// PollerConfig holds the intervals of a Poller.
type PollerConfig struct {
	// PollInterval is how often the poll task runs (default: 10s).
	PollInterval time.Duration

	// CleanupInterval is how often the cleanup task runs (default: 1h).
	CleanupInterval time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		PollInterval:    10 * time.Second,
		CleanupInterval: time.Hour,
	}
}

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// Poller runs a task on a ticker and an optional cleanup task on a slower
// one. Task errors are logged; they never stop the loop.
type Poller struct {
	name    string
	poll    Task
	cleanup Task
	config  PollerConfig

	mu      sync.Mutex
	running bool
}

func NewPoller(name string, config PollerConfig, poll, cleanup Task) *Poller {
	defaults := DefaultPollerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	return &Poller{
		name:    name,
		poll:    poll,
		cleanup: cleanup,
		config:  config,
	}
}

// Run blocks until ctx is done. The poll task runs once immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New(p.name + " poller is already running")
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	slog.InfoContext(ctx, "Poller started",
		"name", p.name,
		"poll_interval", p.config.PollInterval,
		"cleanup_interval", p.config.CleanupInterval)

	p.runTask(ctx, "poll", p.poll)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Poller stopped", "name", p.name)
			return nil
		case <-pollTicker.C:
			p.runTask(ctx, "poll", p.poll)
		case <-cleanupTicker.C:
			p.runTask(ctx, "cleanup", p.cleanup)
		}
	}
}

// IsRunning returns whether Run is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) runTask(ctx context.Context, kind string, task Task) {
	if task == nil || ctx.Err() != nil {
		return
	}
	if err := task(ctx); err != nil {
		slog.ErrorContext(ctx, "Poller task failed", "name", p.name, "task", kind, "error", err)
	}
}
