package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/meysamhadeli/codechat/backend/models"
	"github.com/pterm/pterm"
)

const defaultPollInterval = time.Second

// ErrPollerRunning is returned by Start when a polling loop is already active.
var ErrPollerRunning = errors.New("status poller already running")

// StatusSource is the part of the backend the poller needs.
type StatusSource interface {
	IndexingStatus(ctx context.Context) (*models.IndexingStatus, error)
	FileStructure(ctx context.Context) (*models.FileTreeNode, error)
}

// PollerHooks receive the poller's results. Hooks run on the polling goroutine.
type PollerHooks struct {
	OnStatus func(status *models.IndexingStatus)
	// OnReady gets the fetched tree, or nil when the fetch failed.
	OnReady  func(tree *models.FileTreeNode)
	OnFailed func(message string)
}

// StatusPoller polls the indexing status until it completes or fails.
//
// A single poll that fails at the transport level is logged and retried on the
// next tick. There is no backoff, retry cap or overall timeout.
type StatusPoller struct {
	source   StatusSource
	interval time.Duration
	hooks    PollerHooks
	logger   *pterm.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewStatusPoller(source StatusSource, interval time.Duration, hooks PollerHooks, logger *pterm.Logger) *StatusPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	closed := make(chan struct{})
	close(closed)
	return &StatusPoller{
		source:   source,
		interval: interval,
		hooks:    hooks,
		logger:   logger,
		done:     closed,
	}
}

// Start launches the polling loop. The first status request goes out one interval after Start.
func (p *StatusPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPollerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.running = true
	p.cancel = cancel
	p.done = done

	release := func() {
		cancel()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.done == done {
			p.running = false
		}
	}

	go func() {
		defer close(done)
		defer release()
		p.loop(ctx, release)
	}()
	return nil
}

// Stop cancels polling. It is idempotent, never blocks on the loop, and is safe to call from a hook.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Running reports whether a polling loop is active.
func (p *StatusPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Done is closed once the current loop has exited.
func (p *StatusPoller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *StatusPoller) loop(ctx context.Context, release func()) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := p.source.IndexingStatus(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.Warn("indexing status poll failed, retrying", p.logger.Args("error", err))
			continue
		}

		if p.hooks.OnStatus != nil {
			p.hooks.OnStatus(status)
		}

		switch {
		case status.Failed():
			p.logger.Info("indexing failed", p.logger.Args("error", status.ErrorMessage()))
			// Released before the hook so a new Start from inside it is accepted.
			release()
			if p.hooks.OnFailed != nil {
				p.hooks.OnFailed(status.ErrorMessage())
			}
			return
		case status.IsComplete():
			tree := p.fetchTree(ctx)
			if ctx.Err() != nil {
				return
			}
			release()
			if p.hooks.OnReady != nil {
				p.hooks.OnReady(tree)
			}
			return
		}
	}
}

func (p *StatusPoller) fetchTree(ctx context.Context) *models.FileTreeNode {
	tree, err := p.source.FileStructure(ctx)
	if err != nil {
		p.logger.Warn("file structure unavailable", p.logger.Args("error", err))
		return nil
	}
	return tree
}
