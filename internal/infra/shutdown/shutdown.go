package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	hooks   []func(context.Context) error
	mu      sync.Mutex
	done    chan struct{}

	sigCh  chan os.Signal
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHandler creates a new shutdown handler. Signals are captured from this
// point on, so a signal arriving before Wait is not lost.
func NewHandler(timeout time.Duration) *Handler {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Handler{
		timeout: timeout,
		hooks:   make([]func(context.Context) error, 0),
		done:    make(chan struct{}),
		sigCh:   make(chan os.Signal, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	signal.Notify(h.sigCh, syscall.SIGINT, syscall.SIGTERM)

	return h
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Context returns a context that is canceled when shutdown begins.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Wait blocks until a shutdown signal arrives or ctx is done, then cancels
// Context and executes hooks. It returns the last hook error.
// Wait must be called at most once.
func (h *Handler) Wait(ctx context.Context) error {
	select {
	case <-h.sigCh:
	case <-ctx.Done():
	}
	signal.Stop(h.sigCh)
	h.cancel()

	hookCtx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]func(context.Context) error, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var lastErr error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](hookCtx); err != nil {
			lastErr = err
		}
	}

	close(h.done)
	return lastErr
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
