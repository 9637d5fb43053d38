package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/meridiankv/meridian/internal/telemetry/logger"
)

// hook pairs a registered shutdown callback with the name it is logged
// under, so node.State's own internally-ordered teardown shows up as a
// single named, timed step rather than an anonymous function.
type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	log     logger.Logger
	hooks   []hook
	mu      sync.Mutex
	done    chan struct{}
}

// NewHandler creates a new shutdown handler. log may be nil, in which
// case hook execution is logged to logger.Default().
func NewHandler(timeout time.Duration, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		timeout: timeout,
		log:     log,
		hooks:   make([]hook, 0),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a named shutdown hook. Hooks are called in
// reverse order of registration, so the last subsystem brought up is
// the first one torn down.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Wait waits for SIGINT/SIGTERM and executes the registered hooks
// under one shared timeout, logging each hook's name and duration.
func (h *Handler) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	h.log.Info("shutdown signal received", "signal", sig.String(), "timeout", h.timeout)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var lastErr error
	for i := len(hooks) - 1; i >= 0; i-- {
		start := time.Now()
		err := hooks[i].fn(ctx)
		elapsed := time.Since(start)
		if err != nil {
			lastErr = err
			h.log.Warn("shutdown hook failed", "hook", hooks[i].name, "elapsed", elapsed, "error", err)
			continue
		}
		h.log.Debug("shutdown hook completed", "hook", hooks[i].name, "elapsed", elapsed)
	}

	close(h.done)
	return lastErr
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
