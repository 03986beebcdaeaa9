// Package lifecycle coordinates orderly teardown of the bot's components.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultHookTimeout = 10 * time.Second

// Hook is a named teardown step.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Shutdown runs registered hooks in reverse registration order, so the
// update intake stops before the backends it depends on are closed.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
}

func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook. Registration order matters: the last
// registered hook runs first.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
}

// Execute runs all hooks sequentially, each under its own timeout. All hooks
// run even when earlier ones fail; failures are joined into the result.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hooks", len(hooks)))

	var failures []string
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]

		hookCtx, cancel := context.WithTimeout(ctx, defaultHookTimeout)
		err := s.run(hookCtx, h)
		cancel()

		if err != nil {
			s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
			failures = append(failures, fmt.Sprintf("%s: %v", h.Name, err))
			continue
		}

		s.log.Info("shutdown hook completed", slog.String("hook", h.Name))
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	if len(failures) > 0 {
		return errors.New(strings.Join(failures, "; "))
	}

	return nil
}

func (s *Shutdown) run(ctx context.Context, h Hook) error {
	done := make(chan error, 1)

	go func() {
		done <- h.Fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
