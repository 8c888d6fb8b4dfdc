// Package dispatch connects the filesystem watcher to the trigger runner:
// filters events, serializes per-path dispatch, and publishes pipeline events.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"intaked/internal/event"
	"intaked/internal/logging"
	"intaked/internal/metrics"
	"intaked/internal/trigger"
	"intaked/internal/watcher"

	"github.com/fsnotify/fsnotify"
)

// Options wires a Dispatcher.
type Options struct {
	Runner   *trigger.Runner
	Watcher  watcher.Watch
	Bus      *event.Bus[event.Event]
	Logger   *logging.Logger
	Registry *metrics.Registry
	// Patterns are shell globs matched against the file base name.
	Patterns []string
}

// Dispatcher owns the daemon-side dispatch loop.
type Dispatcher struct {
	runner   *trigger.Runner
	watcher  watcher.Watch
	bus      *event.Bus[event.Event]
	logger   *logging.Logger
	registry *metrics.Registry
	patterns []string

	mu       sync.Mutex
	inflight map[string]struct{}
	handles  []watcher.Handle
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(options Options) (*Dispatcher, error) {
	if options.Runner == nil {
		return nil, errors.New("dispatcher requires a trigger runner")
	}
	if options.Watcher == nil {
		return nil, errors.New("dispatcher requires a watcher")
	}
	registry := options.Registry
	if registry == nil {
		registry = metrics.Default
	}
	patterns := options.Patterns
	if len(patterns) == 0 {
		patterns = []string{"*.md"}
	}
	return &Dispatcher{
		runner:   options.Runner,
		watcher:  options.Watcher,
		bus:      options.Bus,
		logger:   options.Logger,
		registry: registry,
		patterns: patterns,
		inflight: make(map[string]struct{}),
	}, nil
}

// Start registers watches on each intake root. Events arrive until Stop.
func (dispatcher *Dispatcher) Start(ctx context.Context, roots []string) error {
	if dispatcher == nil {
		return errors.New("dispatcher is nil")
	}
	if len(roots) == 0 {
		return errors.New("at least one intake root is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dispatcher.ctx, dispatcher.cancel = context.WithCancel(ctx)

	for _, root := range roots {
		handle, err := dispatcher.watcher.Watch(root, dispatcher.handleFileEvent)
		if err != nil {
			dispatcher.Stop()
			return fmt.Errorf("watch intake root %s: %w", root, err)
		}
		dispatcher.handles = append(dispatcher.handles, handle)
		dispatcher.logInfo("watching intake root", root)
	}
	return nil
}

// Stop releases watches and waits for in-flight dispatches.
func (dispatcher *Dispatcher) Stop() {
	if dispatcher == nil {
		return
	}
	if dispatcher.cancel != nil {
		dispatcher.cancel()
	}
	for _, handle := range dispatcher.handles {
		_ = handle.Close()
	}
	dispatcher.handles = nil
	dispatcher.wg.Wait()
}

func (dispatcher *Dispatcher) handleFileEvent(fileEvent watcher.Event) {
	if !fileEvent.Op.Has(fsnotify.Create) && !fileEvent.Op.Has(fsnotify.Write) {
		return
	}
	if !dispatcher.Matches(fileEvent.Path) {
		return
	}

	dispatcher.registry.IncWatcherEvent()
	dispatcher.publish(event.NewFileEvent(fileEvent.Path, fileEvent.Op.String()))
	dispatcher.Enqueue(fileEvent.Path)
}

// Enqueue starts a dispatch for a path unless one is already in flight.
// The sweeper uses this entry point directly.
func (dispatcher *Dispatcher) Enqueue(path string) {
	if dispatcher == nil {
		return
	}

	dispatcher.mu.Lock()
	if _, busy := dispatcher.inflight[path]; busy {
		dispatcher.mu.Unlock()
		dispatcher.registry.IncSkipped("in_flight")
		dispatcher.publish(event.NewDispatchSkipped(path, "in_flight"))
		dispatcher.logDebug("dispatch already in flight", path)
		return
	}
	dispatcher.inflight[path] = struct{}{}
	dispatcher.mu.Unlock()

	dispatcher.wg.Add(1)
	go func() {
		defer dispatcher.wg.Done()
		defer func() {
			dispatcher.mu.Lock()
			delete(dispatcher.inflight, path)
			dispatcher.mu.Unlock()
		}()
		dispatcher.run(path)
	}()
}

func (dispatcher *Dispatcher) run(path string) {
	ctx := dispatcher.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	dispatcher.publish(event.NewDispatchStarted(path))

	outcome, err := dispatcher.runner.Trigger(ctx, path)
	if err != nil {
		dispatcher.publish(event.NewDispatchFailed(path, err))
		dispatcher.logWarn("dispatch failed", path, err)
		return
	}

	switch outcome {
	case trigger.OutcomeDispatched:
		dispatcher.publish(event.NewDispatchCompleted(path, dispatcher.runner.Provider))
	case trigger.OutcomeSkippedAwaiting:
		dispatcher.publish(event.NewDispatchSkipped(path, "awaiting_reply"))
	case trigger.OutcomeSkippedUnchanged:
		dispatcher.publish(event.NewDispatchSkipped(path, "unchanged"))
	}
}

// Matches reports whether the file base name matches any intake pattern.
func (dispatcher *Dispatcher) Matches(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range dispatcher.patterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}

func (dispatcher *Dispatcher) publish(e event.Event) {
	if dispatcher.bus != nil {
		dispatcher.bus.Publish(e)
	}
}

func (dispatcher *Dispatcher) logInfo(message, path string) {
	if dispatcher.logger == nil {
		return
	}
	dispatcher.logger.Info(message, map[string]string{"path": path})
}

func (dispatcher *Dispatcher) logDebug(message, path string) {
	if dispatcher.logger == nil {
		return
	}
	dispatcher.logger.Debug(message, map[string]string{"path": path})
}

func (dispatcher *Dispatcher) logWarn(message, path string, err error) {
	if dispatcher.logger == nil {
		return
	}
	dispatcher.logger.Warn(message, map[string]string{"path": path, "error": err.Error()})
}
