// Package metrics is a small hand-rolled registry exposed in Prometheus text
// format by the status server.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Registry struct {
	triggered     atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	watcherEvents atomic.Int64
	sweepRuns     atomic.Int64
	skips         sync.Map // reason -> *atomic.Int64
	busPublished  sync.Map // bus -> *atomic.Int64
	busDropped    sync.Map // bus -> *atomic.Int64
	responders    sync.Map // provider -> *responderStats
}

type responderStats struct {
	count         atomic.Int64
	failures      atomic.Int64
	durationNanos atomic.Int64
}

var Default = &Registry{}

func (r *Registry) IncTriggered() {
	if r == nil {
		return
	}
	r.triggered.Add(1)
}

func (r *Registry) IncCompleted() {
	if r == nil {
		return
	}
	r.completed.Add(1)
}

func (r *Registry) IncFailed() {
	if r == nil {
		return
	}
	r.failed.Add(1)
}

func (r *Registry) IncSkipped(reason string) {
	if r == nil {
		return
	}
	counter(&r.skips, reason).Add(1)
}

func (r *Registry) IncWatcherEvent() {
	if r == nil {
		return
	}
	r.watcherEvents.Add(1)
}

func (r *Registry) IncSweepRun() {
	if r == nil {
		return
	}
	r.sweepRuns.Add(1)
}

func (r *Registry) IncEventPublished(bus string) {
	if r == nil {
		return
	}
	counter(&r.busPublished, bus).Add(1)
}

func (r *Registry) IncEventDropped(bus string) {
	if r == nil {
		return
	}
	counter(&r.busDropped, bus).Add(1)
}

// RecordResponder accumulates invocation statistics per provider.
func (r *Registry) RecordResponder(provider string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	if strings.TrimSpace(provider) == "" {
		provider = "unknown"
	}
	value, _ := r.responders.LoadOrStore(provider, &responderStats{})
	stats := value.(*responderStats)
	stats.count.Add(1)
	stats.durationNanos.Add(duration.Nanoseconds())
	if err != nil {
		stats.failures.Add(1)
	}
}

// Snapshot is the summary served by /api/status.
type Snapshot struct {
	Triggered     int64            `json:"triggered"`
	Completed     int64            `json:"completed"`
	Failed        int64            `json:"failed"`
	Skipped       map[string]int64 `json:"skipped"`
	WatcherEvents int64            `json:"watcher_events"`
	SweepRuns     int64            `json:"sweep_runs"`
}

func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	snapshot := Snapshot{
		Triggered:     r.triggered.Load(),
		Completed:     r.completed.Load(),
		Failed:        r.failed.Load(),
		WatcherEvents: r.watcherEvents.Load(),
		SweepRuns:     r.sweepRuns.Load(),
		Skipped:       map[string]int64{},
	}
	r.skips.Range(func(key, value any) bool {
		snapshot.Skipped[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return snapshot
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "intaked_triggers_total", "Total dispatches started", r.triggered.Load())
	writeCounter(writer, "intaked_completions_total", "Total dispatches completed", r.completed.Load())
	writeCounter(writer, "intaked_failures_total", "Total dispatch failures", r.failed.Load())
	writeCounter(writer, "intaked_watcher_events_total", "Filesystem events delivered", r.watcherEvents.Load())
	writeCounter(writer, "intaked_sweep_runs_total", "Sweeper passes", r.sweepRuns.Load())

	writeHelp(writer, "intaked_skips_total", "Dispatches skipped, by reason")
	fmt.Fprintln(writer, "# TYPE intaked_skips_total counter")
	for _, key := range sortedKeys(&r.skips) {
		fmt.Fprintf(writer, "intaked_skips_total{reason=%s} %d\n", formatLabel(key), counter(&r.skips, key).Load())
	}

	writeHelp(writer, "intaked_events_published_total", "Events published per bus")
	fmt.Fprintln(writer, "# TYPE intaked_events_published_total counter")
	for _, key := range sortedKeys(&r.busPublished) {
		fmt.Fprintf(writer, "intaked_events_published_total{bus=%s} %d\n", formatLabel(key), counter(&r.busPublished, key).Load())
	}

	writeHelp(writer, "intaked_events_dropped_total", "Events dropped per bus")
	fmt.Fprintln(writer, "# TYPE intaked_events_dropped_total counter")
	for _, key := range sortedKeys(&r.busDropped) {
		fmt.Fprintf(writer, "intaked_events_dropped_total{bus=%s} %d\n", formatLabel(key), counter(&r.busDropped, key).Load())
	}

	providers := sortedKeys(&r.responders)
	writeHelp(writer, "intaked_responder_duration_seconds", "Responder invocation duration")
	fmt.Fprintln(writer, "# TYPE intaked_responder_duration_seconds summary")
	writeHelp(writer, "intaked_responder_failures_total", "Responder invocation failures")
	fmt.Fprintln(writer, "# TYPE intaked_responder_failures_total counter")
	for _, provider := range providers {
		value, _ := r.responders.Load(provider)
		stats := value.(*responderStats)
		label := formatLabel(provider)
		seconds := float64(stats.durationNanos.Load()) / float64(time.Second)
		fmt.Fprintf(writer, "intaked_responder_duration_seconds_sum{provider=%s} %.6f\n", label, seconds)
		fmt.Fprintf(writer, "intaked_responder_duration_seconds_count{provider=%s} %d\n", label, stats.count.Load())
		fmt.Fprintf(writer, "intaked_responder_failures_total{provider=%s} %d\n", label, stats.failures.Load())
	}

	return nil
}

func counter(m *sync.Map, key string) *atomic.Int64 {
	value, _ := m.LoadOrStore(key, &atomic.Int64{})
	return value.(*atomic.Int64)
}

func sortedKeys(m *sync.Map) []string {
	var keys []string
	m.Range(func(key, _ any) bool {
		if name, ok := key.(string); ok {
			keys = append(keys, name)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
