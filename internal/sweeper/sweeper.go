// Package sweeper periodically rescans the intake roots and enqueues files
// whose content changed while no watcher event was observed, such as edits
// made while the daemon was down.
package sweeper

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"intaked/internal/logging"
	"intaked/internal/metrics"
	"intaked/internal/state"
	"intaked/internal/transcript"

	"github.com/robfig/cron/v3"
)

// Enqueuer accepts candidate paths for dispatch.
type Enqueuer interface {
	Enqueue(path string)
	Matches(path string) bool
}

// Options wires a Sweeper.
type Options struct {
	Roots    []string
	Schedule string
	Target   Enqueuer
	States   *state.Store
	Logger   *logging.Logger
	Registry *metrics.Registry
}

// Sweeper owns the cron schedule.
type Sweeper struct {
	roots    []string
	schedule string
	target   Enqueuer
	states   *state.Store
	logger   *logging.Logger
	registry *metrics.Registry
	cron     *cron.Cron
}

func New(options Options) (*Sweeper, error) {
	if options.Target == nil {
		return nil, errors.New("sweeper requires a dispatch target")
	}
	if len(options.Roots) == 0 {
		return nil, errors.New("sweeper requires intake roots")
	}
	schedule := options.Schedule
	if schedule == "" {
		schedule = "@every 15m"
	}
	registry := options.Registry
	if registry == nil {
		registry = metrics.Default
	}
	return &Sweeper{
		roots:    options.Roots,
		schedule: schedule,
		target:   options.Target,
		states:   options.States,
		logger:   options.Logger,
		registry: registry,
	}, nil
}

// Start schedules periodic sweeps. The first sweep runs on schedule, not
// immediately; callers wanting an immediate pass call Sweep themselves.
func (sweeper *Sweeper) Start() error {
	if sweeper == nil {
		return errors.New("sweeper is nil")
	}
	runner := cron.New()
	if _, err := runner.AddFunc(sweeper.schedule, sweeper.Sweep); err != nil {
		return errors.Join(errors.New("invalid sweep schedule"), err)
	}
	sweeper.cron = runner
	runner.Start()
	return nil
}

func (sweeper *Sweeper) Stop() {
	if sweeper == nil || sweeper.cron == nil {
		return
	}
	<-sweeper.cron.Stop().Done()
}

// Sweep walks the roots once and enqueues files needing a dispatch.
func (sweeper *Sweeper) Sweep() {
	if sweeper == nil {
		return
	}
	sweeper.registry.IncSweepRun()

	for _, root := range sweeper.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			sweeper.logWarn("sweep read root", root, err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(root, entry.Name())
			if !sweeper.target.Matches(path) {
				continue
			}
			needs, err := sweeper.needsDispatch(path)
			if err != nil {
				sweeper.logWarn("sweep inspect", path, err)
				continue
			}
			if needs {
				sweeper.logDebug("sweep enqueue", path)
				sweeper.target.Enqueue(path)
			}
		}
	}
}

// needsDispatch reports whether a file lacks the sentinel and differs from
// the last completed dispatch.
func (sweeper *Sweeper) needsDispatch(path string) (bool, error) {
	awaiting, err := transcript.AwaitingReply(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if awaiting {
		return false, nil
	}

	if sweeper.states == nil {
		return true, nil
	}
	record, err := sweeper.states.Get(path)
	if errors.Is(err, state.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	contentSHA, err := state.HashFile(path)
	if err != nil {
		return false, err
	}
	if record.Status == state.StatusCompleted && record.ContentSHA == contentSHA {
		return false, nil
	}
	return true, nil
}

func (sweeper *Sweeper) logDebug(message, path string) {
	if sweeper.logger == nil {
		return
	}
	sweeper.logger.Debug(message, map[string]string{"path": path})
}

func (sweeper *Sweeper) logWarn(message, path string, err error) {
	if sweeper.logger == nil {
		return
	}
	sweeper.logger.Warn(message, map[string]string{"path": path, "error": err.Error()})
}
