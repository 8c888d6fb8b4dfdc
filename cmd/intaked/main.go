// Command intaked is the intake daemon: it watches transcript directories and
// dispatches an AI responder whenever a conversation is left without a reply.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"intaked/internal/api"
	"intaked/internal/config"
	"intaked/internal/dispatch"
	"intaked/internal/event"
	"intaked/internal/fsutil"
	"intaked/internal/journal"
	"intaked/internal/logging"
	"intaked/internal/metrics"
	"intaked/internal/prompt"
	"intaked/internal/responder"
	"intaked/internal/state"
	"intaked/internal/sweeper"
	"intaked/internal/trigger"
	"intaked/internal/version"
	"intaked/internal/watcher"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "intaked:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath(), "path to the TOML config file")
	profileName := flag.String("profile", "", "responder profile to use (overrides config)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("intaked", version.Get().Version)
		return nil
	}

	// A local .env is optional; missing files are not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *profileName != "" {
		cfg.Profile = *profileName
	}

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), level, os.Stderr)

	roots, err := fsutil.NormalizeRoots(cfg.Roots)
	if err != nil {
		return err
	}

	profile, err := config.LoadProfile(cfg.ProfileDir, cfg.Profile)
	if err != nil {
		return err
	}
	respond, err := responder.New(responderOptions(profile))
	if err != nil {
		return err
	}
	prompts, err := prompt.NewRenderer(profile.PromptTemplate)
	if err != nil {
		return err
	}

	states, err := state.Open(cfg.StatePath)
	if err != nil {
		return err
	}
	defer states.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}
	sink, err := journal.NewFileSink(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer sink.Close()

	registry := metrics.Default

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus[event.Event](ctx, event.BusOptions{
		Name:        "dispatch_events",
		HistorySize: 256,
		Registry:    registry,
	})

	watches, err := watcher.NewWithOptions(watcher.Options{
		Logger:   logger,
		Debounce: cfg.Debounce(),
	})
	if err != nil {
		return err
	}
	defer watches.Close()

	runner := &trigger.Runner{
		Responder: respond,
		Journal:   sink,
		States:    states,
		Prompts:   prompts,
		Provider:  profile.Provider,
		Logger:    logger,
		Registry:  registry,
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		Runner:   runner,
		Watcher:  watches,
		Bus:      bus,
		Logger:   logger,
		Registry: registry,
		Patterns: cfg.Patterns,
	})
	if err != nil {
		return err
	}
	if err := dispatcher.Start(ctx, roots); err != nil {
		return err
	}
	defer dispatcher.Stop()

	sweep, err := sweeper.New(sweeper.Options{
		Roots:    roots,
		Schedule: cfg.SweepSchedule,
		Target:   dispatcher,
		States:   states,
		Logger:   logger,
		Registry: registry,
	})
	if err != nil {
		return err
	}
	if err := sweep.Start(); err != nil {
		return err
	}
	defer sweep.Stop()

	// Catch anything edited before the daemon came up.
	go sweep.Sweep()

	mux := http.NewServeMux()
	handler := &api.Handler{
		Logger:         logger,
		Registry:       registry,
		States:         states,
		Bus:            bus,
		JournalPath:    cfg.JournalPath,
		Roots:          roots,
		Profile:        profile.Name,
		AuthToken:      cfg.APIToken,
		AllowedOrigins: cfg.AllowedOrigins,
		StartedAt:      time.Now().UTC(),
	}
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	logger.Info("intaked started", map[string]string{
		"roots":    strings.Join(roots, string(os.PathListSeparator)),
		"patterns": strings.Join(cfg.Patterns, ","),
		"profile":  profile.Name,
		"addr":     cfg.ListenAddr,
	})

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested", nil)
	case err := <-serverErrors:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", map[string]string{"error": err.Error()})
	}
	return nil
}

func responderOptions(profile config.Profile) responder.Options {
	return responder.Options{
		Provider:     profile.Provider,
		Binary:       profile.Binary,
		Args:         profile.Args,
		ExtraPath:    filepath.SplitList(profile.ExtraPath),
		WorkDir:      profile.WorkDir,
		APIKey:       profile.APIKey(),
		BaseURL:      profile.BaseURL,
		Model:        profile.Model,
		SystemPrompt: profile.SystemPrompt,
		Timeout:      profile.Timeout(),
	}
}
