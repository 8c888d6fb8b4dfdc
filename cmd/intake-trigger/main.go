// Command intake-trigger runs a single dispatch pass for one transcript file.
// It exits 0 when the file was handled or skipped, 1 on misuse or failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"intaked/internal/config"
	"intaked/internal/journal"
	"intaked/internal/logging"
	"intaked/internal/prompt"
	"intaked/internal/responder"
	"intaked/internal/state"
	"intaked/internal/trigger"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath(), "path to the TOML config file")
	profileName := flag.String("profile", "", "responder profile to use (overrides config)")
	quiet := flag.Bool("quiet", false, "suppress log output")
	flag.Usage = usage
	flag.Parse()

	_ = godotenv.Load()

	// A one-shot run only needs the journal, state, and profile settings, so
	// the daemon's root requirement is skipped.
	cfg, err := config.LoadLenient(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "intake-trigger:", err)
		return 1
	}
	if *profileName != "" {
		cfg.Profile = *profileName
	}

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	var output io.Writer = os.Stderr
	if *quiet {
		output = io.Discard
	}
	logger := logging.NewLoggerWithOutput(nil, level, output)

	if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "intake-trigger:", err)
		return 1
	}
	sink, err := journal.NewFileSink(cfg.JournalPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "intake-trigger:", err)
		return 1
	}
	defer sink.Close()

	// Invocation misuse is journaled like every other error before exiting.
	if flag.NArg() != 1 {
		if err := sink.Record(journal.NewEntry(journal.EventError, "missing file path argument")); err != nil {
			fmt.Fprintln(os.Stderr, "intake-trigger:", err)
		}
		usage()
		return 1
	}
	path := flag.Arg(0)

	profile, err := config.LoadProfile(cfg.ProfileDir, cfg.Profile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "intake-trigger:", err)
		return 1
	}
	respond, err := responder.New(responder.Options{
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
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "intake-trigger:", err)
		return 1
	}
	prompts, err := prompt.NewRenderer(profile.PromptTemplate)
	if err != nil {
		fmt.Fprintln(os.Stderr, "intake-trigger:", err)
		return 1
	}

	states, err := state.Open(cfg.StatePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "intake-trigger:", err)
		return 1
	}
	defer states.Close()

	runner := &trigger.Runner{
		Responder: respond,
		Journal:   sink,
		States:    states,
		Prompts:   prompts,
		Provider:  profile.Provider,
		Logger:    logger,
	}

	outcome, err := runner.Trigger(context.Background(), path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "intake-trigger:", err)
		return 1
	}
	if !*quiet {
		fmt.Println(outcome)
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <transcript-path>\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}
