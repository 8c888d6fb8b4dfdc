package responder

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderCLI    = "cli"
	ProviderOpenAI = "openai"
)

// Options describes one responder configuration, normally mapped from a
// profile document.
type Options struct {
	Provider string

	// cli provider
	Binary    string
	Args      []string
	ExtraPath []string
	WorkDir   string

	// openai provider
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string

	Timeout time.Duration
}

// New selects and constructs a responder implementation.
func New(options Options) (Responder, error) {
	switch strings.ToLower(strings.TrimSpace(options.Provider)) {
	case ProviderCLI:
		if strings.TrimSpace(options.Binary) == "" {
			return nil, fmt.Errorf("cli responder requires a binary")
		}
		return &ExecResponder{
			Binary:    options.Binary,
			Args:      options.Args,
			ExtraPath: options.ExtraPath,
			WorkDir:   options.WorkDir,
			Timeout:   options.Timeout,
		}, nil
	case ProviderOpenAI:
		return NewOpenAIResponder(options.APIKey, options.BaseURL, options.Model, options.SystemPrompt, options.Timeout)
	default:
		return nil, fmt.Errorf("unknown responder provider: %q", options.Provider)
	}
}
