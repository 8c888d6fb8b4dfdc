package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile describes one responder: which engine answers and how it is
// invoked. Profiles live as YAML documents in the profile directory.
type Profile struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`

	// CLI provider fields.
	Binary    string   `yaml:"binary"`
	Args      []string `yaml:"args"`
	ExtraPath string   `yaml:"extra_path"`
	WorkDir   string   `yaml:"work_dir"`

	// OpenAI provider fields.
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	APIKeyEnv    string `yaml:"api_key_env"`
	SystemPrompt string `yaml:"system_prompt"`

	PromptTemplate string `yaml:"prompt_template"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (profile Profile) Timeout() time.Duration {
	return time.Duration(profile.TimeoutSeconds) * time.Second
}

// APIKey resolves the provider API key from the configured environment
// variable, defaulting to OPENAI_API_KEY.
func (profile Profile) APIKey() string {
	name := profile.APIKeyEnv
	if name == "" {
		name = "OPENAI_API_KEY"
	}
	return os.Getenv(name)
}

func (profile Profile) validate() error {
	if strings.TrimSpace(profile.Name) == "" {
		return errors.New("profile is missing a name")
	}
	switch profile.Provider {
	case "cli":
		if strings.TrimSpace(profile.Binary) == "" {
			return fmt.Errorf("profile %s: cli provider requires a binary", profile.Name)
		}
	case "openai":
		if strings.TrimSpace(profile.Model) == "" {
			return fmt.Errorf("profile %s: openai provider requires a model", profile.Name)
		}
	case "":
		return fmt.Errorf("profile %s: missing provider", profile.Name)
	default:
		return fmt.Errorf("profile %s: unknown provider %q", profile.Name, profile.Provider)
	}
	return nil
}

// LoadProfile reads one named profile from dir. The file name is
// <name>.yaml or <name>.yml.
func LoadProfile(dir, name string) (Profile, error) {
	for _, extension := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, name+extension)
		payload, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
		}
		return parseProfile(path, payload)
	}
	return Profile{}, fmt.Errorf("profile %q not found in %s", name, dir)
}

// ListProfiles loads every profile in dir, sorted by name.
func ListProfiles(dir string) ([]Profile, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile directory %s: %w", dir, err)
	}

	var profiles []Profile
	for _, entry := range entries {
		extension := filepath.Ext(entry.Name())
		if entry.IsDir() || (extension != ".yaml" && extension != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile %s: %w", path, err)
		}
		profile, err := parseProfile(path, payload)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

func parseProfile(path string, payload []byte) (Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(payload, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if profile.Name == "" {
		profile.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := profile.validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}
