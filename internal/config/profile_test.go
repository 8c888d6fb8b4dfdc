package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadProfileCLI(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "support.yaml"), `
name: support
provider: cli
binary: respondctl
args: ["--mode", "concise"]
extra_path: /opt/respondctl/bin
timeout_seconds: 120
`)

	profile, err := LoadProfile(dir, "support")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Provider != "cli" || profile.Binary != "respondctl" {
		t.Fatalf("profile = %+v", profile)
	}
	if len(profile.Args) != 2 || profile.Args[1] != "concise" {
		t.Fatalf("Args = %v", profile.Args)
	}
	if profile.Timeout() != 2*time.Minute {
		t.Fatalf("Timeout() = %v", profile.Timeout())
	}
}

func TestLoadProfileOpenAI(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hosted.yml"), `
provider: openai
model: gpt-4o-mini
base_url: https://llm.internal/v1
api_key_env: INTAKE_LLM_KEY
`)
	t.Setenv("INTAKE_LLM_KEY", "sk-test")

	profile, err := LoadProfile(dir, "hosted")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Name != "hosted" {
		t.Fatalf("Name = %q, want the file stem", profile.Name)
	}
	if profile.APIKey() != "sk-test" {
		t.Fatalf("APIKey() = %q", profile.APIKey())
	}
}

func TestLoadProfileMissing(t *testing.T) {
	if _, err := LoadProfile(t.TempDir(), "absent"); err == nil {
		t.Fatal("expected an error for a missing profile")
	}
}

func TestProfileValidation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), `
name: broken
provider: cli
`)
	if _, err := LoadProfile(dir, "broken"); err == nil {
		t.Fatal("expected an error for a cli profile without a binary")
	}

	writeFile(t, filepath.Join(dir, "odd.yaml"), `
name: odd
provider: telepathy
`)
	if _, err := LoadProfile(dir, "odd"); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}

func TestListProfilesSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "zeta.yaml"), "provider: openai\nmodel: m\n")
	writeFile(t, filepath.Join(dir, "alpha.yaml"), "provider: cli\nbinary: b\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a profile\n")

	profiles, err := ListProfiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 2 || profiles[0].Name != "alpha" || profiles[1].Name != "zeta" {
		t.Fatalf("profiles = %+v", profiles)
	}
}
