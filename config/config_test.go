package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 5051 {
		t.Errorf("port = %d, want 5051", cfg.Server.Port)
	}
	if cfg.Memory.Backend != "flat" || !cfg.Memory.Enabled {
		t.Errorf("memory defaults = %+v", cfg.Memory)
	}
	if cfg.Addr() != ":5051" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  auth_token: sekrit
llm:
  provider: anthropic
  model: some-model
  persona_file: /etc/revenant/persona.txt
memory:
  backend: chromem
  embedder: mock
tools:
  exec_timeout: 90s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.AuthToken != "sekrit" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.Model != "some-model" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Memory.Backend != "chromem" {
		t.Errorf("backend = %q", cfg.Memory.Backend)
	}
	if cfg.LLM.PersonaFile != "/etc/revenant/persona.txt" {
		t.Errorf("persona_file = %q", cfg.LLM.PersonaFile)
	}
	if cfg.Tools.ExecTimeout.Std() != 90*time.Second {
		t.Errorf("exec_timeout = %s", cfg.Tools.ExecTimeout.Std())
	}
	// Untouched values keep defaults.
	if cfg.Memory.RetrieveLimit != 5 {
		t.Errorf("retrieve_limit = %d, want default 5", cfg.Memory.RetrieveLimit)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REVENANT_PORT", "7070")
	t.Setenv("REVENANT_LLM_PROVIDER", "openai")
	t.Setenv("REVENANT_MEMORY_BACKEND", "chromem")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Memory.Backend != "chromem" {
		t.Errorf("backend = %q", cfg.Memory.Backend)
	}
}

func TestValidation(t *testing.T) {
	t.Setenv("REVENANT_PORT", "-1")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid port")
	}

	t.Setenv("REVENANT_PORT", "5051")
	t.Setenv("REVENANT_MEMORY_BACKEND", "redis")
	if _, err := Load(""); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
