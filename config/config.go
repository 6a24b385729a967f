// Package config loads server configuration from a YAML file with
// environment-variable overrides. Every value has a default suitable for
// local use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can use human forms ("90s", "2m")
// as well as plain integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the standard-library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	Memory MemoryConfig `yaml:"memory"`
	Tools  ToolsConfig  `yaml:"tools"`
}

type ServerConfig struct {
	Port               int      `yaml:"port"`
	AuthToken          string   `yaml:"auth_token"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
}

type LLMConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	MaxTokens int64    `yaml:"max_tokens"`
	Timeout   Duration `yaml:"timeout"`

	// PersonaFile overrides the built-in system persona with the contents
	// of a text file.
	PersonaFile string `yaml:"persona_file"`
}

type MemoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"` // "flat" or "chromem"
	Dir     string `yaml:"dir"`

	Embedder       string  `yaml:"embedder"` // "mock", "ollama", "onnx"
	EmbedModel     string  `yaml:"embed_model"`
	EmbedCache     bool    `yaml:"embed_cache"`
	MinSimilarity  float64 `yaml:"min_similarity"`
	RetrieveLimit  int     `yaml:"retrieve_limit"`
	ModelPath      string  `yaml:"model_path"`      // onnx only
	TokenizerPath  string  `yaml:"tokenizer_path"`  // onnx only
	EmbedDimension int     `yaml:"embed_dimension"` // 0 = backend default
}

type ToolsConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Workspace string   `yaml:"workspace"`
	Disabled  []string `yaml:"disabled"` // families: fs, git, exec, search, system

	// ExecTimeout is the default timeout for run_command/run_script when
	// the call does not set one. Zero keeps the built-in default.
	ExecTimeout Duration `yaml:"exec_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               5051,
			AllowedOrigins:     []string{"*"},
			RateLimitPerMinute: 120,
		},
		LLM: LLMConfig{
			Provider:  "ollama",
			MaxTokens: 4096,
			Timeout:   Duration(2 * time.Minute),
		},
		Memory: MemoryConfig{
			Enabled:       true,
			Backend:       "flat",
			Dir:           "data/memory",
			Embedder:      "ollama",
			EmbedCache:    true,
			MinSimilarity: 0.5,
			RetrieveLimit: 5,
		},
		Tools: ToolsConfig{
			Enabled:   true,
			Workspace: ".",
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides. A missing file with an explicit path is an error;
// an empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides selected settings from REVENANT_* variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("REVENANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("REVENANT_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("REVENANT_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("REVENANT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("REVENANT_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("REVENANT_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("REVENANT_MEMORY_DIR"); v != "" {
		c.Memory.Dir = v
	}
	if v := os.Getenv("REVENANT_MEMORY_BACKEND"); v != "" {
		c.Memory.Backend = v
	}
	if v := os.Getenv("REVENANT_EMBEDDER"); v != "" {
		c.Memory.Embedder = v
	}
	if v := os.Getenv("REVENANT_WORKSPACE"); v != "" {
		c.Tools.Workspace = v
	}
	if v := os.Getenv("REVENANT_PERSONA_FILE"); v != "" {
		c.LLM.PersonaFile = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	switch c.Memory.Backend {
	case "flat", "chromem":
	default:
		return fmt.Errorf("config: unknown memory backend %q", c.Memory.Backend)
	}
	switch c.Memory.Embedder {
	case "mock", "ollama", "onnx":
	default:
		return fmt.Errorf("config: unknown embedder %q", c.Memory.Embedder)
	}
	return nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
