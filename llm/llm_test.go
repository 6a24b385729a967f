package llm

import "testing"

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewOpenAIRequiresKeyOrBaseURL(t *testing.T) {
	if _, err := New(Config{Provider: "openai"}); err == nil {
		t.Fatal("expected error without key or base URL")
	}

	p, err := New(Config{Provider: "openai", BaseURL: "http://localhost:8080/v1"})
	if err != nil {
		t.Fatalf("local base URL rejected: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Name = %q, want openai", p.Name())
	}
}

func TestNewOllamaDefaults(t *testing.T) {
	p, err := New(Config{Provider: "ollama"})
	if err != nil {
		t.Fatalf("New(ollama) failed: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name = %q, want ollama", p.Name())
	}
}

func TestNewAnthropicRequiresKey(t *testing.T) {
	if _, err := New(Config{Provider: "anthropic"}); err == nil {
		t.Fatal("expected error without API key")
	}
	p, err := New(Config{Provider: "anthropic", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New(anthropic) failed: %v", err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("Name = %q, want anthropic", p.Name())
	}
}
