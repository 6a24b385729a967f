package main

import (
	"fmt"
	"os"

	"github.com/hollowlabs/revenant/config"
	"github.com/hollowlabs/revenant/engine"
	"github.com/hollowlabs/revenant/llm"
	"github.com/hollowlabs/revenant/memory"
	"github.com/hollowlabs/revenant/memory/embedder/cached"
	"github.com/hollowlabs/revenant/memory/embedder/mock"
	ollamaembed "github.com/hollowlabs/revenant/memory/embedder/ollama"
	"github.com/hollowlabs/revenant/memory/store/chromem"
	"github.com/hollowlabs/revenant/memory/store/flat"
	"github.com/hollowlabs/revenant/tools"
)

func buildEmbedder(cfg *config.Config) (memory.Embedder, error) {
	var emb memory.Embedder
	var err error

	switch cfg.Memory.Embedder {
	case "mock":
		if cfg.Memory.EmbedDimension > 0 {
			emb = mock.NewWithDimensions(cfg.Memory.EmbedDimension)
		} else {
			emb = mock.New()
		}
	case "ollama":
		emb, err = ollamaembed.New(ollamaembed.Config{
			Model:      cfg.Memory.EmbedModel,
			Dimensions: cfg.Memory.EmbedDimension,
		})
	case "onnx":
		emb, err = buildONNXEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Memory.Embedder)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Memory.EmbedCache {
		return cached.New(emb, cached.Config{})
	}
	return emb, nil
}

func buildStore(cfg *config.Config) (memory.Store, error) {
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Memory.Backend {
	case "flat":
		return flat.New(flat.Config{
			Dir:       cfg.Memory.Dir,
			Embedder:  emb,
			ModelName: cfg.Memory.EmbedModel,
		})
	case "chromem":
		return chromem.New(chromem.Config{
			Dir:       cfg.Memory.Dir,
			Embedder:  emb,
			ModelName: cfg.Memory.EmbedModel,
		})
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	provider, err := llm.New(llm.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout.Std(),
	})
	if err != nil {
		return nil, nil, err
	}

	var opts []engine.Option
	cleanup := func() {}

	if cfg.Memory.Enabled {
		store, err := buildStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { store.Close() }
		opts = append(opts, engine.WithMemory(memory.NewManager(store, &memory.ManagerConfig{
			Enabled:       true,
			MinSimilarity: cfg.Memory.MinSimilarity,
			RetrieveLimit: cfg.Memory.RetrieveLimit,
		})))
	}

	if cfg.Tools.Enabled {
		if cfg.Tools.ExecTimeout > 0 {
			tools.DefaultExecTimeout = cfg.Tools.ExecTimeout.Std()
		}
		registry := tools.NewRegistry()
		tools.RegisterBuiltins(registry, cfg.Tools.Workspace, cfg.Tools.Disabled...)
		opts = append(opts, engine.WithRegistry(registry))
	}

	if cfg.LLM.PersonaFile != "" {
		persona, err := os.ReadFile(cfg.LLM.PersonaFile)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("read persona file: %w", err)
		}
		opts = append(opts, engine.WithPersona(string(persona)))
	}

	return engine.New(provider, opts...), cleanup, nil
}
