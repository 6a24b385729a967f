// Package ollama embeds text through a running Ollama server.
package ollama

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	api "github.com/ollama/ollama/api"
)

const (
	defaultHost  = "http://localhost:11434"
	defaultModel = "nomic-embed-text"

	// fallbackDimensions matches nomic-embed-text, the default model.
	fallbackDimensions = 768
)

// Config configures an Embedder.
type Config struct {
	// Host is the Ollama server URL. Empty falls back to $OLLAMA_HOST,
	// then localhost:11434.
	Host string

	// Model is the embedding model name.
	Model string

	// Dimensions pins the vector width. Zero means probe the model with a
	// throwaway request on first use.
	Dimensions int

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Embedder calls an Ollama server's embed endpoint.
type Embedder struct {
	client *api.Client
	model  string

	probeOnce sync.Once
	dims      int
}

// New creates an Embedder. It does not contact the server; the first Embed
// or Dimensions call does.
func New(cfg Config) (*Embedder, error) {
	host := cfg.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse host %q: %w", host, err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Embedder{
		client: api.NewClient(u, &http.Client{Timeout: timeout}),
		model:  model,
		dims:   cfg.Dimensions,
	}, nil
}

// Embed returns the embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: embed: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama: model %s returned no embedding", e.model)
	}
	return res.Embeddings[0], nil
}

// Dimensions reports the model's vector width. When not configured it is
// probed once with a throwaway request; if the server is unreachable the
// default model's width is assumed.
func (e *Embedder) Dimensions() int {
	e.probeOnce.Do(func() {
		if e.dims > 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		vec, err := e.Embed(ctx, "dimension probe")
		if err != nil {
			log.Printf("[EMBED] Dimension probe failed for %s, assuming %d: %v",
				e.model, fallbackDimensions, err)
			e.dims = fallbackDimensions
			return
		}
		e.dims = len(vec)
	})
	return e.dims
}
