//go:build onnx

// Package onnx embeds text in-process with an ONNX transformer model.
//
// Built for all-MiniLM-L6-v2 exports but works with any BERT-style encoder
// that takes input_ids/attention_mask/token_type_ids and emits either a
// pooled [1, dim] tensor or a [1, seq, dim] last_hidden_state, which is then
// mean-pooled over attended tokens. Requires the onnxruntime shared library;
// guarded by the onnx build tag so default builds stay cgo-free.
package onnx

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultDimensions = 384
	maxSequenceLength = 128
)

// Config configures an Embedder.
type Config struct {
	// ModelPath is the ONNX model file. Required.
	ModelPath string

	// TokenizerPath is the HuggingFace tokenizer.json next to the model.
	// Required.
	TokenizerPath string

	// RuntimeLibrary is the onnxruntime shared library path. Empty falls
	// back to $ONNXRUNTIME_SHARED_LIBRARY, then the loader's default
	// search path.
	RuntimeLibrary string

	// Dimensions is the output vector width. Zero means 384
	// (all-MiniLM-L6-v2).
	Dimensions int
}

// Embedder runs a BERT-style encoder through ONNX Runtime.
type Embedder struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPieceTokenizer
	dimensions int
}

var initOnce sync.Once
var initErr error

func initRuntime(libPath string) error {
	initOnce.Do(func() {
		if libPath == "" {
			libPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY")
		}
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// New loads the model and tokenizer and prepares a session.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: model path is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx: tokenizer path is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = defaultDimensions
	}

	if err := initRuntime(cfg.RuntimeLibrary); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}

	tokenizer, err := loadWordPieceTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed tokenizes text, runs the encoder, and returns a unit-normalized
// embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := e.tokenizer.tokenize(text)

	inputIDs := make([]int64, maxSequenceLength)
	attentionMask := make([]int64, maxSequenceLength)
	tokenTypeIDs := make([]int64, maxSequenceLength)

	inputIDs[0] = int64(e.tokenizer.clsToken)
	attentionMask[0] = 1

	// Truncate to leave room for [CLS] and [SEP].
	if len(tokens) > maxSequenceLength-2 {
		tokens = tokens[:maxSequenceLength-2]
	}
	for i, tok := range tokens {
		inputIDs[i+1] = tok
		attentionMask[i+1] = 1
	}
	sepPos := len(tokens) + 1
	inputIDs[sepPos] = int64(e.tokenizer.sepToken)
	attentionMask[sepPos] = 1

	shape := ort.NewShape(1, maxSequenceLength)
	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: input_ids tensor: %w", err)
	}
	defer inputIDsTensor.Destroy()

	attentionTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("onnx: attention_mask tensor: %w", err)
	}
	defer attentionTensor.Destroy()

	tokenTypeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: token_type_ids tensor: %w", err)
	}
	defer tokenTypeTensor.Destroy()

	outputs := []ort.Value{nil}

	// Sessions are not safe for concurrent Run calls.
	e.mu.Lock()
	err = e.session.Run(
		[]ort.Value{inputIDsTensor, attentionTensor, tokenTypeTensor},
		outputs,
	)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if outputs[0] == nil {
		return nil, fmt.Errorf("onnx: no output tensor")
	}
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: unexpected output tensor type %T", outputs[0])
	}

	return e.pool(tensor, attentionMask)
}

// pool reduces the model output to a single unit vector. Pooled exports
// come out [1, dim]; raw encoders come out [1, seq, dim] and are
// mean-pooled over attended positions.
func (e *Embedder) pool(tensor *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := tensor.GetData()
	shape := tensor.GetShape()

	switch len(shape) {
	case 2:
		if len(data) < e.dimensions {
			return nil, fmt.Errorf("onnx: output has %d values, want %d", len(data), e.dimensions)
		}
		vec := make([]float32, e.dimensions)
		copy(vec, data[:e.dimensions])
		return normalize(vec), nil

	case 3:
		seqLen, hidden := int(shape[1]), int(shape[2])
		if shape[0] != 1 {
			return nil, fmt.Errorf("onnx: batch size %d, want 1", shape[0])
		}
		if hidden != e.dimensions {
			return nil, fmt.Errorf("onnx: hidden size %d, want %d", hidden, e.dimensions)
		}

		vec := make([]float32, hidden)
		var attended float32
		for i := 0; i < seqLen; i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * hidden
			for j := 0; j < hidden; j++ {
				vec[j] += data[offset+j]
			}
		}
		if attended > 0 {
			for j := range vec {
				vec[j] /= attended
			}
		}
		return normalize(vec), nil

	default:
		return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
	}
}

// Dimensions returns the embedding vector width.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases the session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
