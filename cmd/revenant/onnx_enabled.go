//go:build onnx

package main

import (
	"github.com/hollowlabs/revenant/config"
	"github.com/hollowlabs/revenant/memory"
	"github.com/hollowlabs/revenant/memory/embedder/onnx"
)

func buildONNXEmbedder(cfg *config.Config) (memory.Embedder, error) {
	return onnx.New(onnx.Config{
		ModelPath:     cfg.Memory.ModelPath,
		TokenizerPath: cfg.Memory.TokenizerPath,
		Dimensions:    cfg.Memory.EmbedDimension,
	})
}
