//go:build !onnx

package main

import (
	"errors"

	"github.com/hollowlabs/revenant/config"
	"github.com/hollowlabs/revenant/memory"
)

func buildONNXEmbedder(cfg *config.Config) (memory.Embedder, error) {
	return nil, errors.New("onnx embedder requires building with -tags onnx")
}
