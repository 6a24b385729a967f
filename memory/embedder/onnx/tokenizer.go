//go:build onnx

package onnx

import (
	"encoding/json"
	"math"
	"os"
	"strings"
)

// wordPieceTokenizer implements BERT-style WordPiece tokenization backed by
// a HuggingFace tokenizer.json vocabulary.
type wordPieceTokenizer struct {
	vocab    map[string]int
	clsToken int
	sepToken int
	unkToken int
}

func loadWordPieceTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	t := &wordPieceTokenizer{
		vocab:    file.Model.Vocab,
		clsToken: 101,
		sepToken: 102,
		unkToken: 100,
	}
	// Prefer the vocabulary's own special-token IDs when present.
	if id, ok := t.vocab["[CLS]"]; ok {
		t.clsToken = id
	}
	if id, ok := t.vocab["[SEP]"]; ok {
		t.sepToken = id
	}
	if id, ok := t.vocab["[UNK]"]; ok {
		t.unkToken = id
	}
	return t, nil
}

// tokenize converts text into vocabulary token IDs, splitting unknown words
// into WordPiece subwords.
func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	words := strings.Fields(strings.ToLower(text))

	var tokens []int64
	for _, word := range words {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		tokens = append(tokens, t.subwords(word)...)
	}
	return tokens
}

// subwords splits a word into the longest matching vocabulary pieces,
// falling back to [UNK] per character when nothing matches.
func (t *wordPieceTokenizer) subwords(word string) []int64 {
	var tokens []int64
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				tokens = append(tokens, int64(id))
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			tokens = append(tokens, int64(t.unkToken))
			start++
		}
	}
	return tokens
}

// normalize scales vec to unit length in place-safe fashion.
func normalize(vec []float32) []float32 {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(float64(sum)))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
