// Package index provides the brute-force nearest-neighbor structure used by
// the flat memory store. It stores every vector without approximation, so
// searches are exact at O(n) cost, the right trade for an agent memory log
// that holds hundreds of items, not millions.
package index

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// magic marks the start of a serialized index blob.
const magic uint32 = 0x464C4154 // "FLAT"

// Flat is an exact L2-distance index. Position i in the index always
// corresponds to position i in the owning store's metadata list; the store
// is responsible for keeping the two appended in lockstep.
//
// Flat is not safe for concurrent use; the owning store serializes access.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Dim returns the vector dimension.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Add appends a vector. The index keeps its own copy so later caller
// mutations cannot corrupt stored state.
func (f *Flat) Add(vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("index: vector dimension %d, want %d", len(vec), f.dim)
	}
	cp := make([]float32, f.dim)
	copy(cp, vec)
	f.vectors = append(f.vectors, cp)
	return nil
}

// Reset drops every vector, keeping the dimension.
func (f *Flat) Reset() {
	f.vectors = nil
}

// Search returns the positions and L2 distances of the k nearest vectors to
// query, ascending by distance. Fewer than k results come back when the
// index holds fewer vectors. Ties keep insertion order.
func (f *Flat) Search(query []float32, k int) ([]int, []float64) {
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}

	type hit struct {
		pos  int
		dist float64
	}
	hits := make([]hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = hit{pos: i, dist: l2(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].dist < hits[b].dist
	})

	positions := make([]int, k)
	distances := make([]float64, k)
	for i := 0; i < k; i++ {
		positions[i] = hits[i].pos
		distances[i] = hits[i].dist
	}
	return positions, distances
}

// l2 computes the Euclidean distance between two vectors. A length mismatch
// only compares the shared prefix; the store's Add dimension check makes
// that unreachable in practice.
func l2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// WriteTo serializes the index: magic, dimension, count, then the raw
// float32 data, all little-endian. This is the "index blob" the store
// persists next to its metadata file.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	var written int64

	header := []uint32{magic, uint32(f.dim), uint32(len(f.vectors))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return written, err
		}
		written += 4
	}
	for _, vec := range f.vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return written, err
		}
		written += int64(4 * len(vec))
	}
	return written, nil
}

// ReadFlat deserializes an index written by WriteTo.
func ReadFlat(r io.Reader) (*Flat, error) {
	var m, dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return nil, fmt.Errorf("index: read header: %w", err)
	}
	if m != magic {
		return nil, fmt.Errorf("index: bad magic %#x", m)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("index: read dimension: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("index: read count: %w", err)
	}

	f := NewFlat(int(dim))
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("index: read vector %d: %w", i, err)
		}
		f.vectors = append(f.vectors, vec)
	}
	return f, nil
}
