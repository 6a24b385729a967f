package index

import (
	"bytes"
	"math"
	"testing"
)

func TestFlat_AddAndSearch(t *testing.T) {
	f := NewFlat(3)

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	for _, v := range vectors {
		if err := f.Add(v); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if f.Len() != 3 {
		t.Fatalf("Len = %d, want 3", f.Len())
	}

	positions, distances := f.Search([]float32{1, 0, 0}, 2)
	if len(positions) != 2 {
		t.Fatalf("got %d results, want 2", len(positions))
	}
	if positions[0] != 0 {
		t.Errorf("nearest position = %d, want 0", positions[0])
	}
	if positions[1] != 2 {
		t.Errorf("second position = %d, want 2", positions[1])
	}
	if distances[0] > distances[1] {
		t.Errorf("distances not ascending: %v", distances)
	}
	if distances[0] != 0 {
		t.Errorf("exact match distance = %f, want 0", distances[0])
	}
}

func TestFlat_SearchClampsK(t *testing.T) {
	f := NewFlat(2)
	f.Add([]float32{1, 1})

	positions, _ := f.Search([]float32{0, 0}, 10)
	if len(positions) != 1 {
		t.Fatalf("got %d results, want 1", len(positions))
	}
}

func TestFlat_SearchEmpty(t *testing.T) {
	f := NewFlat(2)
	positions, distances := f.Search([]float32{0, 0}, 5)
	if positions != nil || distances != nil {
		t.Fatalf("empty index returned results: %v %v", positions, distances)
	}
}

func TestFlat_AddDimensionMismatch(t *testing.T) {
	f := NewFlat(4)
	if err := f.Add([]float32{1, 2}); err == nil {
		t.Fatal("expected error for wrong dimension")
	}
	if f.Len() != 0 {
		t.Fatalf("failed Add changed Len to %d", f.Len())
	}
}

func TestFlat_RoundTrip(t *testing.T) {
	f := NewFlat(2)
	f.Add([]float32{1, 2})
	f.Add([]float32{3, 4})

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	loaded, err := ReadFlat(&buf)
	if err != nil {
		t.Fatalf("ReadFlat failed: %v", err)
	}
	if loaded.Dim() != 2 || loaded.Len() != 2 {
		t.Fatalf("loaded dim=%d len=%d, want 2/2", loaded.Dim(), loaded.Len())
	}

	positions, distances := loaded.Search([]float32{1, 2}, 1)
	if positions[0] != 0 || math.Abs(distances[0]) > 1e-9 {
		t.Errorf("loaded index search: pos=%d dist=%f", positions[0], distances[0])
	}
}

func TestFlat_ReadRejectsGarbage(t *testing.T) {
	if _, err := ReadFlat(bytes.NewReader([]byte("not an index"))); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestFlat_Reset(t *testing.T) {
	f := NewFlat(2)
	f.Add([]float32{1, 1})
	f.Reset()
	if f.Len() != 0 {
		t.Fatalf("Len after Reset = %d", f.Len())
	}
	if f.Dim() != 2 {
		t.Fatalf("Dim after Reset = %d", f.Dim())
	}
}
