package memory

import (
	"encoding/json"
	"fmt"
	"time"
)

// Item is one stored memory entry. The embedding is persisted alongside the
// metadata so the index can be rebuilt from the metadata alone after a
// delete.
type Item struct {
	// Key identifies the item for retrieve/delete/update. Keys are not
	// unique; lookups take the first match in insertion order.
	Key string `json:"key"`

	// Text is the string the embedding was computed from. For non-string
	// values this is the JSON form of the value.
	Text string `json:"text"`

	// Value is the caller's payload, any JSON-serializable shape.
	Value any `json:"value"`

	// Timestamp is the RFC3339 creation time, set at insert and never
	// touched by reads.
	Timestamp string `json:"timestamp"`

	// Embedding is the vector the index position for this item holds.
	Embedding []float32 `json:"embedding"`
}

// NewItem builds an item for value at the current time. The embedding is
// filled in by the store.
func NewItem(key string, value any) Item {
	return Item{
		Key:       key,
		Text:      CoerceText(value),
		Value:     value,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CoerceText turns an arbitrary value into the text that gets embedded.
// Strings pass through untouched; everything else is JSON-marshaled, falling
// back to fmt formatting for unmarshalable values.
func CoerceText(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}

// Result builds the SearchResult view of an item at the given distance.
func (it Item) Result(distance float64) SearchResult {
	return SearchResult{
		Key:        it.Key,
		Text:       it.Text,
		Value:      it.Value,
		Timestamp:  it.Timestamp,
		Similarity: Similarity(distance),
		Distance:   distance,
	}
}
