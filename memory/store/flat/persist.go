package flat

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hollowlabs/revenant/memory"
)

// writeIndex serializes the live index to a temp file and renames it over
// the index blob.
func (s *Store) writeIndex() error {
	path := filepath.Join(s.dir, indexFileName)

	f, err := os.CreateTemp(s.dir, ".index-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := s.idx.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeMetadata serializes the item list as JSON, temp-file-and-rename.
func writeMetadata(path string, items []memory.Item) error {
	if items == nil {
		items = []memory.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".meta-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readMetadata(path string) ([]memory.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []memory.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}
