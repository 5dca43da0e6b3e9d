package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"topicrag/internal/domain"
)

// FileIndex is an Index mirrored to a JSON file after every write, so the
// CLI keeps its vectors between runs without an external service.
type FileIndex struct {
	*Index
	path string
}

type snapshot struct {
	Dimension  int                             `json:"dimension"`
	Namespaces map[string][]domain.VectorRecord `json:"namespaces"`
}

// Open loads the index stored at path, or starts empty when the file does not exist.
func Open(path string) (*FileIndex, error) {
	f := &FileIndex{Index: NewIndex(0), path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", path, err)
	}
	f.dimension = snap.Dimension
	for ns, recs := range snap.Namespaces {
		if err := f.Index.Upsert(context.Background(), ns, recs); err != nil {
			return nil, fmt.Errorf("load namespace %s: %w", ns, err)
		}
	}
	return f, nil
}

// Path returns the snapshot file.
func (f *FileIndex) Path() string { return f.path }

func (f *FileIndex) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if err := f.Index.Upsert(ctx, namespace, records); err != nil {
		return err
	}
	return f.save()
}

func (f *FileIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := f.Index.DeleteNamespace(ctx, namespace); err != nil {
		return err
	}
	return f.save()
}

// save writes the snapshot to a temporary file and renames it into place.
func (f *FileIndex) save() error {
	f.mu.RLock()
	snap := snapshot{Dimension: f.dimension, Namespaces: make(map[string][]domain.VectorRecord, len(f.buckets))}
	for ns, b := range f.buckets {
		recs := make([]domain.VectorRecord, len(b.ids))
		for i, id := range b.ids {
			recs[i] = domain.VectorRecord{ID: id, Values: b.vectors[i], Metadata: b.meta[i]}
		}
		snap.Namespaces[ns] = recs
	}
	data, err := json.Marshal(snap)
	f.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return os.Rename(tmp, f.path)
}
