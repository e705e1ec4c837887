package index

import (
	"encoding/json"
	"fmt"
	"os"

	"ventas/internal/domain"
)

// The index persists as two companion artifacts, mirroring how the search
// structure and the metadata sequence live side by side in memory. Both must
// be present and of equal length on load.
const (
	vectorsSuffix = ".index.json"
	metaSuffix    = ".meta.json"
)

type vectorsFile struct {
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
}

// Exists reports whether a persisted index is present at the base path.
// Callers branch on this instead of treating a missing file as a failure.
func Exists(basePath string) bool {
	if _, err := os.Stat(basePath + vectorsSuffix); err != nil {
		return false
	}
	_, err := os.Stat(basePath + metaSuffix)
	return err == nil
}

// Persist writes the index artifacts to basePath. A restored index answers
// the same queries with the same ordered results.
func (f *Flat) Persist(basePath string) error {
	f.mu.RLock()
	snap := f.snap
	f.mu.RUnlock()

	vf := vectorsFile{Dimension: f.dimension, Vectors: snap.vectors}
	data, err := json.Marshal(vf)
	if err != nil {
		return fmt.Errorf("failed to encode vectors: %w", err)
	}
	if err := os.WriteFile(basePath+vectorsSuffix, data, 0644); err != nil {
		return fmt.Errorf("failed to write vectors artifact: %w", err)
	}

	data, err = json.Marshal(snap.records)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(basePath+metaSuffix, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata artifact: %w", err)
	}
	return nil
}

// Restore loads both artifacts from basePath. The vectors were normalized
// before persisting, so they are stored back verbatim.
func Restore(basePath string) (*Flat, error) {
	data, err := os.ReadFile(basePath + vectorsSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to read vectors artifact: %w", err)
	}
	var vf vectorsFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("failed to decode vectors artifact: %w", err)
	}

	data, err = os.ReadFile(basePath + metaSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata artifact: %w", err)
	}
	var records []domain.EmbeddingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode metadata artifact: %w", err)
	}

	if len(vf.Vectors) != len(records) {
		return nil, fmt.Errorf("%w: %d vectors vs %d metadata records",
			ErrIndexIntegrity, len(vf.Vectors), len(records))
	}

	for i, v := range vf.Vectors {
		if len(v) != vf.Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				ErrIndexIntegrity, i, len(v), vf.Dimension)
		}
	}

	f := NewFlat(vf.Dimension)
	f.snap = &snapshot{vectors: vf.Vectors, records: records}
	return f, nil
}
