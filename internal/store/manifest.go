package store

import (
	"time"

	"github.com/google/uuid"
)

// Manifest records what a generation run produced.
type Manifest struct {
	RunID       string    `json:"run_id"`       // Unique identifier of the generation run
	CreatedAt   time.Time `json:"created_at"`   // When the run finished
	Seed        uint64    `json:"seed"`         // Blob sampling seed
	NoiseSeed   uint64    `json:"noise_seed"`   // Label swap seed
	NSamples    int       `json:"n_samples"`    // Number of points
	Metrics     []string  `json:"metrics"`      // Metric keys, in generation order
	Projections []string  `json:"projections"`  // Projections that were written
	Skipped     []string  `json:"skipped"`      // Projections that were skipped
	Files       []string  `json:"files"`        // Every file written by the run
	Outliers    int       `json:"outliers"`     // Points whose label was swapped
	Compressed  bool      `json:"compressed"`   // Whether .npy.zst copies exist
}

// NewManifest starts a manifest with a fresh run ID.
func NewManifest() *Manifest {
	return &Manifest{RunID: uuid.NewString()}
}

// SaveManifest writes manifest.json.
func (s *Store) SaveManifest(m *Manifest) error {
	return s.writeJSON(ManifestFile, m, "  ")
}

// LoadManifest reads manifest.json.
func (s *Store) LoadManifest() (*Manifest, error) {
	var m Manifest
	if err := s.readJSON(ManifestFile, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
