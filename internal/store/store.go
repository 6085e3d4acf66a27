// Package store owns the snapshot directory shared by the generator and the
// query service. The generator writes every artifact once per run; the
// service re-reads files on every request.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gonum.org/v1/gonum/mat"

	"phdash/internal/core"
	"phdash/internal/npy"
)

// Snapshot file names.
const (
	PHDataFile     = "ph_data_all_syn.json"
	PointCloudFile = "point_cloud_data.json"
	BaseConfigFile = "config.json"
	ManifestFile   = "manifest.json"
)

// ErrNotFound is returned when an artifact is absent from the snapshot.
var ErrNotFound = errors.New("artifact not found")

var artifactNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store reads and writes one snapshot directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is not created until
// Ensure is called.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// Ensure creates the snapshot directory if needed.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Path returns the absolute location of a snapshot file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// DistanceMatrixFile returns the file name of a metric's distance matrix.
func DistanceMatrixFile(metric string) string {
	return "dist_" + metric + ".npy"
}

// ProjectionFile returns the file name of a projection.
func ProjectionFile(kind core.ProjectionKind) string {
	return string(kind) + ".npy"
}

// SavePHData writes the per-metric cluster evolution, indented by 4 spaces.
func (s *Store) SavePHData(ph *core.PHData) error {
	return s.writeJSON(PHDataFile, ph, "    ")
}

// LoadPHData reads the per-metric cluster evolution, preserving key order.
func (s *Store) LoadPHData() (*core.PHData, error) {
	ph := core.NewPHData()
	if err := s.readJSON(PHDataFile, ph); err != nil {
		return nil, err
	}
	return ph, nil
}

// SavePointCloud writes the raw point cloud, indented by 2 spaces.
func (s *Store) SavePointCloud(pc *core.PointCloud) error {
	return s.writeJSON(PointCloudFile, pc, "  ")
}

// LoadPointCloud reads the raw point cloud.
func (s *Store) LoadPointCloud() (*core.PointCloud, error) {
	var pc core.PointCloud
	if err := s.readJSON(PointCloudFile, &pc); err != nil {
		return nil, err
	}
	return &pc, nil
}

// SaveBaseConfig writes the dashboard base configuration.
func (s *Store) SaveBaseConfig(cfg map[string]any) error {
	return s.writeJSON(BaseConfigFile, cfg, "  ")
}

// LoadBaseConfig reads the dashboard base configuration.
func (s *Store) LoadBaseConfig() (map[string]any, error) {
	cfg := make(map[string]any)
	if err := s.readJSON(BaseConfigFile, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveDistanceMatrix writes dist_<metric>.npy, plus a zstd copy if compress
// is set.
func (s *Store) SaveDistanceMatrix(metric core.MetricKey, m mat.Matrix, compress bool) error {
	return s.writeArray(DistanceMatrixFile(string(metric)), m, compress)
}

// LoadDistanceMatrix reads dist_<metric>.npy, falling back to the zstd copy.
func (s *Store) LoadDistanceMatrix(metric string) (*mat.Dense, error) {
	if !artifactNameRe.MatchString(metric) {
		return nil, fmt.Errorf("%w: invalid metric %q", ErrNotFound, metric)
	}
	return s.readArray(DistanceMatrixFile(metric))
}

// SaveProjection writes <kind>.npy, plus a zstd copy if compress is set.
func (s *Store) SaveProjection(kind core.ProjectionKind, m mat.Matrix, compress bool) error {
	return s.writeArray(ProjectionFile(kind), m, compress)
}

// LoadProjection reads <kind>.npy, falling back to the zstd copy.
func (s *Store) LoadProjection(kind core.ProjectionKind) (*mat.Dense, error) {
	return s.readArray(ProjectionFile(kind))
}

// Remove deletes a snapshot file and its compressed copy if present. It is
// used to drop artifacts from a previous run that the current run skipped.
func (s *Store) Remove(name string) error {
	for _, p := range []string{s.Path(name), s.Path(name + npy.CompressedExt)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) writeJSON(name string, v any, indent string) error {
	data, err := json.MarshalIndent(v, "", indent)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return s.writeAtomic(name, func(tmp string) error {
		return os.WriteFile(tmp, data, 0644)
	})
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeArray(name string, m mat.Matrix, compress bool) error {
	if err := s.writeAtomic(name, func(tmp string) error { return npy.WriteFile(tmp, m) }); err != nil {
		return err
	}
	if !compress {
		return nil
	}
	return s.writeAtomic(name+npy.CompressedExt, func(tmp string) error {
		return npy.WriteCompressedFile(tmp, m)
	})
}

func (s *Store) readArray(name string) (*mat.Dense, error) {
	m, err := npy.ReadFile(s.Path(name))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	m, err = npy.ReadCompressedFile(s.Path(name + npy.CompressedExt))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return m, err
}

// writeAtomic lets write fill a temporary file next to the target and then
// renames it into place, so readers never see a partial artifact.
func (s *Store) writeAtomic(name string, write func(tmp string) error) error {
	f, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmp := f.Name()
	f.Close()

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, s.Path(name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}
