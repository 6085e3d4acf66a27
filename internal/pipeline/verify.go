package pipeline

import (
	"errors"
	"fmt"

	"phdash/internal/core"
	"phdash/internal/metrics"
	"phdash/internal/store"
)

// distanceTolerance bounds the asymmetry accepted in a stored distance matrix.
const distanceTolerance = 1e-9

// Check is the outcome of one snapshot invariant.
type Check struct {
	Name string
	Err  error
}

// OK reports whether the check passed.
func (c Check) OK() bool { return c.Err == nil }

// Verify re-reads a snapshot and checks the invariants generation promises:
// consistent label lengths, well-formed distance matrices and projections
// with one row per point. Missing optional projections listed as skipped in
// the manifest are accepted.
func Verify(st *store.Store) []Check {
	var checks []Check
	add := func(name string, err error) {
		checks = append(checks, Check{Name: name, Err: err})
	}

	pc, err := st.LoadPointCloud()
	if err != nil {
		add(store.PointCloudFile, err)
		return checks
	}
	add(store.PointCloudFile, pc.Validate())
	n := pc.NSamples

	ph, err := st.LoadPHData()
	if err != nil {
		add(store.PHDataFile, err)
		return checks
	}
	for pair := ph.Oldest(); pair != nil; pair = pair.Next() {
		add(fmt.Sprintf("%s labels", pair.Key), checkEvolution(pair.Value, n))

		m, err := st.LoadDistanceMatrix(pair.Key)
		if err == nil {
			if r, _ := m.Dims(); r != n {
				err = fmt.Errorf("%d rows for %d points", r, n)
			} else {
				err = metrics.Check(m, distanceTolerance)
			}
		}
		add(store.DistanceMatrixFile(pair.Key), err)
	}

	skipped := make(map[string]bool)
	if m, err := st.LoadManifest(); err == nil {
		for _, k := range m.Skipped {
			skipped[k] = true
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		add(store.ManifestFile, err)
	}

	for _, kind := range core.ProjectionKinds() {
		name := store.ProjectionFile(kind)
		m, err := st.LoadProjection(kind)
		if errors.Is(err, store.ErrNotFound) && skipped[string(kind)] {
			continue
		}
		if err == nil {
			r, c := m.Dims()
			switch {
			case r != n:
				err = fmt.Errorf("%d rows for %d points", r, n)
			case c < 1 || c > 2:
				err = fmt.Errorf("%d columns, expected 1 or 2", c)
			}
		}
		add(name, err)
	}
	return checks
}

func checkEvolution(ev *core.Evolution, n int) error {
	if _, ok := ev.Get(core.OriginalLabelsKey); !ok {
		return fmt.Errorf("missing %q", core.OriginalLabelsKey)
	}
	for pair := ev.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) != n {
			return fmt.Errorf("%q has %d labels for %d points", pair.Key, len(pair.Value), n)
		}
	}
	return nil
}
