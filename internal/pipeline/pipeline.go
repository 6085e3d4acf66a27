// Package pipeline generates the persistent-homology snapshot the dashboard
// service reads.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"phdash/internal/core"
	"phdash/internal/homology"
	"phdash/internal/metrics"
	"phdash/internal/projection"
	"phdash/internal/store"
	"phdash/internal/synth"
)

// Pipeline orchestrates the end-to-end snapshot generation workflow
type Pipeline struct {
	store      SnapshotWriter
	analyzer   EvolutionAnalyzer
	projectors []Projector
	previews   PreviewWriter // Optional
	log        zerolog.Logger

	config *Config

	explainedVariance []float64
}

// Config holds pipeline configuration
type Config struct {
	Blobs synth.BlobConfig
	Noise synth.NoiseConfig

	// Homology settings
	MaxThresholds int
	DensityK      int

	TSNE projection.TSNEConfig

	// Output settings
	Compress bool
	Previews bool
}

// DefaultConfig returns the configuration of the published snapshot
func DefaultConfig() *Config {
	return &Config{
		Blobs:         synth.DefaultBlobConfig(),
		Noise:         synth.DefaultNoiseConfig(),
		MaxThresholds: homology.DefaultMaxThresholds,
		DensityK:      metrics.DefaultDensityNeighbors,
		TSNE:          projection.DefaultTSNEConfig(),
	}
}

// NewPipeline creates a pipeline writing to st
func NewPipeline(st SnapshotWriter, analyzer EvolutionAnalyzer, projectors []Projector, previews PreviewWriter, log zerolog.Logger, config *Config) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pipeline{
		store:      st,
		analyzer:   analyzer,
		projectors: projectors,
		previews:   previews,
		log:        log,
		config:     config,
	}
}

// Result contains the output of a generation run
type Result struct {
	Dir               string
	PointCloud        *core.PointCloud
	PHData            *core.PHData
	Projections       []Projection
	ExplainedVariance []float64
	Swaps             []synth.SwapRecord
	Manifest          *store.Manifest
	Stats             ProcessingStats
}

// ProcessingStats tracks pipeline execution metrics
type ProcessingStats struct {
	NSamples       int
	NClusters      int
	ClusterSizes   []int
	Swaps          int
	Outliers       int
	Thresholds     []MetricThresholds
	Skipped        []core.ProjectionKind
	Files          []string
	Stages         []StageTiming
	ProcessingTime time.Duration
	StartTime      time.Time
	EndTime        time.Time
}

// MetricThresholds is the number of filtration stages computed for a metric
type MetricThresholds struct {
	Metric core.MetricKey
	Name   string
	Count  int
	// Silhouette of the original labels under the metric, NaN when undefined
	Silhouette float64
	// Quality describes Silhouette; empty when undefined
	Quality string
	// Negative is the number of points scoring below zero
	Negative int
}

// StageTiming records how long one stage took
type StageTiming struct {
	Name     string
	Duration time.Duration
}

const totalSteps = 8

// Run executes the full generation pipeline. Any stage error aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	res := &Result{Dir: p.store.Dir()}
	res.Stats.StartTime = startTime
	p.explainedVariance = nil

	if err := p.store.Ensure(); err != nil {
		return nil, err
	}

	// Step 1: Sample the point cloud
	err := p.stage(ctx, res, 1, "blobs", func() error {
		pc, err := synth.GenerateBlobs(p.config.Blobs)
		if err != nil {
			return fmt.Errorf("failed to generate blobs: %w", err)
		}
		res.PointCloud = pc
		res.Stats.NSamples = pc.NSamples
		res.Stats.NClusters = pc.NClusters
		res.Stats.ClusterSizes = synth.BinCount(pc.TrueLabels)
		p.log.Info().Ints("cluster_sizes", res.Stats.ClusterSizes).Msg("point cloud sampled")
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 2: Inject label noise
	err = p.stage(ctx, res, 2, "noise", func() error {
		res.Swaps = synth.InjectLabelNoise(res.PointCloud.TrueLabels, p.config.Noise)
		res.Stats.Swaps = len(res.Swaps)
		res.Stats.Outliers = len(synth.Outliers(res.Swaps))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Steps 3-4: Distance matrices and cluster evolution per metric
	type metricOutput struct {
		key  core.MetricKey
		dist *mat.SymDense
	}
	var outputs []metricOutput
	err = p.stage(ctx, res, 3, "distances", func() error {
		for _, cfg := range metrics.Configs(p.config.DensityK) {
			if err := ctx.Err(); err != nil {
				return err
			}
			dist, err := cfg.Func(res.PointCloud.Points)
			if err != nil {
				return fmt.Errorf("failed to compute %s distances: %w", cfg.Name, err)
			}
			outputs = append(outputs, metricOutput{key: cfg.Key, dist: dist})
			p.log.Debug().Str("metric", string(cfg.Key)).Msg("distance matrix computed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.PHData = core.NewPHData()
	err = p.stage(ctx, res, 4, "homology", func() error {
		for _, out := range outputs {
			if err := ctx.Err(); err != nil {
				return err
			}
			evolution, err := p.evolution(out.dist, res.PointCloud.TrueLabels)
			if err != nil {
				return fmt.Errorf("failed to compute cluster evolution for %s: %w", out.key, err)
			}
			res.PHData.Set(string(out.key), evolution)

			th := MetricThresholds{
				Metric:     out.key,
				Name:       out.key.DisplayName(),
				Count:      evolution.Len() - 1,
				Silhouette: math.NaN(),
			}
			sil, err := homology.Silhouette(out.dist, res.PointCloud.TrueLabels)
			switch {
			case err == nil:
				th.Silhouette = sil.Overall
				th.Quality = sil.Quality
				th.Negative = sil.Negative()
			case !errors.Is(err, homology.ErrSingleCluster):
				return fmt.Errorf("failed to score %s labels: %w", out.key, err)
			}
			res.Stats.Thresholds = append(res.Stats.Thresholds, th)
			p.log.Info().
				Str("metric", th.Name).
				Int("thresholds", th.Count).
				Float64("silhouette", th.Silhouette).
				Int("negative_silhouette", th.Negative).
				Msg("cluster evolution computed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 5: Persist distance matrices
	err = p.stage(ctx, res, 5, "save matrices", func() error {
		for _, out := range outputs {
			if err := p.store.SaveDistanceMatrix(out.key, out.dist, p.config.Compress); err != nil {
				return err
			}
			res.Stats.Files = append(res.Stats.Files, store.DistanceMatrixFile(string(out.key)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 6: Projections
	err = p.stage(ctx, res, 6, "projections", func() error {
		return p.project(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	res.ExplainedVariance = p.explainedVariance

	// Step 7: JSON artifacts
	err = p.stage(ctx, res, 7, "save json", func() error {
		if err := p.store.SavePHData(res.PHData); err != nil {
			return err
		}
		if err := p.store.SavePointCloud(res.PointCloud); err != nil {
			return err
		}
		if err := p.store.SaveBaseConfig(baseConfig(res)); err != nil {
			return err
		}
		res.Stats.Files = append(res.Stats.Files, store.PHDataFile, store.PointCloudFile, store.BaseConfigFile)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 8: Optional previews, then the manifest
	err = p.stage(ctx, res, 8, "manifest", func() error {
		if p.config.Previews && p.previews != nil {
			files, err := p.previews.WriteProjectionPreviews(p.store.Dir(), res.Projections, res.PointCloud.TrueLabels)
			if err != nil {
				return fmt.Errorf("failed to write previews: %w", err)
			}
			res.Stats.Files = append(res.Stats.Files, files...)
		}
		res.Manifest = p.manifest(res)
		return p.store.SaveManifest(res.Manifest)
	})
	if err != nil {
		return nil, err
	}

	res.Stats.EndTime = time.Now()
	res.Stats.ProcessingTime = res.Stats.EndTime.Sub(startTime)
	p.log.Info().
		Str("dir", res.Dir).
		Int("files", len(res.Stats.Files)).
		Dur("elapsed", res.Stats.ProcessingTime).
		Msg("snapshot generated")
	return res, nil
}

// stage runs fn as step n, recording its duration. Cancellation is checked
// before every stage.
func (p *Pipeline) stage(ctx context.Context, res *Result, n int, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("generation cancelled before %s: %w", name, err)
	}
	p.log.Info().Msgf("Step %d/%d: %s", n, totalSteps, name)
	start := time.Now()
	if err := fn(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	res.Stats.Stages = append(res.Stats.Stages, StageTiming{Name: name, Duration: elapsed})
	p.log.Debug().Str("stage", name).Dur("elapsed", elapsed).Msg("stage complete")
	return nil
}

// evolution runs the analyzer and files its first report under the original labels.
func (p *Pipeline) evolution(dist mat.Symmetric, trueLabels []int) (*core.Evolution, error) {
	hr, err := p.analyzer.ComputeClusterEvolution(dist, trueLabels)
	if err != nil {
		return nil, err
	}
	stages, err := hr.Stages()
	if err != nil {
		return nil, err
	}

	original := make([]int, len(trueLabels))
	copy(original, trueLabels)
	ev := core.NewEvolution(original)
	for pair := stages.Oldest(); pair != nil; pair = pair.Next() {
		ev.Set(pair.Key, pair.Value)
	}
	return ev, nil
}

func (p *Pipeline) project(ctx context.Context, res *Result) error {
	pc := res.PointCloud
	for _, pr := range p.projectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		kind := pr.Kind()
		m, err := pr.Project(ctx, pc.Points, pc.TrueLabels)
		if errors.Is(err, projection.ErrTooFewClasses) {
			p.log.Warn().Str("projection", string(kind)).Msg("skipped: fewer than two classes")
			res.Stats.Skipped = append(res.Stats.Skipped, kind)
			if err := p.store.Remove(store.ProjectionFile(kind)); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to compute %s projection: %w", kind, err)
		}
		if err := p.store.SaveProjection(kind, m, p.config.Compress); err != nil {
			return err
		}
		res.Projections = append(res.Projections, Projection{Kind: kind, Matrix: m})
		res.Stats.Files = append(res.Stats.Files, store.ProjectionFile(kind))
	}
	return nil
}

func (p *Pipeline) recordVariance(ratio []float64) {
	p.explainedVariance = append([]float64(nil), ratio...)
	p.log.Info().Floats64("explained_variance_ratio", ratio).Msg("pca explained variance")
}

func (p *Pipeline) manifest(res *Result) *store.Manifest {
	m := store.NewManifest()
	m.CreatedAt = time.Now().UTC()
	m.Seed = p.config.Blobs.Seed
	m.NoiseSeed = p.config.Noise.Seed
	m.NSamples = res.Stats.NSamples
	m.Metrics = core.Metrics(res.PHData)
	for _, pr := range res.Projections {
		m.Projections = append(m.Projections, string(pr.Kind))
	}
	for _, k := range res.Stats.Skipped {
		m.Skipped = append(m.Skipped, string(k))
	}
	m.Files = append(append([]string(nil), res.Stats.Files...), store.ManifestFile)
	m.Outliers = res.Stats.Outliers
	m.Compressed = p.config.Compress
	return m
}

// baseConfig is the dashboard configuration served by /config before the
// metric list is merged in.
func baseConfig(res *Result) map[string]any {
	names := make(map[string]string, res.PHData.Len())
	for _, key := range core.MetricKeys() {
		names[string(key)] = key.DisplayName()
	}
	projections := make([]string, 0, len(res.Projections))
	for _, pr := range res.Projections {
		projections = append(projections, string(pr.Kind))
	}
	return map[string]any{
		"Metric Names": names,
		"Projection":   projections,
		"Samples":      res.Stats.NSamples,
		"Clusters":     res.Stats.NClusters,
	}
}
