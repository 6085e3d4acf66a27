package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"phdash/internal/config"
	"phdash/internal/logger"
	"phdash/internal/pipeline"
	"phdash/internal/render"
)

// generateOptions are command-line overrides of the generate config section
type generateOptions struct {
	dataDir  string
	samples  int
	seed     uint64
	compress bool
	previews bool
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the persistent homology snapshot",
		Long: `Generate a labelled synthetic point cloud and everything the dashboard reads:

  • ph_data_all_syn.json     cluster evolution per distance metric
  • point_cloud_data.json    points and (noisy) true labels
  • dist_<metric>.npy        the four distance matrices
  • pca/tsne/mds/lda.npy     2D projections
  • config.json, manifest.json

Any failure aborts the run with a non-zero exit status.

Examples:
  # Generate the default 250 point snapshot into ./data
  phdash generate

  # Smaller dataset with a different seed and compressed copies
  phdash generate --samples 100 --seed 7 --compress`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Snapshot directory (default from config: data)")
	cmd.Flags().IntVar(&opts.samples, "samples", 0, "Number of points (default from config: 250)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Blob sampling seed (default from config: 42)")
	cmd.Flags().BoolVar(&opts.compress, "compress", false, "Also write zstd-compressed .npy.zst copies")
	cmd.Flags().BoolVar(&opts.previews, "previews", false, "Write PNG scatter plots of every projection")

	return cmd
}

func runGenerate(ctx context.Context, cmd *cobra.Command, opts generateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override generate config from flags if provided
	dataDir := cfg.App.DataDir
	if opts.dataDir != "" {
		dataDir = opts.dataDir
	}
	gen := cfg.Generate
	if opts.samples != 0 {
		gen.Samples = opts.samples
	}
	if cmd.Flags().Changed("seed") {
		gen.Seed = opts.seed
	}
	if opts.compress {
		gen.Compress = true
	}
	if opts.previews {
		gen.Previews = true
	}

	builder := pipeline.NewBuilder().
		WithDataDir(dataDir).
		WithLogger(*log).
		WithConfig(PipelineConfig(gen))
	if gen.Previews {
		builder = builder.WithPreviews(render.Previews{})
	}
	p, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	res, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), render.Summary(res))
	return nil
}

// PipelineConfig maps the generate config section onto the pipeline.
func PipelineConfig(gen config.Generate) *pipeline.Config {
	pc := pipeline.DefaultConfig()

	pc.Blobs.NSamples = gen.Samples
	if len(gen.Centers) > 0 {
		pc.Blobs.Centers = gen.Centers
	}
	pc.Blobs.ClusterStd = gen.ClusterStd
	pc.Blobs.Seed = gen.Seed

	pc.Noise.Fraction = gen.NoiseFraction
	pc.Noise.Seed = gen.NoiseSeed
	pc.Noise.MaxAttempts = gen.NoiseMaxAttempts

	pc.MaxThresholds = gen.MaxThresholds
	if gen.DensityK > 0 {
		pc.DensityK = gen.DensityK
	}
	if gen.TSNEIterations > 0 {
		pc.TSNE.Iterations = gen.TSNEIterations
	}
	pc.TSNE.Seed = gen.Seed

	pc.Compress = gen.Compress
	pc.Previews = gen.Previews
	return pc
}
