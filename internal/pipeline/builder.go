package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"phdash/internal/store"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	dataDir  string
	store    SnapshotWriter
	log      zerolog.Logger
	previews PreviewWriter
	config   *Config
}

// NewBuilder creates a new pipeline builder with default settings
func NewBuilder() *Builder {
	return &Builder{
		dataDir: "data",
		log:     zerolog.Nop(),
		config:  DefaultConfig(),
	}
}

// WithDataDir sets the snapshot directory
func (b *Builder) WithDataDir(dir string) *Builder {
	b.dataDir = dir
	return b
}

// WithStore replaces the snapshot writer
func (b *Builder) WithStore(st SnapshotWriter) *Builder {
	b.store = st
	return b
}

// WithLogger sets the pipeline logger
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = log
	return b
}

// WithConfig sets the pipeline configuration
func (b *Builder) WithConfig(config *Config) *Builder {
	b.config = config
	return b
}

// WithPreviews enables preview rendering through w
func (b *Builder) WithPreviews(w PreviewWriter) *Builder {
	b.previews = w
	if b.config != nil {
		b.config.Previews = true
	}
	return b
}

// Build constructs a fully configured Pipeline
func (b *Builder) Build() (*Pipeline, error) {
	if b.config == nil {
		b.config = DefaultConfig()
	}
	st := b.store
	if st == nil {
		if b.dataDir == "" {
			return nil, fmt.Errorf("data directory is required")
		}
		st = store.New(b.dataDir)
	}

	p := NewPipeline(st, homologyAnalyzer{maxThresholds: b.config.MaxThresholds}, nil, b.previews, b.log, b.config)
	p.projectors = DefaultProjectors(b.config, p.recordVariance)
	return p, nil
}

// DefaultProjectors returns PCA, t-SNE, MDS and LDA in snapshot order.
// onVariance receives the PCA explained-variance ratios.
func DefaultProjectors(config *Config, onVariance func(ratio []float64)) []Projector {
	return []Projector{
		pcaProjector{onVariance: onVariance},
		tsneProjector{cfg: config.TSNE},
		mdsProjector{},
		ldaProjector{},
	}
}
