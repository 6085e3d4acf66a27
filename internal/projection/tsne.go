package projection

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TSNEConfig controls the exact t-SNE optimisation.
type TSNEConfig struct {
	Perplexity        float64 // Effective neighbour count; 0 derives it from N
	Iterations        int     // Total gradient steps
	LearningRate      float64 // 0 selects max(N/EarlyExaggeration/4, 50)
	EarlyExaggeration float64 // P multiplier during the first ExaggerationIters steps
	ExaggerationIters int     // Length of the early exaggeration phase
	Seed              uint64  // Seed for the random initialisation fallback
}

// DefaultTSNEConfig mirrors the dashboard settings.
func DefaultTSNEConfig() TSNEConfig {
	return TSNEConfig{
		Iterations:        1000,
		EarlyExaggeration: 12,
		ExaggerationIters: 250,
		Seed:              42,
	}
}

// PerplexityFor returns max(5, min(30, (n-1)/3)).
func PerplexityFor(n int) float64 {
	return float64(max(5, min(30, (n-1)/3)))
}

const (
	tsneMinGain     = 0.01
	tsneInitStd     = 1e-4
	tsneSearchSteps = 100
	tsneSearchTol   = 1e-5
)

// TSNE embeds points in two dimensions with exact t-SNE. Initialisation uses
// the PCA projection scaled to a small standard deviation, falling back to a
// seeded Gaussian, so the output is deterministic.
func TSNE(ctx context.Context, points [][]float64, cfg TSNEConfig) (*mat.Dense, error) {
	n := len(points)
	if n < 3 {
		return nil, ErrTooFewPoints
	}
	if cfg.Perplexity <= 0 {
		cfg.Perplexity = PerplexityFor(n)
	}
	if cfg.Perplexity >= float64(n) {
		return nil, fmt.Errorf("perplexity %g must be less than the number of points %d", cfg.Perplexity, n)
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultTSNEConfig().Iterations
	}
	if cfg.EarlyExaggeration <= 0 {
		cfg.EarlyExaggeration = 1
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = math.Max(float64(n)/cfg.EarlyExaggeration/4, 50)
	}

	p := jointProbabilities(points, cfg.Perplexity)
	y := initialEmbedding(points, cfg.Seed)

	grad := make([]float64, n*Components)
	update := make([]float64, n*Components)
	gains := make([]float64, n*Components)
	for i := range gains {
		gains[i] = 1
	}
	num := make([]float64, n*n)

	for iter := 0; iter < cfg.Iterations; iter++ {
		if iter%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		exaggeration, momentum := 1.0, 0.8
		if iter < cfg.ExaggerationIters {
			exaggeration, momentum = cfg.EarlyExaggeration, 0.5
		}

		// Student-t affinities in the embedding.
		var sumQ float64
		for i := 0; i < n; i++ {
			num[i*n+i] = 0
			for j := i + 1; j < n; j++ {
				dx := y[i*Components] - y[j*Components]
				dy := y[i*Components+1] - y[j*Components+1]
				q := 1 / (1 + dx*dx + dy*dy)
				num[i*n+j], num[j*n+i] = q, q
				sumQ += 2 * q
			}
		}
		sumQ = math.Max(sumQ, 1e-12)

		for i := range grad {
			grad[i] = 0
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				q := num[i*n+j]
				mult := 4 * (exaggeration*p[i*n+j] - q/sumQ) * q
				grad[i*Components] += mult * (y[i*Components] - y[j*Components])
				grad[i*Components+1] += mult * (y[i*Components+1] - y[j*Components+1])
			}
		}

		for k := range y {
			if (grad[k] > 0) != (update[k] > 0) {
				gains[k] += 0.2
			} else {
				gains[k] *= 0.8
			}
			gains[k] = math.Max(gains[k], tsneMinGain)
			update[k] = momentum*update[k] - cfg.LearningRate*gains[k]*grad[k]
			y[k] += update[k]
		}
		recenter(y, n)
	}

	out := mat.NewDense(n, Components, y)
	flipSigns(out)
	return out, nil
}

// jointProbabilities returns the symmetrised input affinities P, flattened
// row-major. Each conditional row is calibrated by binary search on the
// Gaussian precision so its entropy matches log(perplexity).
func jointProbabilities(points [][]float64, perplexity float64) []float64 {
	n := len(points)
	sq := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var d float64
			for k := range points[i] {
				diff := points[i][k] - points[j][k]
				d += diff * diff
			}
			sq[i*n+j], sq[j*n+i] = d, d
		}
	}

	target := math.Log(perplexity)
	cond := make([]float64, n*n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
		for step := 0; step < tsneSearchSteps; step++ {
			h := rowEntropy(sq[i*n:(i+1)*n], i, beta, row)
			diff := h - target
			if math.Abs(diff) < tsneSearchTol {
				break
			}
			if diff > 0 {
				lo = beta
				if math.IsInf(hi, 1) {
					beta *= 2
				} else {
					beta = (beta + hi) / 2
				}
			} else {
				hi = beta
				if math.IsInf(lo, -1) {
					beta /= 2
				} else {
					beta = (beta + lo) / 2
				}
			}
		}
		rowEntropy(sq[i*n:(i+1)*n], i, beta, row)
		copy(cond[i*n:(i+1)*n], row)
	}

	p := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p[i*n+j] = math.Max((cond[i*n+j]+cond[j*n+i])/(2*float64(n)), 1e-12)
		}
		p[i*n+i] = 0
	}
	return p
}

// rowEntropy fills row with the conditional probabilities p(j|i) for
// precision beta and returns their Shannon entropy in nats.
func rowEntropy(dist []float64, i int, beta float64, row []float64) float64 {
	// Shift by the smallest distance for numerical stability.
	minD := math.Inf(1)
	for j, d := range dist {
		if j != i && d < minD {
			minD = d
		}
	}
	var sum float64
	for j, d := range dist {
		if j == i {
			row[j] = 0
			continue
		}
		row[j] = math.Exp(-(d - minD) * beta)
		sum += row[j]
	}
	if sum == 0 {
		sum = 1e-12
	}
	var h float64
	for j := range row {
		row[j] /= sum
		if row[j] > 0 {
			h -= row[j] * math.Log(row[j])
		}
	}
	return h
}

// initialEmbedding returns a flattened N x 2 starting layout.
func initialEmbedding(points [][]float64, seed uint64) []float64 {
	n := len(points)
	y := make([]float64, n*Components)

	if res, err := PCA(points); err == nil {
		col := mat.Col(nil, 0, res.Projection)
		if std := stat.StdDev(col, nil); std > 0 {
			for i := 0; i < n; i++ {
				for j := 0; j < Components; j++ {
					y[i*Components+j] = res.Projection.At(i, j) / std * tsneInitStd
				}
			}
			return y
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	for i := range y {
		y[i] = rng.NormFloat64() * tsneInitStd
	}
	return y
}

func recenter(y []float64, n int) {
	for j := 0; j < Components; j++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += y[i*Components+j]
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			y[i*Components+j] -= mean
		}
	}
}
