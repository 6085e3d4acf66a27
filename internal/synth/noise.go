package synth

import "math/rand/v2"

// NoiseConfig controls outlier injection by label swapping.
type NoiseConfig struct {
	Fraction    float64 // Fraction of points that should end up mislabelled
	MaxAttempts int     // Sampling attempts per swap before giving up
	Seed        uint64  // Seed for the pair sampler
}

// DefaultNoiseConfig mislabels 10% of the points.
func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{
		Fraction:    0.10,
		MaxAttempts: 100,
		Seed:        42,
	}
}

// SwapRecord is one applied label swap. Before holds the labels of I and J
// prior to the swap.
type SwapRecord struct {
	I, J   int
	Before [2]int
}

// SwapCount is the number of swaps attempted for n points. Each swap
// mislabels two points.
func (c NoiseConfig) SwapCount(n int) int {
	return int(float64(n) * c.Fraction / 2)
}

// InjectLabelNoise swaps labels between pairs of points from different
// clusters, in place. A swap whose sampling attempts are exhausted is skipped.
func InjectLabelNoise(labels []int, cfg NoiseConfig) []SwapRecord {
	n := len(labels)
	if n < 2 {
		return nil
	}
	rng := rand.New(NewSource(cfg.Seed))

	swaps := cfg.SwapCount(n)
	records := make([]SwapRecord, 0, swaps)
	for s := 0; s < swaps; s++ {
		for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
			i := rng.IntN(n)
			j := rng.IntN(n - 1)
			if j >= i {
				j++
			}
			if labels[i] == labels[j] {
				continue
			}
			records = append(records, SwapRecord{I: i, J: j, Before: [2]int{labels[i], labels[j]}})
			labels[i], labels[j] = labels[j], labels[i]
			break
		}
	}
	return records
}

// Outliers returns the distinct point indices touched by swaps, in swap order.
func Outliers(records []SwapRecord) []int {
	seen := make(map[int]bool, 2*len(records))
	var out []int
	for _, r := range records {
		for _, idx := range []int{r.I, r.J} {
			if !seen[idx] {
				seen[idx] = true
				out = append(out, idx)
			}
		}
	}
	return out
}
