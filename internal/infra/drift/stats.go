package drift

import "math"

// epsilon guards zero-probability cells against undefined logarithms.
const epsilon = 1e-10

// PSI computes the Population Stability Index between two categorical
// probability distributions:
//
//	PSI = Σ (current% − baseline%) × ln(current% / baseline%)
//
// Categories are aligned first; a category missing from one side gets
// zero probability. Returns the absolute PSI and the per-category
// components.
func PSI(baseline, current map[string]float64) (float64, map[string]float64) {
	categories := make(map[string]struct{}, len(baseline)+len(current))
	for c := range baseline {
		categories[c] = struct{}{}
	}
	for c := range current {
		categories[c] = struct{}{}
	}

	score := 0.0
	components := make(map[string]float64, len(categories))
	for c := range categories {
		expected := math.Max(baseline[c], epsilon)
		actual := math.Max(current[c], epsilon)
		component := (actual - expected) * math.Log(actual/expected)
		components[c] = component
		score += component
	}
	return math.Abs(score), components
}

// KLDivergence computes the discrete Kullback-Leibler divergence
// Σ p·ln(p/q) between two smoothed probability distributions of equal
// length. p is the current distribution, q the baseline.
func KLDivergence(p, q []float64) float64 {
	kl := 0.0
	for i := range p {
		kl += p[i] * math.Log(p[i]/q[i])
	}
	return kl
}

// Hellinger computes the Hellinger distance between two probability
// distributions of equal length (0 identical, 1 disjoint).
func Hellinger(p, q []float64) float64 {
	sum := 0.0
	for i := range p {
		d := math.Sqrt(p[i]) - math.Sqrt(q[i])
		sum += d * d
	}
	return math.Sqrt(sum) / math.Sqrt2
}

// JensenShannon computes the symmetric Jensen-Shannon divergence
// between two probability distributions of equal length.
func JensenShannon(p, q []float64) float64 {
	m := make([]float64, len(p))
	for i := range p {
		m[i] = (p[i] + q[i]) / 2
	}
	return (KLDivergence(p, m) + KLDivergence(q, m)) / 2
}

// histogramCounts discretizes values into the given bin edges. Values
// outside the range clamp into the first or last bin so the current
// window keeps its full sample mass.
func histogramCounts(values []float64, edges []float64) []int {
	bins := len(edges) - 1
	counts := make([]int, bins)
	lo, hi := edges[0], edges[len(edges)-1]
	width := (hi - lo) / float64(bins)

	for _, v := range values {
		idx := 0
		if width > 0 {
			idx = int((v - lo) / width)
		}
		if idx < 0 {
			idx = 0
		}
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return counts
}

// normalizeCounts converts bin counts into an epsilon-smoothed
// probability distribution.
func normalizeCounts(counts []int) []float64 {
	probs := make([]float64, len(counts))
	total := 0.0
	for i, c := range counts {
		probs[i] = float64(c) + epsilon
		total += probs[i]
	}
	if total == 0 {
		return probs
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs
}
